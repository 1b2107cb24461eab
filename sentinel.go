// Package sentinel wires the security telemetry core: the session registry,
// the abuse detector, the threat and activity stores, the periodic reaper
// and the optional alert publisher.
//
// A Sentinel owns every store; nothing is process-global. Construct one per
// process (or per test) and share it:
//
//	cfg, err := sentinel.LoadConfig("sentinel.yaml")
//	s, err := sentinel.New(cfg, logger)
//	s.Start()
//	defer s.Stop()
//
//	http.ListenAndServe(":8080", s.Middleware().Handler(mux))
package sentinel

import (
	"fmt"
	"log/slog"

	"github.com/giantswarm/sentinel/activity"
	"github.com/giantswarm/sentinel/alerting"
	"github.com/giantswarm/sentinel/clock"
	"github.com/giantswarm/sentinel/instrumentation"
	"github.com/giantswarm/sentinel/middleware"
	"github.com/giantswarm/sentinel/reaper"
	"github.com/giantswarm/sentinel/security"
	"github.com/giantswarm/sentinel/session"
	"github.com/giantswarm/sentinel/threat"
)

// Sentinel owns the telemetry stores and the components acting on them.
type Sentinel struct {
	config Config
	logger *slog.Logger

	activity   *activity.Log
	threats    *threat.Store
	detector   *security.Detector
	sessions   *session.Registry
	reaper     *reaper.Reaper
	alerts     *alerting.Publisher
	middleware *middleware.Middleware
}

// New builds every component from cfg. It fails with ErrInvalidConfig when
// cfg cannot be used; out-of-range numbers are clamped with a warning.
func New(cfg Config, logger *slog.Logger) (*Sentinel, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Sentinel{
		config: cfg,
		logger: logger,
	}

	s.activity = activity.New(cfg.Activity, logger)
	s.threats = threat.NewStore(cfg.Threats, s.activity, logger)

	var err error
	s.detector, err = security.New(cfg.Detection, s.threats, s.activity, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	s.sessions = session.New(cfg.Sessions, s.activity, logger)
	s.reaper = reaper.New(cfg.Reaper, s.sessions, s.detector, s.activity, logger)

	if cfg.Alerting.Enabled {
		s.alerts = alerting.New(cfg.Alerting, logger)
		s.detector.SetAlerter(s.alerts)
	}

	s.middleware, err = middleware.New(cfg.Middleware, s.detector, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return s, nil
}

// SetClock replaces the time source of every store. Intended for tests.
func (s *Sentinel) SetClock(c clock.Clock) {
	s.activity.SetClock(c)
	s.detector.SetClock(c)
	s.sessions.SetClock(c)
}

// SetInstrumentation enables metrics and tracing on every component.
func (s *Sentinel) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.activity.SetInstrumentation(inst)
	s.threats.SetInstrumentation(inst)
	s.detector.SetInstrumentation(inst)
	s.sessions.SetInstrumentation(inst)
	s.reaper.SetInstrumentation(inst)
	s.middleware.SetInstrumentation(inst)
	if s.alerts != nil {
		s.alerts.SetInstrumentation(inst)
	}
}

// Start launches the periodic reaper.
func (s *Sentinel) Start() {
	s.reaper.Start()
	s.activity.LogActivity(activity.CategorySystem, activity.ActionSystemStarted, activity.Options{
		Details: map[string]any{"reaper_interval": s.reaper.Interval().String()},
		Status:  activity.StatusSuccess,
	})
}

// Stop halts the reaper and closes the alert publisher.
func (s *Sentinel) Stop() error {
	s.reaper.Stop()
	s.activity.LogActivity(activity.CategorySystem, activity.ActionSystemStopped, activity.Options{
		Status: activity.StatusSuccess,
	})
	if s.alerts != nil {
		if err := s.alerts.Close(); err != nil {
			return fmt.Errorf("failed to close alert publisher: %w", err)
		}
	}
	return nil
}

// Config returns the configuration the Sentinel was built with.
func (s *Sentinel) Config() Config {
	return s.config
}

// Activity returns the activity log.
func (s *Sentinel) Activity() *activity.Log {
	return s.activity
}

// Threats returns the threat event store.
func (s *Sentinel) Threats() *threat.Store {
	return s.threats
}

// Detector returns the abuse detector.
func (s *Sentinel) Detector() *security.Detector {
	return s.detector
}

// Sessions returns the session registry.
func (s *Sentinel) Sessions() *session.Registry {
	return s.sessions
}

// Reaper returns the periodic reaper.
func (s *Sentinel) Reaper() *reaper.Reaper {
	return s.reaper
}

// Alerts returns the alert publisher, or nil when alerting is disabled.
func (s *Sentinel) Alerts() *alerting.Publisher {
	return s.alerts
}

// Middleware returns the HTTP request middleware.
func (s *Sentinel) Middleware() *middleware.Middleware {
	return s.middleware
}

// SessionStats returns the session registry statistics.
func (s *Sentinel) SessionStats() session.Stats {
	return s.sessions.GetSessionStats()
}
