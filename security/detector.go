package security

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/giantswarm/sentinel/activity"
	"github.com/giantswarm/sentinel/clock"
	"github.com/giantswarm/sentinel/instrumentation"
	"github.com/giantswarm/sentinel/threat"
)

const (
	// DefaultMaxFailedLogins is the number of failures within the window that counts as brute force
	DefaultMaxFailedLogins = 5

	// DefaultFailedLoginWindow is the brute-force counting window
	DefaultFailedLoginWindow = 15 * time.Minute

	// DefaultRateLimitRequests is the number of requests allowed per window
	DefaultRateLimitRequests = 100

	// DefaultRateLimitWindow is the rate limit counting window
	DefaultRateLimitWindow = time.Minute

	// DefaultAlertThreshold is the lowest threat level handed to the Alerter
	DefaultAlertThreshold = threat.LevelHigh

	// DefaultMaxTrackedIdentifiers bounds each counter table
	DefaultMaxTrackedIdentifiers = 10000

	// floodLogInterval throttles rate limit warnings in the process log
	floodLogInterval = 10 * time.Second

	tableFailedLogins = "failed_logins"
	tableRequests     = "requests"
)

// ErrInvalidPattern is returned by New when a suspicious pattern does not compile.
var ErrInvalidPattern = errors.New("invalid suspicious pattern")

// Config holds the detector configuration.
type Config struct {
	// MaxFailedLogins is the failure count that triggers a brute_force event (default: 5).
	MaxFailedLogins int `yaml:"maxFailedLogins"`

	// FailedLoginWindow is the window failures are counted in (default: 15m).
	FailedLoginWindow time.Duration `yaml:"failedLoginWindow"`

	// RateLimitRequests is the number of requests allowed per window (default: 100).
	RateLimitRequests int `yaml:"rateLimitRequests"`

	// RateLimitWindow is the window requests are counted in (default: 1m).
	RateLimitWindow time.Duration `yaml:"rateLimitWindow"`

	// SuspiciousPatterns are regular expressions evaluated in order, case-insensitively.
	// Nil selects DefaultSuspiciousPatterns; an empty list disables input checks.
	SuspiciousPatterns []string `yaml:"suspiciousPatterns"`

	// BlockedIPs seeds the blocklist with permanent blocks.
	BlockedIPs []string `yaml:"blockedIPs"`

	// AlertThreshold is the lowest level handed to the Alerter (default: high).
	AlertThreshold threat.Level `yaml:"alertThreshold"`

	// MaxTrackedIdentifiers bounds each counter table (default: 10000, 0 keeps the default).
	MaxTrackedIdentifiers int `yaml:"maxTrackedIdentifiers"`
}

// Alerter receives threats at or above the alert threshold.
type Alerter interface {
	Alert(ctx context.Context, event threat.Event) error
}

// Detector runs the abuse checks and is the only writer of threat events.
type Detector struct {
	maxFailedLogins   int
	failedLoginWindow time.Duration
	rateLimitRequests int
	rateLimitWindow   time.Duration
	alertThreshold    threat.Level

	patterns     []suspiciousPattern
	failedLogins *counterTable
	requests     *counterTable
	blocked      *blocklist

	store    *threat.Store
	recorder activity.Recorder
	alerter  Alerter

	clock           clock.Clock
	logger          *slog.Logger
	floodLog        rate.Sometimes
	instrumentation *instrumentation.Instrumentation
	tracer          trace.Tracer
}

// New creates a detector writing to store. recorder may be nil.
// Out-of-range numbers fall back to defaults with a warning; patterns that
// do not compile are rejected with ErrInvalidPattern.
func New(cfg Config, store *threat.Store, recorder activity.Recorder, logger *slog.Logger) (*Detector, error) {
	if store == nil {
		return nil, errors.New("threat store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg = applyDefaults(cfg, logger)

	sources := cfg.SuspiciousPatterns
	if sources == nil {
		sources = DefaultSuspiciousPatterns
	}
	patterns, err := compilePatterns(sources)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPattern, err)
	}

	d := &Detector{
		maxFailedLogins:   cfg.MaxFailedLogins,
		failedLoginWindow: cfg.FailedLoginWindow,
		rateLimitRequests: cfg.RateLimitRequests,
		rateLimitWindow:   cfg.RateLimitWindow,
		alertThreshold:    cfg.AlertThreshold,
		patterns:          patterns,
		failedLogins:      newCounterTable(tableFailedLogins, cfg.MaxTrackedIdentifiers, logger),
		requests:          newCounterTable(tableRequests, cfg.MaxTrackedIdentifiers, logger),
		blocked:           newBlocklist(),
		store:             store,
		recorder:          recorder,
		clock:             clock.System{},
		logger:            logger,
		floodLog:          rate.Sometimes{Interval: floodLogInterval},
	}

	now := d.clock.Now()
	for _, ip := range cfg.BlockedIPs {
		ip = normalizeIP(ip)
		if ip == "" {
			continue
		}
		d.blocked.add(BlockedIP{IP: ip, Reason: "configured", BlockedAt: now}, 0)
	}

	logger.Info("Abuse detector initialized",
		"max_failed_logins", d.maxFailedLogins,
		"failed_login_window", d.failedLoginWindow,
		"rate_limit_requests", d.rateLimitRequests,
		"rate_limit_window", d.rateLimitWindow,
		"patterns", len(d.patterns),
		"blocked_ips", len(cfg.BlockedIPs),
		"alert_threshold", d.alertThreshold.String())

	return d, nil
}

func applyDefaults(cfg Config, logger *slog.Logger) Config {
	if cfg.MaxFailedLogins <= 0 {
		if cfg.MaxFailedLogins < 0 {
			logger.Warn("Invalid maxFailedLogins, using default", "provided", cfg.MaxFailedLogins, "default", DefaultMaxFailedLogins)
		}
		cfg.MaxFailedLogins = DefaultMaxFailedLogins
	}
	if cfg.FailedLoginWindow <= 0 {
		if cfg.FailedLoginWindow < 0 {
			logger.Warn("Invalid failedLoginWindow, using default", "provided", cfg.FailedLoginWindow, "default", DefaultFailedLoginWindow)
		}
		cfg.FailedLoginWindow = DefaultFailedLoginWindow
	}
	if cfg.RateLimitRequests <= 0 {
		if cfg.RateLimitRequests < 0 {
			logger.Warn("Invalid rateLimitRequests, using default", "provided", cfg.RateLimitRequests, "default", DefaultRateLimitRequests)
		}
		cfg.RateLimitRequests = DefaultRateLimitRequests
	}
	if cfg.RateLimitWindow <= 0 {
		if cfg.RateLimitWindow < 0 {
			logger.Warn("Invalid rateLimitWindow, using default", "provided", cfg.RateLimitWindow, "default", DefaultRateLimitWindow)
		}
		cfg.RateLimitWindow = DefaultRateLimitWindow
	}
	if cfg.AlertThreshold < threat.LevelLow || cfg.AlertThreshold > threat.LevelCritical {
		if cfg.AlertThreshold != 0 {
			logger.Warn("Invalid alertThreshold, using default", "provided", int(cfg.AlertThreshold), "default", DefaultAlertThreshold.String())
		}
		cfg.AlertThreshold = DefaultAlertThreshold
	}
	if cfg.MaxTrackedIdentifiers <= 0 {
		if cfg.MaxTrackedIdentifiers < 0 {
			logger.Warn("Invalid maxTrackedIdentifiers, using default", "provided", cfg.MaxTrackedIdentifiers, "default", DefaultMaxTrackedIdentifiers)
		}
		cfg.MaxTrackedIdentifiers = DefaultMaxTrackedIdentifiers
	}
	return cfg
}

// SetClock replaces the time source. Intended for tests.
func (d *Detector) SetClock(c clock.Clock) {
	d.clock = clock.OrSystem(c)
}

// SetAlerter installs the receiver for threats at or above the alert threshold.
func (d *Detector) SetAlerter(a Alerter) {
	d.alerter = a
}

// SetInstrumentation enables metrics and tracing and registers the gauges.
func (d *Detector) SetInstrumentation(inst *instrumentation.Instrumentation) {
	d.instrumentation = inst
	if inst == nil {
		return
	}
	d.tracer = inst.Tracer("security")

	m := inst.Metrics()
	if m == nil {
		return
	}
	for _, table := range []*counterTable{d.failedLogins, d.requests} {
		name := table.name
		table.onEvict = func() { m.RecordCounterEviction(context.Background(), name) }
		if err := inst.ObserveSize(m.TrackedIdentifiers, table.Len, attribute.String("table", name)); err != nil {
			d.logger.Warn("Failed to register counter gauge", "table", name, "error", err)
		}
	}
	if err := inst.ObserveSize(m.BlockedIPs, d.blockedCount); err != nil {
		d.logger.Warn("Failed to register blocklist gauge", "error", err)
	}
}

// AlertThreshold returns the lowest level handed to the Alerter.
func (d *Detector) AlertThreshold() threat.Level {
	return d.alertThreshold
}

// Detect records e as a new threat: it assigns an ID, timestamp and the
// detected status, stores it, logs a summary and raises an alert when the
// level is at or above the threshold. It returns the stored event.
func (d *Detector) Detect(e threat.Event) threat.Event {
	ctx := context.Background()
	if d.tracer != nil {
		var span trace.Span
		ctx, span = d.tracer.Start(ctx, "security.detect")
		defer span.End()
	}

	e.ID = uuid.NewString()
	e.Timestamp = d.clock.Now()
	e.Status = threat.StatusDetected
	if e.DetailsVersion == 0 {
		e.DetailsVersion = threat.DetailsVersion
	}
	e = e.Clone()

	d.store.Add(e)

	span := trace.SpanFromContext(ctx)
	instrumentation.AddThreatAttributes(span, e.ID, string(e.Type), e.Level.String())
	if d.instrumentation != nil && d.instrumentation.ShouldLogClientIPs() {
		instrumentation.AddSecurityAttributes(span, e.Source.IP)
	}
	if d.instrumentation != nil && d.instrumentation.Metrics() != nil {
		d.instrumentation.Metrics().RecordThreatDetected(ctx, string(e.Type), e.Level.String())
	}

	if d.recorder != nil {
		d.recorder.Log(activity.Entry{
			Timestamp: e.Timestamp,
			Level:     activityLevel(e.Level),
			Category:  activity.CategorySecurity,
			Action:    activity.ActionThreatDetected,
			UserID:    e.Source.UserID,
			SessionID: e.Source.SessionID,
			IPAddress: e.Source.IP,
			UserAgent: e.Source.UserAgent,
			Resource:  e.Target.Resource,
			Details: map[string]any{
				"threat_id":    e.ID,
				"threat_type":  string(e.Type),
				"threat_level": e.Level.String(),
				"summary":      e.Summary(),
			},
			Status: activity.StatusSuccess,
		})
	}

	if d.alerter != nil && e.Level >= d.alertThreshold {
		if err := d.alerter.Alert(ctx, e.Clone()); err != nil {
			instrumentation.RecordError(span, err)
			d.logger.Warn("Failed to publish threat alert",
				"threat_id", e.ID,
				"threat_type", string(e.Type),
				"error", err)
		}
	}

	instrumentation.SetSpanSuccess(span)
	return e
}

// activityLevel maps threat severity to the level of its activity summary.
func activityLevel(l threat.Level) activity.Level {
	switch l {
	case threat.LevelCritical:
		return activity.LevelCritical
	case threat.LevelHigh:
		return activity.LevelError
	default:
		return activity.LevelWarn
	}
}

// PruneCounters drops every failed-login and request counter whose window
// has elapsed and returns how many were removed. Expired temporary blocks
// are dropped in the same pass but are not part of the returned count.
func (d *Detector) PruneCounters() int {
	now := d.clock.Now()
	removed := d.failedLogins.prune(now, d.failedLoginWindow) + d.requests.prune(now, d.rateLimitWindow)

	if expired := d.blocked.prune(now); expired > 0 {
		d.logger.Debug("Dropped expired IP blocks", "removed", expired)
	}

	if removed > 0 {
		d.logger.Debug("Pruned detection counters", "removed", removed)
		if d.recorder != nil {
			d.recorder.Log(activity.Entry{
				Level:    activity.LevelDebug,
				Category: activity.CategorySystem,
				Action:   activity.ActionCountersPruned,
				Details:  map[string]any{"removed": removed},
			})
		}
	}
	return removed
}

func (d *Detector) blockedCount() int64 {
	return d.blocked.len(d.clock.Now())
}

// Stats holds detector statistics for monitoring.
type Stats struct {
	FailedLogins TableStats `json:"failed_logins"`
	Requests     TableStats `json:"requests"`
	BlockedIPs   int        `json:"blocked_ips"`
}

// Stats returns the counter table and blocklist statistics.
func (d *Detector) Stats() Stats {
	return Stats{
		FailedLogins: d.failedLogins.stats(),
		Requests:     d.requests.stats(),
		BlockedIPs:   int(d.blockedCount()),
	}
}
