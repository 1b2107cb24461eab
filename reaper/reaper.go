package reaper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/sentinel/activity"
	"github.com/giantswarm/sentinel/instrumentation"
)

// DefaultInterval is the default time between sweeps
const DefaultInterval = 5 * time.Minute

// Config holds the reaper configuration.
type Config struct {
	// Interval between sweeps (default: 5m).
	Interval time.Duration `yaml:"interval"`
}

// SessionSweeper removes sessions that are no longer live.
type SessionSweeper interface {
	CleanupExpiredSessions() int
}

// CounterPruner removes detection counters whose window has elapsed.
type CounterPruner interface {
	PruneCounters() int
}

// Result describes one sweep.
type Result struct {
	SessionsRemoved int           `json:"sessions_removed"`
	CountersRemoved int           `json:"counters_removed"`
	Duration        time.Duration `json:"duration"`
}

// Reaper periodically sweeps the session registry and the detector.
type Reaper struct {
	interval time.Duration
	sessions SessionSweeper
	counters CounterPruner
	recorder activity.Recorder
	logger   *slog.Logger

	instrumentation *instrumentation.Instrumentation
	tracer          trace.Tracer

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running bool
}

// New creates a reaper. Either sweeper may be nil to skip that half of the
// sweep; recorder may be nil.
func New(cfg Config, sessions SessionSweeper, counters CounterPruner, recorder activity.Recorder, logger *slog.Logger) *Reaper {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		if cfg.Interval < 0 {
			logger.Warn("Invalid reaper interval, using default", "provided", cfg.Interval, "default", DefaultInterval)
		}
		cfg.Interval = DefaultInterval
	}
	return &Reaper{
		interval: cfg.Interval,
		sessions: sessions,
		counters: counters,
		recorder: recorder,
		logger:   logger,
	}
}

// SetInstrumentation enables metrics and tracing for sweeps.
func (r *Reaper) SetInstrumentation(inst *instrumentation.Instrumentation) {
	r.instrumentation = inst
	if inst != nil {
		r.tracer = inst.Tracer("reaper")
	}
}

// Interval returns the time between sweeps.
func (r *Reaper) Interval() time.Duration {
	return r.interval
}

// Start launches the sweep loop. Calling Start on a running reaper does
// nothing.
func (r *Reaper) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.running = true
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	go r.loop(r.stop, r.done)
	r.logger.Info("Reaper started", "interval", r.interval)
}

// Stop ends the sweep loop and waits for an in-flight sweep to finish.
// It is safe to call more than once.
func (r *Reaper) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stop)
	done := r.done
	r.mu.Unlock()

	<-done
	r.logger.Info("Reaper stopped")
}

func (r *Reaper) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.SweepOnce(context.Background())
		}
	}
}

// SweepOnce runs a single sweep synchronously.
func (r *Reaper) SweepOnce(ctx context.Context) Result {
	var span trace.Span
	if r.tracer != nil {
		ctx, span = r.tracer.Start(ctx, "reaper.sweep")
		defer span.End()
	}

	start := time.Now()
	var res Result
	if r.sessions != nil {
		res.SessionsRemoved = r.sessions.CleanupExpiredSessions()
	}
	if r.counters != nil {
		res.CountersRemoved = r.counters.PruneCounters()
	}
	res.Duration = time.Since(start)

	instrumentation.AddReaperAttributes(span, res.SessionsRemoved, res.CountersRemoved)
	instrumentation.SetSpanSuccess(span)
	if r.instrumentation != nil {
		if m := r.instrumentation.Metrics(); m != nil {
			m.RecordReaperSweep(ctx, res.SessionsRemoved, res.CountersRemoved, float64(res.Duration.Microseconds())/1000)
		}
	}

	r.logger.Debug("Reaper sweep completed",
		"sessions_removed", res.SessionsRemoved,
		"counters_removed", res.CountersRemoved,
		"duration", res.Duration)

	if r.recorder != nil {
		r.recorder.Log(activity.Entry{
			Level:    activity.LevelDebug,
			Category: activity.CategorySystem,
			Action:   activity.ActionReaperSweep,
			Details: map[string]any{
				"sessions_removed": res.SessionsRemoved,
				"counters_removed": res.CountersRemoved,
				"duration_ms":      res.Duration.Milliseconds(),
			},
			Duration: res.Duration,
			Status:   activity.StatusSuccess,
		})
	}
	return res
}
