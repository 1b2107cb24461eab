package activity

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/giantswarm/sentinel/clock"
	"github.com/giantswarm/sentinel/instrumentation"
	"github.com/giantswarm/sentinel/internal/ring"
	"github.com/giantswarm/sentinel/internal/util"
)

const (
	// DefaultMaxEntries is the default capacity of the log.
	DefaultMaxEntries = 10000

	// DefaultMinLevel is the default ingestion floor.
	DefaultMinLevel = LevelInfo

	// maxRecentErrors bounds Stats.RecentErrors.
	maxRecentErrors = 10
)

// Config holds the activity log configuration.
type Config struct {
	// MaxEntries is the maximum number of retained entries (default: 10000).
	MaxEntries int `yaml:"maxEntries"`

	// MinLevel drops entries below this level at ingestion (default: info).
	MinLevel Level `yaml:"minLevel"`

	// Mirror writes every accepted entry to the process logger as well.
	Mirror bool `yaml:"mirror"`
}

// Filter selects entries in GetLogs. Zero fields do not filter.
type Filter struct {
	MinLevel Level
	Category string
	UserID   string
	Since    time.Time
	Until    time.Time
	Limit    int
}

func (f Filter) matches(e Entry) bool {
	if f.MinLevel != 0 && e.Level < f.MinLevel {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.Timestamp.After(f.Until) {
		return false
	}
	return true
}

// Stats summarises the retained entries.
type Stats struct {
	TotalLogs    int            `json:"total_logs"`
	ByLevel      map[string]int `json:"by_level"`
	ByCategory   map[string]int `json:"by_category"`
	RecentErrors []Entry        `json:"recent_errors"`
}

// Log is a bounded in-memory activity log, safe for concurrent use.
type Log struct {
	mu         sync.RWMutex
	entries    *ring.Buffer[Entry]
	maxEntries int
	minLevel   Level
	mirror     bool

	clock           clock.Clock
	logger          *slog.Logger
	instrumentation *instrumentation.Instrumentation
	size            atomic.Int64
}

// New creates an activity log. Out-of-range values fall back to defaults.
func New(cfg Config, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxEntries <= 0 {
		if cfg.MaxEntries < 0 {
			logger.Warn("Invalid maxEntries for activity log, using default",
				"provided", cfg.MaxEntries,
				"default", DefaultMaxEntries)
		}
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.MinLevel == 0 {
		cfg.MinLevel = DefaultMinLevel
	}

	return &Log{
		entries:    ring.New[Entry](cfg.MaxEntries),
		maxEntries: cfg.MaxEntries,
		minLevel:   cfg.MinLevel,
		mirror:     cfg.Mirror,
		clock:      clock.System{},
		logger:     logger,
	}
}

// SetClock replaces the time source. Intended for tests.
func (l *Log) SetClock(c clock.Clock) {
	l.clock = clock.OrSystem(c)
}

// SetInstrumentation enables metrics for the log and registers its size gauge.
func (l *Log) SetInstrumentation(inst *instrumentation.Instrumentation) {
	l.instrumentation = inst
	if inst == nil || inst.Metrics() == nil {
		return
	}
	if err := inst.ObserveSize(inst.Metrics().StoredEntries, l.size.Load); err != nil {
		l.logger.Warn("Failed to register activity log size gauge", "error", err)
	}
}

// MinLevel returns the ingestion floor.
func (l *Log) MinLevel() Level {
	return l.minLevel
}

// Log ingests one entry. A zero Level is treated as info and a zero
// Timestamp as now. It reports whether the entry was retained.
func (l *Log) Log(e Entry) bool {
	if e.Level == 0 {
		e.Level = LevelInfo
	}
	if e.Level < l.minLevel {
		l.recordMetric(e.Level, "dropped")
		return false
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = l.clock.Now()
	}
	e = e.clone()

	l.mu.Lock()
	old, evicted := l.entries.Push(e)
	l.size.Store(int64(l.entries.Len()))
	l.mu.Unlock()

	l.recordMetric(e.Level, "stored")
	if evicted {
		l.recordMetric(old.Level, "evicted")
	}
	if l.mirror {
		l.mirrorEntry(e)
	}
	return true
}

// LogActivity records an entry in the given category.
func (l *Log) LogActivity(category, action string, opts Options) bool {
	return l.Log(opts.entry(category, action))
}

// LogSecurityEvent records a security entry. The level defaults to warn.
func (l *Log) LogSecurityEvent(action string, opts Options) bool {
	if opts.Level == 0 {
		opts.Level = LevelWarn
	}
	return l.Log(opts.entry(CategorySecurity, action))
}

// LogAuthEvent records an authentication outcome. Failures default to warn.
func (l *Log) LogAuthEvent(action, userID string, success bool, opts Options) bool {
	opts.UserID = userID
	if opts.Status == "" {
		opts.Status = statusOf(success)
	}
	if opts.Level == 0 && !success {
		opts.Level = LevelWarn
	}
	return l.Log(opts.entry(CategoryAuth, action))
}

// LogAccessEvent records an authorisation decision for resource.
func (l *Log) LogAccessEvent(resource, userID string, granted bool, opts Options) bool {
	opts.UserID = userID
	opts.Resource = resource
	if opts.Status == "" {
		opts.Status = statusOf(granted)
	}
	action := ActionAccessGranted
	if !granted {
		action = ActionAccessDenied
		if opts.Level == 0 {
			opts.Level = LevelWarn
		}
	}
	return l.Log(opts.entry(CategoryAccess, action))
}

func statusOf(ok bool) Status {
	if ok {
		return StatusSuccess
	}
	return StatusFailure
}

// GetLogs returns matching entries, newest first, truncated to f.Limit.
func (l *Log) GetLogs(f Filter) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, 0)
	for i := 0; i < l.entries.Len(); i++ {
		if e := l.entries.Newest(i); f.matches(e) {
			out = append(out, e.clone())
		}
	}
	// entries are kept in arrival order; caller-supplied timestamps may not be
	slices.SortStableFunc(out, func(a, b Entry) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// GetLogStats computes counts by level and category in one pass.
func (l *Log) GetLogStats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := Stats{
		TotalLogs:    l.entries.Len(),
		ByLevel:      make(map[string]int),
		ByCategory:   make(map[string]int),
		RecentErrors: make([]Entry, 0, maxRecentErrors),
	}
	for i := 0; i < l.entries.Len(); i++ {
		e := l.entries.Newest(i)
		stats.ByLevel[e.Level.String()]++
		stats.ByCategory[e.Category]++
		if e.Level >= LevelError && len(stats.RecentErrors) < maxRecentErrors {
			stats.RecentErrors = append(stats.RecentErrors, e.clone())
		}
	}
	return stats
}

// ClearLogs removes every entry and returns how many were removed.
func (l *Log) ClearLogs() int {
	l.mu.Lock()
	n := l.entries.Len()
	l.entries.Reset()
	l.size.Store(0)
	l.mu.Unlock()

	l.logger.Info("Activity log cleared", "removed", n)
	return n
}

// Len returns the number of retained entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.entries.Len()
}

// snapshot returns the entries in chronological order.
func (l *Log) snapshot() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, l.entries.Len())
	for i := range out {
		out[i] = l.entries.At(i).clone()
	}
	return out
}

func (l *Log) recordMetric(level Level, result string) {
	if l.instrumentation == nil || l.instrumentation.Metrics() == nil {
		return
	}
	l.instrumentation.Metrics().RecordActivityEntry(context.Background(), level.String(), result)
}

// mirrorEntry writes e to the process logger. User IDs are hashed so the
// process log does not carry identifiers in clear text.
func (l *Log) mirrorEntry(e Entry) {
	attrs := []any{
		"category", e.Category,
		"action", e.Action,
	}
	if e.UserID != "" {
		attrs = append(attrs, "user_id_hash", util.HashForLogging(e.UserID))
	}
	if e.SessionID != "" {
		attrs = append(attrs, "session_id_hash", util.HashForLogging(e.SessionID))
	}
	if e.IPAddress != "" {
		attrs = append(attrs, "ip_address", e.IPAddress)
	}
	if e.Resource != "" {
		attrs = append(attrs, "resource", e.Resource)
	}
	if e.Status != "" {
		attrs = append(attrs, "status", string(e.Status))
	}
	if e.Duration > 0 {
		attrs = append(attrs, "duration", e.Duration)
	}
	if len(e.Details) > 0 {
		attrs = append(attrs, "details", e.Details)
	}
	l.logger.Log(context.Background(), e.Level.slogLevel(), "activity", attrs...)
}
