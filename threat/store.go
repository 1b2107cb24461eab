package threat

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/giantswarm/sentinel/activity"
	"github.com/giantswarm/sentinel/instrumentation"
	"github.com/giantswarm/sentinel/internal/ring"
)

const (
	// DefaultMaxEvents is the default capacity of the store.
	DefaultMaxEvents = 10000

	maxRecentThreats = 10
)

// Config holds the threat store configuration.
type Config struct {
	// MaxEvents is the maximum number of retained events (default: 10000).
	MaxEvents int `yaml:"maxEvents"`
}

// Filter selects events in List. Zero fields do not filter.
type Filter struct {
	Type   Type
	Level  Level
	Status Status
	Since  time.Time
	Until  time.Time
	Limit  int
}

func (f Filter) matches(e *Event) bool {
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Level != 0 && e.Level != f.Level {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
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

// Stats aggregates the stored events.
type Stats struct {
	TotalThreats  int            `json:"total_threats"`
	ByType        map[string]int `json:"by_type"`
	ByLevel       map[string]int `json:"by_level"`
	ByStatus      map[string]int `json:"by_status"`
	RecentThreats []Event        `json:"recent_threats"`
}

// Store is a bounded, append-ordered list of threat events, safe for
// concurrent use.
type Store struct {
	mu     sync.RWMutex
	events *ring.Buffer[*Event]
	byID   map[string]*Event

	recorder        activity.Recorder
	logger          *slog.Logger
	instrumentation *instrumentation.Instrumentation
	size            atomic.Int64
}

// NewStore creates a threat store. recorder may be nil.
func NewStore(cfg Config, recorder activity.Recorder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxEvents <= 0 {
		if cfg.MaxEvents < 0 {
			logger.Warn("Invalid maxEvents for threat store, using default",
				"provided", cfg.MaxEvents,
				"default", DefaultMaxEvents)
		}
		cfg.MaxEvents = DefaultMaxEvents
	}

	return &Store{
		events:   ring.New[*Event](cfg.MaxEvents),
		byID:     make(map[string]*Event),
		recorder: recorder,
		logger:   logger,
	}
}

// SetInstrumentation enables metrics and registers the store size gauge.
func (s *Store) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.instrumentation = inst
	if inst == nil || inst.Metrics() == nil {
		return
	}
	if err := inst.ObserveSize(inst.Metrics().StoredThreats, s.size.Load); err != nil {
		s.logger.Warn("Failed to register threat store size gauge", "error", err)
	}
}

// Add appends e, evicting the oldest event when the store is full.
// Events are expected to be complete; the detector is the only writer.
func (s *Store) Add(e Event) {
	stored := e.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.byID[stored.ID]; ok {
		// an ID collision would make the index ambiguous; keep the first record
		s.logger.Warn("Duplicate threat ID ignored", "threat_id", old.ID)
		return
	}

	if old, evicted := s.events.Push(&stored); evicted {
		delete(s.byID, old.ID)
	}
	s.byID[stored.ID] = &stored
	s.size.Store(int64(s.events.Len()))
}

// Get returns a copy of the event with the given ID.
func (s *Store) Get(id string) (Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.byID[id]
	if !ok {
		return Event{}, false
	}
	return e.Clone(), true
}

// List returns matching events, newest first, truncated to f.Limit.
func (s *Store) List(f Filter) []Event {
	s.mu.RLock()
	out := make([]Event, 0)
	for i := 0; i < s.events.Len(); i++ {
		if e := s.events.Newest(i); f.matches(e) {
			out = append(out, e.Clone())
		}
	}
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b Event) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// UpdateStatus moves the event to status and, when mitigationAction is not
// empty, records it. It returns false for an unknown ID or a status that
// cannot be assigned.
func (s *Store) UpdateStatus(id string, status Status, mitigationAction string) (Event, bool) {
	if !status.IsAssignable() {
		return Event{}, false
	}

	s.mu.Lock()
	e, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return Event{}, false
	}
	previous := e.Status
	e.Status = status
	if mitigationAction != "" {
		e.MitigationAction = mitigationAction
	}
	updated := e.Clone()
	s.mu.Unlock()

	if s.instrumentation != nil && s.instrumentation.Metrics() != nil {
		s.instrumentation.Metrics().RecordThreatStatusChanged(context.Background(), string(status))
	}

	details := map[string]any{
		"threat_id":       updated.ID,
		"threat_type":     string(updated.Type),
		"previous_status": string(previous),
		"new_status":      string(status),
	}
	if mitigationAction != "" {
		details["mitigation_action"] = mitigationAction
	}
	if s.recorder != nil {
		s.recorder.Log(activity.Entry{
			Level:    activity.LevelInfo,
			Category: activity.CategorySecurity,
			Action:   activity.ActionThreatStatusUpdated,
			Details:  details,
			Status:   activity.StatusSuccess,
		})
	}

	return updated, true
}

// Stats computes aggregate counts in a single pass.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		TotalThreats:  s.events.Len(),
		ByType:        make(map[string]int),
		ByLevel:       make(map[string]int),
		ByStatus:      make(map[string]int),
		RecentThreats: make([]Event, 0, maxRecentThreats),
	}
	for i := 0; i < s.events.Len(); i++ {
		e := s.events.Newest(i)
		stats.ByType[string(e.Type)]++
		stats.ByLevel[e.Level.String()]++
		stats.ByStatus[string(e.Status)]++
		if len(stats.RecentThreats) < maxRecentThreats {
			stats.RecentThreats = append(stats.RecentThreats, e.Clone())
		}
	}
	return stats
}

// Len returns the number of stored events.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.events.Len()
}
