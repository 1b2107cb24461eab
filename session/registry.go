package session

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/giantswarm/sentinel/activity"
	"github.com/giantswarm/sentinel/clock"
	"github.com/giantswarm/sentinel/instrumentation"
)

// Reasons a session ends, used as the metric attribute.
const (
	endReasonEvicted     = "evicted"
	endReasonExpired     = "expired"
	endReasonInvalidated = "invalidated"
)

// userBucket holds the sessions of one user in creation order.
type userBucket struct {
	mu       sync.Mutex
	sessions []*Session
	removed  bool // unlinked from the registry map; writers must retry
}

// Registry tracks sessions per user. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	users map[string]*userBucket

	config Config

	clock           clock.Clock
	logger          *slog.Logger
	recorder        activity.Recorder
	instrumentation *instrumentation.Instrumentation

	// stored counts sessions held in buckets, live or not
	stored atomic.Int64
}

// New creates a registry. Non-positive MaxAge and MaxConcurrentSessions and
// a zero SessionTimeout fall back to defaults. recorder may be nil.
func New(cfg Config, recorder activity.Recorder, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAge <= 0 {
		if cfg.MaxAge < 0 {
			logger.Warn("Invalid session maxAge, using default", "provided", cfg.MaxAge, "default", DefaultMaxAge)
		}
		cfg.MaxAge = DefaultMaxAge
	}
	if cfg.MaxConcurrentSessions <= 0 {
		if cfg.MaxConcurrentSessions < 0 {
			logger.Warn("Invalid maxConcurrentSessions, using default", "provided", cfg.MaxConcurrentSessions, "default", DefaultMaxConcurrentSessions)
		}
		cfg.MaxConcurrentSessions = DefaultMaxConcurrentSessions
	}
	if cfg.SessionTimeout == 0 {
		cfg.SessionTimeout = DefaultSessionTimeout
	}

	return &Registry{
		users:    make(map[string]*userBucket),
		config:   cfg,
		clock:    clock.System{},
		logger:   logger,
		recorder: recorder,
	}
}

// SetClock replaces the time source. Intended for tests.
func (r *Registry) SetClock(c clock.Clock) {
	r.clock = clock.OrSystem(c)
}

// SetInstrumentation enables metrics and registers the stored sessions gauge.
func (r *Registry) SetInstrumentation(inst *instrumentation.Instrumentation) {
	r.instrumentation = inst
	if inst == nil || inst.Metrics() == nil {
		return
	}
	if err := inst.ObserveSize(inst.Metrics().ActiveSessions, r.stored.Load); err != nil {
		r.logger.Warn("Failed to register session gauge", "error", err)
	}
}

// Config returns the effective configuration.
func (r *Registry) Config() Config {
	return r.config
}

// isLive reports whether s may still be used at now.
func (r *Registry) isLive(s *Session, now time.Time) bool {
	if !s.IsActive || now.After(s.ExpiresAt) {
		return false
	}
	if r.config.SessionTimeout > 0 && now.Sub(s.LastActivity) > r.config.SessionTimeout {
		return false
	}
	return true
}

// bucket returns the bucket of userID, creating it when create is set.
func (r *Registry) bucket(userID string, create bool) *userBucket {
	r.mu.RLock()
	b := r.users[userID]
	r.mu.RUnlock()
	if b != nil || !create {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b = r.users[userID]; b == nil {
		b = &userBucket{}
		r.users[userID] = b
	}
	return b
}

// dropIfEmpty unlinks b from the map when it holds no sessions.
func (r *Registry) dropIfEmpty(userID string, b *userBucket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.users[userID] != b {
		return
	}
	b.mu.Lock()
	if len(b.sessions) == 0 {
		b.removed = true
		delete(r.users, userID)
	}
	b.mu.Unlock()
}

// userIDs snapshots the user IDs with a bucket.
func (r *Registry) userIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.users))
}

// CreateSession starts a session for an authenticated user. When the user
// already has MaxConcurrentSessions live sessions, the least recently
// active ones are invalidated to make room.
func (r *Registry) CreateSession(userID, userAgent, ipAddress, userName, userRole string) Session {
	for {
		b := r.bucket(userID, true)
		b.mu.Lock()
		if b.removed {
			b.mu.Unlock()
			continue
		}

		now := r.clock.Now()
		dead, expired := r.pruneLocked(b, now)

		var evicted []Session
		for len(b.sessions) >= r.config.MaxConcurrentSessions {
			evicted = append(evicted, r.evictLeastActiveLocked(b))
		}

		s := &Session{
			ID:           generateSessionID(),
			UserID:       userID,
			UserName:     userName,
			UserRole:     userRole,
			UserAgent:    userAgent,
			IPAddress:    ipAddress,
			CreatedAt:    now,
			LastActivity: now,
			ExpiresAt:    now.Add(r.config.MaxAge),
			IsActive:     true,
		}
		b.sessions = append(b.sessions, s)
		created := s.clone()
		r.stored.Add(int64(1 - len(evicted) - dead))
		b.mu.Unlock()

		ctx := context.Background()
		for _, e := range evicted {
			r.log(activity.LevelInfo, activity.ActionSessionEvicted, e, map[string]any{
				"reason": "max_concurrent_sessions",
				"limit":  r.config.MaxConcurrentSessions,
			})
		}
		r.recordEnded(ctx, endReasonEvicted, len(evicted))
		r.recordEnded(ctx, endReasonExpired, expired)
		if m := r.metrics(); m != nil {
			m.RecordSessionCreated(ctx, userRole)
		}
		r.log(activity.LevelInfo, activity.ActionSessionCreated, created, map[string]any{
			"user_role": userRole,
		})
		return created
	}
}

// pruneLocked removes sessions that are no longer live from b. It returns
// how many were removed and how many of those were still marked active,
// i.e. ended by expiry here rather than by an earlier invalidation.
// Must be called with b.mu held.
func (r *Registry) pruneLocked(b *userBucket, now time.Time) (removed, expired int) {
	kept := b.sessions[:0]
	for _, s := range b.sessions {
		if r.isLive(s, now) {
			kept = append(kept, s)
			continue
		}
		if s.IsActive {
			expired++
			s.IsActive = false
		}
	}
	removed = len(b.sessions) - len(kept)
	clear(b.sessions[len(kept):])
	b.sessions = kept
	return removed, expired
}

// evictLeastActiveLocked removes the session with the oldest LastActivity,
// the earliest created one on a tie. Must be called with b.mu held and a
// non-empty bucket.
func (r *Registry) evictLeastActiveLocked(b *userBucket) Session {
	victim := 0
	for i, s := range b.sessions {
		if s.LastActivity.Before(b.sessions[victim].LastActivity) {
			victim = i
		}
	}
	s := b.sessions[victim]
	s.IsActive = false
	b.sessions = slices.Delete(b.sessions, victim, victim+1)
	return s.clone()
}

// GetSession looks up a live session and records the access.
//
// This is not a pure read: an expired or idle session is removed and
// reported as absent, and a live one has its LastActivity set to now and,
// with RenewOnActivity, its ExpiresAt extended to now+MaxAge.
func (r *Registry) GetSession(userID, sessionID string) (Session, bool) {
	b := r.bucket(userID, false)
	if b == nil {
		return Session{}, false
	}

	b.mu.Lock()
	if b.removed {
		b.mu.Unlock()
		return Session{}, false
	}

	idx := slices.IndexFunc(b.sessions, func(s *Session) bool { return s.ID == sessionID })
	if idx < 0 {
		b.mu.Unlock()
		return Session{}, false
	}

	now := r.clock.Now()
	s := b.sessions[idx]
	if !r.isLive(s, now) {
		wasActive := s.IsActive
		s.IsActive = false
		expired := s.clone()
		b.sessions = slices.Delete(b.sessions, idx, idx+1)
		empty := len(b.sessions) == 0
		r.stored.Add(-1)
		b.mu.Unlock()

		if wasActive {
			r.recordEnded(context.Background(), endReasonExpired, 1)
			r.log(activity.LevelInfo, activity.ActionSessionExpired, expired, nil)
		}
		if empty {
			r.dropIfEmpty(userID, b)
		}
		return Session{}, false
	}

	s.LastActivity = now
	if r.config.RenewOnActivity {
		s.ExpiresAt = now.Add(r.config.MaxAge)
	}
	renewed := s.clone()
	b.mu.Unlock()

	r.log(activity.LevelDebug, activity.ActionSessionRenewed, renewed, nil)
	return renewed, true
}

// GetUserSessions returns the live sessions of a user in creation order.
// It does not count as activity.
func (r *Registry) GetUserSessions(userID string) []Session {
	out := make([]Session, 0)
	b := r.bucket(userID, false)
	if b == nil {
		return out
	}

	now := r.clock.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.sessions {
		if r.isLive(s, now) {
			out = append(out, s.clone())
		}
	}
	return out
}

// GetAllActiveSessions returns the live sessions of every user, sorted by
// user ID. Users without live sessions are omitted.
func (r *Registry) GetAllActiveSessions() []UserSessions {
	out := make([]UserSessions, 0)
	for _, userID := range r.userIDs() {
		if sessions := r.GetUserSessions(userID); len(sessions) > 0 {
			out = append(out, UserSessions{UserID: userID, Sessions: sessions})
		}
	}
	return out
}

// InvalidateSession ends one session. It returns false when no active
// session matches, so repeated calls are harmless.
func (r *Registry) InvalidateSession(userID, sessionID string) bool {
	b := r.bucket(userID, false)
	if b == nil {
		return false
	}

	b.mu.Lock()
	idx := slices.IndexFunc(b.sessions, func(s *Session) bool { return s.ID == sessionID })
	if b.removed || idx < 0 || !b.sessions[idx].IsActive {
		b.mu.Unlock()
		return false
	}
	s := b.sessions[idx]
	s.IsActive = false
	invalidated := s.clone()
	b.mu.Unlock()

	r.recordEnded(context.Background(), endReasonInvalidated, 1)
	r.log(activity.LevelInfo, activity.ActionSessionInvalidated, invalidated, nil)
	return true
}

// InvalidateAllUserSessions ends every session of a user and forgets the
// user. It returns the number of sessions that were live before the call.
func (r *Registry) InvalidateAllUserSessions(userID string) int {
	r.mu.Lock()
	b := r.users[userID]
	delete(r.users, userID)
	r.mu.Unlock()
	if b == nil {
		return 0
	}

	now := r.clock.Now()
	b.mu.Lock()
	b.removed = true
	count := 0
	for _, s := range b.sessions {
		if r.isLive(s, now) {
			count++
		}
		s.IsActive = false
	}
	r.stored.Add(-int64(len(b.sessions)))
	b.sessions = nil
	b.mu.Unlock()

	r.recordEnded(context.Background(), endReasonInvalidated, count)
	if r.recorder != nil {
		r.recorder.Log(activity.Entry{
			Level:    activity.LevelInfo,
			Category: activity.CategorySession,
			Action:   activity.ActionAllSessionsInvalidated,
			UserID:   userID,
			Details:  map[string]any{"count": count},
			Status:   activity.StatusSuccess,
		})
	}
	return count
}

// CleanupExpiredSessions removes every session that is inactive, expired
// or idle, drops empty user buckets and returns the number of sessions
// removed. Buckets are locked one at a time.
func (r *Registry) CleanupExpiredSessions() int {
	total := 0
	expired := 0
	for _, userID := range r.userIDs() {
		b := r.bucket(userID, false)
		if b == nil {
			continue
		}

		now := r.clock.Now()
		b.mu.Lock()
		if b.removed {
			b.mu.Unlock()
			continue
		}
		removed, n := r.pruneLocked(b, now)
		expired += n
		empty := len(b.sessions) == 0
		r.stored.Add(-int64(removed))
		b.mu.Unlock()

		total += removed
		if empty {
			r.dropIfEmpty(userID, b)
		}
	}

	if total > 0 {
		r.recordEnded(context.Background(), endReasonExpired, expired)
		r.logger.Debug("Cleaned up sessions", "removed", total, "expired", expired)
		if r.recorder != nil {
			r.recorder.Log(activity.Entry{
				Level:    activity.LevelInfo,
				Category: activity.CategorySession,
				Action:   activity.ActionSessionsCleanedUp,
				Details:  map[string]any{"removed": total, "expired": expired},
				Status:   activity.StatusSuccess,
			})
		}
	}
	return total
}

// SetMetadata stores key=value on a live session without counting as
// activity. It reports whether the session was found.
func (r *Registry) SetMetadata(userID, sessionID, key, value string) bool {
	b := r.bucket(userID, false)
	if b == nil {
		return false
	}

	now := r.clock.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.sessions {
		if s.ID != sessionID || !r.isLive(s, now) {
			continue
		}
		if s.Metadata == nil {
			s.Metadata = make(map[string]string)
		}
		s.Metadata[key] = value
		return true
	}
	return false
}

// CalculateUptime returns the time since s was created. It never mutates s.
func (r *Registry) CalculateUptime(s Session) Uptime {
	return uptimeOf(r.clock.Now().Sub(s.CreatedAt))
}

// GetSessionStats summarises the live sessions.
func (r *Registry) GetSessionStats() Stats {
	stats := Stats{SessionsByRole: make(map[string]int)}
	var totalUptime time.Duration

	now := r.clock.Now()
	for _, us := range r.GetAllActiveSessions() {
		stats.TotalUsers++
		for _, s := range us.Sessions {
			stats.TotalSessions++
			role := s.UserRole
			if role == "" {
				role = "unknown"
			}
			stats.SessionsByRole[role]++
			totalUptime += now.Sub(s.CreatedAt)
		}
	}
	if stats.TotalSessions > 0 {
		stats.AverageUptimeSeconds = int64(totalUptime/time.Second) / int64(stats.TotalSessions)
	}
	return stats
}

// Len returns the number of sessions held, including ones not yet reaped.
func (r *Registry) Len() int {
	return int(r.stored.Load())
}

func (r *Registry) metrics() *instrumentation.Metrics {
	if r.instrumentation == nil {
		return nil
	}
	return r.instrumentation.Metrics()
}

func (r *Registry) recordEnded(ctx context.Context, reason string, n int) {
	if n <= 0 {
		return
	}
	if m := r.metrics(); m != nil {
		m.RecordSessionsEnded(ctx, reason, n)
	}
}

func (r *Registry) log(level activity.Level, action string, s Session, details map[string]any) {
	if r.recorder == nil {
		return
	}
	r.recorder.Log(activity.Entry{
		Level:     level,
		Category:  activity.CategorySession,
		Action:    action,
		UserID:    s.UserID,
		SessionID: s.ID,
		IPAddress: s.IPAddress,
		UserAgent: s.UserAgent,
		Details:   details,
		Status:    activity.StatusSuccess,
	})
}

