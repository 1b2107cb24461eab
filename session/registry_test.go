package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/giantswarm/sentinel/activity"
	"github.com/giantswarm/sentinel/instrumentation"
	"github.com/giantswarm/sentinel/internal/testutil"
)

type recordingRecorder struct {
	mu      sync.Mutex
	entries []activity.Entry
}

func (r *recordingRecorder) Log(e activity.Entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return true
}

func (r *recordingRecorder) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

func newTestRegistry(t *testing.T, cfg Config) (*Registry, *testutil.MockTime, *recordingRecorder) {
	t.Helper()
	rec := &recordingRecorder{}
	clk := testutil.DefaultMockTime()
	r := New(cfg, rec, testutil.DiscardLogger())
	r.SetClock(clk)
	return r, clk, rec
}

func TestNew_Defaults(t *testing.T) {
	r := New(Config{MaxAge: -time.Hour, MaxConcurrentSessions: -1}, nil, testutil.DiscardLogger())

	cfg := r.Config()
	assert.Equal(t, DefaultMaxAge, cfg.MaxAge)
	assert.Equal(t, DefaultMaxConcurrentSessions, cfg.MaxConcurrentSessions)
	assert.Equal(t, DefaultSessionTimeout, cfg.SessionTimeout)
}

func TestCreateSession(t *testing.T) {
	r, clk, rec := newTestRegistry(t, DefaultConfig())

	s := r.CreateSession("alice", "curl/8", "203.0.113.7", "Alice", "admin")

	assert.Len(t, s.ID, 2*sessionIDBytes)
	assert.Equal(t, "alice", s.UserID)
	assert.Equal(t, "Alice", s.UserName)
	assert.Equal(t, "admin", s.UserRole)
	assert.True(t, s.IsActive)
	assert.Equal(t, clk.Now(), s.CreatedAt)
	assert.Equal(t, clk.Now(), s.LastActivity)
	assert.Equal(t, clk.Now().Add(DefaultMaxAge), s.ExpiresAt)
	assert.Equal(t, []string{activity.ActionSessionCreated}, rec.actions())

	other := r.CreateSession("alice", "curl/8", "203.0.113.7", "Alice", "admin")
	assert.NotEqual(t, s.ID, other.ID)
}

func TestCreateSession_EvictsLeastRecentlyActive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConcurrentSessions = 3
	r, clk, rec := newTestRegistry(t, cfg)

	var ids []string
	for range 3 {
		ids = append(ids, r.CreateSession("bob", "", "", "", "user").ID)
		clk.Advance(time.Minute)
	}

	// Touch the oldest so the second becomes the least recently active.
	_, ok := r.GetSession("bob", ids[0])
	require.True(t, ok)
	clk.Advance(time.Minute)

	newest := r.CreateSession("bob", "", "", "", "user")

	live := r.GetUserSessions("bob")
	require.Len(t, live, 3)
	var got []string
	for _, s := range live {
		got = append(got, s.ID)
	}
	assert.ElementsMatch(t, []string{ids[0], ids[2], newest.ID}, got)

	_, ok = r.GetSession("bob", ids[1])
	assert.False(t, ok, "evicted session should be gone")
	assert.Contains(t, rec.actions(), activity.ActionSessionEvicted)
}

func TestCreateSession_TieEvictsEarliest(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConcurrentSessions = 2
	r, _, _ := newTestRegistry(t, cfg)

	first := r.CreateSession("carol", "", "", "", "")
	second := r.CreateSession("carol", "", "", "", "")
	third := r.CreateSession("carol", "", "", "", "")

	live := r.GetUserSessions("carol")
	require.Len(t, live, 2)
	assert.Equal(t, second.ID, live[0].ID)
	assert.Equal(t, third.ID, live[1].ID)
	assert.NotEqual(t, first.ID, live[0].ID)
}

func TestCreateSession_CapNeverExceeded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConcurrentSessions = 2
	r, clk, _ := newTestRegistry(t, cfg)

	for range 10 {
		r.CreateSession("dave", "", "", "", "")
		clk.Advance(time.Second)
		assert.LessOrEqual(t, len(r.GetUserSessions("dave")), 2)
	}
	assert.Equal(t, 2, r.Len())
}

func TestGetSession_Unknown(t *testing.T) {
	r, _, _ := newTestRegistry(t, DefaultConfig())

	_, ok := r.GetSession("nobody", "nope")
	assert.False(t, ok)

	s := r.CreateSession("erin", "", "", "", "")
	_, ok = r.GetSession("erin", "nope")
	assert.False(t, ok)
	_, ok = r.GetSession("frank", s.ID)
	assert.False(t, ok, "session IDs are scoped to their user")
}

func TestGetSession_ExpiresLazily(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAge = time.Hour
	cfg.SessionTimeout = -1
	cfg.RenewOnActivity = false
	r, clk, rec := newTestRegistry(t, cfg)

	s := r.CreateSession("gina", "", "", "", "")

	clk.Advance(time.Hour)
	_, ok := r.GetSession("gina", s.ID)
	assert.True(t, ok, "a session is live up to and including ExpiresAt")

	clk.Advance(time.Second)
	_, ok = r.GetSession("gina", s.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len(), "expired session should be removed on access")
	assert.Contains(t, rec.actions(), activity.ActionSessionExpired)
	assert.Empty(t, r.GetAllActiveSessions())
}

func TestGetSession_IdleTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SessionTimeout = 10 * time.Minute
	r, clk, _ := newTestRegistry(t, cfg)

	s := r.CreateSession("hank", "", "", "", "")

	clk.Advance(9 * time.Minute)
	_, ok := r.GetSession("hank", s.ID)
	require.True(t, ok)

	// The access above reset the idle timer.
	clk.Advance(9 * time.Minute)
	_, ok = r.GetSession("hank", s.ID)
	require.True(t, ok)

	clk.Advance(11 * time.Minute)
	_, ok = r.GetSession("hank", s.ID)
	assert.False(t, ok)
}

func TestGetSession_Renewal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAge = time.Hour
	cfg.SessionTimeout = -1

	t.Run("renew on activity", func(t *testing.T) {
		cfg.RenewOnActivity = true
		r, clk, _ := newTestRegistry(t, cfg)
		s := r.CreateSession("ivy", "", "", "", "")

		clk.Advance(30 * time.Minute)
		got, ok := r.GetSession("ivy", s.ID)
		require.True(t, ok)
		assert.Equal(t, clk.Now(), got.LastActivity)
		assert.Equal(t, clk.Now().Add(time.Hour), got.ExpiresAt)

		clk.Advance(45 * time.Minute)
		_, ok = r.GetSession("ivy", s.ID)
		assert.True(t, ok, "renewed session should outlive its original expiry")
	})

	t.Run("fixed lifetime", func(t *testing.T) {
		cfg.RenewOnActivity = false
		r, clk, _ := newTestRegistry(t, cfg)
		s := r.CreateSession("ivy", "", "", "", "")

		clk.Advance(30 * time.Minute)
		got, ok := r.GetSession("ivy", s.ID)
		require.True(t, ok)
		assert.Equal(t, clk.Now(), got.LastActivity)
		assert.Equal(t, s.ExpiresAt, got.ExpiresAt)
	})
}

func TestGetSession_ReturnsCopy(t *testing.T) {
	r, _, _ := newTestRegistry(t, DefaultConfig())
	s := r.CreateSession("jack", "", "", "", "")
	require.True(t, r.SetMetadata("jack", s.ID, "theme", "dark"))

	got, ok := r.GetSession("jack", s.ID)
	require.True(t, ok)
	got.Metadata["theme"] = "light"
	got.IsActive = false

	again, ok := r.GetSession("jack", s.ID)
	require.True(t, ok)
	assert.Equal(t, "dark", again.Metadata["theme"])
}

func TestGetUserSessions_DoesNotRenew(t *testing.T) {
	r, clk, _ := newTestRegistry(t, DefaultConfig())
	s := r.CreateSession("kate", "", "", "", "")

	clk.Advance(time.Minute)
	sessions := r.GetUserSessions("kate")
	require.Len(t, sessions, 1)
	assert.Equal(t, s.LastActivity, sessions[0].LastActivity)
	assert.Empty(t, r.GetUserSessions("unknown"))
}

func TestInvalidateSession(t *testing.T) {
	r, _, rec := newTestRegistry(t, DefaultConfig())
	s := r.CreateSession("liam", "", "", "", "")
	keep := r.CreateSession("liam", "", "", "", "")

	assert.True(t, r.InvalidateSession("liam", s.ID))
	assert.False(t, r.InvalidateSession("liam", s.ID), "second invalidation is a no-op")
	assert.False(t, r.InvalidateSession("liam", "missing"))
	assert.False(t, r.InvalidateSession("nobody", s.ID))

	_, ok := r.GetSession("liam", s.ID)
	assert.False(t, ok)
	_, ok = r.GetSession("liam", keep.ID)
	assert.True(t, ok)
	assert.Contains(t, rec.actions(), activity.ActionSessionInvalidated)
}

func TestInvalidateAllUserSessions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SessionTimeout = -1
	r, _, rec := newTestRegistry(t, cfg)

	a := r.CreateSession("mia", "", "", "", "")
	r.CreateSession("mia", "", "", "", "")
	r.CreateSession("mia", "", "", "", "")
	require.True(t, r.InvalidateSession("mia", a.ID))
	other := r.CreateSession("noah", "", "", "", "")

	assert.Equal(t, 2, r.InvalidateAllUserSessions("mia"))
	assert.Equal(t, 0, r.InvalidateAllUserSessions("mia"))
	assert.Empty(t, r.GetUserSessions("mia"))

	_, ok := r.GetSession("noah", other.ID)
	assert.True(t, ok)
	assert.Equal(t, 1, r.Len())
	assert.Contains(t, rec.actions(), activity.ActionAllSessionsInvalidated)
}

func TestCleanupExpiredSessions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAge = time.Hour
	cfg.SessionTimeout = -1
	cfg.RenewOnActivity = false
	r, clk, rec := newTestRegistry(t, cfg)

	old := r.CreateSession("olga", "", "", "", "")
	clk.Advance(30 * time.Minute)
	fresh := r.CreateSession("olga", "", "", "", "")
	invalid := r.CreateSession("pete", "", "", "", "")
	require.True(t, r.InvalidateSession("pete", invalid.ID))

	clk.Advance(31 * time.Minute)
	assert.Equal(t, 2, r.CleanupExpiredSessions())
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 0, r.CleanupExpiredSessions())

	_, ok := r.GetSession("olga", old.ID)
	assert.False(t, ok)
	_, ok = r.GetSession("olga", fresh.ID)
	assert.True(t, ok)

	all := r.GetAllActiveSessions()
	require.Len(t, all, 1)
	assert.Equal(t, "olga", all[0].UserID)
	assert.Contains(t, rec.actions(), activity.ActionSessionsCleanedUp)
}

func TestGetAllActiveSessions_SortedByUser(t *testing.T) {
	r, _, _ := newTestRegistry(t, DefaultConfig())
	for _, u := range []string{"zoe", "adam", "max"} {
		r.CreateSession(u, "", "", "", "")
	}

	all := r.GetAllActiveSessions()
	require.Len(t, all, 3)
	assert.Equal(t, "adam", all[0].UserID)
	assert.Equal(t, "max", all[1].UserID)
	assert.Equal(t, "zoe", all[2].UserID)
}

func TestSetMetadata(t *testing.T) {
	r, _, _ := newTestRegistry(t, DefaultConfig())
	s := r.CreateSession("quinn", "", "", "", "")

	assert.True(t, r.SetMetadata("quinn", s.ID, "k", "v"))
	assert.False(t, r.SetMetadata("quinn", "missing", "k", "v"))
	assert.False(t, r.SetMetadata("nobody", s.ID, "k", "v"))

	sessions := r.GetUserSessions("quinn")
	require.Len(t, sessions, 1)
	assert.Equal(t, map[string]string{"k": "v"}, sessions[0].Metadata)
}

func TestCalculateUptime(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SessionTimeout = -1
	r, clk, _ := newTestRegistry(t, cfg)
	s := r.CreateSession("rita", "", "", "", "")

	clk.Advance(2*time.Hour + 3*time.Minute + 4*time.Second)
	u := r.CalculateUptime(s)

	assert.Equal(t, int64(7384), u.TotalSeconds)
	assert.Equal(t, int64(2), u.Hours)
	assert.Equal(t, int64(3), u.Minutes)
	assert.Equal(t, int64(4), u.Seconds)
	assert.Equal(t, "2h 3m 4s", u.Formatted)

	got, ok := r.GetSession("rita", s.ID)
	require.True(t, ok)
	assert.Equal(t, s.CreatedAt, got.CreatedAt, "uptime must not touch the session")
}

func TestGetSessionStats(t *testing.T) {
	r, clk, _ := newTestRegistry(t, DefaultConfig())
	r.CreateSession("sam", "", "", "", "admin")
	clk.Advance(10 * time.Second)
	r.CreateSession("sam", "", "", "", "admin")
	r.CreateSession("tina", "", "", "", "")
	clk.Advance(10 * time.Second)

	stats := r.GetSessionStats()
	assert.Equal(t, 3, stats.TotalSessions)
	assert.Equal(t, 2, stats.TotalUsers)
	assert.Equal(t, map[string]int{"admin": 2, "unknown": 1}, stats.SessionsByRole)
	assert.Equal(t, int64(13), stats.AverageUptimeSeconds)
}

func TestRegistry_Concurrent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConcurrentSessions = 3
	r, _, _ := newTestRegistry(t, cfg)

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			user := fmt.Sprintf("user-%d", w%2)
			for range 50 {
				s := r.CreateSession(user, "", "", "", "")
				r.GetSession(user, s.ID)
				r.GetUserSessions(user)
				if w%4 == 0 {
					r.InvalidateAllUserSessions(user)
				}
				r.CleanupExpiredSessions()
			}
		}()
	}
	wg.Wait()

	for _, us := range r.GetAllActiveSessions() {
		assert.LessOrEqual(t, len(us.Sessions), 3)
	}
}

func TestSessionsEnded_CountsEachSessionOnce(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	inst, err := instrumentation.New(instrumentation.Config{Enabled: true, MeterProvider: provider})
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.MaxAge = time.Hour
	cfg.SessionTimeout = -1
	cfg.RenewOnActivity = false
	r, clk, _ := newTestRegistry(t, cfg)
	r.SetInstrumentation(inst)

	invalidated := r.CreateSession("uma", "ua", "198.51.100.1", "Uma", "user")
	r.CreateSession("uma", "ua", "198.51.100.1", "Uma", "user")
	require.True(t, r.InvalidateSession("uma", invalidated.ID))

	// the invalidated session is pruned here too but already counted
	clk.Advance(2 * time.Hour)
	r.CreateSession("uma", "ua", "198.51.100.1", "Uma", "user")
	assert.Equal(t, 0, r.CleanupExpiredSessions())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	ended := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "sentinel.session.ended" {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				reason, _ := dp.Attributes.Value("reason")
				ended[reason.AsString()] += dp.Value
			}
		}
	}

	assert.Equal(t, int64(1), ended[endReasonInvalidated])
	assert.Equal(t, int64(1), ended[endReasonExpired])
	assert.Zero(t, ended[endReasonEvicted])
}
