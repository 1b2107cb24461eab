package activity

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/giantswarm/sentinel/instrumentation"
	"github.com/giantswarm/sentinel/internal/testutil"
	"github.com/giantswarm/sentinel/internal/util"
)

func newTestLog(t *testing.T, cfg Config) (*Log, *testutil.MockTime) {
	t.Helper()
	clk := testutil.DefaultMockTime()
	l := New(cfg, testutil.DiscardLogger())
	l.SetClock(clk)
	return l, clk
}

func TestNew_Defaults(t *testing.T) {
	l := New(Config{MaxEntries: -3}, nil)
	assert.Equal(t, DefaultMaxEntries, l.maxEntries)
	assert.Equal(t, DefaultMinLevel, l.MinLevel())
}

func TestLog_DropsBelowMinLevel(t *testing.T) {
	l, _ := newTestLog(t, Config{MinLevel: LevelWarn})

	assert.False(t, l.Log(Entry{Level: LevelDebug, Category: CategorySystem, Action: "a"}))
	assert.False(t, l.Log(Entry{Category: CategorySystem, Action: "unset level is info"}))
	assert.True(t, l.Log(Entry{Level: LevelWarn, Category: CategorySystem, Action: "b"}))
	assert.True(t, l.Log(Entry{Level: LevelCritical, Category: CategorySystem, Action: "c"}))

	assert.Equal(t, 2, l.Len())
}

func TestLog_FillsTimestamp(t *testing.T) {
	l, clk := newTestLog(t, Config{})

	l.Log(Entry{Category: CategorySystem, Action: "now"})
	explicit := clk.Now().Add(-time.Hour)
	l.Log(Entry{Timestamp: explicit, Category: CategorySystem, Action: "explicit"})

	logs := l.GetLogs(Filter{})
	require.Len(t, logs, 2)
	assert.Equal(t, clk.Now(), logs[0].Timestamp)
	assert.Equal(t, explicit, logs[1].Timestamp)
}

func TestLog_EvictsOldestOverCapacity(t *testing.T) {
	const capacity = 5
	l, clk := newTestLog(t, Config{MaxEntries: capacity})

	for i := range capacity + 1 {
		l.Log(Entry{Category: CategorySystem, Action: fmt.Sprintf("action-%d", i)})
		clk.Advance(time.Second)
	}

	logs := l.GetLogs(Filter{})
	require.Len(t, logs, capacity)
	for _, e := range logs {
		assert.NotEqual(t, "action-0", e.Action, "oldest entry should have been evicted")
	}
	assert.Equal(t, "action-5", logs[0].Action)
	assert.Equal(t, "action-1", logs[capacity-1].Action)
}

func TestLog_WrapsAroundCapacityRepeatedly(t *testing.T) {
	const capacity = 4
	l, clk := newTestLog(t, Config{MaxEntries: capacity})

	// same timestamp for all entries so ordering comes from arrival alone
	for i := range capacity*3 + 2 {
		require.True(t, l.Log(Entry{Category: CategorySystem, Action: fmt.Sprintf("action-%d", i)}))
		require.LessOrEqual(t, l.Len(), capacity)
	}
	clk.Advance(time.Second)

	logs := l.GetLogs(Filter{})
	require.Len(t, logs, capacity)
	assert.Equal(t, []string{"action-13", "action-12", "action-11", "action-10"}, actionsOf(logs))

	assert.Equal(t, []string{"action-10", "action-11", "action-12", "action-13"}, actionsOf(l.snapshot()))
	assert.Equal(t, capacity, l.GetLogStats().TotalLogs)

	assert.Equal(t, capacity, l.ClearLogs())
	assert.Equal(t, 0, l.Len())
	l.Log(Entry{Category: CategorySystem, Action: "after-clear"})
	assert.Equal(t, []string{"after-clear"}, actionsOf(l.GetLogs(Filter{})))
}

func actionsOf(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Action
	}
	return out
}

func TestGetLogs_Filters(t *testing.T) {
	l, clk := newTestLog(t, Config{MinLevel: LevelDebug})
	start := clk.Now()

	l.LogActivity(CategorySession, ActionSessionRenewed, Options{Level: LevelDebug, UserID: "alice"})
	clk.Advance(time.Minute)
	l.LogAuthEvent(ActionLoginSucceeded, "alice", true, Options{})
	clk.Advance(time.Minute)
	l.LogAuthEvent(ActionLoginFailed, "bob", false, Options{})
	clk.Advance(time.Minute)
	l.LogSecurityEvent(ActionThreatDetected, Options{Level: LevelError})
	clk.Advance(time.Minute)
	l.LogAccessEvent("/admin", "bob", false, Options{})

	tests := []struct {
		name    string
		filter  Filter
		actions []string
	}{
		{
			name:    "no filter returns newest first",
			filter:  Filter{},
			actions: []string{ActionAccessDenied, ActionThreatDetected, ActionLoginFailed, ActionLoginSucceeded, ActionSessionRenewed},
		},
		{
			name:    "warn floor excludes debug and info",
			filter:  Filter{MinLevel: LevelWarn},
			actions: []string{ActionAccessDenied, ActionThreatDetected, ActionLoginFailed},
		},
		{
			name:    "category",
			filter:  Filter{Category: CategoryAuth},
			actions: []string{ActionLoginFailed, ActionLoginSucceeded},
		},
		{
			name:    "user",
			filter:  Filter{UserID: "alice"},
			actions: []string{ActionLoginSucceeded, ActionSessionRenewed},
		},
		{
			name:    "time range is inclusive",
			filter:  Filter{Since: start.Add(time.Minute), Until: start.Add(3 * time.Minute)},
			actions: []string{ActionThreatDetected, ActionLoginFailed, ActionLoginSucceeded},
		},
		{
			name:    "limit applies after sorting",
			filter:  Filter{Limit: 2},
			actions: []string{ActionAccessDenied, ActionThreatDetected},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, e := range l.GetLogs(tt.filter) {
				got = append(got, e.Action)
			}
			assert.Equal(t, tt.actions, got)
		})
	}
}

func TestGetLogs_WarnFloorNeverReturnsLowerLevels(t *testing.T) {
	l, _ := newTestLog(t, Config{MinLevel: LevelDebug})
	for i := range 50 {
		l.Log(Entry{Level: Levels[i%len(Levels)], Category: CategorySystem, Action: "x"})
	}

	for _, e := range l.GetLogs(Filter{MinLevel: LevelWarn}) {
		assert.GreaterOrEqual(t, e.Level, LevelWarn)
	}
}

func TestGetLogs_SortsCallerTimestamps(t *testing.T) {
	l, clk := newTestLog(t, Config{})
	now := clk.Now()

	l.Log(Entry{Timestamp: now.Add(-time.Minute), Action: "middle"})
	l.Log(Entry{Timestamp: now, Action: "newest"})
	l.Log(Entry{Timestamp: now.Add(-time.Hour), Action: "oldest"})

	logs := l.GetLogs(Filter{Limit: 2})
	require.Len(t, logs, 2)
	assert.Equal(t, "newest", logs[0].Action)
	assert.Equal(t, "middle", logs[1].Action)
}

func TestHelpers_SetDefaults(t *testing.T) {
	l, _ := newTestLog(t, Config{MinLevel: LevelDebug})

	l.LogAuthEvent(ActionLoginSucceeded, "alice", true, Options{IPAddress: "10.0.0.1"})
	l.LogAuthEvent(ActionLoginFailed, "alice", false, Options{})
	l.LogAccessEvent("/reports", "bob", true, Options{})
	l.LogAccessEvent("/admin", "bob", false, Options{})
	l.LogSecurityEvent(ActionIPBlocked, Options{})

	logs := l.GetLogs(Filter{})
	require.Len(t, logs, 5)

	blocked, denied, granted, failed, succeeded := logs[0], logs[1], logs[2], logs[3], logs[4]

	assert.Equal(t, CategoryAuth, succeeded.Category)
	assert.Equal(t, LevelInfo, succeeded.Level)
	assert.Equal(t, StatusSuccess, succeeded.Status)
	assert.Equal(t, "10.0.0.1", succeeded.IPAddress)

	assert.Equal(t, LevelWarn, failed.Level)
	assert.Equal(t, StatusFailure, failed.Status)

	assert.Equal(t, ActionAccessGranted, granted.Action)
	assert.Equal(t, "/reports", granted.Resource)
	assert.Equal(t, LevelInfo, granted.Level)

	assert.Equal(t, ActionAccessDenied, denied.Action)
	assert.Equal(t, LevelWarn, denied.Level)
	assert.Equal(t, StatusFailure, denied.Status)

	assert.Equal(t, CategorySecurity, blocked.Category)
	assert.Equal(t, LevelWarn, blocked.Level)
}

func TestLog_CopiesDetails(t *testing.T) {
	l, _ := newTestLog(t, Config{})
	details := map[string]any{"attempts": 3}

	l.LogSecurityEvent(ActionThreatDetected, Options{Details: details})
	details["attempts"] = 99

	logs := l.GetLogs(Filter{})
	require.Len(t, logs, 1)
	assert.Equal(t, 3, logs[0].Details["attempts"])

	logs[0].Details["attempts"] = 42
	assert.Equal(t, 3, l.GetLogs(Filter{})[0].Details["attempts"])
}

func TestGetLogStats(t *testing.T) {
	l, clk := newTestLog(t, Config{})

	for i := range 12 {
		l.Log(Entry{Level: LevelError, Category: CategorySecurity, Action: fmt.Sprintf("err-%d", i)})
		clk.Advance(time.Second)
	}
	l.Log(Entry{Level: LevelCritical, Category: CategorySecurity, Action: "crit"})
	l.Log(Entry{Level: LevelInfo, Category: CategoryAuth, Action: "info"})

	stats := l.GetLogStats()
	assert.Equal(t, 14, stats.TotalLogs)
	assert.Equal(t, 12, stats.ByLevel["error"])
	assert.Equal(t, 1, stats.ByLevel["critical"])
	assert.Equal(t, 1, stats.ByLevel["info"])
	assert.Equal(t, 13, stats.ByCategory[CategorySecurity])
	assert.Equal(t, 1, stats.ByCategory[CategoryAuth])

	require.Len(t, stats.RecentErrors, 10)
	assert.Equal(t, "crit", stats.RecentErrors[0].Action)
	assert.Equal(t, "err-11", stats.RecentErrors[1].Action)
}

func TestClearLogs(t *testing.T) {
	l, _ := newTestLog(t, Config{})
	l.LogActivity(CategorySystem, "one", Options{})
	l.LogActivity(CategorySystem, "two", Options{})

	assert.Equal(t, 2, l.ClearLogs())
	assert.Equal(t, 0, l.Len())
	assert.Empty(t, l.GetLogs(Filter{}))
	assert.Equal(t, 0, l.ClearLogs())
}

func TestLog_ConcurrentWriters(t *testing.T) {
	const (
		writers   = 8
		perWriter = 200
		capacity  = 500
	)
	l, _ := newTestLog(t, Config{MaxEntries: capacity})

	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWriter {
				l.LogActivity(CategorySystem, fmt.Sprintf("w%d-%d", w, i), Options{})
				if i%50 == 0 {
					_ = l.GetLogs(Filter{Limit: 10})
					_ = l.GetLogStats()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, capacity, l.Len())
}

func TestLog_Metrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	inst, err := instrumentation.New(instrumentation.Config{Enabled: true, MeterProvider: provider})
	require.NoError(t, err)

	l, _ := newTestLog(t, Config{MaxEntries: 2, MinLevel: LevelInfo})
	l.SetInstrumentation(inst)

	l.Log(Entry{Level: LevelDebug, Action: "dropped"})
	l.Log(Entry{Action: "a"})
	l.Log(Entry{Action: "b"})
	l.Log(Entry{Action: "c"})

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	results := map[string]int64{}
	var stored int64 = -1
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch m.Name {
			case "sentinel.activity.entries":
				for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
					result, _ := dp.Attributes.Value("result")
					results[result.AsString()] += dp.Value
				}
			case "sentinel.activity.stored":
				for _, dp := range m.Data.(metricdata.Gauge[int64]).DataPoints {
					stored = dp.Value
				}
			}
		}
	}

	assert.Equal(t, int64(3), results["stored"])
	assert.Equal(t, int64(1), results["dropped"])
	assert.Equal(t, int64(1), results["evicted"])
	assert.Equal(t, int64(2), stored)
}

func TestLog_MirrorHashesUserID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	l := New(Config{Mirror: true}, logger)
	l.LogAuthEvent(ActionLoginFailed, "alice@example.com", false, Options{IPAddress: "192.0.2.10"})

	out := buf.String()
	assert.Contains(t, out, `"action":"login_failure"`)
	assert.Contains(t, out, `"level":"WARN"`)
	assert.Contains(t, out, util.HashForLogging("alice@example.com"))
	assert.NotContains(t, out, "alice@example.com")
}
