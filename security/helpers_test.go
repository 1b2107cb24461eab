package security

import (
	"context"
	"sync"
	"testing"

	"github.com/giantswarm/sentinel/activity"
	"github.com/giantswarm/sentinel/internal/testutil"
	"github.com/giantswarm/sentinel/threat"
)

const testIP = "192.168.1.1"

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

type recordingAlerter struct {
	mu     sync.Mutex
	events []threat.Event
	err    error
}

func (a *recordingAlerter) Alert(_ context.Context, e threat.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
	return a.err
}

func (a *recordingAlerter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.events)
}

type testDetector struct {
	*Detector
	store    *threat.Store
	recorder *recordingRecorder
	clock    *testutil.MockTime
}

func newTestDetector(t *testing.T, cfg Config) testDetector {
	t.Helper()

	logger := testutil.DiscardLogger()
	rec := &recordingRecorder{}
	store := threat.NewStore(threat.Config{}, rec, logger)

	d, err := New(cfg, store, rec, logger)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	clk := testutil.DefaultMockTime()
	d.SetClock(clk)

	return testDetector{Detector: d, store: store, recorder: rec, clock: clk}
}
