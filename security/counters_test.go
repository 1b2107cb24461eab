package security

import (
	"fmt"
	"testing"
	"time"

	"github.com/giantswarm/sentinel/internal/testutil"
)

func TestCounterTable_LRUEviction(t *testing.T) {
	table := newCounterTable("test", 3, testutil.DiscardLogger())
	now := time.Now()
	evictions := 0
	table.onEvict = func() { evictions++ }

	for i := range 3 {
		table.increment(fmt.Sprintf("id-%d", i), now, time.Minute, 0)
	}
	// touch id-0 so id-1 becomes least recently seen
	table.increment("id-0", now, time.Minute, 0)
	table.increment("id-3", now, time.Minute, 0)

	if _, ok := table.peek("id-1", now, time.Minute); ok {
		t.Error("id-1 should have been evicted")
	}
	if c, ok := table.peek("id-0", now, time.Minute); !ok || c.count != 2 {
		t.Errorf("id-0 = %+v, %v; want count 2", c, ok)
	}
	if evictions != 1 {
		t.Errorf("evictions = %d, want 1", evictions)
	}

	stats := table.stats()
	if stats.CurrentEntries != 3 || stats.TotalEvictions != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.MemoryPressure != 100.0 {
		t.Errorf("MemoryPressure = %v, want 100", stats.MemoryPressure)
	}
}

func TestCounterTable_ClearAt(t *testing.T) {
	table := newCounterTable("test", 10, testutil.DiscardLogger())
	now := time.Now()

	for want := 1; want <= 3; want++ {
		if got := table.increment("id", now, time.Minute, 3).count; got != want {
			t.Errorf("increment() = %d, want %d", got, want)
		}
	}
	if table.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after reaching clearAt", table.Len())
	}
}

func TestCounterTable_PeekExpiredWindow(t *testing.T) {
	table := newCounterTable("test", 10, testutil.DiscardLogger())
	now := time.Now()

	table.increment("id", now, time.Minute, 0)
	if _, ok := table.peek("id", now.Add(time.Minute), time.Minute); !ok {
		t.Error("counter should still be live at exactly the window length")
	}
	if _, ok := table.peek("id", now.Add(time.Minute+time.Nanosecond), time.Minute); ok {
		t.Error("counter should be absent once the window has elapsed")
	}
}

func TestCounterTable_Remove(t *testing.T) {
	table := newCounterTable("test", 10, testutil.DiscardLogger())
	table.increment("id", time.Now(), time.Minute, 0)

	if !table.remove("id") {
		t.Error("remove() of an existing counter should return true")
	}
	if table.remove("id") {
		t.Error("remove() of a missing counter should return false")
	}
}
