package security

import (
	"container/list"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// windowCounter counts events for one identifier inside a fixed window.
type windowCounter struct {
	identifier  string
	count       int
	windowStart time.Time
	lastSeen    time.Time
}

// counterTable is a bounded set of window counters. When maxEntries is
// reached, the least recently seen counter is evicted.
type counterTable struct {
	name       string
	entries    map[string]*list.Element // identifier -> list element
	lruList    *list.List               // LRU list of *windowCounter
	mu         sync.Mutex
	maxEntries int
	logger     *slog.Logger
	onEvict    func()

	size atomic.Int64

	// Statistics
	totalEvictions int64
	totalPruned    int64
}

func newCounterTable(name string, maxEntries int, logger *slog.Logger) *counterTable {
	return &counterTable{
		name:       name,
		entries:    make(map[string]*list.Element),
		lruList:    list.New(),
		maxEntries: maxEntries,
		logger:     logger,
	}
}

// increment counts one event for identifier and returns a copy of the
// counter as it stood after the event. A counter whose window has elapsed
// restarts at 1. When clearAt > 0 and
// the new count reaches it, the counter is deleted before the lock is
// released, so the next event starts a fresh window.
func (t *counterTable) increment(identifier string, now time.Time, window time.Duration, clearAt int) windowCounter {
	t.mu.Lock()
	defer t.mu.Unlock()

	var c *windowCounter
	if elem, exists := t.entries[identifier]; exists {
		t.lruList.MoveToFront(elem)
		c = elem.Value.(*windowCounter)
		if now.Sub(c.windowStart) > window {
			c.count = 0
			c.windowStart = now
		}
	} else {
		if t.maxEntries > 0 && len(t.entries) >= t.maxEntries {
			t.evictLRU()
		}
		c = &windowCounter{identifier: identifier, windowStart: now}
		t.entries[identifier] = t.lruList.PushFront(c)
	}

	c.count++
	c.lastSeen = now
	snapshot := *c

	if clearAt > 0 && snapshot.count >= clearAt {
		t.removeLocked(identifier)
	}
	t.size.Store(int64(len(t.entries)))
	return snapshot
}

// peek returns the counter for identifier without touching it.
// A counter whose window has elapsed is reported as absent.
func (t *counterTable) peek(identifier string, now time.Time, window time.Duration) (windowCounter, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	elem, exists := t.entries[identifier]
	if !exists {
		return windowCounter{}, false
	}
	c := elem.Value.(*windowCounter)
	if now.Sub(c.windowStart) > window {
		return windowCounter{}, false
	}
	return *c, true
}

// remove deletes the counter for identifier, reporting whether it existed.
func (t *counterTable) remove(identifier string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := t.removeLocked(identifier)
	t.size.Store(int64(len(t.entries)))
	return removed
}

// Must be called with mutex locked.
func (t *counterTable) removeLocked(identifier string) bool {
	elem, exists := t.entries[identifier]
	if !exists {
		return false
	}
	delete(t.entries, identifier)
	t.lruList.Remove(elem)
	return true
}

// evictLRU removes the least recently seen counter.
// Must be called with mutex locked.
func (t *counterTable) evictLRU() {
	elem := t.lruList.Back()
	if elem == nil {
		return
	}
	c := elem.Value.(*windowCounter)
	delete(t.entries, c.identifier)
	t.lruList.Remove(elem)
	t.totalEvictions++

	t.logger.Debug("Detection counter LRU eviction",
		"table", t.name,
		"total_evictions", t.totalEvictions,
		"current_entries", len(t.entries))

	if t.onEvict != nil {
		t.onEvict()
	}
}

// prune removes every counter whose window has elapsed and returns how many
// were removed.
func (t *counterTable) prune(now time.Time, window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	var next *list.Element
	for elem := t.lruList.Front(); elem != nil; elem = next {
		next = elem.Next()
		c := elem.Value.(*windowCounter)
		if now.Sub(c.windowStart) > window {
			delete(t.entries, c.identifier)
			t.lruList.Remove(elem)
			removed++
		}
	}

	t.totalPruned += int64(removed)
	t.size.Store(int64(len(t.entries)))
	return removed
}

// Len returns the number of tracked identifiers.
func (t *counterTable) Len() int64 {
	return t.size.Load()
}

// TableStats holds counter table statistics for monitoring.
type TableStats struct {
	CurrentEntries int     `json:"current_entries"`
	MaxEntries     int     `json:"max_entries"`
	TotalEvictions int64   `json:"total_evictions"`
	TotalPruned    int64   `json:"total_pruned"`
	MemoryPressure float64 `json:"memory_pressure"` // percentage of max capacity used (0-100)
}

func (t *counterTable) stats() TableStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := TableStats{
		CurrentEntries: len(t.entries),
		MaxEntries:     t.maxEntries,
		TotalEvictions: t.totalEvictions,
		TotalPruned:    t.totalPruned,
	}
	if t.maxEntries > 0 {
		stats.MemoryPressure = float64(stats.CurrentEntries) / float64(t.maxEntries) * 100.0
	}
	return stats
}
