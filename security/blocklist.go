package security

import (
	"net/netip"
	"slices"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// BlockedIP describes one blocklist entry.
type BlockedIP struct {
	IP        string    `json:"ip"`
	Reason    string    `json:"reason,omitempty"`
	BlockedAt time.Time `json:"blocked_at"`
	ExpiresAt time.Time `json:"expires_at,omitzero"` // zero for permanent blocks
}

// blocklist is a concurrency-safe set of blocked addresses backed by
// github.com/patrickmn/go-cache. Entries are stored without a cache TTL;
// ExpiresAt is authoritative and is compared against the caller's clock so
// temporary blocks follow the detector's time source.
type blocklist struct {
	cache *gocache.Cache
	mu    sync.Mutex // serialises remove and prune so only one caller sees an entry go
}

func newBlocklist() *blocklist {
	// no janitor: expiry is decided by ExpiresAt, expired entries go in prune
	return &blocklist{
		cache: gocache.New(gocache.NoExpiration, 0),
	}
}

// normalizeIP returns the canonical form of ip so that "::ffff:10.0.0.1"
// and "10.0.0.1" share one entry. Unparseable input is used as is.
func normalizeIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if addr, err := netip.ParseAddr(ip); err == nil {
		return addr.Unmap().String()
	}
	return ip
}

func (e BlockedIP) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

func (b *blocklist) add(entry BlockedIP, ttl time.Duration) {
	if ttl <= 0 {
		entry.ExpiresAt = time.Time{}
	} else {
		entry.ExpiresAt = entry.BlockedAt.Add(ttl)
	}
	b.mu.Lock()
	b.cache.Set(entry.IP, entry, gocache.NoExpiration)
	b.mu.Unlock()
}

func (b *blocklist) get(ip string, now time.Time) (BlockedIP, bool) {
	v, found := b.cache.Get(ip)
	if !found {
		return BlockedIP{}, false
	}
	entry := v.(BlockedIP)
	if entry.expired(now) {
		return BlockedIP{}, false
	}
	return entry, true
}

func (b *blocklist) contains(ip string, now time.Time) bool {
	_, found := b.get(ip, now)
	return found
}

// remove deletes ip and reports whether it was blocked at now. An entry
// that had already expired is deleted but reported as absent.
func (b *blocklist) remove(ip string, now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, live := b.get(ip, now)
	b.cache.Delete(ip)
	return live
}

// prune deletes every entry expired at now and returns how many went.
func (b *blocklist) prune(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	removed := 0
	for ip, item := range b.cache.Items() {
		if item.Object.(BlockedIP).expired(now) {
			b.cache.Delete(ip)
			removed++
		}
	}
	return removed
}

// list returns the entries unexpired at now, sorted by address.
func (b *blocklist) list(now time.Time) []BlockedIP {
	items := b.cache.Items()
	out := make([]BlockedIP, 0, len(items))
	for _, item := range items {
		if entry := item.Object.(BlockedIP); !entry.expired(now) {
			out = append(out, entry)
		}
	}
	slices.SortFunc(out, func(a, b BlockedIP) int {
		return strings.Compare(a.IP, b.IP)
	})
	return out
}

func (b *blocklist) len(now time.Time) int64 {
	var n int64
	for _, item := range b.cache.Items() {
		if !item.Object.(BlockedIP).expired(now) {
			n++
		}
	}
	return n
}
