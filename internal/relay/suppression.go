package relay

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// PairKey builds the canonical key for an unordered participant pair, so that
// (a,b) and (b,a) always land on the same suppression entry.
func PairKey(a string, b string) string {
	refs := []string{a, b}
	sort.Strings(refs)
	return strings.Join(refs, ":")
}

/*
 * SuppressionCache remembers, per conversation, that a Telegram notification
 * attempt failed and no further attempts should be made. Entries are session
 * scoped: reloading the conversation resets the entry, and a cron sweep
 * evicts anything older than the configured TTL. Nothing here is persisted.
 */
type SuppressionCache struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func NewSuppressionCache() *SuppressionCache {
	return &SuppressionCache{entries: make(map[string]time.Time)}
}

// Disable marks the conversation as not worth any more delivery attempts.
func (cache *SuppressionCache) Disable(key string) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.entries[key] = time.Now()
}

func (cache *SuppressionCache) Disabled(key string) bool {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	_, disabled := cache.entries[key]
	return disabled
}

// Reset clears the entry for a conversation; called when the conversation is
// loaded again, which is the one event allowed to re-enable attempts.
func (cache *SuppressionCache) Reset(key string) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	delete(cache.entries, key)
}

// Sweep drops entries older than ttl and reports how many were evicted.
func (cache *SuppressionCache) Sweep(ttl time.Duration) int {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	cutoff := time.Now().Add(-ttl)
	evicted := 0
	for key, disabledAt := range cache.entries {
		if disabledAt.Before(cutoff) {
			delete(cache.entries, key)
			evicted++
		}
	}
	return evicted
}
