package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPairKey(t *testing.T) {
	assert.Equal(t, PairKey("b", "a"), PairKey("a", "b"))
	assert.Equal(t, "123:user-1", PairKey("user-1", "123"))
	assert.NotEqual(t, PairKey("a", "b"), PairKey("a", "c"))
}

func TestSuppressionCache(t *testing.T) {
	cache := NewSuppressionCache()
	key := PairKey("user-1", "user-2")

	assert.False(t, cache.Disabled(key))

	cache.Disable(key)
	assert.True(t, cache.Disabled(key))
	// the reversed pair hits the same entry
	assert.True(t, cache.Disabled(PairKey("user-2", "user-1")))
	assert.False(t, cache.Disabled(PairKey("user-1", "user-3")))

	cache.Reset(key)
	assert.False(t, cache.Disabled(key))
}

func TestSuppressionSweep(t *testing.T) {
	cache := NewSuppressionCache()
	cache.Disable("stale")
	cache.entries["stale"] = time.Now().Add(-2 * time.Hour)
	cache.Disable("fresh")

	evicted := cache.Sweep(time.Hour)
	assert.Equal(t, 1, evicted)
	assert.False(t, cache.Disabled("stale"))
	assert.True(t, cache.Disabled("fresh"))
}
