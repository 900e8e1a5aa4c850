package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiaoConstantine/evoagent-go/pkg/genome"
)

func fitnessWith(overall float64) *genome.FitnessResult {
	return &genome.FitnessResult{Overall: overall}
}

func TestCacheMissThenHit(t *testing.T) {
	cache := NewFitnessCache(4)

	_, ok := cache.Get("k1")
	require.False(t, ok)

	cache.Put("k1", fitnessWith(0.7))
	got, ok := cache.Get("k1")
	require.True(t, ok)
	assert.InDelta(t, 0.7, got.Overall, 1e-9)

	hits, misses := cache.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestCacheIsolatesStoredValues(t *testing.T) {
	cache := NewFitnessCache(4)

	original := fitnessWith(0.7)
	cache.Put("k1", original)
	original.Overall = 0.1

	got, ok := cache.Get("k1")
	require.True(t, ok)
	assert.InDelta(t, 0.7, got.Overall, 1e-9)

	got.Overall = 0.2
	again, ok := cache.Get("k1")
	require.True(t, ok)
	assert.InDelta(t, 0.7, again.Overall, 1e-9)
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	cache := NewFitnessCache(2)

	cache.Put("a", fitnessWith(0.1))
	cache.Put("b", fitnessWith(0.2))

	// Touch a so b becomes the eviction candidate.
	_, ok := cache.Get("a")
	require.True(t, ok)

	cache.Put("c", fitnessWith(0.3))
	assert.Equal(t, 2, cache.Len())

	_, ok = cache.Get("b")
	assert.False(t, ok)
	_, ok = cache.Get("a")
	assert.True(t, ok)
	_, ok = cache.Get("c")
	assert.True(t, ok)
}

func TestCacheUpdatesExistingKey(t *testing.T) {
	cache := NewFitnessCache(2)

	cache.Put("a", fitnessWith(0.1))
	cache.Put("a", fitnessWith(0.9))

	assert.Equal(t, 1, cache.Len())
	got, ok := cache.Get("a")
	require.True(t, ok)
	assert.InDelta(t, 0.9, got.Overall, 1e-9)
}

func TestCacheIgnoresNilResults(t *testing.T) {
	cache := NewFitnessCache(2)
	cache.Put("a", nil)
	assert.Equal(t, 0, cache.Len())
}
