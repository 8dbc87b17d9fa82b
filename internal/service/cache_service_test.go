package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCacheServiceDisabled(t *testing.T) {
	repo := newMemoryCache()
	cache := NewCacheService(repo, nil, time.Minute, zap.NewNop(), false)

	require.NoError(t, cache.Set(context.Background(), "k", "v", 0))
	var out string
	hit, err := cache.Get(context.Background(), "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Empty(t, repo.entries)

	var nilCache *CacheService
	assert.False(t, nilCache.Enabled())
	nilCache.InvalidateDate(context.Background(), "2024-01-01")
}

func TestCacheServiceInvalidateDate(t *testing.T) {
	repo := newMemoryCache()
	metrics := NewMetricsService()
	cache := NewCacheService(repo, metrics, time.Minute, zap.NewNop(), true)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, DateKey("assignments", "2024-01-01"), []string{"a"}, 0))
	require.NoError(t, cache.Set(ctx, DateKey("assignments", "2024-01-02"), []string{"b"}, 0))

	var out []string
	hit, err := cache.Get(ctx, DateKey("assignments", "2024-01-01"), &out)
	require.NoError(t, err)
	assert.True(t, hit)

	cache.InvalidateDate(ctx, "2024-01-01")
	hit, err = cache.Get(ctx, DateKey("assignments", "2024-01-01"), &out)
	require.NoError(t, err)
	assert.False(t, hit)
	hit, _ = cache.Get(ctx, DateKey("assignments", "2024-01-02"), &out)
	assert.True(t, hit)

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(2), snapshot.CacheHits)
	assert.Equal(t, uint64(1), snapshot.CacheMisses)
}

func TestDateKey(t *testing.T) {
	assert.Equal(t, "substitutions:2024-01-01:assignments", DateKey("assignments", "2024-01-01"))
}
