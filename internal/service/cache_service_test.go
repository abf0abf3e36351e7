package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/clinic-dashboard/internal/models"
	appErrors "github.com/noah-isme/clinic-dashboard/pkg/errors"
)

type fakeCacheRepo struct {
	values  map[string][]byte
	ttls    map[string]time.Duration
	getErr  error
	deleted []string
}

func (f *fakeCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	if f.getErr != nil {
		return f.getErr
	}
	raw, ok := f.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (f *fakeCacheRepo) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, _ := json.Marshal(value)
	f.values[key] = raw
	f.ttls[key] = ttl
	return nil
}

func (f *fakeCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	f.deleted = append(f.deleted, pattern)
	delete(f.values, pattern)
	return nil
}

func TestCacheServiceRoundTrip(t *testing.T) {
	repo := &fakeCacheRepo{values: map[string][]byte{}, ttls: map[string]time.Duration{}}
	metrics := NewMetricsService()
	svc := NewCacheService(repo, metrics, time.Minute, nil, true)
	ctx := context.Background()

	var stats models.UserStats
	hit, err := svc.Get(ctx, "k", &stats)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, "k", models.UserStats{TotalUsers: 2}, 0))
	assert.Equal(t, time.Minute, repo.ttls["k"])

	hit, err = svc.Get(ctx, "k", &stats)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 2, stats.TotalUsers)

	require.NoError(t, svc.Invalidate(ctx, "k"))
	assert.Equal(t, []string{"k"}, repo.deleted)

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.CacheHits)
	assert.Equal(t, uint64(1), snapshot.CacheMisses)
	assert.InDelta(t, 0.5, snapshot.CacheHitRatio, 0.0001)
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := &fakeCacheRepo{values: map[string][]byte{"k": []byte(`{}`)}, ttls: map[string]time.Duration{}}
	svc := NewCacheService(repo, nil, 0, nil, false)

	var dest map[string]int
	hit, err := svc.Get(context.Background(), "k", &dest)
	assert.NoError(t, err)
	assert.False(t, hit)
	assert.False(t, svc.Enabled())

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
}

func TestCacheServiceBackendError(t *testing.T) {
	repo := &fakeCacheRepo{values: map[string][]byte{}, ttls: map[string]time.Duration{}, getErr: errors.New("redis down")}
	svc := NewCacheService(repo, nil, 0, nil, true)

	var dest map[string]int
	hit, err := svc.Get(context.Background(), "k", &dest)
	assert.Error(t, err)
	assert.False(t, hit)
}

func TestRememberCachesSuccessfulLoads(t *testing.T) {
	cache := newMemoryCache()
	var group singleflight.Group
	calls := 0
	load := func(context.Context) (models.UserStats, error) {
		calls++
		return models.UserStats{TotalUsers: 4}, nil
	}

	for i := 0; i < 2; i++ {
		stats, err := remember(context.Background(), cache, &group, "stats:users:clinic:7", time.Minute, load)
		require.NoError(t, err)
		assert.Equal(t, 4, stats.TotalUsers)
	}
	assert.Equal(t, 1, calls)
}

func TestRememberDoesNotCacheFailures(t *testing.T) {
	cache := newMemoryCache()
	var group singleflight.Group
	_, err := remember(context.Background(), cache, &group, "k", time.Minute, func(context.Context) (models.UserStats, error) {
		return models.UserStats{}, appErrors.ErrUpstream
	})
	assert.ErrorIs(t, err, appErrors.ErrUpstream)
	assert.Empty(t, cache.values)

	stats, err := remember(context.Background(), nil, &group, "k", time.Minute, func(context.Context) (models.UserStats, error) {
		return models.UserStats{BlockedUsers: 1}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.BlockedUsers)
}

func TestRememberCoalescesConcurrentMisses(t *testing.T) {
	cache := newMemoryCache()
	var group singleflight.Group
	var calls atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) (models.AnalysisStats, error) {
		calls.Add(1)
		<-release
		return models.AnalysisStats{TotalAnalyses: 9}, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stats, err := remember(context.Background(), cache, &group, "stats:analyses:user:3", time.Minute, load)
			if err == nil {
				results[i] = stats.TotalAnalyses
			}
		}(i)
	}
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, []int{9, 9, 9, 9, 9}, results)
}
