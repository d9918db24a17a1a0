package reporting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededSource() *fakeSource {
	src := newFakeSource()
	src.expected = []ExpectedMovement{
		expectedRow("P1", "IfaceA", "M1"),
		expectedRow("P1", "IfaceA", "M2"),
	}
	src.movements["2025-01"] = []RawMovement{
		rawRow(1, "R1", "P1", "IfaceA", "M1", "SUCCESS", day(2), time.Minute),
		rawRow(2, "R2", "P1", "IfaceA", "M1", "SUCCESS", day(3), time.Minute),
		rawRow(3, "R2", "P1", "IfaceA", "M2", "FAILED", day(3), 2*time.Minute),
	}
	src.months = []string{"2025-02", "2025-01"}
	return src
}

func TestMonthCacheLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("repeated loads hit the cache", func(t *testing.T) {
		src := seededSource()
		cache := NewMonthCache(src, nil)

		first, err := cache.Load(ctx, "2025-01")
		require.NoError(t, err)
		second, err := cache.Load(ctx, "2025-1")
		require.NoError(t, err)

		assert.Same(t, first, second)
		assert.Equal(t, int32(1), src.movementCalls.Load())
		assert.Equal(t, int32(1), src.expectedCalls.Load())

		assert.Equal(t, "2025-01", first.MonthKey)
		assert.Len(t, first.Records, 3)
		require.Len(t, first.Completeness, 2)
		assert.Equal(t, RouteIncomplete, first.Completeness[0].Status)
		assert.Equal(t, RouteComplete, first.Completeness[1].Status)

		stats := cache.Stats()
		assert.Equal(t, 1, stats.Entries)
		assert.Equal(t, DefaultMonthCapacity, stats.Capacity)
		assert.Equal(t, int64(1), stats.Hits)
		assert.Equal(t, int64(1), stats.Misses)
		assert.Equal(t, int64(1), stats.Loads)
		assert.Equal(t, 0.5, stats.HitRatio())
		assert.Equal(t, []string{"2025-01"}, stats.Months)
	})

	t.Run("invalid key never reaches the source", func(t *testing.T) {
		src := seededSource()
		cache := NewMonthCache(src, nil)

		_, err := cache.Load(ctx, "2025-13")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidMonthKey))
		assert.Equal(t, int32(0), src.movementCalls.Load())
	})

	t.Run("empty month loads without error", func(t *testing.T) {
		src := seededSource()
		cache := NewMonthCache(src, nil)

		snap, err := cache.Load(ctx, "2024-06")
		require.NoError(t, err)
		assert.Empty(t, snap.Records)
		assert.Empty(t, snap.Completeness)
		assert.Equal(t, 1, cache.Stats().Entries)
	})

	t.Run("failed fetch is not memoized", func(t *testing.T) {
		src := seededSource()
		src.setMovementErr(errors.New("login timeout"))
		cache := NewMonthCache(src, nil)

		_, err := cache.Load(ctx, "2025-01")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDataAccess))
		var dae *DataAccessError
		require.True(t, errors.As(err, &dae))
		assert.Equal(t, "fetch movements", dae.Op)
		assert.Equal(t, 0, cache.Stats().Entries)

		src.setMovementErr(nil)
		snap, err := cache.Load(ctx, "2025-01")
		require.NoError(t, err)
		assert.Len(t, snap.Records, 3)
		assert.Equal(t, int32(2), src.movementCalls.Load())
	})

	t.Run("failed configuration fetch is a data access error", func(t *testing.T) {
		src := seededSource()
		src.expectedErr = errors.New("permission denied")
		cache := NewMonthCache(src, nil)

		_, err := cache.Load(ctx, "2025-01")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDataAccess))
		assert.Equal(t, int32(0), src.movementCalls.Load())
	})

	t.Run("invalidate forces a reload", func(t *testing.T) {
		src := seededSource()
		cache := NewMonthCache(src, nil)

		first, err := cache.Load(ctx, "2025-01")
		require.NoError(t, err)
		require.NoError(t, cache.Invalidate("2025-01"))
		second, err := cache.Load(ctx, "2025-01")
		require.NoError(t, err)

		assert.NotSame(t, first, second)
		assert.Equal(t, first.Records, second.Records)
		assert.Equal(t, int32(2), src.movementCalls.Load())
		assert.Error(t, cache.Invalidate("bogus"))

		cache.InvalidateAll()
		assert.Equal(t, 0, cache.Stats().Entries)
	})
}

func TestMonthCacheSingleFlight(t *testing.T) {
	src := seededSource()
	src.gate = make(chan struct{})
	cache := NewMonthCache(src, nil)

	const callers = 16
	var (
		wg    sync.WaitGroup
		snaps = make([]*MonthSnapshot, callers)
		errs  = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snaps[i], errs[i] = cache.Load(context.Background(), "2025-01")
		}(i)
	}

	require.Eventually(t, func() bool { return src.movementCalls.Load() == 1 }, time.Second, time.Millisecond)
	// Give the remaining callers time to join the in-flight load.
	time.Sleep(20 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, snaps[0], snaps[i])
	}
	assert.Equal(t, int32(1), src.movementCalls.Load())
}

func TestMonthCacheInvalidateDuringLoad(t *testing.T) {
	tests := []struct {
		name        string
		invalidate  func(*MonthCache) error
		wantFetches int32
	}{
		{
			name:        "other month keeps the load",
			invalidate:  func(c *MonthCache) error { return c.Invalidate("2025-02") },
			wantFetches: 1,
		},
		{
			name:        "same month discards the load",
			invalidate:  func(c *MonthCache) error { return c.Invalidate("2025-01") },
			wantFetches: 2,
		},
		{
			name: "everything discards the load",
			invalidate: func(c *MonthCache) error {
				c.InvalidateAll()
				return nil
			},
			wantFetches: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			src := seededSource()
			src.gate = make(chan struct{})
			cache := NewMonthCache(src, nil)

			done := make(chan error, 1)
			go func() {
				_, err := cache.Load(ctx, "2025-01")
				done <- err
			}()

			require.Eventually(t, func() bool { return src.movementCalls.Load() == 1 }, time.Second, time.Millisecond)
			require.NoError(t, tt.invalidate(cache))
			close(src.gate)
			require.NoError(t, <-done)

			_, err := cache.Load(ctx, "2025-01")
			require.NoError(t, err)
			assert.Equal(t, tt.wantFetches, src.movementCalls.Load())
		})
	}
}

func TestMonthCacheEviction(t *testing.T) {
	ctx := context.Background()
	src := seededSource()
	cache := NewMonthCache(src, nil, WithCapacity(3))

	for _, m := range []string{"2024-01", "2024-02", "2024-03"} {
		_, err := cache.Load(ctx, m)
		require.NoError(t, err)
	}

	// Touch January so February becomes least recently used.
	_, err := cache.Load(ctx, "2024-01")
	require.NoError(t, err)

	_, err = cache.Load(ctx, "2024-04")
	require.NoError(t, err)

	stats := cache.Stats()
	assert.Equal(t, 3, stats.Entries)
	assert.Equal(t, int64(1), stats.Evictions)
	assert.Equal(t, []string{"2024-01", "2024-03", "2024-04"}, stats.Months)

	calls := src.movementCalls.Load()
	_, err = cache.Load(ctx, "2024-02")
	require.NoError(t, err)
	assert.Equal(t, calls+1, src.movementCalls.Load(), "evicted month is fetched again")
}

func TestMonthCacheCapacityBound(t *testing.T) {
	ctx := context.Background()
	cache := NewMonthCache(seededSource(), nil)

	for i := 0; i < DefaultMonthCapacity+6; i++ {
		key := fmt.Sprintf("%04d-%02d", 2020+i/12, i%12+1)
		_, err := cache.Load(ctx, key)
		require.NoError(t, err)
		assert.LessOrEqual(t, cache.Stats().Entries, DefaultMonthCapacity)
	}
	assert.Equal(t, int64(6), cache.Stats().Evictions)
}

func TestExpectedIndexCache(t *testing.T) {
	ctx := context.Background()
	src := seededSource()
	idx := NewExpectedIndexCache(src, nil)

	first, err := idx.Get(ctx)
	require.NoError(t, err)
	second, err := idx.Get(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, int32(1), src.expectedCalls.Load())

	src.mu.Lock()
	src.expected = append(src.expected, expectedRow("P2", "IfaceB", "M1"))
	src.mu.Unlock()

	refreshed, err := idx.Refresh(ctx)
	require.NoError(t, err)
	assert.Len(t, refreshed.Index, 2)
	assert.Equal(t, int32(2), src.expectedCalls.Load())

	// Months loaded through a shared index cache reuse its snapshot.
	cache := NewMonthCache(src, idx)
	snap, err := cache.Load(ctx, "2025-01")
	require.NoError(t, err)
	assert.Len(t, snap.ExpectedIndex, 2)
	assert.Equal(t, int32(2), src.expectedCalls.Load())
	assert.Same(t, idx, cache.Expected())
}

func TestAvailableMonths(t *testing.T) {
	ctx := context.Background()
	src := seededSource()
	cache := NewMonthCache(src, nil)

	months, err := cache.AvailableMonths(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-02", "2025-01"}, months)

	src.setMovementErr(errors.New("offline"))
	_, err = cache.AvailableMonths(ctx)
	assert.True(t, errors.Is(err, ErrDataAccess))
}

type countingObserver struct {
	mu      sync.Mutex
	hits    int
	misses  int
	evicted int
	loaded  []string
}

func (o *countingObserver) CacheHit(string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hits++
}

func (o *countingObserver) CacheMiss(string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.misses++
}

func (o *countingObserver) MonthEvicted(string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.evicted++
}

func (o *countingObserver) MonthLoaded(m string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err == nil {
		o.loaded = append(o.loaded, m)
	}
}

func TestMonthCacheObserver(t *testing.T) {
	ctx := context.Background()
	obs := &countingObserver{}
	fixed := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	cache := NewMonthCache(seededSource(), nil,
		WithCapacity(1),
		WithObserver(obs),
		WithClock(func() time.Time { return fixed }))

	snap, err := cache.Load(ctx, "2025-01")
	require.NoError(t, err)
	assert.Equal(t, fixed, snap.LoadedAt)
	_, err = cache.Load(ctx, "2025-01")
	require.NoError(t, err)
	_, err = cache.Load(ctx, "2025-02")
	require.NoError(t, err)

	assert.Equal(t, 1, obs.hits)
	assert.Equal(t, 2, obs.misses)
	assert.Equal(t, 1, obs.evicted)
	assert.Equal(t, []string{"2025-01", "2025-02"}, obs.loaded)
}
