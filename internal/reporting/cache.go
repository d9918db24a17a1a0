package reporting

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultMonthCapacity is the number of months kept in memory.
const DefaultMonthCapacity = 24

// MovementSource is the read-only data access the month loader depends on.
type MovementSource interface {
	ExpectedFetcher
	// FetchMovements returns every movement whose start time falls in [start, end).
	FetchMovements(ctx context.Context, start, end time.Time) ([]RawMovement, error)
	// FetchMonths returns the distinct "YYYY-MM" keys that have movements.
	FetchMonths(ctx context.Context) ([]string, error)
}

// CacheObserver receives cache events, typically for metrics.
type CacheObserver interface {
	CacheHit(month string)
	CacheMiss(month string)
	MonthLoaded(month string, took time.Duration, err error)
	MonthEvicted(month string)
}

type noopObserver struct{}

func (noopObserver) CacheHit(string)                          {}
func (noopObserver) CacheMiss(string)                         {}
func (noopObserver) MonthLoaded(string, time.Duration, error) {}
func (noopObserver) MonthEvicted(string)                      {}

// CacheStats is a point-in-time view of the month cache.
type CacheStats struct {
	Entries   int      `json:"entries"`
	Capacity  int      `json:"capacity"`
	Hits      int64    `json:"hits"`
	Misses    int64    `json:"misses"`
	Loads     int64    `json:"loads"`
	Evictions int64    `json:"evictions"`
	Months    []string `json:"months"`
}

// HitRatio returns hits over total lookups, zero before the first lookup.
func (s CacheStats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type monthEntry struct {
	snap     *MonthSnapshot
	lastUsed atomic.Int64
}

// MonthCacheOption configures a MonthCache.
type MonthCacheOption func(*MonthCache)

// WithCapacity bounds the number of cached months. Values below one are ignored.
func WithCapacity(n int) MonthCacheOption {
	return func(c *MonthCache) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithLogger sets the cache logger.
func WithLogger(logger *slog.Logger) MonthCacheOption {
	return func(c *MonthCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver registers an observer for cache events.
func WithObserver(o CacheObserver) MonthCacheOption {
	return func(c *MonthCache) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithClock overrides the clock used to stamp snapshots.
func WithClock(now func() time.Time) MonthCacheOption {
	return func(c *MonthCache) {
		if now != nil {
			c.now = now
		}
	}
}

// MonthCache loads month snapshots and memoizes them in a bounded LRU.
//
// Reads of a cached month take no lock: the entry map is replaced
// copy-on-write under mu and published through an atomic pointer. Concurrent
// misses for the same month share one load. Failed loads are never stored.
type MonthCache struct {
	source   MovementSource
	expected *ExpectedIndexCache
	capacity int
	logger   *slog.Logger
	observer CacheObserver
	now      func() time.Time

	entries atomic.Pointer[map[string]*monthEntry]
	mu      sync.Mutex
	tick    atomic.Int64
	group   singleflight.Group

	// epoch moves on InvalidateAll, generations[key] on Invalidate(key).
	// Both are guarded by mu.
	epoch       uint64
	generations map[string]uint64

	hits      atomic.Int64
	misses    atomic.Int64
	loads     atomic.Int64
	evictions atomic.Int64
}

// NewMonthCache creates a month cache. When expected is nil an index cache
// backed by source is created.
func NewMonthCache(source MovementSource, expected *ExpectedIndexCache, opts ...MonthCacheOption) *MonthCache {
	c := &MonthCache{
		source:   source,
		expected: expected,
		capacity: DefaultMonthCapacity,
		logger:   slog.Default(),
		observer: noopObserver{},
		now:      time.Now,

		generations: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "month_cache"))
	if c.expected == nil {
		c.expected = NewExpectedIndexCache(source, c.logger)
	}
	empty := make(map[string]*monthEntry)
	c.entries.Store(&empty)
	return c
}

// Expected returns the expected-index cache used by the loader.
func (c *MonthCache) Expected() *ExpectedIndexCache {
	return c.expected
}

// Load returns the snapshot for monthKey, loading it on a miss.
func (c *MonthCache) Load(ctx context.Context, monthKey string) (*MonthSnapshot, error) {
	rng, err := ParseMonthKey(monthKey)
	if err != nil {
		return nil, err
	}

	if snap, ok := c.lookup(rng.Key); ok {
		c.hits.Add(1)
		c.observer.CacheHit(rng.Key)
		return snap, nil
	}
	c.misses.Add(1)
	c.observer.CacheMiss(rng.Key)

	v, err, shared := c.group.Do(rng.Key, func() (interface{}, error) {
		if snap, ok := c.lookup(rng.Key); ok {
			return snap, nil
		}
		gen := c.generation(rng.Key)

		started := time.Now()
		snap, err := c.build(ctx, rng)
		c.observer.MonthLoaded(rng.Key, time.Since(started), err)
		if err != nil {
			c.logger.ErrorContext(ctx, "Month load failed",
				slog.String("month", rng.Key),
				slog.String("error", err.Error()))
			return nil, err
		}
		c.loads.Add(1)
		c.store(rng.Key, snap, gen)

		c.logger.InfoContext(ctx, "Month loaded",
			slog.String("month", rng.Key),
			slog.Int("records", len(snap.Records)),
			slog.Int("routes", len(snap.Completeness)),
			slog.Duration("took", time.Since(started)))
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.DebugContext(ctx, "Month load shared", slog.String("month", rng.Key))
	}
	return v.(*MonthSnapshot), nil
}

func (c *MonthCache) lookup(key string) (*MonthSnapshot, bool) {
	e, ok := (*c.entries.Load())[key]
	if !ok {
		return nil, false
	}
	e.lastUsed.Store(c.tick.Add(1))
	return e.snap, true
}

func (c *MonthCache) build(ctx context.Context, rng MonthRange) (*MonthSnapshot, error) {
	exp, err := c.expected.Get(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := c.source.FetchMovements(ctx, rng.Start, rng.End)
	if err != nil {
		return nil, wrapDataAccess("fetch movements", err)
	}

	records := Normalize(rows)
	return &MonthSnapshot{
		MonthKey:      rng.Key,
		Start:         rng.Start,
		End:           rng.End,
		Records:       records,
		ExpectedRows:  exp.Rows,
		ExpectedIndex: exp.Index,
		Completeness:  Classify(records, exp.Index),
		LoadedAt:      c.now().UTC(),
	}, nil
}

// loadGeneration identifies the invalidation state a load started from.
type loadGeneration struct {
	epoch uint64
	key   uint64
}

func (c *MonthCache) generation(key string) loadGeneration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return loadGeneration{epoch: c.epoch, key: c.generations[key]}
}

// store publishes snap unless key, or the whole cache, was invalidated after
// the load began.
func (c *MonthCache) store(key string, snap *MonthSnapshot, gen loadGeneration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != gen.epoch || c.generations[key] != gen.key {
		return
	}

	current := *c.entries.Load()
	next := make(map[string]*monthEntry, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	e := &monthEntry{snap: snap}
	e.lastUsed.Store(c.tick.Add(1))
	next[key] = e

	for len(next) > c.capacity {
		victim := ""
		var oldest int64
		for k, v := range next {
			if k == key {
				continue
			}
			if used := v.lastUsed.Load(); victim == "" || used < oldest {
				victim, oldest = k, used
			}
		}
		if victim == "" {
			break
		}
		delete(next, victim)
		c.evictions.Add(1)
		c.observer.MonthEvicted(victim)
		c.logger.Debug("Month evicted", slog.String("month", victim))
	}

	c.entries.Store(&next)
}

// Invalidate drops one month. Malformed keys are reported.
func (c *MonthCache) Invalidate(monthKey string) error {
	rng, err := ParseMonthKey(monthKey)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.generations[rng.Key]++
	current := *c.entries.Load()
	if _, ok := current[rng.Key]; ok {
		next := make(map[string]*monthEntry, len(current))
		for k, v := range current {
			if k != rng.Key {
				next[k] = v
			}
		}
		c.entries.Store(&next)
	}
	c.mu.Unlock()

	c.group.Forget(rng.Key)
	c.logger.Info("Month invalidated", slog.String("month", rng.Key))
	return nil
}

// InvalidateAll drops every cached month.
func (c *MonthCache) InvalidateAll() {
	c.mu.Lock()
	c.epoch++
	// Per-key generations only matter relative to the epoch they started in.
	c.generations = make(map[string]uint64)
	current := *c.entries.Load()
	empty := make(map[string]*monthEntry)
	c.entries.Store(&empty)
	c.mu.Unlock()

	for k := range current {
		c.group.Forget(k)
	}
	c.logger.Info("Month cache cleared", slog.Int("dropped", len(current)))
}

// Stats reports cache counters and the cached months, oldest key first.
func (c *MonthCache) Stats() CacheStats {
	current := *c.entries.Load()
	months := make([]string, 0, len(current))
	for k := range current {
		months = append(months, k)
	}
	sort.Strings(months)

	return CacheStats{
		Entries:   len(current),
		Capacity:  c.capacity,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Loads:     c.loads.Load(),
		Evictions: c.evictions.Load(),
		Months:    months,
	}
}

// AvailableMonths passes the distinct-months query through.
func (c *MonthCache) AvailableMonths(ctx context.Context) ([]string, error) {
	months, err := c.source.FetchMonths(ctx)
	if err != nil {
		return nil, wrapDataAccess("fetch months", err)
	}
	return months, nil
}
