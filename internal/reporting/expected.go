package reporting

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// RouteKey identifies a route: one interface under one principal.
type RouteKey struct {
	PrincipalCode string `json:"principal_code"`
	InterfaceCode string `json:"interface_code"`
}

// ExpectedEntry holds the movement codes a complete run of a route must show.
type ExpectedEntry struct {
	Codes []string `json:"codes"`
	Count int      `json:"count"`
}

// ExpectedIndex maps each configured route to its expected movement codes.
type ExpectedIndex map[RouteKey]ExpectedEntry

// BuildExpectedIndex groups active rows by route. Codes are sorted and
// de-duplicated. Inactive rows and rows with blank codes are ignored.
func BuildExpectedIndex(rows []ExpectedMovement) ExpectedIndex {
	sets := make(map[RouteKey]map[string]struct{})
	for _, row := range rows {
		if !row.Active {
			continue
		}
		key := RouteKey{
			PrincipalCode: strings.TrimSpace(row.PrincipalCode),
			InterfaceCode: strings.TrimSpace(row.InterfaceCode),
		}
		code := strings.TrimSpace(row.MovementCode)
		if key.PrincipalCode == "" || key.InterfaceCode == "" || code == "" {
			continue
		}
		set, ok := sets[key]
		if !ok {
			set = make(map[string]struct{})
			sets[key] = set
		}
		set[code] = struct{}{}
	}

	idx := make(ExpectedIndex, len(sets))
	for key, set := range sets {
		codes := make([]string, 0, len(set))
		for code := range set {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		idx[key] = ExpectedEntry{Codes: codes, Count: len(codes)}
	}
	return idx
}

// Lookup returns the entry for a route.
func (idx ExpectedIndex) Lookup(principal, iface string) (ExpectedEntry, bool) {
	e, ok := idx[RouteKey{PrincipalCode: principal, InterfaceCode: iface}]
	return e, ok
}

// Routes returns the configured routes ordered by principal then interface.
func (idx ExpectedIndex) Routes() []RouteKey {
	keys := make([]RouteKey, 0, len(idx))
	for k := range idx {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].PrincipalCode != keys[j].PrincipalCode {
			return keys[i].PrincipalCode < keys[j].PrincipalCode
		}
		return keys[i].InterfaceCode < keys[j].InterfaceCode
	})
	return keys
}

// ExpectedFetcher loads the active movement configuration.
type ExpectedFetcher interface {
	FetchActiveExpected(ctx context.Context) ([]ExpectedMovement, error)
}

// ExpectedSnapshot is the configuration rows together with their index.
type ExpectedSnapshot struct {
	Rows     []ExpectedMovement
	Index    ExpectedIndex
	LoadedAt time.Time
}

// ExpectedIndexCache memoizes the expected index process-wide until
// Invalidate is called. It is independent of the month cache.
type ExpectedIndexCache struct {
	fetcher ExpectedFetcher
	logger  *slog.Logger

	current atomic.Pointer[ExpectedSnapshot]
	epoch   atomic.Uint64
	group   singleflight.Group
	mu      sync.Mutex
}

// NewExpectedIndexCache creates a cache backed by fetcher.
func NewExpectedIndexCache(fetcher ExpectedFetcher, logger *slog.Logger) *ExpectedIndexCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpectedIndexCache{
		fetcher: fetcher,
		logger:  logger.With(slog.String("component", "expected_index")),
	}
}

const expectedFlightKey = "expected"

// Get returns the cached snapshot, loading it on first use.
func (c *ExpectedIndexCache) Get(ctx context.Context) (*ExpectedSnapshot, error) {
	if snap := c.current.Load(); snap != nil {
		return snap, nil
	}

	v, err, _ := c.group.Do(expectedFlightKey, func() (interface{}, error) {
		if snap := c.current.Load(); snap != nil {
			return snap, nil
		}
		epoch := c.epoch.Load()

		rows, err := c.fetcher.FetchActiveExpected(ctx)
		if err != nil {
			return nil, wrapDataAccess("fetch expected movements", err)
		}

		snap := &ExpectedSnapshot{
			Rows:     rows,
			Index:    BuildExpectedIndex(rows),
			LoadedAt: time.Now().UTC(),
		}

		c.mu.Lock()
		if c.epoch.Load() == epoch {
			c.current.Store(snap)
		}
		c.mu.Unlock()

		c.logger.InfoContext(ctx, "Expected movement index loaded",
			slog.Int("rows", len(rows)),
			slog.Int("routes", len(snap.Index)))
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ExpectedSnapshot), nil
}

// Invalidate drops the cached index so the next Get reloads it.
func (c *ExpectedIndexCache) Invalidate() {
	c.mu.Lock()
	c.epoch.Add(1)
	c.current.Store(nil)
	c.mu.Unlock()
	c.group.Forget(expectedFlightKey)
}

// Refresh reloads the index immediately.
func (c *ExpectedIndexCache) Refresh(ctx context.Context) (*ExpectedSnapshot, error) {
	c.Invalidate()
	return c.Get(ctx)
}
