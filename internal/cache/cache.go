package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"QuantSentinel/internal/apperrors"
	"QuantSentinel/internal/metrics"
	"QuantSentinel/internal/model"

	"golang.org/x/sync/singleflight"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Store holds the last snapshot per (symbol, kind). Load returns nil, nil
// when nothing is stored. Save replaces the previous snapshot atomically.
type Store interface {
	Load(ctx context.Context, symbol string, kind model.Kind) (*model.Snapshot, error)
	Save(ctx context.Context, snap *model.Snapshot) error
}

// Refresher produces a fresh snapshot from upstream.
type Refresher interface {
	Refresh(ctx context.Context, symbol string, kind model.Kind) (*model.Snapshot, error)
}

// Options configures a Cache.
type Options struct {
	TTL          map[model.Kind]time.Duration
	DefaultTTL   time.Duration
	SingleFlight bool // collapse concurrent refreshes of one key
	Metrics      *metrics.Metrics
}

// Cache serves snapshots younger than their kind's TTL and refreshes the rest.
// A failed refresh falls back to the previous snapshot, however old.
type Cache struct {
	store     Store
	refresher Refresher
	clock     Clock
	ttl       map[model.Kind]time.Duration
	defTTL    time.Duration
	group     *singleflight.Group
	metrics   *metrics.Metrics
}

// New creates a Cache. A nil clock uses the wall clock.
func New(store Store, refresher Refresher, clock Clock, opts Options) *Cache {
	if clock == nil {
		clock = SystemClock{}
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = 5 * time.Minute
	}
	ttl := make(map[model.Kind]time.Duration, len(opts.TTL))
	for k, v := range opts.TTL {
		ttl[k] = v
	}
	c := &Cache{
		store:     store,
		refresher: refresher,
		clock:     clock,
		ttl:       ttl,
		defTTL:    opts.DefaultTTL,
		metrics:   opts.Metrics,
	}
	if opts.SingleFlight {
		c.group = &singleflight.Group{}
	}
	return c
}

// TTL returns the freshness window for kind.
func (c *Cache) TTL(kind model.Kind) time.Duration {
	if d, ok := c.ttl[kind]; ok && d > 0 {
		return d
	}
	return c.defTTL
}

// Get returns a fresh snapshot, refreshing if needed. The error is ErrNoData
// (wrapped) only when nothing at all can be served.
func (c *Cache) Get(ctx context.Context, symbol string, kind model.Kind) (*model.Snapshot, error) {
	prev, err := c.store.Load(ctx, symbol, kind)
	if err != nil {
		log.Printf("[WARN] cache load %s/%s: %v", symbol, kind, err)
		prev = nil
	}
	if prev != nil && prev.Age(c.clock.Now()) < c.TTL(kind) {
		c.metrics.CacheLookup(string(kind), "hit")
		return prev, nil
	}

	snap, err := c.Refresh(ctx, symbol, kind)
	if err == nil {
		c.metrics.CacheLookup(string(kind), "miss")
		return snap, nil
	}
	if prev != nil {
		log.Printf("[WARN] refresh %s/%s failed, serving snapshot from %s: %v",
			symbol, kind, prev.FetchedAt.Format(time.RFC3339), err)
		c.metrics.CacheLookup(string(kind), "stale")
		return prev, nil
	}
	c.metrics.CacheLookup(string(kind), "empty")
	return nil, fmt.Errorf("%s/%s: %w: %v", symbol, kind, apperrors.ErrNoData, err)
}

// Refresh fetches upstream unconditionally and stores the result on success.
// On failure the stored snapshot is left untouched.
func (c *Cache) Refresh(ctx context.Context, symbol string, kind model.Kind) (*model.Snapshot, error) {
	if c.group == nil {
		return c.refresh(ctx, symbol, kind)
	}
	v, err, _ := c.group.Do(string(kind)+"|"+symbol, func() (any, error) {
		return c.refresh(ctx, symbol, kind)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Snapshot), nil
}

func (c *Cache) refresh(ctx context.Context, symbol string, kind model.Kind) (*model.Snapshot, error) {
	fresh, err := c.refresher.Refresh(ctx, symbol, kind)
	if err != nil {
		return nil, err
	}
	if fresh.Empty() {
		return nil, fmt.Errorf("%s/%s: %w", symbol, kind, apperrors.ErrEmptyResult)
	}
	snap := *fresh
	snap.Symbol = symbol
	snap.Kind = kind
	snap.FetchedAt = c.clock.Now()
	if err := c.store.Save(ctx, &snap); err != nil {
		log.Printf("[WARN] cache save %s/%s: %v", symbol, kind, err)
	}
	return &snap, nil
}
