package synonym

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/ragcore/internal/logging"
)

// ErrRefreshInProgress is returned by Refresh when another refresh holds the lock
var ErrRefreshInProgress = errors.New("synonym refresh already in progress")

const (
	defaultRefreshCalls    = 100
	defaultRefreshInterval = time.Hour
	defaultRefreshTimeout  = 30 * time.Second
)

// Cache serves lookups from the current Snapshot and refreshes it from a
// Source in the background. Lookups never block on a refresh: they read
// whichever snapshot is published at the time.
type Cache struct {
	snap   atomic.Pointer[Snapshot]
	source Source

	lookups  atomic.Int64
	lastLoad atomic.Int64 // unix nanos of the last refresh attempt

	minCalls       int64
	minInterval    time.Duration
	refreshTimeout time.Duration

	lock   refreshLock
	wg     sync.WaitGroup
	now    func() time.Time
	logger *zap.Logger
}

// Option configures a Cache
type Option func(*Cache)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.logger = logging.OrNop(l).Named("synonym") }
}

// WithSnapshot publishes an initial snapshot, typically from LoadFile
func WithSnapshot(s *Snapshot) Option {
	return func(c *Cache) {
		if s != nil {
			c.snap.Store(s)
		}
	}
}

// WithRefreshThresholds sets how many lookups and how much time must both
// pass before a background refresh is attempted
func WithRefreshThresholds(calls int64, interval time.Duration) Option {
	return func(c *Cache) {
		c.minCalls = calls
		c.minInterval = interval
	}
}

// WithRefreshTimeout bounds a background refresh
func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Cache) { c.refreshTimeout = d }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a cache refreshed from source; a nil source disables refresh
func NewCache(source Source, opts ...Option) *Cache {
	c := &Cache{
		source:         source,
		minCalls:       defaultRefreshCalls,
		minInterval:    defaultRefreshInterval,
		refreshTimeout: defaultRefreshTimeout,
		now:            time.Now,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.snap.Load() == nil {
		c.snap.Store(NewSnapshot(nil, 0))
	}
	c.lastLoad.Store(c.now().UnixNano())
	return c
}

// Snapshot returns the currently published snapshot
func (c *Cache) Snapshot() *Snapshot {
	return c.snap.Load()
}

// Version returns the version of the published snapshot
func (c *Cache) Version() uint64 {
	return c.snap.Load().Version
}

// Lookup returns up to topN synonyms of term, or an empty list on miss.
// It may start a background refresh when the thresholds have passed.
func (c *Cache) Lookup(term string, topN int) []string {
	c.lookups.Add(1)
	c.maybeRefresh()
	return c.snap.Load().Lookup(term, topN)
}

// Refresh loads the source and publishes a new snapshot. A failed load
// keeps the current snapshot.
func (c *Cache) Refresh(ctx context.Context) error {
	if c.source == nil {
		return nil
	}
	if !c.lock.TryAcquire() {
		return ErrRefreshInProgress
	}
	defer c.lock.Release()
	return c.refresh(ctx)
}

// Wait blocks until any background refresh has finished
func (c *Cache) Wait() {
	c.wg.Wait()
}

func (c *Cache) due() bool {
	if c.source == nil || c.lookups.Load() < c.minCalls {
		return false
	}
	last := time.Unix(0, c.lastLoad.Load())
	return c.now().Sub(last) >= c.minInterval
}

func (c *Cache) maybeRefresh() {
	if !c.due() || !c.lock.TryAcquire() {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.lock.Release()

		ctx, cancel := context.WithTimeout(context.Background(), c.refreshTimeout)
		defer cancel()
		_ = c.refresh(ctx)
	}()
}

// refresh must be called with the lock held
func (c *Cache) refresh(ctx context.Context) error {
	c.lastLoad.Store(c.now().UnixNano())
	c.lookups.Store(0)

	raw, err := c.source.Load(ctx)
	if err != nil {
		c.logger.Error("synonym refresh failed, keeping current snapshot",
			zap.Uint64("version", c.Version()),
			zap.Error(err))
		return fmt.Errorf("failed to load synonyms: %w", err)
	}
	if len(raw) == 0 {
		c.logger.Debug("synonym source returned no entries, keeping current snapshot")
		return nil
	}

	next := NewSnapshot(raw, c.Version()+1)
	c.snap.Store(next)
	c.logger.Info("synonym snapshot published",
		zap.Uint64("version", next.Version),
		zap.Int("terms", next.Len()))
	return nil
}
