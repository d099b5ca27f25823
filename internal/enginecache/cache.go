// Package enginecache owns the live database engines of every tenant
// connection, keyed by (user, connection).
//
// The cache is the single writer of its map: GetOrCreate inserts on a miss and
// DisposeAll empties it at shutdown. There is no TTL. Construction for one key
// is collapsed with singleflight so concurrent first requests build exactly
// one engine, while different keys construct independently.
package enginecache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/koustreak/aigis/internal/database"
	"github.com/koustreak/aigis/internal/errs"
	"github.com/koustreak/aigis/internal/logger"
	"github.com/koustreak/aigis/internal/metrics"
)

// Key identifies one tenant connection.
type Key struct {
	UserID       int64
	ConnectionID int64
}

func (k Key) String() string {
	return fmt.Sprintf("%d:%d", k.UserID, k.ConnectionID)
}

type Cache struct {
	opener database.Opener
	log    *logger.Logger
	rec    metrics.Recorder

	mu      sync.RWMutex
	engines map[Key]*database.Engine

	group singleflight.Group
}

// Option customises a Cache.
type Option func(*Cache)

func WithLogger(l *logger.Logger) Option {
	return func(c *Cache) { c.log = l }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(c *Cache) { c.rec = r }
}

// New returns an empty cache that builds engines with opener.
func New(opener database.Opener, opts ...Option) *Cache {
	c := &Cache{
		opener:  opener,
		log:     logger.Nop(),
		rec:     metrics.Nop(),
		engines: make(map[Key]*database.Engine),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// GetOrCreate returns the engine cached under key, constructing it from
// target on the first request. The cache is consulted before anything else,
// so a hit never touches the opener. Only configuration errors are returned
// by the openers; connection failures surface when the engine is used.
func (c *Cache) GetOrCreate(ctx context.Context, key Key, target database.Target) (*database.Engine, error) {
	if e, ok := c.lookup(key); ok {
		c.rec.IncCacheLookup(true)
		return e, nil
	}
	c.rec.IncCacheLookup(false)

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		if e, ok := c.lookup(key); ok {
			return e, nil
		}
		if target == nil {
			return nil, errs.New(errs.ErrKindConfiguration, "missing connection target")
		}

		e, err := c.opener.Open(ctx, target)
		c.rec.IncEngineOpen(string(target.Kind()), err == nil)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.engines[key] = e
		c.mu.Unlock()

		c.log.ForTenant(key.UserID, key.ConnectionID).InfoWith("engine created", map[string]any{
			"kind":    string(e.Kind),
			"dialect": e.Dialect.String(),
			"target":  database.Redact(target),
		})
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*database.Engine), nil
}

func (c *Cache) lookup(key Key) (*database.Engine, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.engines[key]
	return e, ok
}

// Len reports how many engines are cached.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.engines)
}

// Keys returns the cached keys in a stable order.
func (c *Cache) Keys() []Key {
	c.mu.RLock()
	keys := make([]Key, 0, len(c.engines))
	for k := range c.engines {
		keys = append(keys, k)
	}
	c.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].UserID != keys[j].UserID {
			return keys[i].UserID < keys[j].UserID
		}
		return keys[i].ConnectionID < keys[j].ConnectionID
	})
	return keys
}

// DisposeAll closes every cached engine and empties the cache. The cache
// stays usable and repopulates lazily. Close errors are joined and returned.
func (c *Cache) DisposeAll() error {
	c.mu.Lock()
	engines := c.engines
	c.engines = make(map[Key]*database.Engine)
	c.mu.Unlock()

	var errList []error
	for key, e := range engines {
		if err := e.Close(); err != nil {
			errList = append(errList, fmt.Errorf("close engine %s: %w", key, err))
		}
	}
	c.log.InfoWith("engines disposed", map[string]any{"count": len(engines)})
	return errors.Join(errList...)
}
