// Package cache deduplicates identical governed requests against completed,
// unexpired responses. Entries are scoped to one client instance and evicted
// in insertion order once the configured capacity is reached.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Config controls cache behavior.
type Config struct {
	Enabled bool
	TTL     time.Duration
	MaxSize int
}

// Observer receives cache lifecycle events. All methods must be cheap and
// non-blocking; implementations typically bump metric counters.
type Observer interface {
	CacheHit()
	CacheMiss()
	CacheEviction()
}

type entry struct {
	payload    []byte
	insertedAt time.Time
}

// Cache is a TTL response cache with FIFO eviction. Concurrent population of
// the same fingerprint is resolved last-write-wins; both writes carry
// equivalent data for the same fingerprint, so no coalescing is attempted.
type Cache struct {
	cfg      Config
	logger   *slog.Logger
	observer Observer

	mu      sync.Mutex
	entries map[string]*entry
	order   []string // fingerprints in insertion order, oldest first

	// now is swapped out in tests to control expiry.
	now func() time.Time
}

// New creates a cache. A nil observer disables event reporting.
func New(cfg Config, logger *slog.Logger, observer Observer) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		cfg:      cfg,
		logger:   logger,
		observer: observer,
		entries:  make(map[string]*entry),
		now:      time.Now,
	}
}

// GetOrCompute returns the cached payload for fingerprint when a live entry
// exists, otherwise runs compute and stores its result. With caching disabled
// compute always runs and nothing is stored.
func (c *Cache) GetOrCompute(ctx context.Context, fingerprint string, compute func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	if !c.cfg.Enabled {
		return compute(ctx)
	}

	if payload, ok := c.get(fingerprint); ok {
		c.logger.Debug("cache hit", "fingerprint", fingerprint)
		if c.observer != nil {
			c.observer.CacheHit()
		}
		return payload, nil
	}
	if c.observer != nil {
		c.observer.CacheMiss()
	}

	payload, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	c.put(fingerprint, payload)
	return payload, nil
}

// Len reports the current number of live and expired entries held.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops every entry. Called on client shutdown.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.order = nil
}

func (c *Cache) get(fingerprint string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[fingerprint]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.insertedAt) >= c.cfg.TTL {
		delete(c.entries, fingerprint)
		c.removeFromOrder(fingerprint)
		return nil, false
	}
	return e.payload, true
}

func (c *Cache) put(fingerprint string, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[fingerprint]; exists {
		c.removeFromOrder(fingerprint)
	} else if c.cfg.MaxSize > 0 && len(c.entries) >= c.cfg.MaxSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
		c.logger.Debug("cache eviction", "fingerprint", oldest)
		if c.observer != nil {
			c.observer.CacheEviction()
		}
	}

	c.entries[fingerprint] = &entry{payload: payload, insertedAt: c.now()}
	c.order = append(c.order, fingerprint)
}

func (c *Cache) removeFromOrder(fingerprint string) {
	for i, fp := range c.order {
		if fp == fingerprint {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
