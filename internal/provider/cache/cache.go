package cache

import (
	"context"
	"sync"
	"time"

	"labelagent/internal/provider"
)

// entry stores a cached sample for a single query with expiry.
type entry struct {
	expiresAt time.Time
	sample    provider.Sample
}

// Provider caches samples per query for a TTL.
// When the underlying provider comes back empty, an expired sample for the
// same query is served instead.
type Provider struct {
	P        provider.Provider
	TTL      time.Duration
	MaxItems int

	mu    sync.RWMutex
	items map[string]entry // key: provider.Query.Key()
}

func (c *Provider) Name() string { return c.P.Name() }

// Lookup returns the cached sample when valid, otherwise asks the underlying provider.
func (c *Provider) Lookup(ctx context.Context, q provider.Query) (provider.Sample, bool) {
	if c.TTL <= 0 {
		return c.P.Lookup(ctx, q)
	}

	now := time.Now()
	key := q.Key()

	c.mu.RLock()
	e, found := c.items[key]
	c.mu.RUnlock()
	if found && now.Before(e.expiresAt) {
		return e.sample, true
	}

	fresh, ok := c.P.Lookup(ctx, q)
	if !ok {
		// Serve stale data rather than nothing
		if found {
			return e.sample, true
		}
		return provider.Sample{}, false
	}

	c.mu.Lock()
	if c.items == nil {
		c.items = make(map[string]entry)
	}
	c.items[key] = entry{expiresAt: now.Add(c.TTL), sample: fresh}
	// best-effort cap cache size
	if c.MaxItems > 0 && len(c.items) > c.MaxItems {
		// remove expired first, then arbitrary
		for k, v := range c.items {
			if len(c.items) <= c.MaxItems {
				break
			}
			if now.After(v.expiresAt) {
				delete(c.items, k)
			}
		}
		for k := range c.items {
			if len(c.items) <= c.MaxItems {
				break
			}
			if k == key {
				continue
			}
			delete(c.items, k)
		}
	}
	c.mu.Unlock()
	return fresh, true
}

// Len reports the number of cached queries.
func (c *Provider) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
