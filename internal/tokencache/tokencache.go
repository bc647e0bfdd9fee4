// Package tokencache holds a single bearer token until it expires.
package tokencache

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// RefreshFunc obtains a new token and how long it stays valid.
type RefreshFunc func(ctx context.Context) (token string, ttl time.Duration, err error)

// Cache owns one token. Concurrent refreshes are coalesced; the last
// successful refresh wins.
type Cache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time

	sf singleflight.Group
	// Now defaults to time.Now.
	Now func() time.Time
}

func (c *Cache) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Token returns the cached token if it is still valid.
func (c *Cache) Token() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.expiresAt) {
		return c.token, true
	}
	return "", false
}

// Get returns a valid token, calling refresh when the cached one is missing or expired.
// The refresh is shared by concurrent callers, so it runs without ctx's cancellation.
func (c *Cache) Get(ctx context.Context, refresh RefreshFunc) (string, error) {
	if tok, ok := c.Token(); ok {
		return tok, nil
	}
	shared := context.WithoutCancel(ctx)
	v, err, _ := c.sf.Do("refresh", func() (any, error) {
		if tok, ok := c.Token(); ok {
			return tok, nil
		}
		tok, ttl, err := refresh(shared)
		if err != nil {
			return "", err
		}
		if tok == "" {
			return "", errors.New("empty token")
		}
		c.mu.Lock()
		c.token = tok
		c.expiresAt = c.now().Add(ttl)
		c.mu.Unlock()
		return tok, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached token.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}
