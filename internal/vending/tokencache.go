package vending

import (
	"context"
	"sync"
	"time"
)

// TokenSource fetches a fresh vendor API token and its lifetime.
type TokenSource func(ctx context.Context) (token string, ttl time.Duration, err error)

// TokenCache holds a vendor bearer token and refreshes it before expiry.
// Expiry is checked against an injected clock so refresh behavior is testable.
type TokenCache struct {
	mu        sync.Mutex
	source    TokenSource
	token     string
	expiresAt time.Time
	now       func() time.Time
}

// refreshSkew renews tokens slightly early so in-flight requests never
// carry a token that expires mid-call.
const refreshSkew = 30 * time.Second

// NewTokenCache builds a cache over the given source.
func NewTokenCache(source TokenSource) *TokenCache {
	return &TokenCache{source: source, now: time.Now}
}

// Token returns a valid bearer token, refreshing from the source if the
// cached one is missing or near expiry.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Add(refreshSkew).Before(c.expiresAt) {
		return c.token, nil
	}

	token, ttl, err := c.source(ctx)
	if err != nil {
		return "", err
	}
	c.token = token
	c.expiresAt = c.now().Add(ttl)
	return c.token, nil
}

// Invalidate drops the cached token, forcing a refresh on the next call.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.expiresAt = time.Time{}
}
