package secretstore

import (
	"context"
	"sync"
)

// Cache memoises GetSecret results per ARN, with no expiry. main builds
// one instance shared by all collaborators. The lock is not held during
// the fetch, so concurrent first callers for the same ARN may each fetch;
// the last result stored wins.
type Cache struct {
	store Store

	mu     sync.Mutex
	values map[string]map[string]string
}

// NewCache wraps store with a per-ARN memoisation layer.
func NewCache(store Store) *Cache {
	return &Cache{store: store, values: make(map[string]map[string]string)}
}

// Get returns the cached value map for arn, fetching and caching it on
// first use.
func (c *Cache) Get(ctx context.Context, arn string) (map[string]string, error) {
	c.mu.Lock()
	if v, ok := c.values[arn]; ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	v, err := c.store.GetSecret(ctx, arn)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.values[arn] = v
	c.mu.Unlock()
	return v, nil
}
