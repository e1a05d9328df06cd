package bom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheGenKey = "bom:gen"

// TreeCache stores expansion results in Redis. Keys carry a generation counter
// that is bumped on every edge mutation, so stale entries stop being addressed
// instead of being deleted one by one. A nil *TreeCache disables caching.
type TreeCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTreeCache constructs TreeCache.
func NewTreeCache(client *redis.Client, ttl time.Duration) *TreeCache {
	if client == nil {
		return nil
	}
	return &TreeCache{client: client, ttl: ttl}
}

func (c *TreeCache) key(ctx context.Context, partID int64, recursive bool) (string, error) {
	gen, err := c.client.Get(ctx, cacheGenKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return fmt.Sprintf("bom:tree:%d:%d:%t", gen, partID, recursive), nil
}

// Get returns the cached tree for a part, if present.
func (c *TreeCache) Get(ctx context.Context, partID int64, recursive bool) (Tree, bool) {
	if c == nil {
		return Tree{}, false
	}
	key, err := c.key(ctx, partID, recursive)
	if err != nil {
		return Tree{}, false
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return Tree{}, false
	}
	var tree Tree
	if err := json.Unmarshal(payload, &tree); err != nil {
		return Tree{}, false
	}
	return tree, true
}

// Set stores a tree under the current generation.
func (c *TreeCache) Set(ctx context.Context, partID int64, recursive bool, tree Tree) {
	if c == nil {
		return
	}
	key, err := c.key(ctx, partID, recursive)
	if err != nil {
		return
	}
	payload, err := json.Marshal(tree)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, key, payload, c.ttl).Err()
}

// Bump advances the generation counter, invalidating every cached tree.
func (c *TreeCache) Bump(ctx context.Context) {
	if c == nil {
		return
	}
	_ = c.client.Incr(ctx, cacheGenKey).Err()
}
