package bom

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/forgeline-erp/forgeline-erp/internal/parts"
)

func newTestCache(t *testing.T) *TreeCache {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewTreeCache(client, time.Minute)
}

func TestTreeCacheRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	_, ok := cache.Get(ctx, 1, true)
	require.False(t, ok)

	tree := Tree{
		Part:       PartSnapshot{ID: 1, Number: "PMP-001", Type: parts.TypeProduct},
		Components: []EdgeView{{EdgeID: 10, Qty: 3, Part: PartSnapshot{ID: 2, Number: "SEA-001"}}},
	}
	cache.Set(ctx, 1, true, tree)

	cached, ok := cache.Get(ctx, 1, true)
	require.True(t, ok)
	require.Equal(t, tree, cached)

	// Recursive and single-level results are cached separately.
	_, ok = cache.Get(ctx, 1, false)
	require.False(t, ok)
}

func TestTreeCacheBumpInvalidates(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, 1, true, Tree{Part: PartSnapshot{ID: 1}})
	_, ok := cache.Get(ctx, 1, true)
	require.True(t, ok)

	cache.Bump(ctx)
	_, ok = cache.Get(ctx, 1, true)
	require.False(t, ok)
}

func TestTreeCacheNilSafe(t *testing.T) {
	var cache *TreeCache
	ctx := context.Background()

	cache.Bump(ctx)
	cache.Set(ctx, 1, true, Tree{})
	_, ok := cache.Get(ctx, 1, true)
	require.False(t, ok)
}

func TestExpandUsesCacheUntilEdgeMutation(t *testing.T) {
	repo := pumpFixture()
	cache := newTestCache(t)
	svc := NewService(repo, nil, nil, cache)
	ctx := context.Background()

	tree, err := svc.Expand(ctx, 1, true)
	require.NoError(t, err)
	require.Len(t, tree.Components, 2)

	// A direct store write does not show up while the cache entry is live.
	repo.seedPart(5, "NEW-001", parts.TypeComponent)
	repo.seedEdge(1, 5, 1)

	tree, err = svc.Expand(ctx, 1, true)
	require.NoError(t, err)
	require.Len(t, tree.Components, 2)

	// Any edge mutation through the service bumps the generation.
	repo.seedPart(6, "BLT-001", parts.TypeComponent)
	_, err = svc.AddEdge(ctx, 2, 6, 4, "pcs")
	require.NoError(t, err)

	tree, err = svc.Expand(ctx, 1, true)
	require.NoError(t, err)
	require.Len(t, tree.Components, 3)
}
