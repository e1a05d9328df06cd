package bom

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forgeline-erp/forgeline-erp/internal/parts"
)

// pumpFixture: Pump -> Housing (assembly, qty 1) + Seal (component, qty 3);
// Housing -> Casting (raw material, qty 2).
func pumpFixture() *memoryRepo {
	repo := newMemoryRepo()
	repo.seedPart(1, "PMP-001", parts.TypeProduct)
	repo.seedPart(2, "HSG-001", parts.TypeAssembly)
	repo.seedPart(3, "SEA-001", parts.TypeComponent)
	repo.seedPart(4, "CST-001", parts.TypeRawMaterial)
	repo.seedEdge(1, 2, 1)
	repo.seedEdge(1, 3, 3)
	repo.seedEdge(2, 4, 2)
	return repo
}

func TestExpandSingleLevelIgnoresDeeperStructure(t *testing.T) {
	repo := pumpFixture()
	svc := NewService(repo, nil, nil, nil)

	tree, err := svc.Expand(context.Background(), 1, false)
	require.NoError(t, err)
	require.Equal(t, int64(1), tree.Part.ID)
	require.False(t, tree.Truncated)
	require.Len(t, tree.Components, 2)
	require.Equal(t, "HSG-001", tree.Components[0].Part.Number)
	require.Equal(t, "SEA-001", tree.Components[1].Part.Number)
	for _, view := range tree.Components {
		require.Empty(t, view.Children)
	}
}

func TestExpandRecursive(t *testing.T) {
	repo := pumpFixture()
	svc := NewService(repo, nil, nil, nil)

	tree, err := svc.Expand(context.Background(), 1, true)
	require.NoError(t, err)
	require.False(t, tree.Truncated)
	require.Len(t, tree.Components, 2)

	housing := tree.Components[0]
	require.Equal(t, "HSG-001", housing.Part.Number)
	require.Len(t, housing.Children, 1)
	require.Equal(t, "CST-001", housing.Children[0].Part.Number)
	require.InDelta(t, 2, housing.Children[0].Qty, 1e-9)

	// Local quantities only; nothing is pre-multiplied across levels.
	require.InDelta(t, 1, housing.Qty, 1e-9)

	seal := tree.Components[1]
	require.Equal(t, "SEA-001", seal.Part.Number)
	require.Empty(t, seal.Children)
}

func TestExpandSkipsNonAssemblyComponents(t *testing.T) {
	repo := pumpFixture()
	// Corrupted data: a component-typed part with edges of its own.
	repo.seedPart(5, "GRT-001", parts.TypeRawMaterial)
	repo.seedEdge(3, 5, 1)
	svc := NewService(repo, nil, nil, nil)

	tree, err := svc.Expand(context.Background(), 1, true)
	require.NoError(t, err)
	require.Empty(t, tree.Components[1].Children, "COMPONENT parts are not expanded")
}

func TestExpandSharedSubPartAppearsUnderEachBranch(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedPart(1, "TOP", parts.TypeProduct)
	repo.seedPart(2, "SUB-A", parts.TypeAssembly)
	repo.seedPart(3, "SUB-B", parts.TypeAssembly)
	repo.seedPart(4, "SHARED", parts.TypeAssembly)
	repo.seedPart(5, "LEAF", parts.TypeRawMaterial)
	repo.seedEdge(1, 2, 1)
	repo.seedEdge(1, 3, 1)
	repo.seedEdge(2, 4, 1)
	repo.seedEdge(3, 4, 1)
	repo.seedEdge(4, 5, 2)
	svc := NewService(repo, nil, nil, nil)

	tree, err := svc.Expand(context.Background(), 1, true)
	require.NoError(t, err)
	require.False(t, tree.Truncated)
	require.Len(t, tree.Components, 2)
	for _, branch := range tree.Components {
		require.Len(t, branch.Children, 1)
		shared := branch.Children[0]
		require.Equal(t, "SHARED", shared.Part.Number)
		require.Len(t, shared.Children, 1)
		require.Equal(t, "LEAF", shared.Children[0].Part.Number)
	}
}

func TestExpandTruncatesCorruptedCycle(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedPart(1, "A", parts.TypeAssembly)
	repo.seedPart(2, "B", parts.TypeAssembly)
	// Cycle seeded directly, as if it slipped past insertion checks.
	repo.seedEdge(1, 2, 1)
	repo.seedEdge(2, 1, 1)
	svc := NewService(repo, nil, nil, nil)

	tree, err := svc.Expand(context.Background(), 1, true)
	require.NoError(t, err)
	require.True(t, tree.Truncated)
	require.Len(t, tree.Components, 1)

	b := tree.Components[0]
	require.Equal(t, "B", b.Part.Number)
	require.Len(t, b.Children, 1)
	require.Equal(t, "A", b.Children[0].Part.Number)
	require.Empty(t, b.Children[0].Children, "repeated node on its own path gets no children")
}

func TestExpandUnknownPartAndEmptyBOM(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedPart(1, "A", parts.TypeAssembly)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Expand(ctx, 99, true)
	require.ErrorIs(t, err, ErrPartNotFound)

	tree, err := svc.Expand(ctx, 1, true)
	require.NoError(t, err)
	require.Empty(t, tree.Components)
	require.False(t, tree.Truncated)
}
