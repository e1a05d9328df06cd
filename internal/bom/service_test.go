package bom

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forgeline-erp/forgeline-erp/internal/parts"
)

type memoryRepo struct {
	parts  map[int64]PartSnapshot
	edges  map[int64]Edge
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{parts: make(map[int64]PartSnapshot), edges: make(map[int64]Edge)}
}

func (r *memoryRepo) seedPart(id int64, number string, partType parts.PartType) {
	r.parts[id] = PartSnapshot{ID: id, Number: number, Name: number, Type: partType, Unit: "pcs"}
}

// seedEdge bypasses validation so tests can model corrupted graph data.
func (r *memoryRepo) seedEdge(parentID, componentID int64, qty float64) {
	r.nextID++
	r.edges[r.nextID] = Edge{ID: r.nextID, ParentID: parentID, ComponentID: componentID, Qty: qty, Unit: "pcs"}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *memoryRepo) PartExists(ctx context.Context, partID int64) (bool, error) {
	_, ok := r.parts[partID]
	return ok, nil
}

func (r *memoryRepo) EdgePairExists(ctx context.Context, parentID, componentID int64) (bool, error) {
	for _, edge := range r.edges {
		if edge.ParentID == parentID && edge.ComponentID == componentID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) ListComponentIDs(ctx context.Context, parentID int64) ([]int64, error) {
	var ids []int64
	for _, edge := range r.edges {
		if edge.ParentID == parentID {
			ids = append(ids, edge.ComponentID)
		}
	}
	return ids, nil
}

func (r *memoryRepo) GetEdge(ctx context.Context, edgeID int64) (Edge, error) {
	edge, ok := r.edges[edgeID]
	if !ok {
		return Edge{}, ErrEdgeNotFound
	}
	return edge, nil
}

func (r *memoryRepo) InsertEdge(ctx context.Context, edge Edge) (Edge, error) {
	r.nextID++
	edge.ID = r.nextID
	r.edges[edge.ID] = edge
	return edge, nil
}

func (r *memoryRepo) UpdateEdge(ctx context.Context, edge Edge) (Edge, error) {
	if _, ok := r.edges[edge.ID]; !ok {
		return Edge{}, ErrEdgeNotFound
	}
	r.edges[edge.ID] = edge
	return edge, nil
}

func (r *memoryRepo) DeleteEdge(ctx context.Context, edgeID int64) error {
	if _, ok := r.edges[edgeID]; !ok {
		return ErrEdgeNotFound
	}
	delete(r.edges, edgeID)
	return nil
}

func (r *memoryRepo) PartSnapshot(ctx context.Context, partID int64) (PartSnapshot, error) {
	snap, ok := r.parts[partID]
	if !ok {
		return PartSnapshot{}, ErrPartNotFound
	}
	return snap, nil
}

func (r *memoryRepo) ComponentViews(ctx context.Context, parentID int64) ([]EdgeView, error) {
	views := []EdgeView{}
	for _, edge := range r.edges {
		if edge.ParentID != parentID {
			continue
		}
		snap, ok := r.parts[edge.ComponentID]
		if !ok {
			continue
		}
		views = append(views, EdgeView{EdgeID: edge.ID, Qty: edge.Qty, Unit: edge.Unit, Part: snap})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Part.Number < views[j].Part.Number })
	return views, nil
}

func TestAddEdgeValidation(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedPart(1, "PMP-001", parts.TypeProduct)
	repo.seedPart(2, "SEA-001", parts.TypeComponent)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.AddEdge(ctx, 1, 2, 0, "pcs")
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.AddEdge(ctx, 1, 2, -3, "pcs")
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.AddEdge(ctx, 1, 1, 2, "pcs")
	require.ErrorIs(t, err, ErrSelfReference)

	_, err = svc.AddEdge(ctx, 1, 99, 2, "pcs")
	require.ErrorIs(t, err, ErrPartNotFound)

	edge, err := svc.AddEdge(ctx, 1, 2, 3, "pcs")
	require.NoError(t, err)
	require.Equal(t, int64(1), edge.ParentID)
	require.Equal(t, int64(2), edge.ComponentID)

	_, err = svc.AddEdge(ctx, 1, 2, 5, "pcs")
	require.ErrorIs(t, err, ErrEdgeExists)
}

func TestCycleDetectionReverseAndTransitive(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedPart(1, "A", parts.TypeAssembly)
	repo.seedPart(2, "B", parts.TypeAssembly)
	repo.seedPart(3, "C", parts.TypeAssembly)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.AddEdge(ctx, 1, 2, 1, "pcs")
	require.NoError(t, err)

	// Reverse direction closes the loop immediately.
	cyclic, err := svc.WouldCycle(ctx, 2, 1)
	require.NoError(t, err)
	require.True(t, cyclic)

	_, err = svc.AddEdge(ctx, 2, 3, 1, "pcs")
	require.NoError(t, err)

	// A reaches C through B, so C -> A is a transitive cycle.
	cyclic, err = svc.WouldCycle(ctx, 3, 1)
	require.NoError(t, err)
	require.True(t, cyclic)

	_, err = svc.AddEdge(ctx, 3, 1, 1, "pcs")
	require.ErrorIs(t, err, ErrCyclic)
	require.Len(t, repo.edges, 2)

	// Unrelated direction stays legal.
	cyclic, err = svc.WouldCycle(ctx, 1, 3)
	require.NoError(t, err)
	require.False(t, cyclic)
}

func TestCycleRejectionRecordsMetric(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedPart(1, "A", parts.TypeAssembly)
	repo.seedPart(2, "B", parts.TypeAssembly)
	metrics := &fakeMetrics{}
	svc := NewService(repo, nil, metrics, nil)
	ctx := context.Background()

	_, err := svc.AddEdge(ctx, 1, 2, 1, "pcs")
	require.NoError(t, err)
	_, err = svc.AddEdge(ctx, 2, 1, 1, "pcs")
	require.ErrorIs(t, err, ErrCyclic)
	require.Equal(t, 1, metrics.cycleRejections)
}

type fakeMetrics struct {
	cycleRejections int
}

func (f *fakeMetrics) ObserveCycleRejection() { f.cycleRejections++ }

func TestUpdateEdge(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedPart(1, "A", parts.TypeAssembly)
	repo.seedPart(2, "B", parts.TypeComponent)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	edge, err := svc.AddEdge(ctx, 1, 2, 2, "pcs")
	require.NoError(t, err)

	qty := 4.5
	unit := "kg"
	updated, err := svc.UpdateEdge(ctx, edge.ID, UpdateEdgeInput{Qty: &qty, Unit: &unit})
	require.NoError(t, err)
	require.InDelta(t, 4.5, updated.Qty, 1e-9)
	require.Equal(t, "kg", updated.Unit)
	require.Equal(t, edge.ParentID, updated.ParentID)
	require.Equal(t, edge.ComponentID, updated.ComponentID)

	bad := -1.0
	_, err = svc.UpdateEdge(ctx, edge.ID, UpdateEdgeInput{Qty: &bad})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.UpdateEdge(ctx, 99, UpdateEdgeInput{Qty: &qty})
	require.ErrorIs(t, err, ErrEdgeNotFound)
}

func TestRemoveEdge(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedPart(1, "A", parts.TypeAssembly)
	repo.seedPart(2, "B", parts.TypeComponent)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	edge, err := svc.AddEdge(ctx, 1, 2, 2, "pcs")
	require.NoError(t, err)
	require.NoError(t, svc.RemoveEdge(ctx, edge.ID))
	require.ErrorIs(t, svc.RemoveEdge(ctx, edge.ID), ErrEdgeNotFound)

	// Removal frees the pair for re-insertion.
	_, err = svc.AddEdge(ctx, 1, 2, 2, "pcs")
	require.NoError(t, err)
}

func TestEdgesForOrderedByComponentNumber(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedPart(1, "PMP-001", parts.TypeProduct)
	repo.seedPart(2, "ZZZ-900", parts.TypeComponent)
	repo.seedPart(3, "AAA-100", parts.TypeComponent)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.AddEdge(ctx, 1, 2, 1, "pcs")
	require.NoError(t, err)
	_, err = svc.AddEdge(ctx, 1, 3, 1, "pcs")
	require.NoError(t, err)

	views, err := svc.EdgesFor(ctx, 1)
	require.NoError(t, err)
	require.Len(t, views, 2)
	require.Equal(t, "AAA-100", views[0].Part.Number)
	require.Equal(t, "ZZZ-900", views[1].Part.Number)

	_, err = svc.EdgesFor(ctx, 99)
	require.ErrorIs(t, err, ErrPartNotFound)
}

func TestBulkAddEdgesPartialSuccess(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedPart(1, "A", parts.TypeAssembly)
	repo.seedPart(2, "B", parts.TypeAssembly)
	repo.seedPart(3, "C", parts.TypeComponent)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.AddEdge(ctx, 1, 2, 1, "pcs")
	require.NoError(t, err)

	result, err := svc.BulkAddEdges(ctx, 2, []BulkItem{
		{ComponentID: 3, Qty: 2, Unit: "pcs"},
		{ComponentID: 1, Qty: 1, Unit: "pcs"}, // ancestor of parent 2
		{ComponentID: 3, Qty: 9, Unit: "pcs"}, // duplicate of first item
		{ComponentID: 2, Qty: 1, Unit: "pcs"},
		{ComponentID: 99, Qty: 1, Unit: "pcs"},
		{ComponentID: 3, Qty: 0, Unit: "pcs"},
	})
	require.NoError(t, err)
	require.Len(t, result.Added, 1)
	require.Equal(t, int64(3), result.Added[0].ComponentID)

	require.Len(t, result.Failed, 5)
	reasons := map[int64][]string{}
	for _, failure := range result.Failed {
		reasons[failure.ComponentID] = append(reasons[failure.ComponentID], failure.Reason)
	}
	require.Contains(t, reasons[1], ReasonCyclic)
	require.Contains(t, reasons[3], ReasonAlreadyExists)
	require.Contains(t, reasons[3], ReasonInvalidQuantity)
	require.Contains(t, reasons[2], ReasonSelfReference)
	require.Contains(t, reasons[99], ReasonPartNotFound)

	// The valid edge is actually persisted.
	exists, err := repo.EdgePairExists(ctx, 2, 3)
	require.NoError(t, err)
	require.True(t, exists)
}
