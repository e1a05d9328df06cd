package bom

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/forgeline-erp/forgeline-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetEdge(ctx context.Context, edgeID int64) (Edge, error)
	ListComponentIDs(ctx context.Context, parentID int64) ([]int64, error)
	PartSnapshot(ctx context.Context, partID int64) (PartSnapshot, error)
	ComponentViews(ctx context.Context, parentID int64) ([]EdgeView, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort receives domain metrics.
type MetricsPort interface {
	ObserveCycleRejection()
}

// Service coordinates BOM graph operations.
type Service struct {
	repo    RepositoryPort
	audit   AuditPort
	metrics MetricsPort
	cache   *TreeCache
	expand  singleflight.Group
}

// NewService builds Service. cache may be nil to disable tree caching.
func NewService(repo RepositoryPort, audit AuditPort, metrics MetricsPort, cache *TreeCache) *Service {
	return &Service{repo: repo, audit: audit, metrics: metrics, cache: cache}
}

// componentLister is the adjacency read cycle checks walk. Both the repository
// and its transactional wrapper satisfy it.
type componentLister interface {
	ListComponentIDs(ctx context.Context, parentID int64) ([]int64, error)
}

// wouldCycle reports whether adding parent->component would close a loop:
// true when the parent is reachable from the component through existing edges.
// The visited set bounds the walk even if the stored graph already has a cycle.
func wouldCycle(ctx context.Context, lister componentLister, parentID, componentID int64) (bool, error) {
	if parentID == componentID {
		return true, nil
	}
	visited := map[int64]bool{}
	stack := []int64{componentID}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if current == parentID {
			return true, nil
		}
		if visited[current] {
			continue
		}
		visited[current] = true
		children, err := lister.ListComponentIDs(ctx, current)
		if err != nil {
			return false, err
		}
		stack = append(stack, children...)
	}
	return false, nil
}

// WouldCycle is the read-only preflight variant of the insertion-time check.
func (s *Service) WouldCycle(ctx context.Context, parentID, componentID int64) (bool, error) {
	return wouldCycle(ctx, s.repo, parentID, componentID)
}

// AddEdge inserts one parent->component edge after validating quantity,
// self-reference, duplication and acyclicity. The cycle check runs inside the
// insert transaction so a concurrent insert cannot slip a loop past it.
func (s *Service) AddEdge(ctx context.Context, parentID, componentID int64, qty float64, unit string) (Edge, error) {
	edge, err := s.addOne(ctx, parentID, BulkItem{ComponentID: componentID, Qty: qty, Unit: unit})
	if err != nil {
		return Edge{}, err
	}
	s.cache.Bump(ctx)
	s.auditEdge(ctx, "bom:add_edge", edge)
	return edge, nil
}

func (s *Service) addOne(ctx context.Context, parentID int64, item BulkItem) (Edge, error) {
	if item.Qty <= 0 {
		return Edge{}, ErrInvalidQuantity
	}
	if parentID == item.ComponentID {
		return Edge{}, ErrSelfReference
	}
	var edge Edge
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, partID := range []int64{parentID, item.ComponentID} {
			exists, err := tx.PartExists(ctx, partID)
			if err != nil {
				return err
			}
			if !exists {
				return ErrPartNotFound
			}
		}
		exists, err := tx.EdgePairExists(ctx, parentID, item.ComponentID)
		if err != nil {
			return err
		}
		if exists {
			return ErrEdgeExists
		}
		cyclic, err := wouldCycle(ctx, tx, parentID, item.ComponentID)
		if err != nil {
			return err
		}
		if cyclic {
			if s.metrics != nil {
				s.metrics.ObserveCycleRejection()
			}
			return ErrCyclic
		}
		edge, err = tx.InsertEdge(ctx, Edge{
			ParentID:    parentID,
			ComponentID: item.ComponentID,
			Qty:         item.Qty,
			Unit:        item.Unit,
		})
		return err
	})
	if err != nil {
		return Edge{}, err
	}
	return edge, nil
}

// UpdateEdgeInput carries the mutable edge fields. Endpoints are immutable.
type UpdateEdgeInput struct {
	Qty  *float64
	Unit *string
}

// UpdateEdge changes an edge's quantity or unit.
func (s *Service) UpdateEdge(ctx context.Context, edgeID int64, input UpdateEdgeInput) (Edge, error) {
	if input.Qty != nil && *input.Qty <= 0 {
		return Edge{}, ErrInvalidQuantity
	}
	var edge Edge
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEdge(ctx, edgeID)
		if err != nil {
			return err
		}
		if input.Qty != nil {
			current.Qty = *input.Qty
		}
		if input.Unit != nil {
			current.Unit = *input.Unit
		}
		edge, err = tx.UpdateEdge(ctx, current)
		return err
	})
	if err != nil {
		return Edge{}, err
	}
	s.cache.Bump(ctx)
	s.auditEdge(ctx, "bom:update_edge", edge)
	return edge, nil
}

// RemoveEdge deletes an edge. Removal cannot introduce a cycle, so no graph
// re-validation runs.
func (s *Service) RemoveEdge(ctx context.Context, edgeID int64) error {
	var edge Edge
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		edge, err = tx.GetEdge(ctx, edgeID)
		if err != nil {
			return err
		}
		return tx.DeleteEdge(ctx, edgeID)
	})
	if err != nil {
		return err
	}
	s.cache.Bump(ctx)
	s.auditEdge(ctx, "bom:remove_edge", edge)
	return nil
}

// EdgesFor returns one expansion level for a parent, ordered by component
// part number.
func (s *Service) EdgesFor(ctx context.Context, parentID int64) ([]EdgeView, error) {
	if _, err := s.repo.PartSnapshot(ctx, parentID); err != nil {
		return nil, err
	}
	return s.repo.ComponentViews(ctx, parentID)
}

// BulkAddEdges inserts many edges under one parent with partial-success
// semantics: each item runs in its own transaction and a rejected item is
// reported without aborting the rest.
func (s *Service) BulkAddEdges(ctx context.Context, parentID int64, items []BulkItem) (BulkResult, error) {
	result := BulkResult{Added: []Edge{}, Failed: []BulkFailure{}}
	for _, item := range items {
		edge, err := s.addOne(ctx, parentID, item)
		if err != nil {
			result.Failed = append(result.Failed, BulkFailure{ComponentID: item.ComponentID, Reason: reasonFor(err)})
			continue
		}
		result.Added = append(result.Added, edge)
	}
	if len(result.Added) > 0 {
		s.cache.Bump(ctx)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  shared.ActorFromContext(ctx),
			Action:   "bom:bulk_add_edges",
			Entity:   "bom_edges",
			EntityID: strconv.FormatInt(parentID, 10),
			Meta: map[string]any{
				"added":  len(result.Added),
				"failed": len(result.Failed),
			},
		})
	}
	return result, nil
}

// Expand assembles a part's BOM tree. Recursive expansions go through the
// Redis cache; concurrent expansions of the same key collapse to one walk.
func (s *Service) Expand(ctx context.Context, partID int64, recursive bool) (Tree, error) {
	if tree, ok := s.cache.Get(ctx, partID, recursive); ok {
		return tree, nil
	}
	value, err, _ := s.expand.Do(fmt.Sprintf("%d:%t", partID, recursive), func() (any, error) {
		tree, err := assembleTree(ctx, s.repo, partID, recursive)
		if err != nil {
			return Tree{}, err
		}
		s.cache.Set(ctx, partID, recursive, tree)
		return tree, nil
	})
	if err != nil {
		return Tree{}, err
	}
	return value.(Tree), nil
}

func (s *Service) auditEdge(ctx context.Context, action string, edge Edge) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "bom_edges",
		EntityID: strconv.FormatInt(edge.ID, 10),
		Meta: map[string]any{
			"parent_id":    edge.ParentID,
			"component_id": edge.ComponentID,
			"qty":          edge.Qty,
		},
	})
}
