package bom

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/forgeline-erp/forgeline-erp/internal/platform/db"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so read helpers can be
// shared between the pool-backed repository and its transactional wrapper.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository persists BOM edges in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations edge mutations need.
type TxRepository interface {
	PartExists(ctx context.Context, partID int64) (bool, error)
	EdgePairExists(ctx context.Context, parentID, componentID int64) (bool, error)
	ListComponentIDs(ctx context.Context, parentID int64) ([]int64, error)
	GetEdge(ctx context.Context, edgeID int64) (Edge, error)
	InsertEdge(ctx context.Context, edge Edge) (Edge, error)
	UpdateEdge(ctx context.Context, edge Edge) (Edge, error)
	DeleteEdge(ctx context.Context, edgeID int64) error
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("bom repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const edgeColumns = `id, parent_id, component_id, qty, unit, created_at, updated_at`

// GetEdge loads one edge by id.
func (r *Repository) GetEdge(ctx context.Context, edgeID int64) (Edge, error) {
	return getEdge(ctx, r.pool, edgeID)
}

// ListComponentIDs returns the direct component part ids of a parent.
func (r *Repository) ListComponentIDs(ctx context.Context, parentID int64) ([]int64, error) {
	return listComponentIDs(ctx, r.pool, parentID)
}

// PartSnapshot loads the catalog snapshot for a single part.
func (r *Repository) PartSnapshot(ctx context.Context, partID int64) (PartSnapshot, error) {
	var snap PartSnapshot
	err := r.pool.QueryRow(ctx, `SELECT id, number, name, part_type, stock, unit FROM parts WHERE id = $1`, partID).
		Scan(&snap.ID, &snap.Number, &snap.Name, &snap.Type, &snap.Stock, &snap.Unit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PartSnapshot{}, ErrPartNotFound
		}
		return PartSnapshot{}, err
	}
	return snap, nil
}

// ComponentViews returns one expansion level for a parent, joined with the
// component catalog and ordered by component part number.
func (r *Repository) ComponentViews(ctx context.Context, parentID int64) ([]EdgeView, error) {
	rows, err := r.pool.Query(ctx, `SELECT e.id, e.qty, e.unit, p.id, p.number, p.name, p.part_type, p.stock, p.unit
FROM bom_edges e
JOIN parts p ON p.id = e.component_id
WHERE e.parent_id = $1
ORDER BY p.number ASC`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	views := []EdgeView{}
	for rows.Next() {
		var v EdgeView
		if err := rows.Scan(&v.EdgeID, &v.Qty, &v.Unit, &v.Part.ID, &v.Part.Number, &v.Part.Name, &v.Part.Type, &v.Part.Stock, &v.Part.Unit); err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (t *txRepository) PartExists(ctx context.Context, partID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM parts WHERE id = $1)`, partID).Scan(&exists)
	return exists, err
}

func (t *txRepository) EdgePairExists(ctx context.Context, parentID, componentID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bom_edges WHERE parent_id = $1 AND component_id = $2)`, parentID, componentID).Scan(&exists)
	return exists, err
}

func (t *txRepository) ListComponentIDs(ctx context.Context, parentID int64) ([]int64, error) {
	return listComponentIDs(ctx, t.tx, parentID)
}

func (t *txRepository) GetEdge(ctx context.Context, edgeID int64) (Edge, error) {
	return getEdge(ctx, t.tx, edgeID)
}

func (t *txRepository) InsertEdge(ctx context.Context, edge Edge) (Edge, error) {
	now := time.Now().UTC()
	edge.CreatedAt = now
	edge.UpdatedAt = now
	err := t.tx.QueryRow(ctx, `INSERT INTO bom_edges (parent_id, component_id, qty, unit, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		edge.ParentID, edge.ComponentID, edge.Qty, edge.Unit, edge.CreatedAt, edge.UpdatedAt).Scan(&edge.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return Edge{}, ErrEdgeExists
		}
		if isForeignKeyViolation(err) {
			return Edge{}, ErrPartNotFound
		}
		return Edge{}, err
	}
	return edge, nil
}

func (t *txRepository) UpdateEdge(ctx context.Context, edge Edge) (Edge, error) {
	edge.UpdatedAt = time.Now().UTC()
	tag, err := t.tx.Exec(ctx, `UPDATE bom_edges SET qty = $1, unit = $2, updated_at = $3 WHERE id = $4`,
		edge.Qty, edge.Unit, edge.UpdatedAt, edge.ID)
	if err != nil {
		return Edge{}, err
	}
	if tag.RowsAffected() == 0 {
		return Edge{}, ErrEdgeNotFound
	}
	return edge, nil
}

func (t *txRepository) DeleteEdge(ctx context.Context, edgeID int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM bom_edges WHERE id = $1`, edgeID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEdgeNotFound
	}
	return nil
}

func getEdge(ctx context.Context, q querier, edgeID int64) (Edge, error) {
	var edge Edge
	err := q.QueryRow(ctx, `SELECT `+edgeColumns+` FROM bom_edges WHERE id = $1`, edgeID).
		Scan(&edge.ID, &edge.ParentID, &edge.ComponentID, &edge.Qty, &edge.Unit, &edge.CreatedAt, &edge.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Edge{}, ErrEdgeNotFound
		}
		return Edge{}, err
	}
	return edge, nil
}

func listComponentIDs(ctx context.Context, q querier, parentID int64) ([]int64, error) {
	rows, err := q.Query(ctx, `SELECT component_id FROM bom_edges WHERE parent_id = $1`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
