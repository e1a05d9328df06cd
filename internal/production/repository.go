package production

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/forgeline-erp/forgeline-erp/internal/inventory"
	"github.com/forgeline-erp/forgeline-erp/internal/platform/db"
)

// Repository persists production orders in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations order mutations need.
// Ledger returns the inventory ledger bound to the same database transaction,
// so order-state writes and stock movements commit or roll back together.
type TxRepository interface {
	GetOrderForUpdate(ctx context.Context, orderID int64) (Order, error)
	NextOrderNumber(ctx context.Context) (string, error)
	InsertOrder(ctx context.Context, order Order) (Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status OrderStatus) error
	MarkCompleted(ctx context.Context, orderID int64, at time.Time) error
	PartExists(ctx context.Context, partID int64) (bool, error)
	ListBOMEdges(ctx context.Context, parentID int64) ([]BOMLine, error)
	Ledger() inventory.LedgerTx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("production repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, ledger: inventory.NewLedgerTx(tx)})
	})
}

const orderColumns = `id, number, part_id, qty, status, start_date, target_date, completed_at, COALESCE(created_by, 0), created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.Number, &o.PartID, &o.Qty, &o.Status, &o.StartDate, &o.TargetDate, &o.CompletedAt, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	return o, err
}

// GetOrder loads one order by id.
func (r *Repository) GetOrder(ctx context.Context, orderID int64) (Order, error) {
	return scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM production_orders WHERE id = $1`, orderID))
}

// ListOrders returns orders, optionally filtered by status, newest first.
func (r *Repository) ListOrders(ctx context.Context, filters ListFilters) ([]Order, int, error) {
	query := `SELECT ` + orderColumns + ` FROM production_orders WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM production_orders WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.Status != "" {
		argCount++
		cond := ` AND status = $` + strconv.Itoa(argCount)
		query += cond
		countQuery += cond
		args = append(args, string(filters.Status))
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY id DESC`
	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)

		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		offset := (filters.Page - 1) * filters.Limit
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.Number, &o.PartID, &o.Qty, &o.Status, &o.StartDate, &o.TargetDate, &o.CompletedAt, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, 0, err
		}
		result = append(result, o)
	}
	return result, total, rows.Err()
}

type txRepository struct {
	tx     pgx.Tx
	ledger inventory.LedgerTx
}

func (t *txRepository) Ledger() inventory.LedgerTx {
	return t.ledger
}

func (t *txRepository) GetOrderForUpdate(ctx context.Context, orderID int64) (Order, error) {
	return scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM production_orders WHERE id = $1 FOR UPDATE`, orderID))
}

// NextOrderNumber derives the next sequential number from the highest numeric
// suffix already present.
func (t *txRepository) NextOrderNumber(ctx context.Context) (string, error) {
	var max int64
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(MAX(CAST(SUBSTRING(number FROM 4) AS BIGINT)), 0) FROM production_orders WHERE number LIKE 'PO-%'`).Scan(&max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(orderNumberFormat, max+1), nil
}

func (t *txRepository) InsertOrder(ctx context.Context, order Order) (Order, error) {
	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now
	err := t.tx.QueryRow(ctx, `INSERT INTO production_orders (number, part_id, qty, status, start_date, target_date, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8) RETURNING id`,
		order.Number, order.PartID, order.Qty, string(order.Status), order.StartDate, order.TargetDate, nullInt(order.CreatedBy), now).Scan(&order.ID)
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

func (t *txRepository) UpdateOrderStatus(ctx context.Context, orderID int64, status OrderStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE production_orders SET status = $1, updated_at = NOW() WHERE id = $2`, string(status), orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (t *txRepository) MarkCompleted(ctx context.Context, orderID int64, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE production_orders SET status = $1, completed_at = $2, updated_at = NOW() WHERE id = $3`,
		string(StatusCompleted), at, orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (t *txRepository) PartExists(ctx context.Context, partID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM parts WHERE id = $1)`, partID).Scan(&exists)
	return exists, err
}

func (t *txRepository) ListBOMEdges(ctx context.Context, parentID int64) ([]BOMLine, error) {
	rows, err := t.tx.Query(ctx, `SELECT component_id, qty, unit FROM bom_edges WHERE parent_id = $1 ORDER BY component_id ASC`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []BOMLine
	for rows.Next() {
		var line BOMLine
		if err := rows.Scan(&line.ComponentID, &line.Qty, &line.Unit); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
