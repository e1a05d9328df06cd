package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/forgeline-erp/forgeline-erp/internal/platform/db"
)

// Repository persists ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	LedgerTx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewLedgerTx(tx))
	})
}

// ListForPart returns the part's ledger trail in creation order.
func (r *Repository) ListForPart(ctx context.Context, partID int64, limit int) ([]Transaction, error) {
	if r == nil {
		return nil, errors.New("inventory repository not initialised")
	}
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, part_id, tx_type, qty, balance_after, COALESCE(ref_order_id, 0), note, COALESCE(recorded_by, 0), created_at
FROM inventory_tx
WHERE part_id = $1
ORDER BY id ASC
LIMIT $2`, partID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []Transaction{}
	for rows.Next() {
		var entry Transaction
		if err := rows.Scan(&entry.ID, &entry.PartID, &entry.Type, &entry.Qty, &entry.BalanceAfter, &entry.RefOrderID, &entry.Note, &entry.RecordedBy, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

type ledgerTx struct {
	tx pgx.Tx
}

// NewLedgerTx wraps a database transaction with the ledger operations. Other
// modules embed this in their own transactional repositories so ledger writes
// share their transaction boundary.
func NewLedgerTx(tx pgx.Tx) LedgerTx {
	return &ledgerTx{tx: tx}
}

func (l *ledgerTx) GetPartStockForUpdate(ctx context.Context, partID int64) (float64, error) {
	var stock float64
	err := l.tx.QueryRow(ctx, `SELECT stock FROM parts WHERE id = $1 FOR UPDATE`, partID).Scan(&stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrPartNotFound
		}
		return 0, err
	}
	return stock, nil
}

func (l *ledgerTx) UpdatePartStock(ctx context.Context, partID int64, stock float64) error {
	_, err := l.tx.Exec(ctx, `UPDATE parts SET stock = $1, updated_at = NOW() WHERE id = $2`, stock, partID)
	return err
}

func (l *ledgerTx) InsertTransaction(ctx context.Context, entry Transaction) (Transaction, error) {
	err := l.tx.QueryRow(ctx, `INSERT INTO inventory_tx (part_id, tx_type, qty, balance_after, ref_order_id, note, recorded_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		entry.PartID, string(entry.Type), entry.Qty, entry.BalanceAfter, nullInt(entry.RefOrderID), entry.Note, nullInt(entry.RecordedBy), entry.CreatedAt).Scan(&entry.ID)
	return entry, err
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
