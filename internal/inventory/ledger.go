package inventory

import (
	"context"
	"math"
	"time"
)

// LedgerTx is the transactional surface a ledger movement needs. Both this
// package's repository and the production order repository implement it over
// the same database transaction, so a multi-movement operation commits or
// rolls back as one unit.
type LedgerTx interface {
	// GetPartStockForUpdate locks the part row and returns its current stock.
	GetPartStockForUpdate(ctx context.Context, partID int64) (float64, error)
	// UpdatePartStock writes the new stock value for the part.
	UpdatePartStock(ctx context.Context, partID int64, stock float64) error
	// InsertTransaction appends a ledger row and fills in id and timestamp.
	InsertTransaction(ctx context.Context, tx Transaction) (Transaction, error)
}

// ApplyMovement performs one ledger movement inside the caller's transaction:
// it locks the part, rejects movements that would drive the balance negative,
// appends the transaction row and updates the part's stock. The two writes are
// indivisible because they share the caller's transaction.
func ApplyMovement(ctx context.Context, tx LedgerTx, m Movement, allowNegative bool) (Transaction, error) {
	if m.Qty == 0 {
		return Transaction{}, ErrInvalidQuantity
	}
	if !m.Type.Valid() {
		return Transaction{}, ErrInvalidMovementType
	}

	stock, err := tx.GetPartStockForUpdate(ctx, m.PartID)
	if err != nil {
		return Transaction{}, err
	}

	newBalance := stock + m.Qty
	if math.Abs(newBalance) < balanceEpsilon {
		newBalance = 0
	}
	if !allowNegative && newBalance < 0 {
		return Transaction{}, &InsufficientStockError{PartID: m.PartID, Shortfall: -newBalance}
	}

	entry := Transaction{
		PartID:       m.PartID,
		Type:         m.Type,
		Qty:          m.Qty,
		BalanceAfter: newBalance,
		RefOrderID:   m.RefOrderID,
		Note:         m.Note,
		RecordedBy:   m.ActorID,
		CreatedAt:    time.Now().UTC(),
	}
	entry, err = tx.InsertTransaction(ctx, entry)
	if err != nil {
		return Transaction{}, err
	}
	if err := tx.UpdatePartStock(ctx, m.PartID, newBalance); err != nil {
		return Transaction{}, err
	}
	return entry, nil
}
