package inventory

import (
	"errors"
	"fmt"
	"time"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementIn represents an inbound receipt.
	MovementIn MovementType = "IN"
	// MovementOut represents an outbound issue.
	MovementOut MovementType = "OUT"
	// MovementAdjustment indicates manual corrections.
	MovementAdjustment MovementType = "ADJUSTMENT"
	// MovementProduction credits a finished good on order completion.
	MovementProduction MovementType = "PRODUCTION"
	// MovementConsumption debits a component on order completion.
	MovementConsumption MovementType = "CONSUMPTION"
)

// Valid reports whether the movement type is known.
func (t MovementType) Valid() bool {
	switch t {
	case MovementIn, MovementOut, MovementAdjustment, MovementProduction, MovementConsumption:
		return true
	}
	return false
}

// Transaction is one append-only ledger row. BalanceAfter is the part's stock
// immediately after the movement and is the authoritative snapshot: replaying a
// part's transactions in creation order reproduces its current stock.
type Transaction struct {
	ID           int64        `json:"id"`
	PartID       int64        `json:"part_id"`
	Type         MovementType `json:"type"`
	Qty          float64      `json:"qty"`
	BalanceAfter float64      `json:"balance_after"`
	RefOrderID   int64        `json:"ref_order_id,omitempty"`
	Note         string       `json:"note,omitempty"`
	RecordedBy   int64        `json:"recorded_by,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Movement describes a requested stock mutation. Qty is signed: negative
// decreases stock.
type Movement struct {
	PartID     int64
	Type       MovementType
	Qty        float64
	Note       string
	RefOrderID int64
	ActorID    int64
}

// balanceEpsilon absorbs float accumulation noise on balance checks.
const balanceEpsilon = 1e-4

// ErrPartNotFound indicates the part does not exist.
var ErrPartNotFound = errors.New("inventory: part not found")

// ErrInvalidQuantity indicates a zero or unusable quantity.
var ErrInvalidQuantity = errors.New("inventory: quantity must be non zero")

// ErrInvalidMovementType indicates an unknown movement type.
var ErrInvalidMovementType = errors.New("inventory: unknown movement type")

// InsufficientStockError reports a movement that would drive a balance negative.
type InsufficientStockError struct {
	PartID    int64
	Shortfall float64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for part %d, short by %g", e.PartID, e.Shortfall)
}
