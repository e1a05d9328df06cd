package production

import (
	"errors"
	"time"
)

// OrderStatus tracks the production order lifecycle:
// PLANNED -> IN_PROGRESS -> COMPLETED | CANCELLED.
type OrderStatus string

const (
	StatusPlanned    OrderStatus = "PLANNED"
	StatusInProgress OrderStatus = "IN_PROGRESS"
	StatusCompleted  OrderStatus = "COMPLETED"
	StatusCancelled  OrderStatus = "CANCELLED"
)

// Valid reports whether the status is known.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPlanned, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Order is one production order for a finished part.
type Order struct {
	ID          int64       `json:"id"`
	Number      string      `json:"number"`
	PartID      int64       `json:"part_id"`
	Qty         float64     `json:"qty"`
	Status      OrderStatus `json:"status"`
	StartDate   time.Time   `json:"start_date"`
	TargetDate  time.Time   `json:"target_date"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	CreatedBy   int64       `json:"created_by,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// BOMLine is one direct component requirement of the produced part.
type BOMLine struct {
	ComponentID int64
	Qty         float64
	Unit        string
}

// ListFilters narrows order listings.
type ListFilters struct {
	Status OrderStatus
	Page   int
	Limit  int
}

// orderNumberFormat produces numbers like PO-000042. The numeric suffix is
// strictly increasing, derived from the highest existing number at creation.
const orderNumberFormat = "PO-%06d"

var (
	// ErrOrderNotFound indicates a missing order.
	ErrOrderNotFound = errors.New("production: order not found")
	// ErrPartNotFound indicates the produced part does not exist.
	ErrPartNotFound = errors.New("production: part not found")
	// ErrAlreadyCompleted indicates a repeated completion attempt.
	ErrAlreadyCompleted = errors.New("production: order already completed")
	// ErrInvalidState indicates a transition the lifecycle does not allow.
	ErrInvalidState = errors.New("production: invalid order state for this transition")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("production: invalid input")
)
