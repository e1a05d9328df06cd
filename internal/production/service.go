package production

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/forgeline-erp/forgeline-erp/internal/inventory"
	"github.com/forgeline-erp/forgeline-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, orderID int64) (Order, error)
	ListOrders(ctx context.Context, filters ListFilters) ([]Order, int, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort receives domain metrics.
type MetricsPort interface {
	ObserveOrderCompleted()
	ObserveMovement(txType string)
}

// Service coordinates the production order lifecycle and the stock
// consumption that completion triggers.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	metrics  MetricsPort
	allowNeg bool
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	AllowNegativeStock bool
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, metrics MetricsPort, cfg ServiceConfig) *Service {
	return &Service{repo: repo, audit: audit, metrics: metrics, allowNeg: cfg.AllowNegativeStock}
}

// CreateOrderInput carries order creation fields.
type CreateOrderInput struct {
	PartID     int64
	Qty        float64
	StartDate  time.Time
	TargetDate time.Time
}

// CreateOrder opens a PLANNED order with the next sequential number.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (Order, error) {
	if input.PartID <= 0 || input.Qty <= 0 {
		return Order{}, ErrValidation
	}
	actor := shared.ActorFromContext(ctx)
	var order Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		exists, err := tx.PartExists(ctx, input.PartID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrPartNotFound
		}
		number, err := tx.NextOrderNumber(ctx)
		if err != nil {
			return err
		}
		order, err = tx.InsertOrder(ctx, Order{
			Number:     number,
			PartID:     input.PartID,
			Qty:        input.Qty,
			Status:     StatusPlanned,
			StartDate:  input.StartDate,
			TargetDate: input.TargetDate,
			CreatedBy:  actor,
		})
		return err
	})
	if err != nil {
		return Order{}, err
	}
	s.auditOrder(ctx, "production:create_order", order, nil)
	return order, nil
}

// StartOrder moves a PLANNED order to IN_PROGRESS.
func (s *Service) StartOrder(ctx context.Context, orderID int64) (Order, error) {
	return s.transition(ctx, orderID, "production:start_order", func(order *Order) error {
		if order.Status != StatusPlanned {
			return ErrInvalidState
		}
		order.Status = StatusInProgress
		return nil
	})
}

// CancelOrder moves a PLANNED or IN_PROGRESS order to CANCELLED.
func (s *Service) CancelOrder(ctx context.Context, orderID int64) (Order, error) {
	return s.transition(ctx, orderID, "production:cancel_order", func(order *Order) error {
		switch order.Status {
		case StatusPlanned, StatusInProgress:
			order.Status = StatusCancelled
			return nil
		case StatusCompleted:
			return ErrAlreadyCompleted
		}
		return ErrInvalidState
	})
}

func (s *Service) transition(ctx context.Context, orderID int64, action string, apply func(*Order) error) (Order, error) {
	var order Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := apply(&order); err != nil {
			return err
		}
		return tx.UpdateOrderStatus(ctx, orderID, order.Status)
	})
	if err != nil {
		return Order{}, err
	}
	s.auditOrder(ctx, action, order, nil)
	return order, nil
}

// CompleteOrder finishes an order in one transaction: it credits the finished
// good and consumes each direct BOM component scaled by the order quantity.
// Any insufficient component aborts the whole transaction, so the order stays
// non-completed and no ledger rows persist. Consumption is single level:
// nested assemblies are expected to be produced through their own orders.
func (s *Service) CompleteOrder(ctx context.Context, orderID int64) (Order, error) {
	actor := shared.ActorFromContext(ctx)
	// One reference per completion attempt, shared by every ledger note and the
	// audit record, so the movements of a single completion can be correlated.
	completionRef := uuid.NewString()
	var order Order
	var movements int
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		switch order.Status {
		case StatusCompleted:
			return ErrAlreadyCompleted
		case StatusCancelled:
			return ErrInvalidState
		}

		now := time.Now().UTC()
		if err := tx.MarkCompleted(ctx, orderID, now); err != nil {
			return err
		}
		order.Status = StatusCompleted
		order.CompletedAt = &now

		ledger := tx.Ledger()
		if _, err := inventory.ApplyMovement(ctx, ledger, inventory.Movement{
			PartID:     order.PartID,
			Type:       inventory.MovementProduction,
			Qty:        order.Qty,
			Note:       fmt.Sprintf("production of %s [%s]", order.Number, completionRef),
			RefOrderID: order.ID,
			ActorID:    actor,
		}, s.allowNeg); err != nil {
			return err
		}
		movements = 1

		lines, err := tx.ListBOMEdges(ctx, order.PartID)
		if err != nil {
			return err
		}
		for _, line := range lines {
			required := line.Qty * order.Qty
			if _, err := inventory.ApplyMovement(ctx, ledger, inventory.Movement{
				PartID:     line.ComponentID,
				Type:       inventory.MovementConsumption,
				Qty:        -required,
				Note:       fmt.Sprintf("consumed by %s [%s]", order.Number, completionRef),
				RefOrderID: order.ID,
				ActorID:    actor,
			}, s.allowNeg); err != nil {
				return err
			}
			movements++
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	if s.metrics != nil {
		s.metrics.ObserveOrderCompleted()
		s.metrics.ObserveMovement(string(inventory.MovementProduction))
		for i := 1; i < movements; i++ {
			s.metrics.ObserveMovement(string(inventory.MovementConsumption))
		}
	}
	s.auditOrder(ctx, "production:complete_order", order, map[string]any{
		"movements":      movements,
		"completion_ref": completionRef,
	})
	return order, nil
}

// Get loads one order.
func (s *Service) Get(ctx context.Context, orderID int64) (Order, error) {
	return s.repo.GetOrder(ctx, orderID)
}

// List returns orders with an optional status filter.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Order, int, error) {
	if filters.Status != "" && !filters.Status.Valid() {
		return nil, 0, ErrValidation
	}
	return s.repo.ListOrders(ctx, filters)
}

func (s *Service) auditOrder(ctx context.Context, action string, order Order, extra map[string]any) {
	if s.audit == nil {
		return
	}
	meta := map[string]any{
		"number":  order.Number,
		"part_id": order.PartID,
		"qty":     order.Qty,
		"status":  order.Status,
	}
	for k, v := range extra {
		meta[k] = v
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "production_orders",
		EntityID: strconv.FormatInt(order.ID, 10),
		Meta:     meta,
	})
}
