package production

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/forgeline-erp/forgeline-erp/internal/inventory"
)

type memoryRepo struct {
	orders  map[int64]Order
	stocks  map[int64]float64
	lines   map[int64][]BOMLine
	entries []inventory.Transaction
	nextID  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		orders: make(map[int64]Order),
		stocks: make(map[int64]float64),
		lines:  make(map[int64][]BOMLine),
	}
}

// memoryTx stages writes and only the successful path copies them back,
// mirroring transaction rollback semantics.
type memoryTx struct {
	repo    *memoryRepo
	orders  map[int64]Order
	stocks  map[int64]float64
	entries []inventory.Transaction
	nextID  int64
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memoryTx{
		repo:   r,
		orders: make(map[int64]Order, len(r.orders)),
		stocks: make(map[int64]float64, len(r.stocks)),
		nextID: r.nextID,
	}
	for id, order := range r.orders {
		tx.orders[id] = order
	}
	for id, stock := range r.stocks {
		tx.stocks[id] = stock
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.orders = tx.orders
	r.stocks = tx.stocks
	r.entries = append(r.entries, tx.entries...)
	r.nextID = tx.nextID
	return nil
}

func (r *memoryRepo) GetOrder(ctx context.Context, orderID int64) (Order, error) {
	order, ok := r.orders[orderID]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}

func (r *memoryRepo) ListOrders(ctx context.Context, filters ListFilters) ([]Order, int, error) {
	var result []Order
	for _, order := range r.orders {
		if filters.Status != "" && order.Status != filters.Status {
			continue
		}
		result = append(result, order)
	}
	return result, len(result), nil
}

func (tx *memoryTx) Ledger() inventory.LedgerTx { return tx }

func (tx *memoryTx) GetOrderForUpdate(ctx context.Context, orderID int64) (Order, error) {
	order, ok := tx.orders[orderID]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}

func (tx *memoryTx) NextOrderNumber(ctx context.Context) (string, error) {
	max := 0
	for _, order := range tx.orders {
		var n int
		if _, err := fmt.Sscanf(order.Number, "PO-%06d", &n); err == nil && n > max {
			max = n
		}
	}
	return fmt.Sprintf("PO-%06d", max+1), nil
}

func (tx *memoryTx) InsertOrder(ctx context.Context, order Order) (Order, error) {
	tx.nextID++
	order.ID = tx.nextID
	order.CreatedAt = time.Now().UTC()
	order.UpdatedAt = order.CreatedAt
	tx.orders[order.ID] = order
	return order, nil
}

func (tx *memoryTx) UpdateOrderStatus(ctx context.Context, orderID int64, status OrderStatus) error {
	order, ok := tx.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	order.Status = status
	tx.orders[orderID] = order
	return nil
}

func (tx *memoryTx) MarkCompleted(ctx context.Context, orderID int64, at time.Time) error {
	order, ok := tx.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	order.Status = StatusCompleted
	order.CompletedAt = &at
	tx.orders[orderID] = order
	return nil
}

func (tx *memoryTx) PartExists(ctx context.Context, partID int64) (bool, error) {
	_, ok := tx.stocks[partID]
	return ok, nil
}

func (tx *memoryTx) ListBOMEdges(ctx context.Context, parentID int64) ([]BOMLine, error) {
	return tx.repo.lines[parentID], nil
}

func (tx *memoryTx) GetPartStockForUpdate(ctx context.Context, partID int64) (float64, error) {
	stock, ok := tx.stocks[partID]
	if !ok {
		return 0, inventory.ErrPartNotFound
	}
	return stock, nil
}

func (tx *memoryTx) UpdatePartStock(ctx context.Context, partID int64, stock float64) error {
	tx.stocks[partID] = stock
	return nil
}

func (tx *memoryTx) InsertTransaction(ctx context.Context, entry inventory.Transaction) (inventory.Transaction, error) {
	entry.ID = int64(len(tx.repo.entries) + len(tx.entries) + 1)
	tx.entries = append(tx.entries, entry)
	return entry, nil
}

func TestCreateOrderSequentialNumbering(t *testing.T) {
	repo := newMemoryRepo()
	repo.stocks[1] = 0
	svc := NewService(repo, nil, nil, ServiceConfig{})
	ctx := context.Background()

	first, err := svc.CreateOrder(ctx, CreateOrderInput{PartID: 1, Qty: 5})
	require.NoError(t, err)
	require.Equal(t, "PO-000001", first.Number)
	require.Equal(t, StatusPlanned, first.Status)

	second, err := svc.CreateOrder(ctx, CreateOrderInput{PartID: 1, Qty: 2})
	require.NoError(t, err)
	require.Equal(t, "PO-000002", second.Number)

	_, err = svc.CreateOrder(ctx, CreateOrderInput{PartID: 1, Qty: 0})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateOrder(ctx, CreateOrderInput{PartID: 99, Qty: 1})
	require.ErrorIs(t, err, ErrPartNotFound)
}

func TestOrderLifecycleTransitions(t *testing.T) {
	repo := newMemoryRepo()
	repo.stocks[1] = 0
	svc := NewService(repo, nil, nil, ServiceConfig{})
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, CreateOrderInput{PartID: 1, Qty: 1})
	require.NoError(t, err)

	started, err := svc.StartOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, started.Status)

	_, err = svc.StartOrder(ctx, order.ID)
	require.ErrorIs(t, err, ErrInvalidState)

	cancelled, err := svc.CancelOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)

	_, err = svc.CompleteOrder(ctx, order.ID)
	require.ErrorIs(t, err, ErrInvalidState)

	_, err = svc.StartOrder(ctx, 99)
	require.ErrorIs(t, err, ErrOrderNotFound)
}

// Pump stock 8, Seal stock 100, BOM qty 3 per pump. Completing an order of 5
// must leave Pump at 13 and Seal at 85, with exactly two ledger rows.
func TestCompleteOrderCreditsProductAndConsumesComponents(t *testing.T) {
	repo := newMemoryRepo()
	repo.stocks[1] = 8   // Pump
	repo.stocks[2] = 100 // Seal
	repo.lines[1] = []BOMLine{{ComponentID: 2, Qty: 3, Unit: "pcs"}}
	svc := NewService(repo, nil, nil, ServiceConfig{})
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, CreateOrderInput{PartID: 1, Qty: 5})
	require.NoError(t, err)

	completed, err := svc.CompleteOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	require.InDelta(t, 13, repo.stocks[1], 1e-9)
	require.InDelta(t, 85, repo.stocks[2], 1e-9)

	require.Len(t, repo.entries, 2)
	credit := repo.entries[0]
	require.Equal(t, inventory.MovementProduction, credit.Type)
	require.Equal(t, int64(1), credit.PartID)
	require.InDelta(t, 5, credit.Qty, 1e-9)
	require.InDelta(t, 13, credit.BalanceAfter, 1e-9)
	require.Equal(t, order.ID, credit.RefOrderID)

	debit := repo.entries[1]
	require.Equal(t, inventory.MovementConsumption, debit.Type)
	require.Equal(t, int64(2), debit.PartID)
	require.InDelta(t, -15, debit.Qty, 1e-9)
	require.InDelta(t, 85, debit.BalanceAfter, 1e-9)
	require.Equal(t, order.ID, debit.RefOrderID)
}

func TestCompleteOrderTwiceRejected(t *testing.T) {
	repo := newMemoryRepo()
	repo.stocks[1] = 8
	repo.stocks[2] = 100
	repo.lines[1] = []BOMLine{{ComponentID: 2, Qty: 3}}
	svc := NewService(repo, nil, nil, ServiceConfig{})
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, CreateOrderInput{PartID: 1, Qty: 5})
	require.NoError(t, err)

	_, err = svc.CompleteOrder(ctx, order.ID)
	require.NoError(t, err)

	_, err = svc.CompleteOrder(ctx, order.ID)
	require.ErrorIs(t, err, ErrAlreadyCompleted)

	// Stock changed exactly once.
	require.InDelta(t, 13, repo.stocks[1], 1e-9)
	require.InDelta(t, 85, repo.stocks[2], 1e-9)
	require.Len(t, repo.entries, 2)
}

func TestCompleteOrderInsufficientComponentRollsBackEverything(t *testing.T) {
	repo := newMemoryRepo()
	repo.stocks[1] = 8
	repo.stocks[2] = 100
	repo.stocks[3] = 4 // not enough for qty 5 * 1
	repo.lines[1] = []BOMLine{
		{ComponentID: 2, Qty: 3},
		{ComponentID: 3, Qty: 1},
	}
	svc := NewService(repo, nil, nil, ServiceConfig{})
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, CreateOrderInput{PartID: 1, Qty: 5})
	require.NoError(t, err)

	_, err = svc.CompleteOrder(ctx, order.ID)
	var short *inventory.InsufficientStockError
	require.ErrorAs(t, err, &short)
	require.Equal(t, int64(3), short.PartID)
	require.InDelta(t, 1, short.Shortfall, 1e-9)

	// Nothing moved: not the credit, not the first consumption, not the order.
	require.InDelta(t, 8, repo.stocks[1], 1e-9)
	require.InDelta(t, 100, repo.stocks[2], 1e-9)
	require.InDelta(t, 4, repo.stocks[3], 1e-9)
	require.Empty(t, repo.entries)

	current, err := svc.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPlanned, current.Status)
	require.Nil(t, current.CompletedAt)

	// Topping up the short component lets the same order complete.
	repo.stocks[3] = 10
	completed, err := svc.CompleteOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, completed.Status)
	require.Len(t, repo.entries, 3)
}
