package inventory

import (
	"context"
	"strconv"

	"github.com/forgeline-erp/forgeline-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListForPart(ctx context.Context, partID int64, limit int) ([]Transaction, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort receives domain metrics.
type MetricsPort interface {
	ObserveMovement(txType string)
}

// Service coordinates ledger operations.
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

// Record applies one signed stock movement and appends the matching ledger row
// in a single transaction. On rejection neither stock nor ledger change.
func (s *Service) Record(ctx context.Context, m Movement) (Transaction, error) {
	if m.ActorID == 0 {
		m.ActorID = shared.ActorFromContext(ctx)
	}
	var entry Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = ApplyMovement(ctx, tx, m, s.allowNeg)
		return err
	})
	if err != nil {
		return Transaction{}, err
	}
	if s.metrics != nil {
		s.metrics.ObserveMovement(string(m.Type))
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  m.ActorID,
			Action:   "inventory:" + string(m.Type),
			Entity:   "inventory_tx",
			EntityID: strconv.FormatInt(entry.ID, 10),
			Meta: map[string]any{
				"part_id":       m.PartID,
				"qty":           m.Qty,
				"balance_after": entry.BalanceAfter,
				"ref_order_id":  m.RefOrderID,
			},
		})
	}
	return entry, nil
}

// ListForPart returns the ledger trail for one part.
func (s *Service) ListForPart(ctx context.Context, partID int64, limit int) ([]Transaction, error) {
	return s.repo.ListForPart(ctx, partID, limit)
}
