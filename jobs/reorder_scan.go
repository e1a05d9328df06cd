package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/forgeline-erp/forgeline-erp/internal/parts"
	"github.com/forgeline-erp/forgeline-erp/internal/shared"
)

// PartsLister is the catalog read the reorder scan needs.
type PartsLister interface {
	ListBelowReorder(ctx context.Context) ([]parts.Part, error)
}

// ReorderScanner flags parts whose stock has fallen to the reorder level.
type ReorderScanner struct {
	parts  PartsLister
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewReorderScanner constructs ReorderScanner.
func NewReorderScanner(lister PartsLister, audit *shared.AuditLogger, logger *slog.Logger) *ReorderScanner {
	return &ReorderScanner{parts: lister, audit: audit, logger: logger}
}

// Handle processes TaskTypeReorderScan tasks.
func (s *ReorderScanner) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ReorderScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	low, err := s.parts.ListBelowReorder(ctx)
	if err != nil {
		return err
	}
	for _, part := range low {
		s.logger.Warn("part at or below reorder level",
			slog.Int64("part_id", part.ID),
			slog.String("number", part.Number),
			slog.Float64("stock", part.Stock),
			slog.Float64("reorder_level", part.ReorderLevel))
	}
	if len(low) > 0 && s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   "jobs:reorder_scan",
			Entity:   "parts",
			EntityID: "reorder_scan",
			Meta:     map[string]any{"low_stock_count": len(low)},
		})
	}
	s.logger.Info("reorder scan finished", slog.Int("low_stock_count", len(low)))
	return nil
}
