package parts

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/forgeline-erp/forgeline-erp/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates catalog operations.
type Service struct {
	repo  Repository
	audit AuditPort
}

// NewService builds Service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Part, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Part, error) {
	if id <= 0 {
		return Part{}, fmt.Errorf("%w: invalid part id", ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) GetByNumber(ctx context.Context, number string) (Part, error) {
	if strings.TrimSpace(number) == "" {
		return Part{}, fmt.Errorf("%w: part number required", ErrValidation)
	}
	return s.repo.GetByNumber(ctx, number)
}

func (s *Service) Create(ctx context.Context, part Part) (Part, error) {
	if err := validate(part); err != nil {
		return Part{}, err
	}
	created, err := s.repo.Create(ctx, part)
	if err != nil {
		return Part{}, err
	}
	s.recordAudit(ctx, "PART_CREATE", created.ID, map[string]any{"number": created.Number})
	return created, nil
}

// Update changes catalog attributes. Stock is excluded on purpose: every stock
// mutation must flow through the inventory ledger.
func (s *Service) Update(ctx context.Context, id int64, part Part) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid part id", ErrValidation)
	}
	if err := validate(part); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, id, part); err != nil {
		return err
	}
	s.recordAudit(ctx, "PART_UPDATE", id, map[string]any{"number": part.Number})
	return nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid part id", ErrValidation)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, "PART_DELETE", id, nil)
	return nil
}

// ListBelowReorder returns parts whose stock has fallen to the reorder level.
func (s *Service) ListBelowReorder(ctx context.Context) ([]Part, error) {
	return s.repo.ListBelowReorder(ctx)
}

func validate(part Part) error {
	if strings.TrimSpace(part.Number) == "" {
		return fmt.Errorf("%w: part number required", ErrValidation)
	}
	if strings.TrimSpace(part.Name) == "" {
		return fmt.Errorf("%w: part name required", ErrValidation)
	}
	if !part.Type.Valid() {
		return fmt.Errorf("%w: unknown part type %q", ErrValidation, part.Type)
	}
	if part.Stock < 0 {
		return fmt.Errorf("%w: stock must not be negative", ErrValidation)
	}
	if part.ReorderLevel < 0 {
		return fmt.Errorf("%w: reorder level must not be negative", ErrValidation)
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, action string, partID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "part",
		EntityID: strconv.FormatInt(partID, 10),
		Meta:     meta,
	})
}
