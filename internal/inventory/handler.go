package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/forgeline-erp/forgeline-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the inventory ledger.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/movements", h.record)
	r.Get("/parts/{id}/ledger", h.ledger)
}

type movementForm struct {
	PartID     int64   `json:"part_id" validate:"required,gt=0"`
	Type       string  `json:"type" validate:"required,oneof=IN OUT ADJUSTMENT PRODUCTION CONSUMPTION"`
	Qty        float64 `json:"qty" validate:"required"`
	Note       string  `json:"note"`
	RefOrderID int64   `json:"ref_order_id" validate:"gte=0"`
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) {
	var form movementForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry, err := h.service.Record(r.Context(), Movement{
		PartID:     form.PartID,
		Type:       MovementType(form.Type),
		Qty:        form.Qty,
		Note:       form.Note,
		RefOrderID: form.RefOrderID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

type ledgerResponse struct {
	Entries []Transaction `json:"entries"`
}

func (h *Handler) ledger(w http.ResponseWriter, r *http.Request) {
	partID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid part id")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.service.ListForPart(r.Context(), partID, limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if entries == nil {
		entries = []Transaction{}
	}
	httpx.JSON(w, http.StatusOK, ledgerResponse{Entries: entries})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var short *InsufficientStockError
	switch {
	case errors.Is(err, ErrPartNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.As(err, &short):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Insufficient Stock", err.Error())
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidMovementType):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("inventory request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
