package bom

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/forgeline-erp/forgeline-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the BOM graph.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the BOM handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers BOM routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{parentID}/edges", h.list)
	r.Post("/{parentID}/edges", h.add)
	r.Post("/{parentID}/edges/bulk", h.bulk)
	r.Get("/{partID}/tree", h.tree)
	r.Patch("/edges/{id}", h.update)
	r.Delete("/edges/{id}", h.remove)
}

type edgeForm struct {
	ComponentID int64   `json:"component_id" validate:"required,gt=0"`
	Qty         float64 `json:"qty" validate:"required,gt=0"`
	Unit        string  `json:"unit"`
}

type bulkForm struct {
	Items []edgeForm `json:"items" validate:"required,min=1,dive"`
}

type updateForm struct {
	Qty  *float64 `json:"qty" validate:"omitempty,gt=0"`
	Unit *string  `json:"unit"`
}

type edgesResponse struct {
	Edges []EdgeView `json:"edges"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	parentID, ok := h.pathID(w, r, "parentID")
	if !ok {
		return
	}
	views, err := h.service.EdgesFor(r.Context(), parentID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if views == nil {
		views = []EdgeView{}
	}
	httpx.JSON(w, http.StatusOK, edgesResponse{Edges: views})
}

func (h *Handler) add(w http.ResponseWriter, r *http.Request) {
	parentID, ok := h.pathID(w, r, "parentID")
	if !ok {
		return
	}
	var form edgeForm
	if !h.decode(w, r, &form) {
		return
	}
	edge, err := h.service.AddEdge(r.Context(), parentID, form.ComponentID, form.Qty, form.Unit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, edge)
}

func (h *Handler) bulk(w http.ResponseWriter, r *http.Request) {
	parentID, ok := h.pathID(w, r, "parentID")
	if !ok {
		return
	}
	var form bulkForm
	if !h.decode(w, r, &form) {
		return
	}
	items := make([]BulkItem, 0, len(form.Items))
	for _, item := range form.Items {
		items = append(items, BulkItem{ComponentID: item.ComponentID, Qty: item.Qty, Unit: item.Unit})
	}
	result, err := h.service.BulkAddEdges(r.Context(), parentID, items)
	if err != nil {
		h.respondError(w, err)
		return
	}
	status := http.StatusCreated
	if len(result.Added) == 0 {
		status = http.StatusUnprocessableEntity
	}
	httpx.JSON(w, status, result)
}

func (h *Handler) tree(w http.ResponseWriter, r *http.Request) {
	partID, ok := h.pathID(w, r, "partID")
	if !ok {
		return
	}
	recursive := r.URL.Query().Get("recursive") == "true"
	tree, err := h.service.Expand(r.Context(), partID, recursive)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if tree.Truncated {
		h.logger.Warn("bom expansion truncated, stored graph contains a cycle", slog.Int64("part_id", partID))
	}
	httpx.JSON(w, http.StatusOK, tree)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	edgeID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var form updateForm
	if !h.decode(w, r, &form) {
		return
	}
	edge, err := h.service.UpdateEdge(r.Context(), edgeID, UpdateEdgeInput{Qty: form.Qty, Unit: form.Unit})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, edge)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	edgeID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.RemoveEdge(r.Context(), edgeID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid "+name)
		return 0, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, form any) bool {
	if err := httpx.DecodeJSON(r, form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return false
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrPartNotFound), errors.Is(err, ErrEdgeNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrEdgeExists):
		httpx.Problem(w, http.StatusConflict, "Duplicate Edge", err.Error())
	case errors.Is(err, ErrCyclic):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Cyclic Dependency", err.Error())
	case errors.Is(err, ErrSelfReference), errors.Is(err, ErrInvalidQuantity):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("bom request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
