package bom

import (
	"errors"
	"time"

	"github.com/forgeline-erp/forgeline-erp/internal/parts"
)

// Edge links a parent part to one of its components with the quantity consumed
// per parent unit. Endpoints are immutable after creation.
type Edge struct {
	ID          int64     `json:"id"`
	ParentID    int64     `json:"parent_id"`
	ComponentID int64     `json:"component_id"`
	Qty         float64   `json:"qty"`
	Unit        string    `json:"unit"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PartSnapshot is the component catalog data embedded in expansion results.
type PartSnapshot struct {
	ID     int64          `json:"id"`
	Number string         `json:"number"`
	Name   string         `json:"name"`
	Type   parts.PartType `json:"type"`
	Stock  float64        `json:"stock"`
	Unit   string         `json:"unit"`
}

// EdgeView is one expanded edge: the component snapshot plus the edge's own
// quantity for one parent unit. Quantities are never pre-multiplied across
// levels; each level reports its local quantity.
type EdgeView struct {
	EdgeID   int64        `json:"edge_id"`
	Qty      float64      `json:"qty"`
	Unit     string       `json:"unit"`
	Part     PartSnapshot `json:"part"`
	Children []EdgeView   `json:"children,omitempty"`
}

// Tree is a full expansion result. Truncated is set when expansion hit a part
// repeated on its own path, which only happens over corrupted graph data.
type Tree struct {
	Part       PartSnapshot `json:"part"`
	Components []EdgeView   `json:"components"`
	Truncated  bool         `json:"truncated,omitempty"`
}

// BulkItem is one requested edge in a bulk import.
type BulkItem struct {
	ComponentID int64   `json:"component_id"`
	Qty         float64 `json:"qty"`
	Unit        string  `json:"unit"`
}

// BulkFailure records one rejected bulk item with a machine readable reason.
type BulkFailure struct {
	ComponentID int64  `json:"component_id"`
	Reason      string `json:"reason"`
}

// BulkResult reports partial success of a bulk import.
type BulkResult struct {
	Added  []Edge        `json:"added"`
	Failed []BulkFailure `json:"failed"`
}

// Bulk failure reasons.
const (
	ReasonCyclic          = "CYCLIC"
	ReasonAlreadyExists   = "ALREADY_EXISTS"
	ReasonInvalidQuantity = "INVALID_QUANTITY"
	ReasonSelfReference   = "SELF_REFERENCE"
	ReasonPartNotFound    = "PART_NOT_FOUND"
	reasonInternal        = "INTERNAL"
)

var (
	// ErrEdgeNotFound indicates a missing edge.
	ErrEdgeNotFound = errors.New("bom: edge not found")
	// ErrEdgeExists indicates a duplicate (parent, component) pair.
	ErrEdgeExists = errors.New("bom: edge already exists")
	// ErrCyclic indicates the edge would close a loop in the graph.
	ErrCyclic = errors.New("bom: edge would create a cycle")
	// ErrSelfReference indicates parent and component are the same part.
	ErrSelfReference = errors.New("bom: part cannot contain itself")
	// ErrInvalidQuantity indicates a non-positive quantity.
	ErrInvalidQuantity = errors.New("bom: quantity must be positive")
	// ErrPartNotFound indicates a referenced part does not exist.
	ErrPartNotFound = errors.New("bom: part not found")
)

// reasonFor maps edge insertion errors to bulk failure reasons.
func reasonFor(err error) string {
	switch {
	case errors.Is(err, ErrCyclic):
		return ReasonCyclic
	case errors.Is(err, ErrEdgeExists):
		return ReasonAlreadyExists
	case errors.Is(err, ErrInvalidQuantity):
		return ReasonInvalidQuantity
	case errors.Is(err, ErrSelfReference):
		return ReasonSelfReference
	case errors.Is(err, ErrPartNotFound):
		return ReasonPartNotFound
	}
	return reasonInternal
}
