package parts

import (
	"errors"
	"time"
)

// PartType classifies catalog entries. The type is advisory for BOM expansion
// (only assembly-like parts are expanded) and never enforced by the graph.
type PartType string

const (
	TypeRawMaterial PartType = "RAW_MATERIAL"
	TypeComponent   PartType = "COMPONENT"
	TypeAssembly    PartType = "ASSEMBLY"
	TypeProduct     PartType = "PRODUCT"
)

// Valid reports whether the type is one of the known classifications.
func (t PartType) Valid() bool {
	switch t {
	case TypeRawMaterial, TypeComponent, TypeAssembly, TypeProduct:
		return true
	}
	return false
}

// Expandable reports whether BOM expansion should descend into parts of this type.
func (t PartType) Expandable() bool {
	return t == TypeAssembly || t == TypeProduct
}

// Part represents a catalog entry.
type Part struct {
	ID           int64     `json:"id"`
	Number       string    `json:"number"`
	Name         string    `json:"name"`
	Type         PartType  `json:"type"`
	Stock        float64   `json:"stock"`
	Unit         string    `json:"unit"`
	ReorderLevel float64   `json:"reorder_level"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ListFilters narrows catalog listings.
type ListFilters struct {
	Search  string
	Type    PartType
	Page    int
	Limit   int
	SortBy  string
	SortDir string
}

var (
	// ErrNotFound indicates a missing part.
	ErrNotFound = errors.New("parts: not found")
	// ErrNumberTaken indicates a duplicate part number.
	ErrNumberTaken = errors.New("parts: part number already in use")
	// ErrInUse indicates the part is referenced by BOM edges or open orders.
	ErrInUse = errors.New("parts: part is referenced and cannot be deleted")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("parts: invalid input")
)
