// Package products owns product master data. Ledger quantities live on the
// same rows but are only mutated through the ledger and GRN flows; this
// package touches them solely when seeding a product's opening balance.
package products

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/tradepost-erp/tradepost/internal/ledger"
)

// CreateInput describes a new product. OpeningQty and OpeningCost seed the
// ledger pair and default to zero.
type CreateInput struct {
	Code        string
	Name        string
	OpeningQty  int64
	OpeningCost decimal.Decimal
}

// UpdateInput updates descriptive fields only.
type UpdateInput struct {
	ID       int64
	Code     string
	Name     string
	IsActive bool
}

// ListFilter narrows product listings.
type ListFilter struct {
	Search     string
	ActiveOnly bool
	Page       int
	PerPage    int
}

// Product aliases the ledger read model so both packages share one wire shape.
type Product = ledger.Product

var (
	// ErrNotFound indicates a missing product.
	ErrNotFound = errors.New("products: not found")
	// ErrCodeTaken indicates a duplicate product code.
	ErrCodeTaken = errors.New("products: code already in use")
	// ErrInUse indicates the product is referenced by GRN items.
	ErrInUse = errors.New("products: referenced by goods received notes")
	// ErrInvalid indicates missing or malformed fields.
	ErrInvalid = errors.New("products: code and name are required and opening values must be non-negative")
)
