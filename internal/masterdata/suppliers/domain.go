// Package suppliers owns supplier master data referenced by goods received
// notes.
package suppliers

import (
	"errors"
	"time"
)

// Supplier represents a supplier entity.
type Supplier struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	ContactName string    `json:"contactName"`
	Phone       string    `json:"phone"`
	Email       string    `json:"email"`
	Address     string    `json:"address"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ListFilter narrows supplier listings.
type ListFilter struct {
	Search     string
	ActiveOnly bool
	Page       int
	PerPage    int
}

var (
	// ErrNotFound indicates a missing supplier.
	ErrNotFound = errors.New("suppliers: not found")
	// ErrInUse indicates the supplier is referenced by GRNs.
	ErrInUse = errors.New("suppliers: referenced by goods received notes")
	// ErrInvalid indicates missing required fields.
	ErrInvalid = errors.New("suppliers: name is required")
)
