package grn

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradepost-erp/tradepost/internal/ledger"
)

// GoodsReceived models a goods-received note header. TotalAmount always
// equals the sum of TotalCost across the note's items after a successful
// operation.
type GoodsReceived struct {
	ID            int64           `json:"id"`
	Number        string          `json:"grnNumber"`
	GRNDate       time.Time       `json:"grnDate"`
	SupplierID    int64           `json:"supplierId"`
	InvoiceNumber string          `json:"invoiceNumber"`
	PONumber      string          `json:"poNumber"`
	PaymentType   string          `json:"paymentType"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	CreatedBy     string          `json:"createdBy"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Item is a GRN line. Its existence contributes Quantity units and TotalCost
// cost basis to its product's ledger; deleting or replacing it subtracts
// exactly that contribution.
type Item struct {
	ID        int64           `json:"id"`
	GRNID     int64           `json:"grnId"`
	ProductID int64           `json:"productId"`
	Quantity  int64           `json:"quantity"`
	CostPrice decimal.Decimal `json:"costPrice"`
	TotalCost decimal.Decimal `json:"totalCost"`
}

// Supplier carries the supplier fields embedded in GRN detail responses.
// Supplier master data itself is owned by the masterdata module.
type Supplier struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// ItemDetail pairs a line item with its product ledger state.
type ItemDetail struct {
	Item
	Product ledger.Product `json:"product"`
}

// Detail aggregates a GRN with supplier and item data for read endpoints.
type Detail struct {
	GoodsReceived
	Supplier Supplier     `json:"supplier"`
	Items    []ItemDetail `json:"items"`
}

// ItemInput describes one requested line.
type ItemInput struct {
	ProductID int64           `json:"productId"`
	Quantity  int64           `json:"quantity"`
	CostPrice decimal.Decimal `json:"costPrice"`
}

// CreateInput describes a GRN creation request.
type CreateInput struct {
	Number         string
	GRNDate        time.Time
	SupplierID     int64
	InvoiceNumber  string
	PONumber       string
	PaymentType    string
	Items          []ItemInput
	IdempotencyKey string
}

// UpdateInput describes a full-replace update: header fields plus the new
// item set that supersedes every existing line.
type UpdateInput struct {
	ID            int64
	GRNDate       time.Time
	SupplierID    int64
	InvoiceNumber string
	PONumber      string
	PaymentType   string
	Items         []ItemInput
}

// AddItemInput describes adding a single line to an existing GRN.
type AddItemInput struct {
	GRNID     int64
	ProductID int64
	Quantity  int64
	CostPrice decimal.Decimal
}

// AddItemResult is returned by AddItem with the recomputed totals.
type AddItemResult struct {
	GrnItem         Item            `json:"grnItem"`
	UpdatedGRN      GoodsReceived   `json:"updatedGrn"`
	Product         ledger.Product  `json:"product"`
	NewTotalAmount  decimal.Decimal `json:"newTotalAmount"`
	TotalItemsCount int             `json:"totalItemsCount"`
}

// RemoveItemResult is returned by RemoveItem with the recomputed totals.
type RemoveItemResult struct {
	RemovedItem         Item            `json:"removedItem"`
	UpdatedGRN          GoodsReceived   `json:"updatedGrn"`
	NewTotalAmount      decimal.Decimal `json:"newTotalAmount"`
	RemainingItemsCount int             `json:"remainingItemsCount"`
}

// ListFilter narrows GRN listings.
type ListFilter struct {
	SupplierID int64
	From       time.Time
	To         time.Time
	Page       int
	PerPage    int
}

// ErrNotFound indicates a missing GRN.
var ErrNotFound = errors.New("grn: not found")

// ErrItemNotFound indicates a missing line item.
var ErrItemNotFound = errors.New("grn: item not found")

// ErrNoItems indicates a create/update without line items.
var ErrNoItems = errors.New("grn: at least one item is required")

// ErrInvalidItem indicates a line with a missing product, non-positive
// quantity or non-positive cost price.
var ErrInvalidItem = errors.New("grn: each item requires a product, a positive quantity and a positive cost price")

// ErrSupplierRequired indicates a missing supplier reference.
var ErrSupplierRequired = errors.New("grn: supplier is required")

// ErrDuplicateItem indicates the product already has a line in this GRN.
var ErrDuplicateItem = errors.New("grn: product already exists in this GRN")

// InsufficientStockError reports a removal that would drive the ledger
// negative. It carries both quantities so the caller can resolve the conflict
// without a follow-up lookup.
type InsufficientStockError struct {
	ProductName string
	Available   int64
	Required    int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Cannot remove item from GRN. Available quantity (%d) is less than GRN quantity (%d) for product: %s",
		e.Available, e.Required, e.ProductName)
}
