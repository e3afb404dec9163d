package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Product models the per-product stock ledger: units on hand plus the
// cumulative cost basis of those units. TotalCost is a running total, not a
// per-unit price; the unit cost is always derived via UnitCost.
type Product struct {
	ID           int64           `json:"id"`
	Code         string          `json:"productCode"`
	Name         string          `json:"itemName"`
	AvailableQty int64           `json:"availableQty"`
	TotalCost    decimal.Decimal `json:"totalCost"`
	IsActive     bool            `json:"isActive"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// AdjustInput describes a direct ledger adjustment request.
type AdjustInput struct {
	ProductID       int64
	QuantityChange  int64
	TotalCostChange decimal.Decimal
}

// Change reports a ledger mutation with before and after values.
type Change struct {
	QuantityChange  int64           `json:"quantityChange"`
	TotalCostChange decimal.Decimal `json:"totalCostChange"`
	OldQuantity     int64           `json:"oldQuantity"`
	NewQuantity     int64           `json:"newQuantity"`
	OldTotalCost    decimal.Decimal `json:"oldTotalCost"`
	NewTotalCost    decimal.Decimal `json:"newTotalCost"`
}

// ErrProductNotFound indicates a missing product row.
var ErrProductNotFound = errors.New("ledger: product not found")

// ErrProductRequired indicates a missing product reference on input.
var ErrProductRequired = errors.New("ledger: product id required")

// Apply returns the ledger state after a signed delta. Both fields floor at
// zero rather than failing; callers that must surface a shortage check
// sufficiency before applying, so inside a correct flow the clamp is never
// exercised.
func Apply(qty int64, cost decimal.Decimal, qtyDelta int64, costDelta decimal.Decimal) (int64, decimal.Decimal) {
	newQty := qty + qtyDelta
	if newQty < 0 {
		newQty = 0
	}
	newCost := cost.Add(costDelta)
	if newCost.IsNegative() {
		newCost = decimal.Zero
	}
	return newQty, newCost
}

// UnitCost derives the per-unit cost price: totalCost divided by availableQty
// rounded half-up to two decimal places, zero when nothing is on hand.
func UnitCost(qty int64, totalCost decimal.Decimal) decimal.Decimal {
	if qty <= 0 {
		return decimal.Zero
	}
	return totalCost.DivRound(decimal.NewFromInt(qty), 2)
}
