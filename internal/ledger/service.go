package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/tradepost-erp/tradepost/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetProduct(ctx context.Context, id int64) (Product, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CostCachePort caches derived unit costs per product.
type CostCachePort interface {
	GetUnitCost(ctx context.Context, productID int64) (decimal.Decimal, bool, error)
	SetUnitCost(ctx context.Context, productID int64, cost decimal.Decimal) error
	Invalidate(ctx context.Context, productID int64) error
}

// MetricsPort records ledger level counters.
type MetricsPort interface {
	RecordLedgerAdjustment()
}

// Service owns direct ledger adjustments and derived unit-cost reads.
type Service struct {
	repo      RepositoryPort
	audit     AuditPort
	cache     CostCachePort
	metrics   MetricsPort
	costGroup singleflight.Group
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, cache CostCachePort, metrics MetricsPort) *Service {
	return &Service{repo: repo, audit: audit, cache: cache, metrics: metrics}
}

// Adjust applies a direct inventory adjustment: the manual override valve.
// Deltas clamp at zero and never fail on insufficiency. Everything runs in one
// transaction with the product row locked for update.
func (s *Service) Adjust(ctx context.Context, input AdjustInput) (Product, Change, error) {
	if input.ProductID == 0 {
		return Product{}, Change{}, ErrProductRequired
	}
	var (
		updated Product
		change  Change
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		product, err := tx.GetProductForUpdate(ctx, input.ProductID)
		if err != nil {
			return err
		}
		newQty, newCost := Apply(product.AvailableQty, product.TotalCost, input.QuantityChange, input.TotalCostChange)
		if err := tx.UpdateStock(ctx, product.ID, newQty, newCost); err != nil {
			return err
		}
		change = Change{
			QuantityChange:  input.QuantityChange,
			TotalCostChange: input.TotalCostChange,
			OldQuantity:     product.AvailableQty,
			NewQuantity:     newQty,
			OldTotalCost:    product.TotalCost,
			NewTotalCost:    newCost,
		}
		product.AvailableQty = newQty
		product.TotalCost = newCost
		updated = product
		return nil
	})
	if err != nil {
		return Product{}, Change{}, err
	}
	s.afterLedgerWrite(ctx, updated.ID)
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   "ledger:adjust",
			Entity:   "product",
			EntityID: fmt.Sprintf("%d", updated.ID),
			Meta: map[string]any{
				"quantity_change":   input.QuantityChange,
				"total_cost_change": input.TotalCostChange.String(),
				"new_quantity":      updated.AvailableQty,
				"new_total_cost":    updated.TotalCost.String(),
			},
		})
	}
	return updated, change, nil
}

// GetProduct loads a product ledger row.
func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	if id == 0 {
		return Product{}, ErrProductRequired
	}
	return s.repo.GetProduct(ctx, id)
}

// ProductUnitCost reports the derived per-unit cost price for a product.
// Cache misses are deduplicated so concurrent readers trigger one load.
func (s *Service) ProductUnitCost(ctx context.Context, productID int64) (decimal.Decimal, error) {
	if productID == 0 {
		return decimal.Zero, ErrProductRequired
	}
	if s.cache != nil {
		if cost, ok, err := s.cache.GetUnitCost(ctx, productID); err == nil && ok {
			return cost, nil
		}
	}
	result, err, _ := s.costGroup.Do(fmt.Sprintf("unitcost:%d", productID), func() (any, error) {
		product, err := s.repo.GetProduct(ctx, productID)
		if err != nil {
			return decimal.Zero, err
		}
		cost := UnitCost(product.AvailableQty, product.TotalCost)
		if s.cache != nil {
			_ = s.cache.SetUnitCost(ctx, productID, cost)
		}
		return cost, nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return result.(decimal.Decimal), nil
}

// InvalidateCost drops any cached unit cost for the product. GRN operations
// call this after committing ledger writes of their own.
func (s *Service) InvalidateCost(ctx context.Context, productID int64) {
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, productID)
	}
}

func (s *Service) afterLedgerWrite(ctx context.Context, productID int64) {
	s.InvalidateCost(ctx, productID)
	if s.metrics != nil {
		s.metrics.RecordLedgerAdjustment()
	}
}
