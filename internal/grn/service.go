package grn

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradepost-erp/tradepost/internal/ledger"
	"github.com/tradepost-erp/tradepost/internal/shared"
)

// RepositoryPort describes repository operations used by the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetGRN(ctx context.Context, id int64) (GoodsReceived, error)
	GetDetail(ctx context.Context, id int64) (Detail, error)
	List(ctx context.Context, filter ListFilter) ([]GoodsReceived, int, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CostInvalidator drops cached unit costs after ledger writes.
type CostInvalidator interface {
	InvalidateCost(ctx context.Context, productID int64)
}

// MetricsPort records GRN operation counters.
type MetricsPort interface {
	RecordGRNOperation(op string)
}

// Service is the inventory adjustment engine: the only component allowed to
// mutate product ledger state as a side effect of GRN operations. Every
// operation is one atomic transaction; ledger and GRN totals never observably
// diverge.
type Service struct {
	repo    RepositoryPort
	audit   AuditPort
	costs   CostInvalidator
	metrics MetricsPort
}

// NewService constructs the engine.
func NewService(repo RepositoryPort, audit AuditPort, costs CostInvalidator, metrics MetricsPort) *Service {
	return &Service{repo: repo, audit: audit, costs: costs, metrics: metrics}
}

func validateItems(items []ItemInput) error {
	if len(items) == 0 {
		return ErrNoItems
	}
	seen := make(map[int64]struct{}, len(items))
	for _, item := range items {
		if item.ProductID == 0 || item.Quantity <= 0 || !item.CostPrice.IsPositive() {
			return ErrInvalidItem
		}
		if _, dup := seen[item.ProductID]; dup {
			return ErrDuplicateItem
		}
		seen[item.ProductID] = struct{}{}
	}
	return nil
}

func sumItems(items []ItemInput) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.CostPrice.Mul(decimal.NewFromInt(item.Quantity)))
	}
	return total
}

// sortedByProduct returns a copy ordered by product id. Ledger rows are
// locked in this order so concurrent operations touching the same products
// cannot deadlock.
func sortedByProduct(items []ItemInput) []ItemInput {
	out := append([]ItemInput(nil), items...)
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

// adjustProduct locks the product row, applies the clamped delta and persists
// the new pair. The clamp is a last-resort guard; reversal paths validate
// sufficiency before calling this.
func adjustProduct(ctx context.Context, tx TxRepository, productID, qtyDelta int64, costDelta decimal.Decimal) (ledger.Product, error) {
	product, err := tx.GetProductForUpdate(ctx, productID)
	if err != nil {
		return ledger.Product{}, err
	}
	newQty, newCost := ledger.Apply(product.AvailableQty, product.TotalCost, qtyDelta, costDelta)
	if err := tx.UpdateProductStock(ctx, product.ID, newQty, newCost); err != nil {
		return ledger.Product{}, err
	}
	product.AvailableQty = newQty
	product.TotalCost = newCost
	return product, nil
}

// Create validates and persists a GRN with its items, applying every line's
// contribution to the product ledger inside one transaction.
func (s *Service) Create(ctx context.Context, input CreateInput) (GoodsReceived, []Item, error) {
	if input.SupplierID == 0 {
		return GoodsReceived{}, nil, ErrSupplierRequired
	}
	if err := validateItems(input.Items); err != nil {
		return GoodsReceived{}, nil, err
	}

	number := input.Number
	if number == "" {
		number = fmt.Sprintf("GRN-%s", uuid.NewString()[:8])
	}
	grnDate := input.GRNDate
	if grnDate.IsZero() {
		grnDate = time.Now().UTC()
	}

	header := GoodsReceived{
		Number:        number,
		GRNDate:       grnDate,
		SupplierID:    input.SupplierID,
		InvoiceNumber: input.InvoiceNumber,
		PONumber:      input.PONumber,
		PaymentType:   input.PaymentType,
		TotalAmount:   sumItems(input.Items),
		CreatedBy:     shared.ActorFromContext(ctx),
	}

	var items []Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		// The key is claimed inside the transaction: an aborted create
		// releases it, so a retry with the same key is not locked out.
		if input.IdempotencyKey != "" {
			if err := tx.InsertIdempotencyKey(ctx, "grn:create:"+input.IdempotencyKey, "grn"); err != nil {
				return err
			}
		}
		grnID, err := tx.InsertGRN(ctx, header)
		if err != nil {
			return err
		}
		header.ID = grnID
		for _, line := range sortedByProduct(input.Items) {
			item := Item{
				GRNID:     grnID,
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				CostPrice: line.CostPrice,
				TotalCost: line.CostPrice.Mul(decimal.NewFromInt(line.Quantity)),
			}
			itemID, err := tx.InsertItem(ctx, item)
			if err != nil {
				return err
			}
			item.ID = itemID
			if _, err := adjustProduct(ctx, tx, line.ProductID, line.Quantity, item.TotalCost); err != nil {
				return err
			}
			items = append(items, item)
		}
		return nil
	})
	if err != nil {
		return GoodsReceived{}, nil, err
	}

	s.afterMutation(ctx, "create", header, productIDs(input.Items))
	return header, items, nil
}

// Update replaces a GRN's header fields and entire item set. Existing
// contributions are reversed, items deleted, then the new set applied, all in
// one transaction so a mid-flight failure is never observable.
func (s *Service) Update(ctx context.Context, input UpdateInput) (GoodsReceived, error) {
	if input.ID == 0 {
		return GoodsReceived{}, ErrNotFound
	}
	if input.SupplierID == 0 {
		return GoodsReceived{}, ErrSupplierRequired
	}
	if err := validateItems(input.Items); err != nil {
		return GoodsReceived{}, err
	}

	var (
		updated  GoodsReceived
		affected []int64
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.GetGRNForUpdate(ctx, input.ID)
		if err != nil {
			return err
		}
		current, err := tx.ListItems(ctx, input.ID)
		if err != nil {
			return err
		}
		sort.Slice(current, func(i, j int) bool { return current[i].ProductID < current[j].ProductID })
		for _, item := range current {
			if _, err := adjustProduct(ctx, tx, item.ProductID, -item.Quantity, item.TotalCost.Neg()); err != nil {
				return err
			}
			affected = append(affected, item.ProductID)
		}
		if err := tx.DeleteItems(ctx, input.ID); err != nil {
			return err
		}

		grnDate := input.GRNDate
		if grnDate.IsZero() {
			grnDate = existing.GRNDate
		}
		updated = existing
		updated.GRNDate = grnDate
		updated.SupplierID = input.SupplierID
		updated.InvoiceNumber = input.InvoiceNumber
		updated.PONumber = input.PONumber
		updated.PaymentType = input.PaymentType
		updated.TotalAmount = sumItems(input.Items)
		if err := tx.UpdateGRNHeader(ctx, updated); err != nil {
			return err
		}

		for _, line := range sortedByProduct(input.Items) {
			item := Item{
				GRNID:     input.ID,
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				CostPrice: line.CostPrice,
				TotalCost: line.CostPrice.Mul(decimal.NewFromInt(line.Quantity)),
			}
			if _, err := tx.InsertItem(ctx, item); err != nil {
				return err
			}
			if _, err := adjustProduct(ctx, tx, line.ProductID, line.Quantity, item.TotalCost); err != nil {
				return err
			}
			affected = append(affected, line.ProductID)
		}
		return nil
	})
	if err != nil {
		return GoodsReceived{}, err
	}

	s.afterMutation(ctx, "update", updated, affected)
	return updated, nil
}

// Delete reverses every item's ledger contribution, removes the items, then
// the header. Deleting rows alone would not undo ledger effects, so reversal
// always runs first.
func (s *Service) Delete(ctx context.Context, id int64) error {
	var (
		deleted  GoodsReceived
		affected []int64
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.GetGRNForUpdate(ctx, id)
		if err != nil {
			return err
		}
		deleted = existing
		items, err := tx.ListItems(ctx, id)
		if err != nil {
			return err
		}
		sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
		for _, item := range items {
			if _, err := adjustProduct(ctx, tx, item.ProductID, -item.Quantity, item.TotalCost.Neg()); err != nil {
				return err
			}
			affected = append(affected, item.ProductID)
		}
		if err := tx.DeleteItems(ctx, id); err != nil {
			return err
		}
		return tx.DeleteGRN(ctx, id)
	})
	if err != nil {
		return err
	}

	s.afterMutation(ctx, "delete", deleted, affected)
	return nil
}

// AddItem appends one line to an existing GRN. A second line for the same
// product is rejected; callers increase quantity through the update flow.
func (s *Service) AddItem(ctx context.Context, input AddItemInput) (AddItemResult, error) {
	if input.GRNID == 0 {
		return AddItemResult{}, ErrNotFound
	}
	if input.ProductID == 0 || input.Quantity <= 0 || !input.CostPrice.IsPositive() {
		return AddItemResult{}, ErrInvalidItem
	}

	var result AddItemResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		header, err := tx.GetGRNForUpdate(ctx, input.GRNID)
		if err != nil {
			return err
		}
		if _, err := tx.FindItem(ctx, input.GRNID, input.ProductID); err == nil {
			return ErrDuplicateItem
		} else if !errors.Is(err, ErrItemNotFound) {
			return err
		}

		item := Item{
			GRNID:     input.GRNID,
			ProductID: input.ProductID,
			Quantity:  input.Quantity,
			CostPrice: input.CostPrice,
			TotalCost: input.CostPrice.Mul(decimal.NewFromInt(input.Quantity)),
		}
		itemID, err := tx.InsertItem(ctx, item)
		if err != nil {
			return err
		}
		item.ID = itemID

		product, err := adjustProduct(ctx, tx, input.ProductID, input.Quantity, item.TotalCost)
		if err != nil {
			return err
		}

		// Re-read the total from the database rather than trusting an
		// incremental figure.
		total, count, err := tx.SumItems(ctx, input.GRNID)
		if err != nil {
			return err
		}
		if err := tx.SetTotalAmount(ctx, input.GRNID, total); err != nil {
			return err
		}
		header.TotalAmount = total
		result = AddItemResult{
			GrnItem:         item,
			UpdatedGRN:      header,
			Product:         product,
			NewTotalAmount:  total,
			TotalItemsCount: count,
		}
		return nil
	})
	if err != nil {
		return AddItemResult{}, err
	}

	s.afterMutation(ctx, "add_item", result.UpdatedGRN, []int64{input.ProductID})
	return result, nil
}

// RemoveItem deletes one line and reverses its contribution. Removing a batch
// that has already been partially consumed cannot be reversed without going
// negative; that case is surfaced as InsufficientStockError, never clamped.
func (s *Service) RemoveItem(ctx context.Context, grnID, productID int64) (RemoveItemResult, error) {
	if grnID == 0 || productID == 0 {
		return RemoveItemResult{}, ErrItemNotFound
	}

	var result RemoveItemResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		header, err := tx.GetGRNForUpdate(ctx, grnID)
		if err != nil {
			return err
		}
		item, err := tx.FindItem(ctx, grnID, productID)
		if err != nil {
			return err
		}
		product, err := tx.GetProductForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if product.AvailableQty < item.Quantity {
			return &InsufficientStockError{
				ProductName: product.Name,
				Available:   product.AvailableQty,
				Required:    item.Quantity,
			}
		}
		newQty, newCost := ledger.Apply(product.AvailableQty, product.TotalCost, -item.Quantity, item.TotalCost.Neg())
		if err := tx.UpdateProductStock(ctx, product.ID, newQty, newCost); err != nil {
			return err
		}
		if err := tx.DeleteItem(ctx, item.ID); err != nil {
			return err
		}
		total, count, err := tx.SumItems(ctx, grnID)
		if err != nil {
			return err
		}
		if err := tx.SetTotalAmount(ctx, grnID, total); err != nil {
			return err
		}
		header.TotalAmount = total
		result = RemoveItemResult{
			RemovedItem:         item,
			UpdatedGRN:          header,
			NewTotalAmount:      total,
			RemainingItemsCount: count,
		}
		return nil
	})
	if err != nil {
		return RemoveItemResult{}, err
	}

	s.afterMutation(ctx, "remove_item", result.UpdatedGRN, []int64{productID})
	return result, nil
}

// Get loads a GRN with supplier, items and product data.
func (s *Service) Get(ctx context.Context, id int64) (Detail, error) {
	return s.repo.GetDetail(ctx, id)
}

// List returns GRN headers matching the filter plus the total match count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]GoodsReceived, int, error) {
	return s.repo.List(ctx, filter)
}

func productIDs(items []ItemInput) []int64 {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

func (s *Service) afterMutation(ctx context.Context, op string, header GoodsReceived, products []int64) {
	if s.costs != nil {
		for _, id := range products {
			s.costs.InvalidateCost(ctx, id)
		}
	}
	if s.metrics != nil {
		s.metrics.RecordGRNOperation(op)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   "grn:" + op,
			Entity:   "grn",
			EntityID: fmt.Sprintf("%d", header.ID),
			Meta: map[string]any{
				"number":       header.Number,
				"supplier_id":  header.SupplierID,
				"total_amount": header.TotalAmount.String(),
				"products":     products,
			},
		})
	}
}
