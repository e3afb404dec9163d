package grn

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tradepost-erp/tradepost/internal/ledger"
	"github.com/tradepost-erp/tradepost/internal/platform/db"
	"github.com/tradepost-erp/tradepost/internal/shared"
)

// Repository provides PostgreSQL backed persistence for GRNs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations the engine composes into
// atomic units of work. Product ledger rows are mutated through the same
// transaction so GRN writes and ledger deltas commit or roll back together.
type TxRepository interface {
	GetGRNForUpdate(ctx context.Context, id int64) (GoodsReceived, error)
	InsertGRN(ctx context.Context, grn GoodsReceived) (int64, error)
	UpdateGRNHeader(ctx context.Context, grn GoodsReceived) error
	DeleteGRN(ctx context.Context, id int64) error
	ListItems(ctx context.Context, grnID int64) ([]Item, error)
	FindItem(ctx context.Context, grnID, productID int64) (Item, error)
	InsertItem(ctx context.Context, item Item) (int64, error)
	DeleteItem(ctx context.Context, itemID int64) error
	DeleteItems(ctx context.Context, grnID int64) error
	SumItems(ctx context.Context, grnID int64) (decimal.Decimal, int, error)
	SetTotalAmount(ctx context.Context, grnID int64, total decimal.Decimal) error
	GetProductForUpdate(ctx context.Context, id int64) (ledger.Product, error)
	UpdateProductStock(ctx context.Context, id int64, availableQty int64, totalCost decimal.Decimal) error
	InsertIdempotencyKey(ctx context.Context, key, module string) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps the callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("grn repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const grnColumns = `id, number, grn_date, supplier_id, invoice_number, po_number, payment_type, total_amount, created_by, created_at, updated_at`

func scanGRN(row pgx.Row) (GoodsReceived, error) {
	var (
		g     GoodsReceived
		total pgtype.Numeric
	)
	err := row.Scan(&g.ID, &g.Number, &g.GRNDate, &g.SupplierID, &g.InvoiceNumber, &g.PONumber, &g.PaymentType, &total, &g.CreatedBy, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return GoodsReceived{}, ErrNotFound
		}
		return GoodsReceived{}, err
	}
	g.TotalAmount = decimalFromNumeric(total)
	return g, nil
}

// GetGRN returns a GRN header.
func (r *Repository) GetGRN(ctx context.Context, id int64) (GoodsReceived, error) {
	return scanGRN(r.pool.QueryRow(ctx, `SELECT `+grnColumns+` FROM grns WHERE id=$1`, id))
}

// GetDetail returns a GRN with its supplier, items and product ledger state.
func (r *Repository) GetDetail(ctx context.Context, id int64) (Detail, error) {
	grn, err := r.GetGRN(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	detail := Detail{GoodsReceived: grn}

	err = r.pool.QueryRow(ctx, `SELECT id, name, COALESCE(phone,''), COALESCE(email,'') FROM suppliers WHERE id=$1`, grn.SupplierID).
		Scan(&detail.Supplier.ID, &detail.Supplier.Name, &detail.Supplier.Phone, &detail.Supplier.Email)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return Detail{}, err
	}

	rows, err := r.pool.Query(ctx, `SELECT i.id, i.grn_id, i.product_id, i.quantity, i.cost_price, i.total_cost,
p.id, p.code, p.name, p.available_qty, p.total_cost, p.is_active, p.created_at, p.updated_at
FROM grn_items i JOIN products p ON p.id = i.product_id
WHERE i.grn_id=$1 ORDER BY i.id`, id)
	if err != nil {
		return Detail{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			d           ItemDetail
			costPrice   pgtype.Numeric
			lineTotal   pgtype.Numeric
			productCost pgtype.Numeric
		)
		err := rows.Scan(&d.ID, &d.GRNID, &d.ProductID, &d.Quantity, &costPrice, &lineTotal,
			&d.Product.ID, &d.Product.Code, &d.Product.Name, &d.Product.AvailableQty, &productCost, &d.Product.IsActive, &d.Product.CreatedAt, &d.Product.UpdatedAt)
		if err != nil {
			return Detail{}, err
		}
		d.CostPrice = decimalFromNumeric(costPrice)
		d.TotalCost = decimalFromNumeric(lineTotal)
		d.Product.TotalCost = decimalFromNumeric(productCost)
		detail.Items = append(detail.Items, d)
	}
	if err := rows.Err(); err != nil {
		return Detail{}, err
	}
	return detail, nil
}

// List returns GRN headers matching the filter and the total match count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]GoodsReceived, int, error) {
	where := ` WHERE ($1 = 0 OR supplier_id = $1)
AND ($2::timestamptz IS NULL OR grn_date >= $2)
AND ($3::timestamptz IS NULL OR grn_date <= $3)`
	args := []any{filter.SupplierID, nullTime(filter.From), nullTime(filter.To)}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM grns`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	args = append(args, perPage, shared.Offset(filter.Page, perPage))
	rows, err := r.pool.Query(ctx, `SELECT `+grnColumns+` FROM grns`+where+` ORDER BY grn_date DESC, id DESC LIMIT $4 OFFSET $5`, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	grns := []GoodsReceived{}
	for rows.Next() {
		g, err := scanGRN(rows)
		if err != nil {
			return nil, 0, err
		}
		grns = append(grns, g)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return grns, total, nil
}

func (r *txRepo) GetGRNForUpdate(ctx context.Context, id int64) (GoodsReceived, error) {
	return scanGRN(r.tx.QueryRow(ctx, `SELECT `+grnColumns+` FROM grns WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepo) InsertGRN(ctx context.Context, grn GoodsReceived) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO grns (number, grn_date, supplier_id, invoice_number, po_number, payment_type, total_amount, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		grn.Number, grn.GRNDate, grn.SupplierID, grn.InvoiceNumber, grn.PONumber, grn.PaymentType, numericFromDecimal(grn.TotalAmount), grn.CreatedBy).Scan(&id)
	return id, err
}

func (r *txRepo) UpdateGRNHeader(ctx context.Context, grn GoodsReceived) error {
	_, err := r.tx.Exec(ctx, `UPDATE grns SET grn_date=$2, supplier_id=$3, invoice_number=$4, po_number=$5, payment_type=$6, total_amount=$7, updated_at=NOW() WHERE id=$1`,
		grn.ID, grn.GRNDate, grn.SupplierID, grn.InvoiceNumber, grn.PONumber, grn.PaymentType, numericFromDecimal(grn.TotalAmount))
	return err
}

func (r *txRepo) DeleteGRN(ctx context.Context, id int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM grns WHERE id=$1`, id)
	return err
}

func (r *txRepo) ListItems(ctx context.Context, grnID int64) ([]Item, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, grn_id, product_id, quantity, cost_price, total_cost FROM grn_items WHERE grn_id=$1 ORDER BY id`, grnID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *txRepo) FindItem(ctx context.Context, grnID, productID int64) (Item, error) {
	item, err := scanItem(r.tx.QueryRow(ctx, `SELECT id, grn_id, product_id, quantity, cost_price, total_cost FROM grn_items WHERE grn_id=$1 AND product_id=$2`, grnID, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, err
	}
	return item, nil
}

func (r *txRepo) InsertItem(ctx context.Context, item Item) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO grn_items (grn_id, product_id, quantity, cost_price, total_cost) VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		item.GRNID, item.ProductID, item.Quantity, numericFromDecimal(item.CostPrice), numericFromDecimal(item.TotalCost)).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicateItem
		}
		return 0, err
	}
	return id, nil
}

func (r *txRepo) DeleteItem(ctx context.Context, itemID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM grn_items WHERE id=$1`, itemID)
	return err
}

func (r *txRepo) DeleteItems(ctx context.Context, grnID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM grn_items WHERE grn_id=$1`, grnID)
	return err
}

func (r *txRepo) SumItems(ctx context.Context, grnID int64) (decimal.Decimal, int, error) {
	var (
		total pgtype.Numeric
		count int
	)
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(total_cost), 0), COUNT(*) FROM grn_items WHERE grn_id=$1`, grnID).Scan(&total, &count)
	if err != nil {
		return decimal.Zero, 0, err
	}
	return decimalFromNumeric(total), count, nil
}

func (r *txRepo) SetTotalAmount(ctx context.Context, grnID int64, total decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE grns SET total_amount=$2, updated_at=NOW() WHERE id=$1`, grnID, numericFromDecimal(total))
	return err
}

func (r *txRepo) GetProductForUpdate(ctx context.Context, id int64) (ledger.Product, error) {
	var (
		p    ledger.Product
		cost pgtype.Numeric
	)
	err := r.tx.QueryRow(ctx, `SELECT id, code, name, available_qty, total_cost, is_active, created_at, updated_at FROM products WHERE id=$1 FOR UPDATE`, id).
		Scan(&p.ID, &p.Code, &p.Name, &p.AvailableQty, &cost, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Product{}, ledger.ErrProductNotFound
		}
		return ledger.Product{}, err
	}
	p.TotalCost = decimalFromNumeric(cost)
	return p, nil
}

func (r *txRepo) UpdateProductStock(ctx context.Context, id int64, availableQty int64, totalCost decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE products SET available_qty=$2, total_cost=$3, updated_at=NOW() WHERE id=$1`,
		id, availableQty, numericFromDecimal(totalCost))
	return err
}

// InsertIdempotencyKey claims the key within the surrounding transaction, so
// a rolled-back create releases it and a retry can claim it again.
func (r *txRepo) InsertIdempotencyKey(ctx context.Context, key, module string) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO idempotency_keys (key, module, created_at) VALUES ($1, $2, $3)`, key, module, time.Now())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrIdempotencyConflict
		}
		return err
	}
	return nil
}

func scanItem(row pgx.Row) (Item, error) {
	var (
		item      Item
		costPrice pgtype.Numeric
		total     pgtype.Numeric
	)
	if err := row.Scan(&item.ID, &item.GRNID, &item.ProductID, &item.Quantity, &costPrice, &total); err != nil {
		return Item{}, err
	}
	item.CostPrice = decimalFromNumeric(costPrice)
	item.TotalCost = decimalFromNumeric(total)
	return item, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func numericFromDecimal(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func decimalFromNumeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
