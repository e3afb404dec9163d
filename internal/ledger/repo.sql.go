package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tradepost-erp/tradepost/internal/platform/db"
)

// Repository persists product ledger rows in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	GetProductForUpdate(ctx context.Context, id int64) (Product, error)
	UpdateStock(ctx context.Context, id int64, availableQty int64, totalCost decimal.Decimal) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx wraps the callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const productColumns = `id, code, name, available_qty, total_cost, is_active, created_at, updated_at`

// GetProduct loads a product outside any transaction.
func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	if r == nil {
		return Product{}, errors.New("ledger repository not initialised")
	}
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id)
	return scanProduct(row)
}

// GetProductForUpdate locks the product row for the remainder of the
// transaction so concurrent read-modify-write cycles serialize per product.
func (r *txRepository) GetProductForUpdate(ctx context.Context, id int64) (Product, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1 FOR UPDATE`, id)
	return scanProduct(row)
}

// UpdateStock persists the co-mutated quantity and cost pair.
func (r *txRepository) UpdateStock(ctx context.Context, id int64, availableQty int64, totalCost decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE products SET available_qty=$2, total_cost=$3, updated_at=NOW() WHERE id=$1`,
		id, availableQty, numericFromDecimal(totalCost))
	return err
}

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p    Product
		cost pgtype.Numeric
	)
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.AvailableQty, &cost, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, err
	}
	p.TotalCost = decimalFromNumeric(cost)
	return p, nil
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
