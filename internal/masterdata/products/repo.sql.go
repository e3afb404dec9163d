package products

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tradepost-erp/tradepost/internal/shared"
)

// Repository persists product master data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const columns = `id, code, name, available_qty, total_cost, is_active, created_at, updated_at`

// List returns products matching the filter plus the total match count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	query := `SELECT ` + columns + ` FROM products WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM products WHERE 1=1`
	args := []any{}
	argCount := 0

	if filter.Search != "" {
		argCount++
		clause := ` AND (code ILIKE $` + strconv.Itoa(argCount) + ` OR name ILIKE $` + strconv.Itoa(argCount) + `)`
		query += clause
		countQuery += clause
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.ActiveOnly {
		clause := ` AND is_active`
		query += clause
		countQuery += clause
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY code ASC`
	if filter.PerPage > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filter.PerPage)
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		args = append(args, shared.Offset(filter.Page, filter.PerPage))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

// Get loads one product.
func (r *Repository) Get(ctx context.Context, id int64) (Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+columns+` FROM products WHERE id=$1`, id)
	p, err := scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

// Create inserts a product with its opening balance.
func (r *Repository) Create(ctx context.Context, input CreateInput) (Product, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO products (code, name, available_qty, total_cost, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW(), NOW())
		RETURNING `+columns,
		input.Code, input.Name, input.OpeningQty, numericFromDecimal(input.OpeningCost))
	p, err := scan(row)
	if err != nil {
		return Product{}, mapConstraint(err)
	}
	return p, nil
}

// Update changes descriptive fields, never the ledger pair.
func (r *Repository) Update(ctx context.Context, input UpdateInput) (Product, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE products SET code=$2, name=$3, is_active=$4, updated_at=NOW()
		WHERE id=$1
		RETURNING `+columns,
		input.ID, input.Code, input.Name, input.IsActive)
	p, err := scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, mapConstraint(err)
	}
	return p, nil
}

// Delete removes a product. Products referenced by GRN items cannot be
// removed; callers deactivate them instead.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return mapConstraint(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func mapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrCodeTaken
		case "23503":
			return ErrInUse
		}
	}
	return err
}

func scan(row pgx.Row) (Product, error) {
	var (
		p    Product
		cost pgtype.Numeric
	)
	if err := row.Scan(&p.ID, &p.Code, &p.Name, &p.AvailableQty, &cost, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Product{}, err
	}
	if cost.Valid && cost.Int != nil {
		p.TotalCost = decimal.NewFromBigInt(cost.Int, cost.Exp)
	} else {
		p.TotalCost = decimal.Zero
	}
	return p, nil
}

func numericFromDecimal(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}
