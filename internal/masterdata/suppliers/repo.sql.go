package suppliers

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradepost-erp/tradepost/internal/shared"
)

// Repository persists suppliers in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const columns = `id, name, contact_name, phone, email, address, is_active, created_at, updated_at`

// List returns suppliers matching the filter plus the total match count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Supplier, int, error) {
	query := `SELECT ` + columns + ` FROM suppliers WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM suppliers WHERE 1=1`
	args := []any{}
	argCount := 0

	if filter.Search != "" {
		argCount++
		clause := ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR contact_name ILIKE $` + strconv.Itoa(argCount) + `)`
		query += clause
		countQuery += clause
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.ActiveOnly {
		query += ` AND is_active`
		countQuery += ` AND is_active`
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY name ASC`
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

	var out []Supplier
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

// Get loads one supplier.
func (r *Repository) Get(ctx context.Context, id int64) (Supplier, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+columns+` FROM suppliers WHERE id=$1`, id)
	s, err := scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, ErrNotFound
	}
	return s, err
}

// Create inserts a supplier.
func (r *Repository) Create(ctx context.Context, supplier Supplier) (Supplier, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO suppliers (name, contact_name, phone, email, address, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, NOW(), NOW())
		RETURNING `+columns,
		supplier.Name, supplier.ContactName, supplier.Phone, supplier.Email, supplier.Address)
	return scan(row)
}

// Update changes supplier fields.
func (r *Repository) Update(ctx context.Context, supplier Supplier) (Supplier, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE suppliers SET name=$2, contact_name=$3, phone=$4, email=$5, address=$6, is_active=$7, updated_at=NOW()
		WHERE id=$1
		RETURNING `+columns,
		supplier.ID, supplier.Name, supplier.ContactName, supplier.Phone, supplier.Email, supplier.Address, supplier.IsActive)
	s, err := scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, ErrNotFound
	}
	return s, err
}

// Delete removes a supplier unless GRNs reference it.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM suppliers WHERE id=$1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrInUse
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scan(row pgx.Row) (Supplier, error) {
	var s Supplier
	err := row.Scan(&s.ID, &s.Name, &s.ContactName, &s.Phone, &s.Email, &s.Address, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}
