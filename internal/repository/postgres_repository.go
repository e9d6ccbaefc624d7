package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinicdesk/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

const productColumns = `
	vendor_id,
	id,
	name,
	quantity,
	initial_quantity,
	avg_quantity,
	product_price,
	mrp_price,
	credit_cycle_days,
	created_at,
	updated_at
`

func (r *Repository) CreateVendor(ctx context.Context, v domain.Vendor) (domain.Vendor, error) {
	if _, err := r.pool.Exec(ctx, `
		INSERT INTO vendors (id, name, phone, address, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, v.ID, v.Name, v.Phone, v.Address, v.CreatedAt); err != nil {
		return domain.Vendor{}, wrapWrite(err, "create vendor "+v.ID)
	}
	return v, nil
}

func (r *Repository) GetVendor(ctx context.Context, id string) (domain.Vendor, error) {
	var v domain.Vendor
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, phone, address, created_at
		FROM vendors
		WHERE id = $1
	`, id).Scan(&v.ID, &v.Name, &v.Phone, &v.Address, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Vendor{}, fmt.Errorf("vendor %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Vendor{}, fmt.Errorf("get vendor %s: %w", id, err)
	}
	return v, nil
}

func (r *Repository) ListVendors(ctx context.Context) ([]domain.Vendor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, phone, address, created_at
		FROM vendors
		ORDER BY LOWER(name) ASC, created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list vendors: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Vendor, 0)
	for rows.Next() {
		var v domain.Vendor
		if err := rows.Scan(&v.ID, &v.Name, &v.Phone, &v.Address, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan vendor: %w", err)
		}
		items = append(items, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vendors: %w", err)
	}
	return items, nil
}

func (r *Repository) CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO products (
			vendor_id,
			id,
			name,
			quantity,
			initial_quantity,
			avg_quantity,
			product_price,
			mrp_price,
			credit_cycle_days,
			created_at,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		p.VendorID,
		p.ID,
		p.Name,
		p.Quantity,
		p.InitialQuantity,
		p.AvgQuantity,
		p.ProductPrice,
		p.MRPPrice,
		p.CreditCycleDays,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return domain.Product{}, fmt.Errorf("vendor %s: %w", p.VendorID, domain.ErrNotFound)
		}
		return domain.Product{}, wrapWrite(err, "create product "+p.ID)
	}
	return p, nil
}

func (r *Repository) GetProduct(ctx context.Context, key domain.ProductKey) (domain.Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+`
		FROM products
		WHERE vendor_id = $1 AND id = $2
	`, key.VendorID, key.ProductID)
	p, err := scanProductRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, productNotFound(key)
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("get product %s/%s: %w", key.VendorID, key.ProductID, err)
	}
	return p, nil
}

func (r *Repository) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	search := strings.TrimSpace(filter.Search)
	query := `SELECT ` + productColumns + `
		FROM products
		WHERE ($1 = '' OR vendor_id = $1)
		AND ($2 = '' OR name ILIKE '%' || $2 || '%')
	`
	if filter.LowStock {
		query += " AND quantity < avg_quantity"
	}
	query += " ORDER BY vendor_id ASC, LOWER(name) ASC"

	rows, err := r.pool.Query(ctx, query, filter.VendorID, search)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProductRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

func (r *Repository) UpdateProduct(ctx context.Context, key domain.ProductKey, patch domain.ProductPatch, at time.Time) (domain.Product, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Product{}, fmt.Errorf("begin update product tx: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := loadProductForUpdate(ctx, tx, key)
	if err != nil {
		return domain.Product{}, err
	}
	if err := p.ApplyPatch(patch, at); err != nil {
		return domain.Product{}, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE products
		SET
			name = $3,
			avg_quantity = $4,
			product_price = $5,
			mrp_price = $6,
			credit_cycle_days = $7,
			updated_at = $8
		WHERE vendor_id = $1 AND id = $2
	`,
		key.VendorID,
		key.ProductID,
		p.Name,
		p.AvgQuantity,
		p.ProductPrice,
		p.MRPPrice,
		p.CreditCycleDays,
		p.UpdatedAt,
	); err != nil {
		return domain.Product{}, fmt.Errorf("update product %s/%s: %w", key.VendorID, key.ProductID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Product{}, fmt.Errorf("commit update product tx: %w", err)
	}
	return p, nil
}

func (r *Repository) DeleteProduct(ctx context.Context, key domain.ProductKey) error {
	cmd, err := r.pool.Exec(ctx,
		"DELETE FROM products WHERE vendor_id = $1 AND id = $2",
		key.VendorID, key.ProductID,
	)
	if err != nil {
		return fmt.Errorf("delete product %s/%s: %w", key.VendorID, key.ProductID, err)
	}
	if cmd.RowsAffected() == 0 {
		return productNotFound(key)
	}
	return nil
}

func loadProductForUpdate(ctx context.Context, tx pgx.Tx, key domain.ProductKey) (domain.Product, error) {
	row := tx.QueryRow(ctx, `SELECT `+productColumns+`
		FROM products
		WHERE vendor_id = $1 AND id = $2
		FOR UPDATE
	`, key.VendorID, key.ProductID)
	p, err := scanProductRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, productNotFound(key)
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("load product %s/%s: %w", key.VendorID, key.ProductID, err)
	}
	return p, nil
}

// lockProducts row-locks every key in a fixed order. Missing products are
// left out of the result.
func lockProducts(ctx context.Context, tx pgx.Tx, keys []domain.ProductKey) (map[domain.ProductKey]domain.Product, error) {
	locked := make(map[domain.ProductKey]domain.Product, len(keys))
	for _, key := range keys {
		p, err := loadProductForUpdate(ctx, tx, key)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		locked[key] = p
	}
	return locked, nil
}

func scanProductRow(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	if err := row.Scan(
		&p.VendorID,
		&p.ID,
		&p.Name,
		&p.Quantity,
		&p.InitialQuantity,
		&p.AvgQuantity,
		&p.ProductPrice,
		&p.MRPPrice,
		&p.CreditCycleDays,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

func productNotFound(key domain.ProductKey) error {
	return fmt.Errorf("product %s/%s: %w", key.VendorID, key.ProductID, domain.ErrNotFound)
}

// wrapWrite maps unique violations onto domain.ErrConflict.
func wrapWrite(err error, what string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w", what, domain.ErrConflict)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// prefixed qualifies a column list with a table alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, part := range parts {
		parts[i] = alias + "." + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}
