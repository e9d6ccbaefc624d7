package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"clinicdesk/internal/domain"

	"github.com/jackc/pgx/v5"
)

// RecordSale locks every referenced product, checks stock against the locked
// rows and writes the sale, the decrements and the sell-history entries in one
// transaction.
func (r *Repository) RecordSale(ctx context.Context, draft domain.SaleDraft) (domain.Sale, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Sale{}, fmt.Errorf("begin sale tx: %w", err)
	}
	defer tx.Rollback(ctx)

	keys := domain.SortedKeys(domain.RequestedQuantities(draft.Lines))
	locked, err := lockProducts(ctx, tx, keys)
	if err != nil {
		return domain.Sale{}, err
	}

	plan, err := domain.BuildSale(draft, locked)
	if err != nil {
		return domain.Sale{}, err
	}
	sale := plan.Sale

	if _, err := tx.Exec(ctx, `
		INSERT INTO sales (
			id,
			customer_name,
			customer_number,
			sale_date,
			subtotal,
			discount_percentage,
			discount_amount,
			final_amount
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		sale.ID,
		sale.CustomerName,
		sale.CustomerNumber,
		sale.Date,
		sale.Subtotal,
		sale.DiscountPercentage,
		sale.DiscountAmount,
		sale.FinalAmount,
	); err != nil {
		return domain.Sale{}, wrapWrite(err, "insert sale "+sale.ID)
	}

	for i, line := range sale.Lines {
		if _, err := tx.Exec(ctx, `
			INSERT INTO sale_lines (
				sale_id,
				id,
				position,
				vendor_id,
				product_id,
				product_name,
				quantity,
				mrp_price,
				total_price
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			sale.ID,
			line.ID,
			i,
			line.VendorID,
			line.ProductID,
			line.ProductName,
			line.Quantity,
			line.MRPPrice,
			line.TotalPrice,
		); err != nil {
			return domain.Sale{}, fmt.Errorf("insert sale line %s: %w", line.ID, err)
		}
	}

	for _, key := range keys {
		if _, err := tx.Exec(ctx, `
			UPDATE products
			SET quantity = $3, updated_at = $4
			WHERE vendor_id = $1 AND id = $2
		`, key.VendorID, key.ProductID, plan.NewQuantities[key], sale.Date); err != nil {
			return domain.Sale{}, fmt.Errorf("update sold product %s/%s: %w", key.VendorID, key.ProductID, err)
		}
	}

	for _, e := range plan.Events {
		if _, err := tx.Exec(ctx, `
			INSERT INTO sale_events (
				sale_id,
				vendor_id,
				product_id,
				event_date,
				sold_quantity,
				remaining_quantity
			) VALUES ($1, $2, $3, $4, $5, $6)
		`, e.SaleID, e.VendorID, e.ProductID, e.Date, e.SoldQuantity, e.RemainingQuantity); err != nil {
			return domain.Sale{}, fmt.Errorf("insert sale event %s: %w", e.SaleID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Sale{}, fmt.Errorf("commit sale tx: %w", err)
	}
	return sale, nil
}

func (r *Repository) ReverseSale(ctx context.Context, saleID string) (domain.SaleReversal, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.SaleReversal{}, fmt.Errorf("begin reverse sale tx: %w", err)
	}
	defer tx.Rollback(ctx)

	sale, err := scanSaleRow(tx.QueryRow(ctx, `SELECT `+saleColumns+`
		FROM sales
		WHERE id = $1
		FOR UPDATE
	`, saleID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SaleReversal{}, fmt.Errorf("sale %s: %w", saleID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.SaleReversal{}, fmt.Errorf("load sale %s: %w", saleID, err)
	}

	sale.Lines, err = loadSaleLines(ctx, tx, saleID)
	if err != nil {
		return domain.SaleReversal{}, err
	}

	wanted := make(map[domain.ProductKey]int, len(sale.Lines))
	for _, line := range sale.Lines {
		wanted[line.Key()] += line.Quantity
	}
	locked, err := lockProducts(ctx, tx, domain.SortedKeys(wanted))
	if err != nil {
		return domain.SaleReversal{}, err
	}

	plan := domain.PlanReversal(sale, func(key domain.ProductKey) bool {
		_, ok := locked[key]
		return ok
	})
	for _, key := range domain.SortedKeys(plan.Restore) {
		if _, err := tx.Exec(ctx, `
			UPDATE products
			SET quantity = quantity + $3, updated_at = NOW()
			WHERE vendor_id = $1 AND id = $2
		`, key.VendorID, key.ProductID, plan.Restore[key]); err != nil {
			return domain.SaleReversal{}, fmt.Errorf("restore product %s/%s: %w", key.VendorID, key.ProductID, err)
		}
	}

	if _, err := tx.Exec(ctx, "DELETE FROM sale_events WHERE sale_id = $1", saleID); err != nil {
		return domain.SaleReversal{}, fmt.Errorf("delete sale events %s: %w", saleID, err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM sales WHERE id = $1", saleID); err != nil {
		return domain.SaleReversal{}, fmt.Errorf("delete sale %s: %w", saleID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.SaleReversal{}, fmt.Errorf("commit reverse sale tx: %w", err)
	}

	return domain.SaleReversal{
		SaleID:        saleID,
		RestoredLines: plan.Restored,
		SkippedLines:  plan.Skipped,
	}, nil
}

func (r *Repository) GetSale(ctx context.Context, saleID string) (domain.Sale, error) {
	sale, err := scanSaleRow(r.pool.QueryRow(ctx, `SELECT `+saleColumns+`
		FROM sales
		WHERE id = $1
	`, saleID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Sale{}, fmt.Errorf("sale %s: %w", saleID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Sale{}, fmt.Errorf("get sale %s: %w", saleID, err)
	}
	sale.Lines, err = loadSaleLines(ctx, r.pool, saleID)
	if err != nil {
		return domain.Sale{}, err
	}
	return sale, nil
}

func (r *Repository) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	query := `SELECT ` + saleColumns + `
		FROM sales
		WHERE ($1 = '' OR customer_name ILIKE '%' || $1 || '%' OR customer_number LIKE '%' || $1 || '%')
	`
	args := []any{strings.TrimSpace(filter.Search)}
	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(" AND sale_date >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(" AND sale_date < $%d", len(args))
	}
	query += " ORDER BY sale_date DESC, id ASC"
	if filter.Limit > 0 {
		args = append(args, domain.NormalizeLimit(filter.Limit), domain.NormalizeOffset(filter.Offset))
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	sales := make([]domain.Sale, 0)
	index := make(map[string]int)
	for rows.Next() {
		s, err := scanSaleRow(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		s.Lines = make([]domain.SaleLine, 0)
		index[s.ID] = len(sales)
		sales = append(sales, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sales: %w", err)
	}
	if len(sales) == 0 {
		return sales, nil
	}

	ids := make([]string, 0, len(sales))
	for _, s := range sales {
		ids = append(ids, s.ID)
	}
	lineRows, err := r.pool.Query(ctx, `SELECT sale_id, `+saleLineColumns+`
		FROM sale_lines
		WHERE sale_id = ANY($1)
		ORDER BY sale_id, position ASC
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("list sale lines: %w", err)
	}
	defer lineRows.Close()
	for lineRows.Next() {
		var (
			saleID string
			line   domain.SaleLine
		)
		if err := lineRows.Scan(
			&saleID,
			&line.ID,
			&line.VendorID,
			&line.ProductID,
			&line.ProductName,
			&line.Quantity,
			&line.MRPPrice,
			&line.TotalPrice,
		); err != nil {
			return nil, fmt.Errorf("scan sale line: %w", err)
		}
		i := index[saleID]
		sales[i].Lines = append(sales[i].Lines, line)
	}
	if err := lineRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sale lines: %w", err)
	}
	return sales, nil
}

const saleColumns = `
	id,
	customer_name,
	customer_number,
	sale_date,
	subtotal,
	discount_percentage,
	discount_amount,
	final_amount
`

const saleLineColumns = `
	id,
	vendor_id,
	product_id,
	product_name,
	quantity,
	mrp_price,
	total_price
`

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadSaleLines(ctx context.Context, q querier, saleID string) ([]domain.SaleLine, error) {
	rows, err := q.Query(ctx, `SELECT `+saleLineColumns+`
		FROM sale_lines
		WHERE sale_id = $1
		ORDER BY position ASC
	`, saleID)
	if err != nil {
		return nil, fmt.Errorf("load sale lines %s: %w", saleID, err)
	}
	defer rows.Close()

	lines := make([]domain.SaleLine, 0)
	for rows.Next() {
		var line domain.SaleLine
		if err := rows.Scan(
			&line.ID,
			&line.VendorID,
			&line.ProductID,
			&line.ProductName,
			&line.Quantity,
			&line.MRPPrice,
			&line.TotalPrice,
		); err != nil {
			return nil, fmt.Errorf("scan sale line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sale lines %s: %w", saleID, err)
	}
	return lines, nil
}

func scanSaleRow(row pgx.Row) (domain.Sale, error) {
	var s domain.Sale
	if err := row.Scan(
		&s.ID,
		&s.CustomerName,
		&s.CustomerNumber,
		&s.Date,
		&s.Subtotal,
		&s.DiscountPercentage,
		&s.DiscountAmount,
		&s.FinalAmount,
	); err != nil {
		return domain.Sale{}, err
	}
	return s, nil
}
