package repository

import (
	"context"
	"errors"
	"fmt"

	"clinicdesk/internal/domain"

	"github.com/jackc/pgx/v5"
)

const stockEventColumns = `
	id,
	product_id,
	vendor_id,
	event_date,
	added_quantity,
	new_quantity,
	payment
`

func (r *Repository) Restock(ctx context.Context, event domain.StockEvent) (domain.StockEvent, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.StockEvent{}, fmt.Errorf("begin restock tx: %w", err)
	}
	defer tx.Rollback(ctx)

	key := domain.ProductKey{VendorID: event.VendorID, ProductID: event.ProductID}
	p, err := loadProductForUpdate(ctx, tx, key)
	if err != nil {
		return domain.StockEvent{}, err
	}
	event.NewQuantity = p.Quantity + event.AddedQuantity

	if _, err := tx.Exec(ctx, `
		UPDATE products
		SET quantity = $3, updated_at = $4
		WHERE vendor_id = $1 AND id = $2
	`, key.VendorID, key.ProductID, event.NewQuantity, event.Date); err != nil {
		return domain.StockEvent{}, fmt.Errorf("update restocked product %s: %w", p.Name, err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO stock_events (
			id,
			product_id,
			vendor_id,
			event_date,
			added_quantity,
			new_quantity,
			payment
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		event.ID,
		event.ProductID,
		event.VendorID,
		event.Date,
		event.AddedQuantity,
		event.NewQuantity,
		event.Payment,
	); err != nil {
		return domain.StockEvent{}, wrapWrite(err, "insert stock event "+event.ID)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.StockEvent{}, fmt.Errorf("commit restock tx: %w", err)
	}
	return event, nil
}

func (r *Repository) MarkStockEventPaid(ctx context.Context, key domain.ProductKey, eventID string) (domain.StockEvent, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE stock_events
		SET payment = 'paid'
		WHERE id = $1 AND vendor_id = $2 AND product_id = $3
		RETURNING `+stockEventColumns,
		eventID, key.VendorID, key.ProductID,
	)
	e, err := scanStockEventRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.StockEvent{}, fmt.Errorf("stock event %s: %w", eventID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.StockEvent{}, fmt.Errorf("mark stock event %s paid: %w", eventID, err)
	}
	return e, nil
}

func (r *Repository) ProductLedger(ctx context.Context, key domain.ProductKey) (domain.ProductLedger, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return domain.ProductLedger{}, fmt.Errorf("begin ledger tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+productColumns+`
		FROM products
		WHERE vendor_id = $1 AND id = $2
	`, key.VendorID, key.ProductID)
	p, err := scanProductRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ProductLedger{}, productNotFound(key)
	}
	if err != nil {
		return domain.ProductLedger{}, fmt.Errorf("load ledger product: %w", err)
	}

	ledger := domain.ProductLedger{
		Product:     p,
		History:     make([]domain.StockEvent, 0),
		SellHistory: make([]domain.SaleEvent, 0),
	}

	rows, err := tx.Query(ctx, `SELECT `+stockEventColumns+`
		FROM stock_events
		WHERE vendor_id = $1 AND product_id = $2
		ORDER BY event_date ASC, id ASC
	`, key.VendorID, key.ProductID)
	if err != nil {
		return domain.ProductLedger{}, fmt.Errorf("list stock events: %w", err)
	}
	for rows.Next() {
		e, err := scanStockEventRow(rows)
		if err != nil {
			rows.Close()
			return domain.ProductLedger{}, fmt.Errorf("scan stock event: %w", err)
		}
		ledger.History = append(ledger.History, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return domain.ProductLedger{}, fmt.Errorf("iterate stock events: %w", err)
	}

	rows, err = tx.Query(ctx, `
		SELECT sale_id, product_id, vendor_id, event_date, sold_quantity, remaining_quantity
		FROM sale_events
		WHERE vendor_id = $1 AND product_id = $2
		ORDER BY event_date ASC, sale_id ASC
	`, key.VendorID, key.ProductID)
	if err != nil {
		return domain.ProductLedger{}, fmt.Errorf("list sale events: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var e domain.SaleEvent
		if err := rows.Scan(&e.SaleID, &e.ProductID, &e.VendorID, &e.Date, &e.SoldQuantity, &e.RemainingQuantity); err != nil {
			return domain.ProductLedger{}, fmt.Errorf("scan sale event: %w", err)
		}
		e.ID = e.SaleID
		ledger.SellHistory = append(ledger.SellHistory, e)
	}
	if err := rows.Err(); err != nil {
		return domain.ProductLedger{}, fmt.Errorf("iterate sale events: %w", err)
	}
	return ledger, nil
}

func (r *Repository) ListStockEvents(ctx context.Context, payment string) ([]domain.StockEvent, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+stockEventColumns+`
		FROM stock_events
		WHERE ($1 = '' OR payment = $1)
		ORDER BY event_date ASC, id ASC
	`, payment)
	if err != nil {
		return nil, fmt.Errorf("list stock events: %w", err)
	}
	defer rows.Close()

	items := make([]domain.StockEvent, 0)
	for rows.Next() {
		e, err := scanStockEventRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stock event: %w", err)
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stock events: %w", err)
	}
	return items, nil
}

func scanStockEventRow(row pgx.Row) (domain.StockEvent, error) {
	var e domain.StockEvent
	if err := row.Scan(
		&e.ID,
		&e.ProductID,
		&e.VendorID,
		&e.Date,
		&e.AddedQuantity,
		&e.NewQuantity,
		&e.Payment,
	); err != nil {
		return domain.StockEvent{}, err
	}
	return e, nil
}
