package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"clinicdesk/internal/db"
	"clinicdesk/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRepository connects to TEST_DATABASE_URL, applies migrations and
// empties the catalog tables. Tests are skipped when the variable is unset.
func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, url, db.PoolOptions{MaxConns: 4, ConnectTimeout: 10 * time.Second})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, db.RunMigrations(ctx, pool, nil))
	_, err = pool.Exec(ctx, "TRUNCATE sale_events, sale_lines, sales, stock_events, products, vendors CASCADE")
	require.NoError(t, err)
	return New(pool)
}

func seedCatalog(t *testing.T, r *Repository, qty int, mrp int64) domain.ProductKey {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	_, err := r.CreateVendor(ctx, domain.Vendor{ID: "v1", Name: "Acme Pharma", CreatedAt: now})
	require.NoError(t, err)
	p, err := r.CreateProduct(ctx, domain.Product{
		ID:              "p1",
		VendorID:        "v1",
		Name:            "Paracetamol",
		Quantity:        qty,
		InitialQuantity: qty,
		MRPPrice:        decimal.NewFromInt(mrp),
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	require.NoError(t, err)
	return p.Key()
}

func saleDraft(id string, key domain.ProductKey, qty int, pct int64) domain.SaleDraft {
	return domain.SaleDraft{
		ID:                 id,
		CustomerName:       "Asha",
		CustomerNumber:     "9876543210",
		Date:               time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Lines:              []domain.SaleLineInput{{ProductID: key.ProductID, VendorID: key.VendorID, Quantity: qty}},
		DiscountPercentage: decimal.NewFromInt(pct),
	}
}

func countRows(t *testing.T, r *Repository, table string) int {
	t.Helper()
	var n int
	require.NoError(t, r.pool.QueryRow(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestSaleAndReversalRoundTrip(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	key := seedCatalog(t, r, 10, 100)

	sale, err := r.RecordSale(ctx, saleDraft("s1", key, 3, 10))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(300).Equal(sale.Subtotal))
	assert.True(t, decimal.NewFromInt(30).Equal(sale.DiscountAmount))
	assert.True(t, decimal.NewFromInt(270).Equal(sale.FinalAmount))

	stored, err := r.GetSale(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(270).Equal(stored.FinalAmount))
	assert.True(t, decimal.NewFromInt(10).Equal(stored.DiscountPercentage))
	require.Len(t, stored.Lines, 1)
	assert.Equal(t, "s1-1", stored.Lines[0].ID)
	assert.Equal(t, 3, stored.Lines[0].Quantity)

	ledger, err := r.ProductLedger(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 7, ledger.Product.Quantity)
	require.Len(t, ledger.SellHistory, 1)
	assert.Equal(t, "s1", ledger.SellHistory[0].SaleID)
	assert.Equal(t, 3, ledger.SellHistory[0].SoldQuantity)
	assert.Equal(t, 7, ledger.SellHistory[0].RemainingQuantity)

	rev, err := r.ReverseSale(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, rev.RestoredLines, 1)
	assert.Empty(t, rev.SkippedLines)

	ledger, err = r.ProductLedger(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 10, ledger.Product.Quantity)
	assert.Empty(t, ledger.SellHistory)

	_, err = r.GetSale(ctx, "s1")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Zero(t, countRows(t, r, "sale_lines"))
}

func TestOversellWritesNothing(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	key := seedCatalog(t, r, 2, 100)

	_, err := r.RecordSale(ctx, saleDraft("s1", key, 3, 0))
	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Len(t, stockErr.Shortages, 1)
	assert.Equal(t, 3, stockErr.Shortages[0].Requested)
	assert.Equal(t, 2, stockErr.Shortages[0].Available)

	p, err := r.GetProduct(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Quantity)
	for _, table := range []string{"sales", "sale_lines", "sale_events"} {
		assert.Zero(t, countRows(t, r, table), table)
	}
}

func TestReverseSaleAfterProductDeleted(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	key := seedCatalog(t, r, 10, 40)

	_, err := r.RecordSale(ctx, saleDraft("s1", key, 4, 0))
	require.NoError(t, err)
	require.NoError(t, r.DeleteProduct(ctx, key))

	rev, err := r.ReverseSale(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, rev.RestoredLines)
	require.Len(t, rev.SkippedLines, 1)
	assert.Equal(t, "p1", rev.SkippedLines[0].ProductID)
	assert.Equal(t, 4, rev.SkippedLines[0].Quantity)

	assert.Zero(t, countRows(t, r, "sales"))
	_, err = r.GetProduct(ctx, key)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	key := seedCatalog(t, r, 10, 25)

	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		results = make([]error, 2)
	)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, results[i] = r.RecordSale(ctx, saleDraft("s"+string(rune('a'+i)), key, 6, 0))
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		var stockErr *domain.InsufficientStockError
		assert.ErrorAs(t, err, &stockErr)
	}
	assert.Equal(t, 1, succeeded)

	p, err := r.GetProduct(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 4, p.Quantity)
	assert.Equal(t, 1, countRows(t, r, "sales"))
	assert.Equal(t, 1, countRows(t, r, "sale_events"))
}
