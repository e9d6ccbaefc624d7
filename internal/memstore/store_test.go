package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"clinicdesk/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T, qty int) (*Store, domain.ProductKey) {
	t.Helper()
	ctx := context.Background()
	s := New()
	_, err := s.CreateVendor(ctx, domain.Vendor{ID: "v1", Name: "Herbals", CreatedAt: t0})
	require.NoError(t, err)
	p, err := s.CreateProduct(ctx, domain.Product{
		ID:              "p1",
		VendorID:        "v1",
		Name:            "Ashwagandha",
		Quantity:        qty,
		InitialQuantity: qty,
		AvgQuantity:     5,
		MRPPrice:        decimal.NewFromInt(100),
		CreatedAt:       t0,
		UpdatedAt:       t0,
	})
	require.NoError(t, err)
	return s, p.Key()
}

func draft(id string, key domain.ProductKey, qty int, pct int64) domain.SaleDraft {
	return domain.SaleDraft{
		ID:                 id,
		CustomerName:       "Asha",
		CustomerNumber:     "9876543210",
		Date:               t0,
		Lines:              []domain.SaleLineInput{{ProductID: key.ProductID, VendorID: key.VendorID, Quantity: qty}},
		DiscountPercentage: decimal.NewFromInt(pct),
	}
}

func TestSaleAndReversalRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, key := seed(t, 10)

	sale, err := s.RecordSale(ctx, draft("s1", key, 3, 10))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(270).Equal(sale.FinalAmount))

	ledger, err := s.ProductLedger(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 7, ledger.Product.Quantity)
	require.Len(t, ledger.SellHistory, 1)
	assert.Equal(t, 3, ledger.SellHistory[0].SoldQuantity)
	assert.Equal(t, 7, ledger.SellHistory[0].RemainingQuantity)
	assert.True(t, domain.Reconcile(ledger).Balanced)

	rev, err := s.ReverseSale(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, rev.RestoredLines, 1)
	assert.Empty(t, rev.SkippedLines)

	ledger, err = s.ProductLedger(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 10, ledger.Product.Quantity)
	assert.Empty(t, ledger.SellHistory)

	_, err = s.GetSale(ctx, "s1")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, err = s.ReverseSale(ctx, "s1")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestOversellLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	s, key := seed(t, 2)

	_, err := s.RecordSale(ctx, draft("s1", key, 3, 0))
	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)

	ledger, err := s.ProductLedger(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 2, ledger.Product.Quantity)
	assert.Empty(t, ledger.SellHistory)
	_, err = s.GetSale(ctx, "s1")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	ctx := context.Background()
	s, key := seed(t, 10)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.RecordSale(ctx, draft(fmt.Sprintf("s%d", i), key, 1, 0))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			var stockErr *domain.InsufficientStockError
			if errors.As(err, &stockErr) {
				rejected++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 15, rejected)
	p, err := s.GetProduct(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Quantity)

	ledger, err := s.ProductLedger(ctx, key)
	require.NoError(t, err)
	assert.Len(t, ledger.SellHistory, 10)
	assert.True(t, domain.Reconcile(ledger).Balanced)
}

func TestReverseSkipsDeletedProduct(t *testing.T) {
	ctx := context.Background()
	s, key := seed(t, 10)

	_, err := s.RecordSale(ctx, draft("s1", key, 4, 0))
	require.NoError(t, err)
	require.NoError(t, s.DeleteProduct(ctx, key))

	rev, err := s.ReverseSale(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, rev.RestoredLines)
	require.Len(t, rev.SkippedLines, 1)
	assert.Equal(t, "p1", rev.SkippedLines[0].ProductID)
}

func TestRestockAndPayables(t *testing.T) {
	ctx := context.Background()
	s, key := seed(t, 10)

	event, err := s.Restock(ctx, domain.StockEvent{
		ID:            "e1",
		ProductID:     key.ProductID,
		VendorID:      key.VendorID,
		Date:          t0,
		AddedQuantity: 5,
		Payment:       domain.PaymentPending,
	})
	require.NoError(t, err)
	assert.Equal(t, 15, event.NewQuantity)

	pending, err := s.ListStockEvents(ctx, domain.PaymentPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	paid, err := s.MarkStockEventPaid(ctx, key, "e1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, paid.Payment)

	pending, err = s.ListStockEvents(ctx, domain.PaymentPending)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = s.MarkStockEventPaid(ctx, key, "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	ledger, err := s.ProductLedger(ctx, key)
	require.NoError(t, err)
	assert.True(t, domain.Reconcile(ledger).Balanced)
}

func TestClaimDueNotificationsLeases(t *testing.T) {
	ctx := context.Background()
	s := New()
	for i := 0; i < 3; i++ {
		_, err := s.EnqueueNotification(ctx, domain.Notification{
			ID:            fmt.Sprintf("n%d", i),
			Kind:          domain.NotificationText,
			Number:        "9876543210",
			Message:       "hi",
			Status:        domain.NotificationPending,
			NextAttemptAt: t0,
			CreatedAt:     t0.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	first, err := s.ClaimDueNotifications(ctx, t0, time.Minute, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "n0", first[0].ID)

	second, err := s.ClaimDueNotifications(ctx, t0, time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "n2", second[0].ID)

	require.NoError(t, s.MarkNotificationSent(ctx, "n0", 1, t0))
	sent, err := s.ListNotifications(ctx, domain.NotificationFilter{Status: domain.NotificationSent})
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.NotNil(t, sent[0].SentAt)

	again, err := s.ClaimDueNotifications(ctx, t0.Add(2*time.Minute), time.Minute, 10)
	require.NoError(t, err)
	assert.Len(t, again, 2)
}

func TestUpdateAppointmentRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.CreateAppointment(ctx, domain.Appointment{ID: "a1", Status: domain.StatusPending})
	require.NoError(t, err)

	_, err = s.UpdateAppointment(ctx, "a1", func(a *domain.Appointment) error {
		a.Status = domain.StatusApproved
		return errors.New("boom")
	})
	require.Error(t, err)

	a, err := s.GetAppointment(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, a.Status)
}
