package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"clinicdesk/internal/auth"
	"clinicdesk/internal/changefeed"
	"clinicdesk/internal/domain"
	"clinicdesk/internal/excel"
	"clinicdesk/internal/memstore"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

func newTestService(t *testing.T, opts ...Option) (*Service, *memstore.Store, *changefeed.Local) {
	t.Helper()
	store := memstore.New()
	feed := changefeed.NewLocal()
	t.Cleanup(func() { _ = feed.Close() })
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(store, feed, nil, opts...), store, feed
}

func seedProduct(t *testing.T, svc *Service, qty int, mrp int64) domain.Product {
	t.Helper()
	ctx := context.Background()
	v, err := svc.CreateVendor(ctx, VendorInput{Name: "Acme Pharma", Phone: "9876543210"})
	require.NoError(t, err)
	p, err := svc.CreateProduct(ctx, v.ID, ProductInput{
		Name:            "Paracetamol",
		Quantity:        qty,
		AvgQuantity:     5,
		ProductPrice:    decimal.NewFromInt(mrp / 2),
		MRPPrice:        decimal.NewFromInt(mrp),
		CreditCycleDays: 30,
	})
	require.NoError(t, err)
	return p
}

func saleFor(p domain.Product, qty int, pct int64) domain.SaleRequest {
	return domain.SaleRequest{
		CustomerName:       "Asha",
		CustomerNumber:     "9123456780",
		DiscountPercentage: decimal.NewFromInt(pct),
		Lines:              []domain.SaleLineInput{{VendorID: p.VendorID, ProductID: p.ID, Quantity: qty}},
	}
}

func TestRecordAndReverseSale(t *testing.T) {
	svc, _, feed := newTestService(t)
	ctx := context.Background()
	p := seedProduct(t, svc, 10, 100)

	changes, cancel := feed.Subscribe(16)
	defer cancel()

	sale, err := svc.RecordSale(ctx, saleFor(p, 3, 10))
	require.NoError(t, err)
	assert.True(t, sale.Subtotal.Equal(decimal.NewFromInt(300)))
	assert.True(t, sale.DiscountAmount.Equal(decimal.NewFromInt(30)))
	assert.True(t, sale.FinalAmount.Equal(decimal.NewFromInt(270)))
	assert.Equal(t, fixedNow, sale.Date)

	got := <-changes
	assert.Equal(t, "sales/"+sale.ID, got.Path)
	assert.Equal(t, changefeed.KindCreated, got.Kind)

	ledger, err := svc.ProductLedger(ctx, p.Key())
	require.NoError(t, err)
	assert.Equal(t, 7, ledger.Product.Quantity)
	require.Len(t, ledger.SellHistory, 1)
	assert.Equal(t, sale.ID, ledger.SellHistory[0].ID)
	assert.Equal(t, 7, ledger.SellHistory[0].RemainingQuantity)

	_, err = svc.ReverseSale(ctx, sale.ID, false)
	assert.ErrorIs(t, err, domain.ErrConfirmationRequired)

	rev, err := svc.ReverseSale(ctx, sale.ID, true)
	require.NoError(t, err)
	assert.Len(t, rev.RestoredLines, 1)

	ledger, err = svc.ProductLedger(ctx, p.Key())
	require.NoError(t, err)
	assert.Equal(t, 10, ledger.Product.Quantity)
	assert.Empty(t, ledger.SellHistory)

	_, err = svc.GetSale(ctx, sale.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordSaleRejectsOversell(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	p := seedProduct(t, svc, 2, 100)

	_, err := svc.RecordSale(ctx, saleFor(p, 3, 0))
	var stockErr *domain.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	require.Len(t, stockErr.Shortages, 1)
	assert.Equal(t, 2, stockErr.Shortages[0].Available)

	got, err := svc.GetProduct(ctx, p.Key())
	require.NoError(t, err)
	assert.Equal(t, 2, got.Quantity)

	sales, err := svc.ListSales(ctx, domain.SaleFilter{})
	require.NoError(t, err)
	assert.Empty(t, sales)
}

func TestRecordSaleValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	p := seedProduct(t, svc, 5, 100)

	req := saleFor(p, 1, 101)
	_, err := svc.RecordSale(context.Background(), req)
	assert.True(t, domain.IsValidation(err))

	req = saleFor(p, 1, 0)
	req.CustomerNumber = "12345"
	_, err = svc.RecordSale(context.Background(), req)
	assert.True(t, domain.IsValidation(err))
}

func TestRestockKeepsLedgerBalanced(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	p := seedProduct(t, svc, 4, 50)

	_, err := svc.Restock(ctx, p.Key(), RestockInput{AddedQuantity: 0})
	assert.True(t, domain.IsValidation(err))

	event, err := svc.Restock(ctx, p.Key(), RestockInput{AddedQuantity: 6})
	require.NoError(t, err)
	assert.Equal(t, 10, event.NewQuantity)
	assert.Equal(t, domain.PaymentPending, event.Payment)

	_, err = svc.RecordSale(ctx, saleFor(p, 3, 0))
	require.NoError(t, err)

	r, err := svc.ReconcileProduct(ctx, p.Key())
	require.NoError(t, err)
	assert.True(t, r.Balanced)

	due, err := svc.DuePayables(ctx, fixedNow.AddDate(0, 0, 30))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, event.ID, due[0].ID)

	_, err = svc.MarkRestockPaid(ctx, p.Key(), event.ID)
	require.NoError(t, err)
	due, err = svc.DuePayables(ctx, fixedNow.AddDate(0, 0, 30))
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestImportProducts(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	p := seedProduct(t, svc, 4, 50)

	result, err := svc.ImportProducts(ctx, p.VendorID, []domain.ProductImportRow{
		{Row: 2, Name: "paracetamol", Quantity: 6, AvgQuantity: intPtr(8), ProductPrice: decPtr(20), MRPPrice: decPtr(40)},
		{Row: 3, Name: "Cetirizine", Quantity: 12, AvgQuantity: intPtr(4), ProductPrice: decPtr(5), MRPPrice: decPtr(9)},
		{Row: 4, Name: "", Quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Restocked)
	require.Len(t, result.Skipped, 1)
	assert.Contains(t, result.Skipped[0], "row 4")

	got, err := svc.GetProduct(ctx, p.Key())
	require.NoError(t, err)
	assert.Equal(t, 10, got.Quantity)
	assert.Equal(t, 8, got.AvgQuantity)
	assert.True(t, got.MRPPrice.Equal(decimal.NewFromInt(40)))

	r, err := svc.ReconcileProduct(ctx, p.Key())
	require.NoError(t, err)
	assert.True(t, r.Balanced)

	_, err = svc.ImportProducts(ctx, "missing", []domain.ProductImportRow{{Row: 2, Name: "x"}})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func intPtr(v int) *int { return &v }

func decPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func TestImportStockOnlySheetKeepsPrices(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	p := seedProduct(t, svc, 4, 50)

	rows, err := excel.ParseProductRows("stock.csv", strings.NewReader("name,qty\nParacetamol,6\n"))
	require.NoError(t, err)
	result, err := svc.ImportProducts(ctx, p.VendorID, rows)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 1, result.Restocked)

	got, err := svc.GetProduct(ctx, p.Key())
	require.NoError(t, err)
	assert.Equal(t, 10, got.Quantity)
	assert.Equal(t, 5, got.AvgQuantity)
	assert.Equal(t, 30, got.CreditCycleDays)
	assert.True(t, got.MRPPrice.Equal(decimal.NewFromInt(50)))
	assert.True(t, got.ProductPrice.Equal(decimal.NewFromInt(25)))

	sale, err := svc.RecordSale(ctx, saleFor(got, 3, 0))
	require.NoError(t, err)
	assert.True(t, sale.FinalAmount.Equal(decimal.NewFromInt(150)))
}

func TestAppointmentApprovalEnqueuesNotification(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	appt, err := svc.Book(ctx, domain.BookingRequest{
		Name:            "Ravi",
		Phone:           "9988776655",
		Treatment:       "Physiotherapy",
		AppointmentDate: "2026-03-12",
		AppointmentTime: "10:30",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, appt.Status)

	appt, err = svc.TransitionAppointment(ctx, appt.ID, domain.TransitionRequest{Status: domain.StatusApproved})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, appt.Status)

	queued, err := svc.ListNotifications(ctx, domain.NotificationFilter{Status: domain.NotificationPending})
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, "9988776655", queued[0].Number)
	assert.Contains(t, queued[0].Message, "approved")
	assert.Equal(t, fixedNow, queued[0].NextAttemptAt)

	_, err = svc.TransitionAppointment(ctx, appt.ID, domain.TransitionRequest{Status: domain.StatusAttended})
	assert.True(t, domain.IsValidation(err))

	appt, err = svc.TransitionAppointment(ctx, appt.ID, domain.TransitionRequest{
		Status:        domain.StatusAttended,
		Price:         decimal.NewFromInt(800),
		PaymentMethod: domain.PaymentCash,
	})
	require.NoError(t, err)
	assert.True(t, appt.Price.Equal(decimal.NewFromInt(800)))

	_, err = svc.TransitionAppointment(ctx, appt.ID, domain.TransitionRequest{Status: domain.StatusCancelled})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	appt, err = svc.TransitionAppointment(ctx, appt.ID, domain.TransitionRequest{Status: domain.StatusDeleted})
	require.NoError(t, err)
	appt, err = svc.RestoreAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAttended, appt.Status)
}

func TestSetPrescription(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	appt, err := svc.Book(ctx, domain.BookingRequest{
		Name: "Meera", Phone: "9000000001", Treatment: "Skin", AppointmentDate: "2026-03-11", AppointmentTime: "09:00",
	})
	require.NoError(t, err)

	_, err = svc.SetPrescription(ctx, appt.ID, domain.Prescription{})
	assert.True(t, domain.IsValidation(err))

	appt, err = svc.SetPrescription(ctx, appt.ID, domain.Prescription{
		Symptoms:  "rash",
		Medicines: []domain.Medicine{{Name: "Calamine", ConsumptionDays: "5", Time: "night"}},
	})
	require.NoError(t, err)
	require.NotNil(t, appt.Prescription)
	assert.Equal(t, fixedNow, appt.Prescription.CreatedAt)
}

type stubDictator struct {
	draft domain.Prescription
	err   error
}

func (d stubDictator) Dictate(_ context.Context, _ string, audio io.Reader) (domain.Prescription, error) {
	_, _ = io.Copy(io.Discard, audio)
	return d.draft, d.err
}

func TestDictatePrescription(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.DictatePrescription(context.Background(), "a.webm", strings.NewReader("audio"))
	assert.ErrorIs(t, err, domain.ErrUnavailable)

	svc, _, _ = newTestService(t, WithDictator(stubDictator{draft: domain.Prescription{Symptoms: "fever"}}))
	draft, err := svc.DictatePrescription(context.Background(), "a.webm", strings.NewReader("audio"))
	require.NoError(t, err)
	assert.Equal(t, "fever", draft.Symptoms)
	assert.NotNil(t, draft.Medicines)
}

func TestLoginAndActivityLog(t *testing.T) {
	tokens := auth.NewTokens("test-secret", time.Hour)
	svc, _, _ := newTestService(t, WithTokens(tokens))
	ctx := context.Background()

	require.NoError(t, svc.EnsureAdmin(ctx, "reception", "password123"))
	require.NoError(t, svc.EnsureAdmin(ctx, "reception", "password123"))

	_, err := svc.Login(ctx, "reception", "wrong-password")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = svc.Login(ctx, "nobody", "password123")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	res, err := svc.Login(ctx, "reception", "password123")
	require.NoError(t, err)
	claims, err := tokens.Parse(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "reception", claims.Username)

	authed := auth.WithClaims(ctx, claims)
	_, err = svc.CreateVendor(authed, VendorInput{Name: "Zen Supplies"})
	require.NoError(t, err)

	entries, err := svc.ListActivity(ctx, "zen", 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "reception", entries[0].AdminUsername)
	assert.Equal(t, "vendor", entries[0].Action)
}
