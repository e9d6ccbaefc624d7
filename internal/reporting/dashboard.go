package reporting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"clinicdesk/internal/changefeed"
	"clinicdesk/internal/domain"
	"clinicdesk/internal/metrics"

	"go.uber.org/zap"
)

// Source is the read side a dashboard scans.
type Source interface {
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error)
	ListAppointments(ctx context.Context, filter domain.AppointmentFilter) ([]domain.Appointment, error)
}

type Snapshot struct {
	GeneratedAt       time.Time           `json:"generated_at"`
	Products          int                 `json:"products"`
	LowStockCount     int                 `json:"low_stock_count"`
	LowStock          []LowStockRow       `json:"low_stock"`
	Sales             SalesSummary        `json:"sales"`
	TopProducts       []TopProduct        `json:"top_products"`
	AppointmentsByDay []AppointmentBucket `json:"appointments_by_day"`
	PendingBookings   int                 `json:"pending_bookings"`
}

// Dashboard caches the latest Snapshot and rebuilds it whenever the
// change feed reports a write.
type Dashboard struct {
	source  Source
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time

	mu       sync.RWMutex
	snapshot Snapshot
	ready    bool
	// started numbers each Refresh; committed is the number of the one
	// whose figures are cached. An older scan never replaces a newer one.
	started   uint64
	committed uint64
}

func NewDashboard(source Source, m *metrics.Metrics, logger *zap.Logger) *Dashboard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dashboard{source: source, metrics: m, logger: logger, now: time.Now}
}

// Snapshot returns the cached figures, computing them on first use.
func (d *Dashboard) Snapshot(ctx context.Context) (Snapshot, error) {
	d.mu.RLock()
	snap, ready := d.snapshot, d.ready
	d.mu.RUnlock()
	if ready {
		return snap, nil
	}
	return d.Refresh(ctx)
}

// Refresh rescans the store. When a refresh that started later has already
// finished, its snapshot is kept and returned instead.
func (d *Dashboard) Refresh(ctx context.Context) (Snapshot, error) {
	d.mu.Lock()
	d.started++
	gen := d.started
	d.mu.Unlock()

	products, err := d.source.ListProducts(ctx, domain.ProductFilter{})
	if err != nil {
		return Snapshot{}, fmt.Errorf("scan products: %w", err)
	}
	sales, err := AllSales(ctx, d.source, domain.SaleFilter{})
	if err != nil {
		return Snapshot{}, err
	}
	appts, err := d.source.ListAppointments(ctx, domain.AppointmentFilter{})
	if err != nil {
		return Snapshot{}, fmt.Errorf("scan appointments: %w", err)
	}

	low := LowStock(products)
	pending := 0
	for _, a := range appts {
		if a.Status == domain.StatusPending {
			pending++
		}
	}
	snap := Snapshot{
		GeneratedAt:       d.now().UTC(),
		Products:          len(products),
		LowStockCount:     len(low),
		LowStock:          low,
		Sales:             SummarizeSales(sales, domain.SaleFilter{}),
		TopProducts:       TopProducts(sales, domain.SaleFilter{}, 5),
		AppointmentsByDay: AppointmentSeries(appts, domain.AppointmentFilter{}, ByDay),
		PendingBookings:   pending,
	}

	d.mu.Lock()
	if gen < d.committed {
		snap = d.snapshot
		d.mu.Unlock()
		return snap, nil
	}
	d.committed = gen
	d.snapshot = snap
	d.ready = true
	d.mu.Unlock()
	d.metrics.SetLowStock(len(low))
	return snap, nil
}

// Run recomputes the snapshot on each change until ctx ends. Changes that
// arrive during a rebuild are folded into the next one.
func (d *Dashboard) Run(ctx context.Context, feed changefeed.Feed) {
	changes, cancel := feed.Subscribe(64)
	defer cancel()

	if _, err := d.Refresh(ctx); err != nil {
		d.logger.Warn("initial dashboard refresh failed", zap.Error(err))
	}
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			drain(changes)
			if _, err := d.Refresh(ctx); err != nil && ctx.Err() == nil {
				d.logger.Warn("dashboard refresh failed", zap.Error(err))
			}
		}
	}
}

func drain(changes <-chan changefeed.Change) {
	for {
		select {
		case _, ok := <-changes:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// AllSales pages through every sale accepted by filter.
func AllSales(ctx context.Context, source Source, filter domain.SaleFilter) ([]domain.Sale, error) {
	const pageSize = 1000
	var out []domain.Sale
	filter.Limit = pageSize
	filter.Offset = 0
	for {
		page, err := source.ListSales(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("scan sales: %w", err)
		}
		out = append(out, page...)
		if len(page) < pageSize {
			return out, nil
		}
		filter.Offset += pageSize
	}
}
