package service

import (
	"context"
	"time"

	"clinicdesk/internal/domain"
)

// CatalogStore owns vendors, products and their stock ledgers.
type CatalogStore interface {
	CreateVendor(ctx context.Context, v domain.Vendor) (domain.Vendor, error)
	GetVendor(ctx context.Context, id string) (domain.Vendor, error)
	ListVendors(ctx context.Context) ([]domain.Vendor, error)

	CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error)
	GetProduct(ctx context.Context, key domain.ProductKey) (domain.Product, error)
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	UpdateProduct(ctx context.Context, key domain.ProductKey, patch domain.ProductPatch, at time.Time) (domain.Product, error)
	DeleteProduct(ctx context.Context, key domain.ProductKey) error

	// Restock increments quantity and appends the event; NewQuantity is filled in.
	Restock(ctx context.Context, event domain.StockEvent) (domain.StockEvent, error)
	MarkStockEventPaid(ctx context.Context, key domain.ProductKey, eventID string) (domain.StockEvent, error)
	ProductLedger(ctx context.Context, key domain.ProductKey) (domain.ProductLedger, error)
	ListStockEvents(ctx context.Context, payment string) ([]domain.StockEvent, error)
}

// SalesStore records and reverses sales atomically with their stock effects.
type SalesStore interface {
	RecordSale(ctx context.Context, draft domain.SaleDraft) (domain.Sale, error)
	ReverseSale(ctx context.Context, saleID string) (domain.SaleReversal, error)
	GetSale(ctx context.Context, saleID string) (domain.Sale, error)
	ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error)
}

type AppointmentStore interface {
	CreateAppointment(ctx context.Context, a domain.Appointment) (domain.Appointment, error)
	GetAppointment(ctx context.Context, id string) (domain.Appointment, error)
	ListAppointments(ctx context.Context, filter domain.AppointmentFilter) ([]domain.Appointment, error)
	// UpdateAppointment runs mutate on the locked row and persists the result.
	UpdateAppointment(ctx context.Context, id string, mutate func(*domain.Appointment) error) (domain.Appointment, error)

	CreateDoctor(ctx context.Context, d domain.Doctor) (domain.Doctor, error)
	GetDoctor(ctx context.Context, id string) (domain.Doctor, error)
	ListDoctors(ctx context.Context) ([]domain.Doctor, error)
}

type OutboxStore interface {
	EnqueueNotification(ctx context.Context, n domain.Notification) (domain.Notification, error)
	ClaimDueNotifications(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]domain.Notification, error)
	MarkNotificationSent(ctx context.Context, id string, attempts int, at time.Time) error
	MarkNotificationRetry(ctx context.Context, id string, attempts int, next time.Time, lastErr string) error
	MarkNotificationFailed(ctx context.Context, id string, attempts int, lastErr string) error
	ListNotifications(ctx context.Context, filter domain.NotificationFilter) ([]domain.Notification, error)
}

type AdminStore interface {
	CreateAdmin(ctx context.Context, a domain.Admin) (domain.Admin, error)
	GetAdminByUsername(ctx context.Context, username string) (domain.Admin, error)
	ListAdmins(ctx context.Context) ([]domain.Admin, error)

	LogActivity(ctx context.Context, entry domain.ActivityEntry) error
	ListActivity(ctx context.Context, filter domain.ActivityFilter) ([]domain.ActivityEntry, error)
}

// Store is implemented by the PostgreSQL repository and the in-memory store.
type Store interface {
	CatalogStore
	SalesStore
	AppointmentStore
	OutboxStore
	AdminStore
	Ping(ctx context.Context) error
}
