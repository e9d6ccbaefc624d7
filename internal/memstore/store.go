// Package memstore keeps every record in process memory behind one lock.
// It backs development runs without DATABASE_URL and the service tests.
package memstore

import (
	"context"
	"sync"

	"clinicdesk/internal/domain"
)

type productRecord struct {
	product     domain.Product
	history     []domain.StockEvent
	sellHistory []domain.SaleEvent
}

type Store struct {
	mu sync.RWMutex

	vendors      map[string]domain.Vendor
	vendorOrder  []string
	products     map[domain.ProductKey]*productRecord
	sales        map[string]domain.Sale
	appointments map[string]domain.Appointment
	doctors      map[string]domain.Doctor
	outbox       map[string]domain.Notification
	admins       map[string]domain.Admin
	activity     []domain.ActivityEntry
}

func New() *Store {
	return &Store{
		vendors:      make(map[string]domain.Vendor),
		products:     make(map[domain.ProductKey]*productRecord),
		sales:        make(map[string]domain.Sale),
		appointments: make(map[string]domain.Appointment),
		doctors:      make(map[string]domain.Doctor),
		outbox:       make(map[string]domain.Notification),
		admins:       make(map[string]domain.Admin),
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}
