package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"clinicdesk/internal/domain"
)

func (s *Store) CreateVendor(_ context.Context, v domain.Vendor) (domain.Vendor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vendors[v.ID]; ok {
		return domain.Vendor{}, fmt.Errorf("vendor %s: %w", v.ID, domain.ErrConflict)
	}
	s.vendors[v.ID] = v
	s.vendorOrder = append(s.vendorOrder, v.ID)
	return v, nil
}

func (s *Store) GetVendor(_ context.Context, id string) (domain.Vendor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vendors[id]
	if !ok {
		return domain.Vendor{}, fmt.Errorf("vendor %s: %w", id, domain.ErrNotFound)
	}
	return v, nil
}

func (s *Store) ListVendors(_ context.Context) ([]domain.Vendor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Vendor, 0, len(s.vendorOrder))
	for _, id := range s.vendorOrder {
		out = append(out, s.vendors[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

func (s *Store) CreateProduct(_ context.Context, p domain.Product) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vendors[p.VendorID]; !ok {
		return domain.Product{}, fmt.Errorf("vendor %s: %w", p.VendorID, domain.ErrNotFound)
	}
	if _, ok := s.products[p.Key()]; ok {
		return domain.Product{}, fmt.Errorf("product %s: %w", p.ID, domain.ErrConflict)
	}
	s.products[p.Key()] = &productRecord{product: p}
	return p, nil
}

func (s *Store) GetProduct(_ context.Context, key domain.ProductKey) (domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := s.productLocked(key)
	if err != nil {
		return domain.Product{}, err
	}
	return rec.product, nil
}

func (s *Store) ListProducts(_ context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Product, 0, len(s.products))
	for _, rec := range s.products {
		if filter.Matches(rec.product) {
			out = append(out, rec.product)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].VendorID != out[j].VendorID {
			return out[i].VendorID < out[j].VendorID
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

func (s *Store) UpdateProduct(_ context.Context, key domain.ProductKey, patch domain.ProductPatch, at time.Time) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.productLocked(key)
	if err != nil {
		return domain.Product{}, err
	}
	if err := rec.product.ApplyPatch(patch, at); err != nil {
		return domain.Product{}, err
	}
	return rec.product, nil
}

func (s *Store) DeleteProduct(_ context.Context, key domain.ProductKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.productLocked(key); err != nil {
		return err
	}
	delete(s.products, key)
	return nil
}

func (s *Store) Restock(_ context.Context, event domain.StockEvent) (domain.StockEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.ProductKey{VendorID: event.VendorID, ProductID: event.ProductID}
	rec, err := s.productLocked(key)
	if err != nil {
		return domain.StockEvent{}, err
	}
	rec.product.Quantity += event.AddedQuantity
	rec.product.UpdatedAt = event.Date
	event.NewQuantity = rec.product.Quantity
	rec.history = append(rec.history, event)
	return event, nil
}

func (s *Store) MarkStockEventPaid(_ context.Context, key domain.ProductKey, eventID string) (domain.StockEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.productLocked(key)
	if err != nil {
		return domain.StockEvent{}, err
	}
	for i := range rec.history {
		if rec.history[i].ID == eventID {
			rec.history[i].Payment = domain.PaymentPaid
			return rec.history[i], nil
		}
	}
	return domain.StockEvent{}, fmt.Errorf("stock event %s: %w", eventID, domain.ErrNotFound)
}

func (s *Store) ProductLedger(_ context.Context, key domain.ProductKey) (domain.ProductLedger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := s.productLocked(key)
	if err != nil {
		return domain.ProductLedger{}, err
	}
	return domain.ProductLedger{
		Product:     rec.product,
		History:     append([]domain.StockEvent{}, rec.history...),
		SellHistory: append([]domain.SaleEvent{}, rec.sellHistory...),
	}, nil
}

func (s *Store) ListStockEvents(_ context.Context, payment string) ([]domain.StockEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.StockEvent{}
	for _, rec := range s.products {
		for _, e := range rec.history {
			if payment == "" || e.Payment == payment {
				out = append(out, e)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) productLocked(key domain.ProductKey) (*productRecord, error) {
	rec, ok := s.products[key]
	if !ok {
		return nil, fmt.Errorf("product %s/%s: %w", key.VendorID, key.ProductID, domain.ErrNotFound)
	}
	return rec, nil
}
