package memstore

import (
	"context"
	"fmt"
	"sort"

	"clinicdesk/internal/domain"
)

func (s *Store) RecordSale(_ context.Context, draft domain.SaleDraft) (domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sales[draft.ID]; ok {
		return domain.Sale{}, fmt.Errorf("sale %s: %w", draft.ID, domain.ErrConflict)
	}

	snapshot := make(map[domain.ProductKey]domain.Product, len(draft.Lines))
	for _, line := range draft.Lines {
		if rec, ok := s.products[line.Key()]; ok {
			snapshot[line.Key()] = rec.product
		}
	}

	plan, err := domain.BuildSale(draft, snapshot)
	if err != nil {
		return domain.Sale{}, err
	}

	for key, qty := range plan.NewQuantities {
		rec := s.products[key]
		rec.product.Quantity = qty
		rec.product.UpdatedAt = draft.Date
	}
	for _, event := range plan.Events {
		rec := s.products[domain.ProductKey{VendorID: event.VendorID, ProductID: event.ProductID}]
		rec.sellHistory = append(rec.sellHistory, event)
	}
	s.sales[plan.Sale.ID] = plan.Sale
	return plan.Sale, nil
}

func (s *Store) ReverseSale(_ context.Context, saleID string) (domain.SaleReversal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.sales[saleID]
	if !ok {
		return domain.SaleReversal{}, fmt.Errorf("sale %s: %w", saleID, domain.ErrNotFound)
	}

	plan := domain.PlanReversal(sale, func(key domain.ProductKey) bool {
		_, ok := s.products[key]
		return ok
	})
	for key, qty := range plan.Restore {
		s.products[key].product.Quantity += qty
	}
	for _, rec := range s.products {
		kept := rec.sellHistory[:0]
		for _, e := range rec.sellHistory {
			if e.SaleID != saleID {
				kept = append(kept, e)
			}
		}
		rec.sellHistory = kept
	}
	delete(s.sales, saleID)

	return domain.SaleReversal{
		SaleID:        saleID,
		RestoredLines: plan.Restored,
		SkippedLines:  plan.Skipped,
	}, nil
}

func (s *Store) GetSale(_ context.Context, saleID string) (domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[saleID]
	if !ok {
		return domain.Sale{}, fmt.Errorf("sale %s: %w", saleID, domain.ErrNotFound)
	}
	return sale, nil
}

func (s *Store) ListSales(_ context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		if filter.Matches(sale) {
			out = append(out, sale)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID < out[j].ID
		}
		return out[i].Date.After(out[j].Date)
	})
	return page(out, filter.Limit, filter.Offset), nil
}

func page[T any](items []T, limit, offset int) []T {
	if limit <= 0 {
		return items
	}
	limit = domain.NormalizeLimit(limit)
	offset = domain.NormalizeOffset(offset)
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
