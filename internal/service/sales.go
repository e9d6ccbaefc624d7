package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"clinicdesk/internal/changefeed"
	"clinicdesk/internal/domain"

	"go.uber.org/zap"
)

func (s *Service) RecordSale(ctx context.Context, req domain.SaleRequest) (domain.Sale, error) {
	if err := req.Validate(); err != nil {
		return domain.Sale{}, err
	}

	draft := domain.SaleDraft{
		ID:                 s.newID(),
		CustomerName:       strings.TrimSpace(req.CustomerName),
		CustomerNumber:     strings.TrimSpace(req.CustomerNumber),
		Date:               s.clock(),
		Lines:              req.Lines,
		DiscountPercentage: req.DiscountPercentage,
	}
	sale, err := s.store.RecordSale(ctx, draft)
	if err != nil {
		var stockErr *domain.InsufficientStockError
		if errors.As(err, &stockErr) {
			s.metrics.StockRejected()
			s.logger.Info("sale rejected for stock", zap.String("customer", draft.CustomerName), zap.Error(err))
		}
		return domain.Sale{}, fmt.Errorf("record sale: %w", err)
	}

	s.metrics.SaleRecorded(sale.FinalAmount.InexactFloat64())
	paths := []string{"sales/" + sale.ID}
	for _, key := range domain.SortedKeys(domain.RequestedQuantities(req.Lines)) {
		paths = append(paths, productPath(key))
	}
	s.publish(ctx, changefeed.KindCreated, paths...)
	s.audit(ctx, "sale", "Recorded sale", fmt.Sprintf("%s %s final %s", sale.ID, sale.CustomerName, sale.FinalAmount.StringFixed(2)))
	return sale, nil
}

// ReverseSale undoes a sale. The caller must confirm the destructive action.
func (s *Service) ReverseSale(ctx context.Context, saleID string, confirmed bool) (domain.SaleReversal, error) {
	if !confirmed {
		return domain.SaleReversal{}, domain.ErrConfirmationRequired
	}
	rev, err := s.store.ReverseSale(ctx, saleID)
	if err != nil {
		return domain.SaleReversal{}, fmt.Errorf("reverse sale: %w", err)
	}

	for _, line := range rev.SkippedLines {
		s.logger.Warn("sale reversal skipped missing product",
			zap.String("sale_id", saleID),
			zap.String("vendor_id", line.VendorID),
			zap.String("product_id", line.ProductID),
			zap.Int("quantity", line.Quantity),
		)
	}

	s.metrics.SaleReversed()
	paths := []string{"sales/" + saleID}
	seen := make(map[domain.ProductKey]bool)
	for _, line := range rev.RestoredLines {
		if !seen[line.Key()] {
			seen[line.Key()] = true
			paths = append(paths, productPath(line.Key()))
		}
	}
	s.publish(ctx, changefeed.KindDeleted, paths...)
	s.audit(ctx, "sale", "Reversed sale", fmt.Sprintf("%s (%d lines restored, %d skipped)", saleID, len(rev.RestoredLines), len(rev.SkippedLines)))
	return rev, nil
}

func (s *Service) GetSale(ctx context.Context, saleID string) (domain.Sale, error) {
	return s.store.GetSale(ctx, saleID)
}

func (s *Service) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	return s.store.ListSales(ctx, filter)
}
