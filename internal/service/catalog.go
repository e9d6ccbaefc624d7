package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"clinicdesk/internal/changefeed"
	"clinicdesk/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type VendorInput struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type ProductInput struct {
	Name            string          `json:"name"`
	Quantity        int             `json:"quantity"`
	AvgQuantity     int             `json:"avg_quantity"`
	ProductPrice    decimal.Decimal `json:"product_price"`
	MRPPrice        decimal.Decimal `json:"mrp_price"`
	CreditCycleDays int             `json:"credit_cycle_days"`
}

type RestockInput struct {
	AddedQuantity int    `json:"added_quantity"`
	Payment       string `json:"payment"`
}

func (s *Service) CreateVendor(ctx context.Context, input VendorInput) (domain.Vendor, error) {
	v := domain.Vendor{
		ID:        s.newID(),
		Name:      strings.TrimSpace(input.Name),
		Phone:     strings.TrimSpace(input.Phone),
		Address:   strings.TrimSpace(input.Address),
		CreatedAt: s.clock(),
	}
	if err := v.Validate(); err != nil {
		return domain.Vendor{}, err
	}
	created, err := s.store.CreateVendor(ctx, v)
	if err != nil {
		return domain.Vendor{}, fmt.Errorf("create vendor: %w", err)
	}
	s.publish(ctx, changefeed.KindCreated, "vendors/"+created.ID)
	s.audit(ctx, "vendor", "Created vendor", created.Name)
	return created, nil
}

func (s *Service) GetVendor(ctx context.Context, id string) (domain.Vendor, error) {
	return s.store.GetVendor(ctx, id)
}

func (s *Service) ListVendors(ctx context.Context) ([]domain.Vendor, error) {
	return s.store.ListVendors(ctx)
}

func (s *Service) CreateProduct(ctx context.Context, vendorID string, input ProductInput) (domain.Product, error) {
	now := s.clock()
	p := domain.Product{
		ID:              s.newID(),
		VendorID:        strings.TrimSpace(vendorID),
		Name:            strings.TrimSpace(input.Name),
		Quantity:        input.Quantity,
		InitialQuantity: input.Quantity,
		AvgQuantity:     input.AvgQuantity,
		ProductPrice:    input.ProductPrice,
		MRPPrice:        input.MRPPrice,
		CreditCycleDays: input.CreditCycleDays,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := p.Validate(); err != nil {
		return domain.Product{}, err
	}
	created, err := s.store.CreateProduct(ctx, p)
	if err != nil {
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}
	s.publish(ctx, changefeed.KindCreated, productPath(created.Key()))
	s.audit(ctx, "product", "Created product", fmt.Sprintf("%s (qty %d)", created.Name, created.Quantity))
	return created, nil
}

func (s *Service) GetProduct(ctx context.Context, key domain.ProductKey) (domain.Product, error) {
	return s.store.GetProduct(ctx, key)
}

func (s *Service) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	return s.store.ListProducts(ctx, filter)
}

func (s *Service) PatchProduct(ctx context.Context, key domain.ProductKey, patch domain.ProductPatch) (domain.Product, error) {
	updated, err := s.store.UpdateProduct(ctx, key, patch, s.clock())
	if err != nil {
		return domain.Product{}, fmt.Errorf("patch product: %w", err)
	}
	s.publish(ctx, changefeed.KindUpdated, productPath(key))
	s.audit(ctx, "product", "Updated product", updated.Name)
	return updated, nil
}

func (s *Service) DeleteProduct(ctx context.Context, key domain.ProductKey) error {
	if err := s.store.DeleteProduct(ctx, key); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	s.publish(ctx, changefeed.KindDeleted, productPath(key))
	s.audit(ctx, "product", "Deleted product", key.VendorID+"/"+key.ProductID)
	return nil
}

func (s *Service) Restock(ctx context.Context, key domain.ProductKey, input RestockInput) (domain.StockEvent, error) {
	if input.AddedQuantity <= 0 {
		return domain.StockEvent{}, domain.Invalid("added_quantity", "must be greater than 0")
	}
	payment := strings.ToLower(strings.TrimSpace(input.Payment))
	if payment == "" {
		payment = domain.PaymentPending
	}
	if payment != domain.PaymentPending && payment != domain.PaymentPaid {
		return domain.StockEvent{}, domain.Invalid("payment", "must be pending or paid")
	}

	event, err := s.store.Restock(ctx, domain.StockEvent{
		ID:            s.newID(),
		ProductID:     key.ProductID,
		VendorID:      key.VendorID,
		Date:          s.clock(),
		AddedQuantity: input.AddedQuantity,
		Payment:       payment,
	})
	if err != nil {
		return domain.StockEvent{}, fmt.Errorf("restock: %w", err)
	}
	s.publish(ctx, changefeed.KindUpdated, productPath(key))
	s.audit(ctx, "restock", "Restocked product", fmt.Sprintf("%s +%d -> %d", key.ProductID, event.AddedQuantity, event.NewQuantity))
	return event, nil
}

func (s *Service) MarkRestockPaid(ctx context.Context, key domain.ProductKey, eventID string) (domain.StockEvent, error) {
	event, err := s.store.MarkStockEventPaid(ctx, key, eventID)
	if err != nil {
		return domain.StockEvent{}, fmt.Errorf("mark restock paid: %w", err)
	}
	s.publish(ctx, changefeed.KindUpdated, productPath(key))
	s.audit(ctx, "restock", "Marked restock paid", eventID)
	return event, nil
}

func (s *Service) ProductLedger(ctx context.Context, key domain.ProductKey) (domain.ProductLedger, error) {
	return s.store.ProductLedger(ctx, key)
}

func (s *Service) ReconcileProduct(ctx context.Context, key domain.ProductKey) (domain.Reconciliation, error) {
	ledger, err := s.store.ProductLedger(ctx, key)
	if err != nil {
		return domain.Reconciliation{}, err
	}
	r := domain.Reconcile(ledger)
	if !r.Balanced {
		s.logger.Warn("ledger out of balance",
			zap.String("vendor_id", key.VendorID),
			zap.String("product_id", key.ProductID),
			zap.Int("added", r.Added),
			zap.Int("sold", r.Sold),
			zap.Int("quantity", r.Quantity),
			zap.Int("initial_quantity", r.InitialQuantity),
		)
	}
	return r, nil
}

// DuePayables lists unpaid restocks whose credit cycle ends on or before day.
func (s *Service) DuePayables(ctx context.Context, day time.Time) ([]domain.Payable, error) {
	events, err := s.store.ListStockEvents(ctx, domain.PaymentPending)
	if err != nil {
		return nil, fmt.Errorf("list pending restocks: %w", err)
	}
	products, err := s.store.ListProducts(ctx, domain.ProductFilter{})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	byKey := make(map[domain.ProductKey]domain.Product, len(products))
	for _, p := range products {
		byKey[p.Key()] = p
	}
	return domain.DuePayables(events, byKey, day), nil
}

// ImportProducts creates unknown products and restocks known ones by name,
// so every quantity change after creation still lands in the ledger.
func (s *Service) ImportProducts(ctx context.Context, vendorID string, rows []domain.ProductImportRow) (domain.ImportResult, error) {
	if len(rows) == 0 {
		return domain.ImportResult{}, domain.Invalid("file", "import file has no data rows")
	}
	if _, err := s.store.GetVendor(ctx, vendorID); err != nil {
		return domain.ImportResult{}, err
	}
	existing, err := s.store.ListProducts(ctx, domain.ProductFilter{VendorID: vendorID})
	if err != nil {
		return domain.ImportResult{}, fmt.Errorf("list vendor products: %w", err)
	}
	byName := make(map[string]domain.Product, len(existing))
	for _, p := range existing {
		byName[strings.ToLower(p.Name)] = p
	}

	var result domain.ImportResult
	for _, row := range rows {
		name := strings.TrimSpace(row.Name)
		current, found := byName[strings.ToLower(name)]
		if !found {
			input := ProductInput{Name: name, Quantity: row.Quantity, ProductPrice: decimal.Zero, MRPPrice: decimal.Zero}
			if row.AvgQuantity != nil {
				input.AvgQuantity = *row.AvgQuantity
			}
			if row.ProductPrice != nil {
				input.ProductPrice = *row.ProductPrice
			}
			if row.MRPPrice != nil {
				input.MRPPrice = *row.MRPPrice
			}
			if row.CreditCycleDays != nil {
				input.CreditCycleDays = *row.CreditCycleDays
			}
			created, err := s.CreateProduct(ctx, vendorID, input)
			if domain.IsValidation(err) {
				result.Skipped = append(result.Skipped, fmt.Sprintf("row %d: %v", row.Row, err))
				continue
			}
			if err != nil {
				return result, err
			}
			byName[strings.ToLower(name)] = created
			result.Created++
			continue
		}

		if patch, changed := row.Patch(); changed {
			if _, err := s.PatchProduct(ctx, current.Key(), patch); err != nil {
				if domain.IsValidation(err) {
					result.Skipped = append(result.Skipped, fmt.Sprintf("row %d: %v", row.Row, err))
					continue
				}
				return result, err
			}
			result.Updated++
		}
		if row.Quantity > 0 {
			if _, err := s.Restock(ctx, current.Key(), RestockInput{AddedQuantity: row.Quantity}); err != nil {
				return result, err
			}
			result.Restocked++
		}
	}
	s.logger.Info("catalog import finished",
		zap.String("vendor_id", vendorID),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("restocked", result.Restocked),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}
