package domain

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Totals are the money figures captured on a sale.
type Totals struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	FinalAmount    decimal.Decimal
}

// ComputeTotals applies a percentage discount to the sum of line totals.
func ComputeTotals(lines []SaleLine, pct decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.TotalPrice)
	}
	discount := subtotal.Mul(pct).Div(hundred).Round(2)
	return Totals{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		FinalAmount:    subtotal.Sub(discount),
	}
}

// SalePlan is everything a store must write to record one sale.
type SalePlan struct {
	Sale          Sale
	Events        []SaleEvent
	NewQuantities map[ProductKey]int
}

// RequestedQuantities sums line quantities per product.
func RequestedQuantities(lines []SaleLineInput) map[ProductKey]int {
	out := make(map[ProductKey]int, len(lines))
	for _, l := range lines {
		out[l.Key()] += l.Quantity
	}
	return out
}

// SortedKeys returns product keys in a stable lock order.
func SortedKeys(keys map[ProductKey]int) []ProductKey {
	out := make([]ProductKey, 0, len(keys))
	for k := range keys {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].VendorID != out[j].VendorID {
			return out[i].VendorID < out[j].VendorID
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out
}

// BuildSale checks stock for every line against the locked product rows and
// computes the sale, its ledger entries and the resulting quantities. It never
// mutates products; on any shortage nothing is returned but the error.
func BuildSale(draft SaleDraft, products map[ProductKey]Product) (SalePlan, error) {
	requested := RequestedQuantities(draft.Lines)
	keys := SortedKeys(requested)

	var shortages []Shortage
	for _, key := range keys {
		p, ok := products[key]
		if !ok {
			return SalePlan{}, fmtNotFound("product", key)
		}
		if requested[key] > p.Quantity {
			shortages = append(shortages, Shortage{
				ProductKey:  key,
				ProductName: p.Name,
				Requested:   requested[key],
				Available:   p.Quantity,
			})
		}
	}
	if len(shortages) > 0 {
		return SalePlan{}, &InsufficientStockError{Shortages: shortages}
	}

	lines := make([]SaleLine, 0, len(draft.Lines))
	for i, in := range draft.Lines {
		p := products[in.Key()]
		lines = append(lines, SaleLine{
			ID:          lineID(draft.ID, i),
			ProductID:   in.ProductID,
			VendorID:    in.VendorID,
			ProductName: p.Name,
			Quantity:    in.Quantity,
			MRPPrice:    p.MRPPrice,
			TotalPrice:  p.MRPPrice.Mul(decimal.NewFromInt(int64(in.Quantity))),
		})
	}

	// discount_percentage is stored as NUMERIC(5,2)
	pct := draft.DiscountPercentage.Round(2)
	totals := ComputeTotals(lines, pct)
	sale := Sale{
		ID:                 draft.ID,
		CustomerName:       strings.TrimSpace(draft.CustomerName),
		CustomerNumber:     strings.TrimSpace(draft.CustomerNumber),
		Date:               draft.Date,
		Lines:              lines,
		Subtotal:           totals.Subtotal,
		DiscountPercentage: pct,
		DiscountAmount:     totals.DiscountAmount,
		FinalAmount:        totals.FinalAmount,
	}

	plan := SalePlan{
		Sale:          sale,
		Events:        make([]SaleEvent, 0, len(keys)),
		NewQuantities: make(map[ProductKey]int, len(keys)),
	}
	for _, key := range keys {
		remaining := products[key].Quantity - requested[key]
		plan.NewQuantities[key] = remaining
		plan.Events = append(plan.Events, SaleEvent{
			ID:                draft.ID,
			ProductID:         key.ProductID,
			VendorID:          key.VendorID,
			SaleID:            draft.ID,
			Date:              draft.Date,
			SoldQuantity:      requested[key],
			RemainingQuantity: remaining,
		})
	}
	return plan, nil
}

// ReversalPlan describes the writes that undo a sale.
type ReversalPlan struct {
	Restore  map[ProductKey]int
	Restored []SaleLine
	Skipped  []SaleLine
}

// PlanReversal groups the quantity to give back per product. Lines whose
// product no longer exists are reported as skipped.
func PlanReversal(sale Sale, exists func(ProductKey) bool) ReversalPlan {
	plan := ReversalPlan{Restore: make(map[ProductKey]int)}
	for _, line := range sale.Lines {
		if !exists(line.Key()) {
			plan.Skipped = append(plan.Skipped, line)
			continue
		}
		plan.Restore[line.Key()] += line.Quantity
		plan.Restored = append(plan.Restored, line)
	}
	if plan.Restored == nil {
		plan.Restored = []SaleLine{}
	}
	return plan
}

// Reconciliation compares a product's quantity drift with its ledgers.
type Reconciliation struct {
	ProductKey
	InitialQuantity int  `json:"initial_quantity"`
	Quantity        int  `json:"quantity"`
	Added           int  `json:"added"`
	Sold            int  `json:"sold"`
	Balanced        bool `json:"balanced"`
}

func Reconcile(ledger ProductLedger) Reconciliation {
	r := Reconciliation{
		ProductKey:      ledger.Product.Key(),
		InitialQuantity: ledger.Product.InitialQuantity,
		Quantity:        ledger.Product.Quantity,
	}
	for _, e := range ledger.History {
		r.Added += e.AddedQuantity
	}
	for _, e := range ledger.SellHistory {
		r.Sold += e.SoldQuantity
	}
	r.Balanced = r.Added-r.Sold == r.Quantity-r.InitialQuantity
	return r
}

// Payable is a restock whose credit cycle has elapsed without payment.
type Payable struct {
	StockEvent
	ProductName string          `json:"product_name"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     time.Time       `json:"due_date"`
}

// DueDate is when payment for a restock falls due.
func DueDate(e StockEvent, creditCycleDays int) time.Time {
	return e.Date.AddDate(0, 0, creditCycleDays)
}

// DuePayables picks pending restocks due on or before the end of day.
func DuePayables(events []StockEvent, products map[ProductKey]Product, day time.Time) []Payable {
	cutoff := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location()).AddDate(0, 0, 1)
	out := []Payable{}
	for _, e := range events {
		if e.Payment != PaymentPending {
			continue
		}
		p, ok := products[ProductKey{VendorID: e.VendorID, ProductID: e.ProductID}]
		if !ok {
			continue
		}
		due := DueDate(e, p.CreditCycleDays)
		if !due.Before(cutoff) {
			continue
		}
		out = append(out, Payable{
			StockEvent:  e,
			ProductName: p.Name,
			Amount:      p.ProductPrice.Mul(decimal.NewFromInt(int64(e.AddedQuantity))),
			DueDate:     due,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out
}

func lineID(saleID string, i int) string {
	return saleID + "-" + strconv.Itoa(i+1)
}
