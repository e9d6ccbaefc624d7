// Package reporting derives dashboard figures from full scans of products,
// sales and appointments. Everything here is a pure function of its input.
package reporting

import (
	"sort"
	"strings"

	"clinicdesk/internal/domain"

	"github.com/shopspring/decimal"
)

type Granularity string

const (
	ByDay   Granularity = "day"
	ByMonth Granularity = "month"
)

func ParseGranularity(raw string) (Granularity, error) {
	switch Granularity(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ByDay:
		return ByDay, nil
	case ByMonth:
		return ByMonth, nil
	}
	return "", domain.Invalid("group_by", "must be day or month")
}

type LowStockRow struct {
	domain.ProductKey
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	AvgQuantity int    `json:"avg_quantity"`
	Needed      int    `json:"needed"`
}

// LowStock lists products whose quantity is under their average holding,
// most depleted first.
func LowStock(products []domain.Product) []LowStockRow {
	out := []LowStockRow{}
	for _, p := range products {
		if !p.LowStock() {
			continue
		}
		out = append(out, LowStockRow{
			ProductKey:  p.Key(),
			ProductName: p.Name,
			Quantity:    p.Quantity,
			AvgQuantity: p.AvgQuantity,
			Needed:      p.AvgQuantity - p.Quantity,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Needed != out[j].Needed {
			return out[i].Needed > out[j].Needed
		}
		return out[i].ProductName < out[j].ProductName
	})
	return out
}

type SalesSummary struct {
	Count          int             `json:"count"`
	TotalFinal     decimal.Decimal `json:"total_final"`
	TotalDiscount  decimal.Decimal `json:"total_discount"`
	TopCustomer    string          `json:"top_customer"`
	TopCustomerHit int             `json:"top_customer_sales"`
}

// SummarizeSales totals the sales accepted by filter. The top customer is the
// most frequent name; ties go to the lexicographically smallest.
func SummarizeSales(sales []domain.Sale, filter domain.SaleFilter) SalesSummary {
	summary := SalesSummary{TotalFinal: decimal.Zero, TotalDiscount: decimal.Zero}
	counts := make(map[string]int)
	for _, s := range sales {
		if !filter.Matches(s) {
			continue
		}
		summary.Count++
		summary.TotalFinal = summary.TotalFinal.Add(s.FinalAmount)
		summary.TotalDiscount = summary.TotalDiscount.Add(s.DiscountAmount)
		if name := strings.TrimSpace(s.CustomerName); name != "" {
			counts[name]++
		}
	}
	for name, n := range counts {
		if n > summary.TopCustomerHit || (n == summary.TopCustomerHit && name < summary.TopCustomer) {
			summary.TopCustomer = name
			summary.TopCustomerHit = n
		}
	}
	return summary
}

type SalesBucket struct {
	Period   string          `json:"period"`
	Count    int             `json:"count"`
	Quantity int             `json:"quantity"`
	Total    decimal.Decimal `json:"total"`
}

// SalesSeries groups sales by period, oldest first.
func SalesSeries(sales []domain.Sale, filter domain.SaleFilter, g Granularity) []SalesBucket {
	buckets := make(map[string]*SalesBucket)
	for _, s := range sales {
		if !filter.Matches(s) {
			continue
		}
		key := periodOf(s.Date.Format(domain.DateLayout), g)
		b, ok := buckets[key]
		if !ok {
			b = &SalesBucket{Period: key, Total: decimal.Zero}
			buckets[key] = b
		}
		b.Count++
		b.Total = b.Total.Add(s.FinalAmount)
		for _, l := range s.Lines {
			b.Quantity += l.Quantity
		}
	}
	out := make([]SalesBucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out
}

type TopProduct struct {
	domain.ProductKey
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Revenue     decimal.Decimal `json:"revenue"`
}

// TopProducts ranks sold products by quantity over the filtered sales.
func TopProducts(sales []domain.Sale, filter domain.SaleFilter, limit int) []TopProduct {
	byKey := make(map[domain.ProductKey]*TopProduct)
	for _, s := range sales {
		if !filter.Matches(s) {
			continue
		}
		for _, l := range s.Lines {
			tp, ok := byKey[l.Key()]
			if !ok {
				tp = &TopProduct{ProductKey: l.Key(), ProductName: l.ProductName, Revenue: decimal.Zero}
				byKey[l.Key()] = tp
			}
			tp.Quantity += l.Quantity
			tp.Revenue = tp.Revenue.Add(l.TotalPrice)
		}
	}
	out := make([]TopProduct, 0, len(byKey))
	for _, tp := range byKey {
		out = append(out, *tp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity > out[j].Quantity
		}
		return out[i].ProductName < out[j].ProductName
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

type AppointmentBucket struct {
	Period   string          `json:"period"`
	Count    int             `json:"count"`
	Attended int             `json:"attended"`
	Earnings decimal.Decimal `json:"earnings"`
}

// AppointmentSeries counts appointments per period of their scheduled date.
// Earnings add up the captured price of attended visits only.
func AppointmentSeries(appts []domain.Appointment, filter domain.AppointmentFilter, g Granularity) []AppointmentBucket {
	buckets := make(map[string]*AppointmentBucket)
	for _, a := range appts {
		if !filter.Matches(a) || a.AppointmentDate == "" {
			continue
		}
		key := periodOf(a.AppointmentDate, g)
		b, ok := buckets[key]
		if !ok {
			b = &AppointmentBucket{Period: key, Earnings: decimal.Zero}
			buckets[key] = b
		}
		b.Count++
		if a.Status == domain.StatusAttended {
			b.Attended++
			b.Earnings = b.Earnings.Add(a.Price)
		}
	}
	out := make([]AppointmentBucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out
}

func periodOf(date string, g Granularity) string {
	if g == ByMonth && len(date) >= len("2006-01") {
		return date[:len("2006-01")]
	}
	return date
}
