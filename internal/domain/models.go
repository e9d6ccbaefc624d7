package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// NewID returns a random identifier for stored records.
func NewID() string {
	return uuid.NewString()
}

type Vendor struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

// ProductKey addresses a product inside its vendor.
type ProductKey struct {
	VendorID  string `json:"vendor_id"`
	ProductID string `json:"product_id"`
}

type Product struct {
	ID              string          `json:"id"`
	VendorID        string          `json:"vendor_id"`
	Name            string          `json:"name"`
	Quantity        int             `json:"quantity"`
	InitialQuantity int             `json:"initial_quantity"`
	AvgQuantity     int             `json:"avg_quantity"`
	ProductPrice    decimal.Decimal `json:"product_price"`
	MRPPrice        decimal.Decimal `json:"mrp_price"`
	CreditCycleDays int             `json:"credit_cycle_days"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (p Product) Key() ProductKey {
	return ProductKey{VendorID: p.VendorID, ProductID: p.ID}
}

// LowStock reports whether the product is below its usual holding.
func (p Product) LowStock() bool {
	return p.Quantity < p.AvgQuantity
}

type ProductPatch struct {
	Name            *string          `json:"name"`
	AvgQuantity     *int             `json:"avg_quantity"`
	ProductPrice    *decimal.Decimal `json:"product_price"`
	MRPPrice        *decimal.Decimal `json:"mrp_price"`
	CreditCycleDays *int             `json:"credit_cycle_days"`
}

const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
)

// StockEvent is one restock entry in a product's history ledger.
type StockEvent struct {
	ID            string    `json:"id"`
	ProductID     string    `json:"product_id"`
	VendorID      string    `json:"vendor_id"`
	Date          time.Time `json:"date"`
	AddedQuantity int       `json:"added_quantity"`
	NewQuantity   int       `json:"new_quantity"`
	Payment       string    `json:"payment"`
}

// SaleEvent is one entry in a product's sell history. Its ID is the sale ID.
type SaleEvent struct {
	ID                string    `json:"id"`
	ProductID         string    `json:"product_id"`
	VendorID          string    `json:"vendor_id"`
	SaleID            string    `json:"sale_id"`
	Date              time.Time `json:"date"`
	SoldQuantity      int       `json:"sold_quantity"`
	RemainingQuantity int       `json:"remaining_quantity"`
}

type ProductLedger struct {
	Product     Product      `json:"product"`
	History     []StockEvent `json:"history"`
	SellHistory []SaleEvent  `json:"sellhistory"`
}

type SaleLine struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	VendorID    string          `json:"vendor_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	MRPPrice    decimal.Decimal `json:"mrp_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

func (l SaleLine) Key() ProductKey {
	return ProductKey{VendorID: l.VendorID, ProductID: l.ProductID}
}

type Sale struct {
	ID                 string          `json:"id"`
	CustomerName       string          `json:"customer_name"`
	CustomerNumber     string          `json:"customer_number"`
	Date               time.Time       `json:"date"`
	Lines              []SaleLine      `json:"lines"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	FinalAmount        decimal.Decimal `json:"final_amount"`
}

type SaleLineInput struct {
	ProductID string `json:"product_id"`
	VendorID  string `json:"vendor_id"`
	Quantity  int    `json:"quantity"`
}

func (l SaleLineInput) Key() ProductKey {
	return ProductKey{VendorID: l.VendorID, ProductID: l.ProductID}
}

// SaleDraft is a validated sale request with its identifiers assigned.
type SaleDraft struct {
	ID                 string
	CustomerName       string
	CustomerNumber     string
	Date               time.Time
	Lines              []SaleLineInput
	DiscountPercentage decimal.Decimal
}

type SaleReversal struct {
	SaleID        string     `json:"sale_id"`
	RestoredLines []SaleLine `json:"restored_lines"`
	SkippedLines  []SaleLine `json:"skipped_lines,omitempty"`
}

type Doctor struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Phone          string    `json:"phone"`
	Specialization string    `json:"specialization"`
	CreatedAt      time.Time `json:"created_at"`
}

type Admin struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

type ProductFilter struct {
	VendorID string
	Search   string
	LowStock bool
}

type SaleFilter struct {
	From   *time.Time
	To     *time.Time
	Search string
	Limit  int
	Offset int
}

type AppointmentFilter struct {
	OwnerUID string
	Status   Status
	Doctor   string
	From     string
	To       string
}

// ActivityEntry records one admin action for the audit trail.
type ActivityEntry struct {
	ID            int64     `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	AdminUsername string    `json:"admin_username,omitempty"`
	Action        string    `json:"action"`
	Title         string    `json:"title"`
	Details       string    `json:"details"`
}

type ActivityFilter struct {
	Search string
	Limit  int
	Offset int
}

// NormalizeLimit clamps a page size into [1, 1000], defaulting to 200.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return 200
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

func NormalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

// Matches applies the date range and search text of the filter to one sale.
func (f SaleFilter) Matches(s Sale) bool {
	if f.From != nil && s.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && !s.Date.Before(*f.To) {
		return false
	}
	search := strings.ToLower(strings.TrimSpace(f.Search))
	if search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s.CustomerName), search) ||
		strings.Contains(s.CustomerNumber, search)
}

// Matches applies vendor, name search and low-stock restrictions.
func (f ProductFilter) Matches(p Product) bool {
	if f.VendorID != "" && p.VendorID != f.VendorID {
		return false
	}
	if f.LowStock && !p.LowStock() {
		return false
	}
	search := strings.ToLower(strings.TrimSpace(f.Search))
	return search == "" || strings.Contains(strings.ToLower(p.Name), search)
}

// ProductImportRow is one spreadsheet row destined for a vendor's catalog.
// Optional fields stay nil when the sheet has no such column or the cell is blank.
type ProductImportRow struct {
	Row             int
	Name            string
	Quantity        int
	AvgQuantity     *int
	ProductPrice    *decimal.Decimal
	MRPPrice        *decimal.Decimal
	CreditCycleDays *int
}

// Patch carries only the fields the sheet supplied.
func (r ProductImportRow) Patch() (ProductPatch, bool) {
	patch := ProductPatch{
		AvgQuantity:     r.AvgQuantity,
		ProductPrice:    r.ProductPrice,
		MRPPrice:        r.MRPPrice,
		CreditCycleDays: r.CreditCycleDays,
	}
	changed := patch.AvgQuantity != nil || patch.ProductPrice != nil || patch.MRPPrice != nil || patch.CreditCycleDays != nil
	return patch, changed
}

type ImportResult struct {
	Created   int      `json:"created"`
	Restocked int      `json:"restocked"`
	Updated   int      `json:"updated"`
	Skipped   []string `json:"skipped,omitempty"`
}
