package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var phonePattern = regexp.MustCompile(`^[0-9]{10}$`)

// ValidPhone accepts exactly ten ASCII digits.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

var hundred = decimal.NewFromInt(100)

func ValidateDiscount(pct decimal.Decimal) error {
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return Invalid("discount_percentage", "must be between 0 and 100")
	}
	return nil
}

type SaleRequest struct {
	CustomerName       string          `json:"customer_name"`
	CustomerNumber     string          `json:"customer_number"`
	Lines              []SaleLineInput `json:"lines"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
}

func (r SaleRequest) Validate() error {
	if strings.TrimSpace(r.CustomerName) == "" {
		return Invalid("customer_name", "is required")
	}
	if !ValidPhone(strings.TrimSpace(r.CustomerNumber)) {
		return Invalid("customer_number", "must be exactly 10 digits")
	}
	if len(r.Lines) == 0 {
		return Invalid("lines", "at least one product is required")
	}
	for i, line := range r.Lines {
		if strings.TrimSpace(line.ProductID) == "" || strings.TrimSpace(line.VendorID) == "" {
			return Invalid("lines", "line %d: product_id and vendor_id are required", i+1)
		}
		if line.Quantity < 1 {
			return Invalid("lines", "line %d: quantity must be at least 1", i+1)
		}
	}
	return ValidateDiscount(r.DiscountPercentage)
}

func (v Vendor) Validate() error {
	if strings.TrimSpace(v.Name) == "" {
		return Invalid("name", "is required")
	}
	if v.Phone != "" && !ValidPhone(v.Phone) {
		return Invalid("phone", "must be exactly 10 digits")
	}
	return nil
}

func (p Product) Validate() error {
	if strings.TrimSpace(p.VendorID) == "" {
		return Invalid("vendor_id", "is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return Invalid("name", "is required")
	}
	if p.Quantity < 0 {
		return Invalid("quantity", "cannot be negative")
	}
	if p.AvgQuantity < 0 {
		return Invalid("avg_quantity", "cannot be negative")
	}
	if p.ProductPrice.IsNegative() {
		return Invalid("product_price", "cannot be negative")
	}
	if p.MRPPrice.IsNegative() {
		return Invalid("mrp_price", "cannot be negative")
	}
	if p.CreditCycleDays < 0 {
		return Invalid("credit_cycle_days", "cannot be negative")
	}
	return nil
}

// ApplyPatch updates product details. Quantity only moves through ledgered operations.
func (p *Product) ApplyPatch(patch ProductPatch, at time.Time) error {
	next := *p
	if patch.Name != nil {
		next.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.AvgQuantity != nil {
		next.AvgQuantity = *patch.AvgQuantity
	}
	if patch.ProductPrice != nil {
		next.ProductPrice = *patch.ProductPrice
	}
	if patch.MRPPrice != nil {
		next.MRPPrice = *patch.MRPPrice
	}
	if patch.CreditCycleDays != nil {
		next.CreditCycleDays = *patch.CreditCycleDays
	}
	if err := next.Validate(); err != nil {
		return err
	}
	next.UpdatedAt = at
	*p = next
	return nil
}

type BookingRequest struct {
	OwnerUID         string          `json:"owner_uid"`
	Name             string          `json:"name"`
	Phone            string          `json:"phone"`
	Treatment        string          `json:"treatment"`
	SubCategory      string          `json:"sub_category"`
	Doctor           string          `json:"doctor"`
	AppointmentDate  string          `json:"appointment_date"`
	AppointmentTime  string          `json:"appointment_time"`
	ConsultantAmount decimal.Decimal `json:"consultant_amount"`
}

func (r BookingRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return Invalid("name", "is required")
	}
	if !ValidPhone(strings.TrimSpace(r.Phone)) {
		return Invalid("phone", "must be exactly 10 digits")
	}
	if strings.TrimSpace(r.Treatment) == "" {
		return Invalid("treatment", "is required")
	}
	if _, err := time.Parse(DateLayout, strings.TrimSpace(r.AppointmentDate)); err != nil {
		return Invalid("appointment_date", "must be YYYY-MM-DD")
	}
	if _, err := time.Parse(TimeLayout, strings.TrimSpace(r.AppointmentTime)); err != nil {
		return Invalid("appointment_time", "must be HH:MM")
	}
	if r.ConsultantAmount.IsNegative() {
		return Invalid("consultant_amount", "cannot be negative")
	}
	return nil
}
