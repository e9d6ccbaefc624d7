package excel

import (
	"fmt"
	"io"

	"clinicdesk/internal/domain"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Sheet1"

type table struct {
	header []any
	rows   [][]any
}

func (t table) write(w io.Writer) error {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetRow(sheetName, "A1", &t.header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	boldStyle, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(t.header))
	if err != nil {
		return fmt.Errorf("header width: %w", err)
	}
	if err := file.SetCellStyle(sheetName, "A1", lastCol+"1", boldStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	if err := file.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	for i := range t.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
		if err := file.SetSheetRow(sheetName, cell, &t.rows[i]); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if _, err := file.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// WriteSales writes one row per sale line so quantities can be pivoted.
func WriteSales(w io.Writer, sales []domain.Sale) error {
	t := table{header: []any{
		"Sale ID", "Date", "Customer", "Number", "Product", "Quantity", "MRP", "Line Total",
		"Subtotal", "Discount %", "Discount", "Final Amount",
	}}
	for _, s := range sales {
		for _, l := range s.Lines {
			t.rows = append(t.rows, []any{
				s.ID, s.Date.Format("2006-01-02 15:04"), s.CustomerName, s.CustomerNumber,
				l.ProductName, l.Quantity, l.MRPPrice.InexactFloat64(), l.TotalPrice.InexactFloat64(),
				s.Subtotal.InexactFloat64(), s.DiscountPercentage.InexactFloat64(),
				s.DiscountAmount.InexactFloat64(), s.FinalAmount.InexactFloat64(),
			})
		}
	}
	return t.write(w)
}

func WriteProducts(w io.Writer, products []domain.Product, vendors map[string]string) error {
	t := table{header: []any{
		"Vendor", "Product", "Quantity", "Avg Quantity", "Low Stock", "Product Price", "MRP", "Credit Cycle Days",
	}}
	for _, p := range products {
		low := "no"
		if p.LowStock() {
			low = "yes"
		}
		t.rows = append(t.rows, []any{
			vendors[p.VendorID], p.Name, p.Quantity, p.AvgQuantity, low,
			p.ProductPrice.InexactFloat64(), p.MRPPrice.InexactFloat64(), p.CreditCycleDays,
		})
	}
	return t.write(w)
}

func WriteAppointments(w io.Writer, appts []domain.Appointment) error {
	t := table{header: []any{
		"Date", "Time", "Name", "Phone", "Treatment", "Sub Category", "Doctor", "Status",
		"Price", "Consultant Amount", "Payment Method",
	}}
	for _, a := range appts {
		t.rows = append(t.rows, []any{
			a.AppointmentDate, a.AppointmentTime, a.Name, a.Phone, a.Treatment, a.SubCategory, a.Doctor,
			string(a.Status), a.Price.InexactFloat64(), a.ConsultantAmount.InexactFloat64(), string(a.PaymentMethod),
		})
	}
	return t.write(w)
}
