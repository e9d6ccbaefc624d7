package excel

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"clinicdesk/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &rows[i]))
	}
	buf := &bytes.Buffer{}
	_, err := f.WriteTo(buf)
	require.NoError(t, err)
	return buf
}

func TestParseProductRowsXLSX(t *testing.T) {
	buf := workbook(t, [][]any{
		{"Product Name", "Qty", "Reorder Level", "Cost Price", "MRP (₹)", "Credit_Days"},
		{"Paracetamol 500", 40, 10, "12.50", "₹20", 30},
		{"", 5},
		{"Bandage", "1,200", "", "", "", ""},
	})

	rows, err := ParseProductRows("catalog.xlsx", buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 2, rows[0].Row)
	assert.Equal(t, "Paracetamol 500", rows[0].Name)
	assert.Equal(t, 40, rows[0].Quantity)
	require.NotNil(t, rows[0].AvgQuantity)
	assert.Equal(t, 10, *rows[0].AvgQuantity)
	require.NotNil(t, rows[0].ProductPrice)
	assert.True(t, rows[0].ProductPrice.Equal(decimal.RequireFromString("12.5")))
	require.NotNil(t, rows[0].MRPPrice)
	assert.True(t, rows[0].MRPPrice.Equal(decimal.NewFromInt(20)))
	require.NotNil(t, rows[0].CreditCycleDays)
	assert.Equal(t, 30, *rows[0].CreditCycleDays)

	assert.Equal(t, 4, rows[1].Row)
	assert.Equal(t, 1200, rows[1].Quantity)
	assert.Nil(t, rows[1].MRPPrice)
	assert.Nil(t, rows[1].ProductPrice)
	assert.Nil(t, rows[1].AvgQuantity)
	assert.Nil(t, rows[1].CreditCycleDays)
}

func TestParseProductRowsCSV(t *testing.T) {
	data := "name,quantity,mrp\nGauze,3,45.5\n"
	rows, err := ParseProductRows("catalog.csv", strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].MRPPrice)
	assert.True(t, rows[0].MRPPrice.Equal(decimal.RequireFromString("45.5")))
	assert.Nil(t, rows[0].ProductPrice)
}

func TestParseProductRowsStockOnlySheet(t *testing.T) {
	rows, err := ParseProductRows("stock.csv", strings.NewReader("name,qty\nParacetamol,6\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 6, rows[0].Quantity)

	_, changed := rows[0].Patch()
	assert.False(t, changed)
}

func TestParseProductRowsErrors(t *testing.T) {
	cases := map[string]string{
		"missing quantity column": "name,mrp\nGauze,4\n",
		"fractional quantity":     "name,qty\nGauze,1.5\n",
		"negative price":          "name,qty,mrp\nGauze,1,-3\n",
		"no rows":                 "name,qty\n",
		"quantity overflow":       "name,qty\nGauze,1e30\n",
		"avg quantity overflow":   "name,qty,avg quantity\nGauze,1,3000000000\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseProductRows("x.csv", strings.NewReader(data))
			assert.True(t, domain.IsValidation(err), "got %v", err)
		})
	}

	_, err := ParseProductRows("x.xlsx", strings.NewReader("not a workbook"))
	assert.True(t, domain.IsValidation(err))
	_, err = ParseProductRows("x.xlsx", strings.NewReader(""))
	assert.True(t, domain.IsValidation(err))
}

func TestWriteSales(t *testing.T) {
	sale := domain.Sale{
		ID:                 "s1",
		CustomerName:       "Asha",
		CustomerNumber:     "9000000000",
		Date:               time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Subtotal:           decimal.NewFromInt(300),
		DiscountPercentage: decimal.NewFromInt(10),
		DiscountAmount:     decimal.NewFromInt(30),
		FinalAmount:        decimal.NewFromInt(270),
		Lines: []domain.SaleLine{
			{ProductName: "Syrup", Quantity: 2, MRPPrice: decimal.NewFromInt(100), TotalPrice: decimal.NewFromInt(200)},
			{ProductName: "Gauze", Quantity: 1, MRPPrice: decimal.NewFromInt(100), TotalPrice: decimal.NewFromInt(100)},
		},
	}
	buf := &bytes.Buffer{}
	require.NoError(t, WriteSales(buf, []domain.Sale{sale}))

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Sale ID", rows[0][0])
	assert.Equal(t, "Syrup", rows[1][4])
	assert.Equal(t, "270", rows[2][11])
}

func TestWriteProductsAndAppointments(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteProducts(buf, []domain.Product{
		{VendorID: "v1", Name: "Gauze", Quantity: 1, AvgQuantity: 4, MRPPrice: decimal.NewFromInt(5)},
	}, map[string]string{"v1": "Acme"}))
	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Acme", "Gauze", "1", "4", "yes"}, rows[1][:5])
	require.NoError(t, f.Close())

	buf.Reset()
	require.NoError(t, WriteAppointments(buf, []domain.Appointment{
		{AppointmentDate: "2026-03-02", AppointmentTime: "11:00", Name: "Ravi", Status: domain.StatusAttended, Price: decimal.NewFromInt(500), PaymentMethod: domain.PaymentOnline},
	}))
	f, err = excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err = f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "attended", rows[1][7])
	assert.Equal(t, "Online", rows[1][10])
}
