package excel

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"clinicdesk/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var headerAliases = map[string]string{
	"name":              "name",
	"product":           "name",
	"product name":      "name",
	"medicine":          "name",
	"item":              "name",
	"quantity":          "quantity",
	"qty":               "quantity",
	"stock":             "quantity",
	"avg quantity":      "avg_quantity",
	"average quantity":  "avg_quantity",
	"reorder level":     "avg_quantity",
	"min stock":         "avg_quantity",
	"product price":     "product_price",
	"purchase price":    "product_price",
	"cost":              "product_price",
	"cost price":        "product_price",
	"buy price":         "product_price",
	"mrp":               "mrp_price",
	"mrp price":         "mrp_price",
	"sell price":        "mrp_price",
	"selling price":     "mrp_price",
	"credit cycle":      "credit_cycle_days",
	"credit cycle days": "credit_cycle_days",
	"credit days":       "credit_cycle_days",
}

// ParseProductRows reads a vendor catalog sheet. The first row is the header;
// name and quantity columns are required, blank names are ignored.
func ParseProductRows(fileName string, reader io.Reader) ([]domain.ProductImportRow, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(data) == 0 {
		return nil, domain.Invalid("file", "input file is empty")
	}

	var rows [][]string
	switch strings.ToLower(filepath.Ext(strings.TrimSpace(fileName))) {
	case ".csv":
		rows, err = readCSVRows(data)
	default:
		rows, err = readExcelRows(data)
	}
	if err != nil {
		return nil, domain.Invalid("file", "%v", err)
	}
	return parseProductTable(rows)
}

func readCSVRows(data []byte) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("csv file is empty")
	}
	return rows, nil
}

func readExcelRows(data []byte) ([][]string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open excel file: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("excel file has no sheets")
	}
	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("excel file is empty")
	}
	return rows, nil
}

func parseProductTable(rows [][]string) ([]domain.ProductImportRow, error) {
	colMap := mapColumns(rows[0])
	for _, required := range []string{"name", "quantity"} {
		if _, ok := colMap[required]; !ok {
			return nil, domain.Invalid("file", "missing required column: %s", required)
		}
	}

	result := make([]domain.ProductImportRow, 0, len(rows)-1)
	for index := 1; index < len(rows); index++ {
		cells := rows[index]
		name := strings.TrimSpace(readCell(cells, colMap["name"]))
		if name == "" {
			continue
		}
		line := index + 1

		qty, err := parseInt(readCell(cells, colMap["quantity"]))
		if err != nil {
			return nil, domain.Invalid("quantity", "row %d: %v", line, err)
		}
		row := domain.ProductImportRow{Row: line, Name: name, Quantity: qty}

		for _, field := range []string{"avg_quantity", "credit_cycle_days"} {
			raw := optionalCell(cells, colMap, field)
			if raw == "" {
				continue
			}
			n, err := parseInt(raw)
			if err != nil {
				return nil, domain.Invalid(field, "row %d: %v", line, err)
			}
			if field == "avg_quantity" {
				row.AvgQuantity = &n
			} else {
				row.CreditCycleDays = &n
			}
		}
		for _, field := range []string{"product_price", "mrp_price"} {
			raw := optionalCell(cells, colMap, field)
			if raw == "" {
				continue
			}
			amount, err := parseMoney(raw)
			if err != nil {
				return nil, domain.Invalid(field, "row %d: %v", line, err)
			}
			if field == "product_price" {
				row.ProductPrice = &amount
			} else {
				row.MRPPrice = &amount
			}
		}
		result = append(result, row)
	}

	if len(result) == 0 {
		return nil, domain.Invalid("file", "file has no valid data rows")
	}
	return result, nil
}

func mapColumns(header []string) map[string]int {
	mapped := make(map[string]int)
	for idx, col := range header {
		normalized := normalizeHeader(col)
		if normalized == "" {
			continue
		}
		canonical, ok := headerAliases[normalized]
		if !ok {
			continue
		}
		if _, exists := mapped[canonical]; !exists {
			mapped[canonical] = idx
		}
	}
	return mapped
}

func normalizeHeader(raw string) string {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "\ufeff")
	value = strings.ToLower(value)
	value = strings.ReplaceAll(value, "_", " ")
	value = strings.TrimSuffix(value, "(days)")
	value = strings.TrimSuffix(value, "(₹)")
	value = strings.Join(strings.Fields(value), " ")
	return value
}

// optionalCell is the trimmed cell of a column that may be absent from the sheet.
func optionalCell(cells []string, colMap map[string]int, key string) string {
	idx, ok := colMap[key]
	if !ok {
		return ""
	}
	return strings.TrimSpace(readCell(cells, idx))
}

func readCell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func normalizeNumber(raw string) string {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "\ufeff")
	value = strings.TrimPrefix(value, "₹")
	value = strings.TrimPrefix(strings.ToLower(value), "rs.")
	value = strings.ReplaceAll(value, ",", "")
	return strings.TrimSpace(value)
}

func parseInt(raw string) (int, error) {
	value := normalizeNumber(raw)
	if value == "" {
		return 0, fmt.Errorf("value is empty")
	}
	asFloat, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	if math.Mod(asFloat, 1) != 0 {
		return 0, fmt.Errorf("must be an integer")
	}
	if asFloat < 0 {
		return 0, fmt.Errorf("cannot be negative")
	}
	if asFloat > math.MaxInt32 {
		return 0, fmt.Errorf("cannot exceed %d", math.MaxInt32)
	}
	return int(asFloat), nil
}

func parseMoney(raw string) (decimal.Decimal, error) {
	value := normalizeNumber(raw)
	if value == "" {
		return decimal.Zero, fmt.Errorf("value is empty")
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("not a number")
	}
	if parsed.IsNegative() {
		return decimal.Zero, fmt.Errorf("cannot be negative")
	}
	return parsed.Round(2), nil
}
