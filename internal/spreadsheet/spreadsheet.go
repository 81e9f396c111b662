// Package spreadsheet reads and writes product sheets in .xlsx format.
package spreadsheet

import (
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"marketplace/internal/models"
)

// ProductsSheet is the preferred sheet name; the first sheet is used when it is absent.
const ProductsSheet = "Products"

var columns = []string{"name", "category", "price", "stock", "description", "image", "originalPrice"}

// Row is one parsed product line. Line is the 1-based spreadsheet row number.
type Row struct {
	Line          int
	Name          string
	Category      string
	Description   string
	Image         string
	Price         decimal.Decimal
	OriginalPrice *decimal.Decimal
	Stock         int
}

// RowError reports a line that could not be used.
type RowError struct {
	Line    int    `json:"row"`
	Message string `json:"message"`
}

// headerKey folds "Original Price", "original_price" and "originalPrice" together.
func headerKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "")
	return strings.ReplaceAll(s, "_", "")
}

// ReadProducts parses a workbook. Structural problems (not a workbook, no
// header, missing name or price column) are returned as an error; bad cells
// only reject their own row.
func ReadProducts(r io.Reader) ([]Row, []RowError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to parse Excel file")
	}
	defer f.Close()

	sheet := ProductsSheet
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, nil, errors.New("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to read sheet %s", sheet)
	}
	if len(rows) == 0 {
		return nil, nil, errors.Errorf("sheet %s is empty", sheet)
	}

	index := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		index[headerKey(h)] = i
	}
	for _, required := range []string{"name", "price"} {
		if _, ok := index[required]; !ok {
			return nil, nil, errors.Errorf("missing %q column", required)
		}
	}

	var parsed []Row
	var rejected []RowError
	for i, cells := range rows[1:] {
		line := i + 2
		cell := func(name string) string {
			col, ok := index[headerKey(name)]
			if !ok || col >= len(cells) {
				return ""
			}
			return strings.TrimSpace(cells[col])
		}
		if isBlank(cells) {
			continue
		}

		row, err := parseRow(line, cell)
		if err != nil {
			rejected = append(rejected, RowError{Line: line, Message: err.Error()})
			continue
		}
		parsed = append(parsed, row)
	}
	return parsed, rejected, nil
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseRow(line int, cell func(string) string) (Row, error) {
	row := Row{
		Line:        line,
		Name:        cell("name"),
		Category:    cell("category"),
		Description: cell("description"),
		Image:       cell("image"),
	}

	price, err := decimal.NewFromString(cell("price"))
	if err != nil {
		return row, errors.Errorf("invalid price %q", cell("price"))
	}
	row.Price = price

	if raw := cell("originalPrice"); raw != "" {
		op, err := decimal.NewFromString(raw)
		if err != nil {
			return row, errors.Errorf("invalid originalPrice %q", raw)
		}
		row.OriginalPrice = &op
	}

	if raw := cell("stock"); raw != "" {
		// Spreadsheet apps happily store whole numbers as "12.0".
		stock, err := decimal.NewFromString(raw)
		if err != nil || !stock.IsInteger() {
			return row, errors.Errorf("invalid stock %q", raw)
		}
		row.Stock = int(stock.IntPart())
	}
	return row, nil
}

// WriteProducts renders products as a workbook using the same columns
// ReadProducts accepts, so an export can be edited and imported again.
func WriteProducts(w io.Writer, products []models.Product) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), ProductsSheet); err != nil {
		return errors.Wrap(err, "failed to name sheet")
	}
	if err := f.SetSheetRow(ProductsSheet, "A1", &columns); err != nil {
		return errors.Wrap(err, "failed to write header")
	}

	for i, p := range products {
		original := ""
		if p.OriginalPrice != nil {
			original = p.OriginalPrice.StringFixed(2)
		}
		values := []interface{}{
			p.Name, p.Category, p.Price.StringFixed(2), strconv.Itoa(p.Stock), p.Description, p.Image, original,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.Wrap(err, "failed to address row")
		}
		if err := f.SetSheetRow(ProductsSheet, cell, &values); err != nil {
			return errors.Wrapf(err, "failed to write product %s", p.ID)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return errors.Wrap(err, "failed to write workbook")
	}
	return nil
}
