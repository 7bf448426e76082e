// Package export builds xlsx reports from bill records.
package export

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"billbot/internal/bill"
)

const (
	billsSheet   = "Bills"
	itemsSheet   = "Line Items"
	summarySheet = "Summary"
)

var billHeaders = []string{
	"Date", "Shop Name", "Category", "Location",
	"Total", "Currency", "Tax", "Description", "Status", "Items",
}

var itemHeaders = []string{"Date", "Shop Name", "Item", "Quantity", "Unit Price"}

// Summary aggregates the exported set.
type Summary struct {
	BillCount   int
	TotalAmount decimal.Decimal
	TotalTax    decimal.Decimal
	ByCategory  map[string]int
}

// BuildWorkbook renders records into an xlsx workbook with per-bill rows,
// per-line-item rows and a summary sheet. The input order (repository
// newest-first order) is preserved, and the same input always produces the
// same bytes. An empty input yields headers plus a zeroed summary.
func BuildWorkbook(records []*bill.Record) ([]byte, *Summary, error) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", billsSheet)
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return nil, nil, fmt.Errorf("creating items sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, nil, fmt.Errorf("creating summary sheet: %w", err)
	}

	writeBillRows(f, records)
	writeItemRows(f, records)
	summary := summarize(records)
	writeSummary(f, summary)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, nil, fmt.Errorf("writing workbook: %w", err)
	}
	return buf.Bytes(), summary, nil
}

func writeBillRows(f *excelize.File, records []*bill.Record) {
	for col, h := range billHeaders {
		_ = f.SetCellValue(billsSheet, cell(col, 1), h)
	}
	widths := []float64{18, 22, 15, 28, 12, 10, 12, 32, 12, 8}
	for col, w := range widths {
		name, _ := excelize.ColumnNumberToName(col + 1)
		_ = f.SetColWidth(billsSheet, name, name, w)
	}

	for i, rec := range records {
		row := i + 2
		_ = f.SetCellValue(billsSheet, cell(0, row), rec.CreatedAt.Format("2006-01-02 15:04"))
		_ = f.SetCellValue(billsSheet, cell(1, row), orNA(rec.ShopName))
		_ = f.SetCellValue(billsSheet, cell(2, row), orNA(rec.ShopCategory))
		_ = f.SetCellValue(billsSheet, cell(3, row), orNA(rec.Location))
		_ = f.SetCellValue(billsSheet, cell(4, row), decimalValue(rec.Total))
		_ = f.SetCellValue(billsSheet, cell(5, row), rec.Currency)
		_ = f.SetCellValue(billsSheet, cell(6, row), decimalValue(rec.Tax))
		_ = f.SetCellValue(billsSheet, cell(7, row), rec.Description)
		_ = f.SetCellValue(billsSheet, cell(8, row), string(rec.Status))
		_ = f.SetCellValue(billsSheet, cell(9, row), len(rec.Items))
	}
}

// writeItemRows emits one row per line item, repeating the parent bill's
// date and shop so the sheet joins back to the bills sheet.
func writeItemRows(f *excelize.File, records []*bill.Record) {
	for col, h := range itemHeaders {
		_ = f.SetCellValue(itemsSheet, cell(col, 1), h)
	}

	row := 2
	for _, rec := range records {
		for _, item := range rec.Items {
			_ = f.SetCellValue(itemsSheet, cell(0, row), rec.CreatedAt.Format("2006-01-02"))
			_ = f.SetCellValue(itemsSheet, cell(1, row), orNA(rec.ShopName))
			_ = f.SetCellValue(itemsSheet, cell(2, row), item.Name)
			_ = f.SetCellValue(itemsSheet, cell(3, row), item.Quantity.InexactFloat64())
			_ = f.SetCellValue(itemsSheet, cell(4, row), item.UnitPrice.InexactFloat64())
			row++
		}
	}
}

func writeSummary(f *excelize.File, s *Summary) {
	_ = f.SetCellValue(summarySheet, "A1", "Bills Summary")
	_ = f.SetCellValue(summarySheet, "A3", "Total Bills")
	_ = f.SetCellValue(summarySheet, "B3", s.BillCount)
	_ = f.SetCellValue(summarySheet, "A4", "Total Amount")
	_ = f.SetCellValue(summarySheet, "B4", s.TotalAmount.InexactFloat64())
	_ = f.SetCellValue(summarySheet, "A5", "Total Tax")
	_ = f.SetCellValue(summarySheet, "B5", s.TotalTax.InexactFloat64())

	_ = f.SetCellValue(summarySheet, "A7", "Bills by Category")

	// Sorted category order keeps the sheet deterministic
	categories := make([]string, 0, len(s.ByCategory))
	for category := range s.ByCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	row := 8
	for _, category := range categories {
		_ = f.SetCellValue(summarySheet, cell(0, row), category)
		_ = f.SetCellValue(summarySheet, cell(1, row), s.ByCategory[category])
		row++
	}
}

func summarize(records []*bill.Record) *Summary {
	s := &Summary{ByCategory: make(map[string]int)}
	for _, rec := range records {
		s.BillCount++
		if rec.Total != nil {
			s.TotalAmount = s.TotalAmount.Add(*rec.Total)
		}
		if rec.Tax != nil {
			s.TotalTax = s.TotalTax.Add(*rec.Tax)
		}
		category := rec.ShopCategory
		if category == "" {
			category = "Unknown"
		}
		s.ByCategory[category]++
	}
	return s
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col+1, row)
	return name
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func decimalValue(d *decimal.Decimal) float64 {
	if d == nil {
		return 0
	}
	return d.InexactFloat64()
}
