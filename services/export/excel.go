package export

import (
	"context"

	"github.com/xuri/excelize/v2"

	"sjsage522/tenderscraper/internal/tenderboard"
)

// DefaultSheet is the worksheet every new workbook starts with
const DefaultSheet = "Sheet1"

// ExcelExporter writes an .xlsx workbook with a single sheet
type ExcelExporter struct {
	path  string
	sheet string
}

func (e *ExcelExporter) Name() string { return FormatXLSX }
func (e *ExcelExporter) Path() string { return e.path }

// Export writes the same table as the CSV exporter to the workbook's sheet
func (e *ExcelExporter) Export(_ context.Context, records []tenderboard.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	t := newTable(records)
	if err := setRow(f, e.sheet, 1, t.columns); err != nil {
		return err
	}
	for i, row := range t.cells {
		if err := setRow(f, e.sheet, i+2, row); err != nil {
			return err
		}
	}
	return f.SaveAs(e.path)
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return f.SetSheetRow(sheet, cell, &out)
}
