package export

import (
	"context"
	"encoding/csv"
	"os"

	"sjsage522/tenderscraper/internal/tenderboard"
)

// CSVExporter writes a comma-separated file with a header row
type CSVExporter struct {
	path string
}

func (e *CSVExporter) Name() string { return FormatCSV }
func (e *CSVExporter) Path() string { return e.path }

// Export writes the header row followed by one line per record; missing
// cells are empty.
func (e *CSVExporter) Export(_ context.Context, records []tenderboard.Record) error {
	f, err := os.Create(e.path)
	if err != nil {
		return err
	}
	defer f.Close()

	t := newTable(records)
	w := csv.NewWriter(f)
	if err := w.Write(t.columns); err != nil {
		return err
	}
	if err := w.WriteAll(t.cells); err != nil {
		return err
	}
	return f.Close()
}
