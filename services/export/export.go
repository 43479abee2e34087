package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"sjsage522/tenderscraper/internal/tenderboard"
	"sjsage522/tenderscraper/logger"
	scrapeerr "sjsage522/tenderscraper/pkg/errors"
)

// Format names accepted by New
const (
	FormatCSV    = "csv"
	FormatXLSX   = "xlsx"
	FormatJSON   = "json"
	FormatSQLite = "sqlite"
)

// Exporter persists a flattened record set
type Exporter interface {
	// Name returns the format name
	Name() string

	// Path returns the file the exporter writes
	Path() string

	// Export writes records, replacing any previous output
	Export(ctx context.Context, records []tenderboard.Record) error
}

// New builds exporters for formats, writing <dir>/<name>.<ext>. The order of
// formats is kept.
func New(formats []string, dir, name string) ([]Exporter, error) {
	base := filepath.Join(dir, name)
	exporters := make([]Exporter, 0, len(formats))
	for _, format := range formats {
		switch format {
		case FormatCSV:
			exporters = append(exporters, &CSVExporter{path: base + ".csv"})
		case FormatXLSX:
			exporters = append(exporters, &ExcelExporter{path: base + ".xlsx", sheet: DefaultSheet})
		case FormatJSON:
			exporters = append(exporters, &JSONExporter{path: base + ".json"})
		case FormatSQLite:
			exporters = append(exporters, &SQLiteExporter{path: base + ".db", table: name})
		default:
			return nil, scrapeerr.NewValidation("export", fmt.Sprintf("unknown output format %q", format))
		}
	}
	return exporters, nil
}

// Run calls every exporter in order and stops at the first failure. Files
// written before the failure are left in place.
func Run(ctx context.Context, exporters []Exporter, records []tenderboard.Record) error {
	for _, e := range exporters {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(e.Path()), 0o755); err != nil {
			return scrapeerr.NewExport(e.Name(), "failed to create output directory", err)
		}
		if err := e.Export(ctx, records); err != nil {
			return scrapeerr.NewExport(e.Name(), "export failed", err)
		}
		logger.ForExporter(e.Name()).Info().
			Str("path", e.Path()).
			Int("records", len(records)).
			Msg("Export written")
	}
	return nil
}

// table lays records out as rows over the union of their labels. ok reports
// which cells were present in the record.
type table struct {
	columns []string
	cells   [][]string
	ok      [][]bool
}

func newTable(records []tenderboard.Record) table {
	t := table{columns: tenderboard.Columns(records)}
	t.cells = make([][]string, len(records))
	t.ok = make([][]bool, len(records))
	for i, rec := range records {
		row := make([]string, len(t.columns))
		present := make([]bool, len(t.columns))
		for j, col := range t.columns {
			row[j], present[j] = rec.Get(col)
		}
		t.cells[i] = row
		t.ok[i] = present
	}
	return t
}
