package export

import (
	"bytes"
	"context"
	"encoding/json"
	"os"

	"sjsage522/tenderscraper/internal/tenderboard"
)

// JSONExporter writes an array of objects. Every object carries every column;
// missing values are null.
type JSONExporter struct {
	path string
}

func (e *JSONExporter) Name() string { return FormatJSON }
func (e *JSONExporter) Path() string { return e.path }

func (e *JSONExporter) Export(_ context.Context, records []tenderboard.Record) error {
	t := newTable(records)
	rows := make([]jsonRow, len(t.cells))
	for i := range t.cells {
		rows[i] = jsonRow{columns: t.columns, values: t.cells[i], ok: t.ok[i]}
	}

	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(e.path, append(data, '\n'), 0o644)
}

// jsonRow encodes in column order
type jsonRow struct {
	columns []string
	values  []string
	ok      []bool
}

func (r jsonRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if !r.ok[i] {
			buf.WriteString("null")
			continue
		}
		value, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
