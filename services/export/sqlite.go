package export

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"sjsage522/tenderscraper/internal/tenderboard"
)

// SQLiteExporter writes a database file holding one TEXT-only table, replaced
// on every run.
type SQLiteExporter struct {
	path  string
	table string
}

func (e *SQLiteExporter) Name() string { return FormatSQLite }
func (e *SQLiteExporter) Path() string { return e.path }

func (e *SQLiteExporter) Export(ctx context.Context, records []tenderboard.Record) error {
	db, err := sql.Open("sqlite", e.path)
	if err != nil {
		return err
	}
	defer db.Close()

	t := newTable(records)
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	table := quoteIdent(e.table)
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
		return err
	}
	if len(t.columns) == 0 {
		// no columns, no table
		return tx.Commit()
	}

	defs := make([]string, len(t.columns))
	names := make([]string, len(t.columns))
	marks := make([]string, len(t.columns))
	for i, col := range t.columns {
		names[i] = quoteIdent(col)
		defs[i] = names[i] + " TEXT"
		marks[i] = "?"
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(defs, ", "))); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(names, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return err
	}
	defer stmt.Close()

	args := make([]interface{}, len(t.columns))
	for i, row := range t.cells {
		for j := range row {
			if t.ok[i][j] {
				args[j] = row[j]
			} else {
				args[j] = nil
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
