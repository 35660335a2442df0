// Package rowstore is the remote table the dashboard reads and writes.
//
// The event layer depends only on RowStore; backends are interchangeable:
// an in-memory table, PostgreSQL (lib/pq), SQLite (modernc) and a
// PostgREST-compatible HTTP endpoint.
package rowstore

import (
	"context"
	"errors"
	"fmt"
)

// Row is one record: column name to value.
type Row = map[string]any

var ErrNotFound = errors.New("rowstore: row not found")

// RowStore is the minimal contract against one logical table.
type RowStore interface {
	// SelectAll returns every row ordered ascending by orderBy.
	SelectAll(ctx context.Context, orderBy string) ([]Row, error)
	// Insert writes a new row and returns it as stored (with id).
	Insert(ctx context.Context, row Row) (Row, error)
	// Update overwrites the given columns of the row with id.
	Update(ctx context.Context, id string, row Row) (Row, error)
	Delete(ctx context.Context, id string) error
}

// Columns is the fixed column set of the maintenance table, in write order.
var Columns = []string{
	"title",
	"system",
	"owner",
	"environment",
	"status",
	"impact",
	"notifications_sent",
	"start_date",
	"end_date",
	"description",
}

var writable = func() map[string]bool {
	m := make(map[string]bool, len(Columns))
	for _, c := range Columns {
		m[c] = true
	}
	return m
}()

var readable = func() map[string]bool {
	m := map[string]bool{"id": true, "created_at": true}
	for _, c := range Columns {
		m[c] = true
	}
	return m
}()

// checkColumns rejects payload keys outside the table's writable columns.
// Column names end up in SQL text, so nothing else may pass.
func checkColumns(row Row) error {
	for k := range row {
		if !writable[k] {
			return fmt.Errorf("rowstore: unknown column %q", k)
		}
	}
	return nil
}

func checkOrderBy(col string) error {
	if !readable[col] {
		return fmt.Errorf("rowstore: cannot order by %q", col)
	}
	return nil
}
