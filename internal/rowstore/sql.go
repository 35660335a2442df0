package rowstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	appLog "maintdash/internal/log"
)

// Dialect captures the differences between the SQL backends we speak to.
type Dialect struct {
	Name string
	// Driver is the database/sql driver name.
	Driver string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// ClientIDs makes Insert generate the id instead of the column default.
	ClientIDs bool
	Schema    string
}

var Postgres = Dialect{
	Name:        "postgres",
	Driver:      "postgres",
	Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	Schema: `CREATE TABLE IF NOT EXISTS %s (
	id                 UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	title              TEXT NOT NULL DEFAULT '',
	system             TEXT NOT NULL DEFAULT '',
	owner              TEXT NOT NULL DEFAULT '',
	environment        TEXT NOT NULL DEFAULT 'Production',
	status             TEXT NOT NULL DEFAULT 'Scheduled',
	impact             TEXT NOT NULL DEFAULT 'Medium',
	notifications_sent BOOLEAN NOT NULL DEFAULT FALSE,
	start_date         TIMESTAMPTZ,
	end_date           TIMESTAMPTZ,
	description        TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
}

var SQLite = Dialect{
	Name:        "sqlite",
	Driver:      "sqlite",
	Placeholder: func(int) string { return "?" },
	ClientIDs:   true,
	Schema: `CREATE TABLE IF NOT EXISTS %s (
	id                 TEXT PRIMARY KEY,
	title              TEXT NOT NULL DEFAULT '',
	system             TEXT NOT NULL DEFAULT '',
	owner              TEXT NOT NULL DEFAULT '',
	environment        TEXT NOT NULL DEFAULT 'Production',
	status             TEXT NOT NULL DEFAULT 'Scheduled',
	impact             TEXT NOT NULL DEFAULT 'Medium',
	notifications_sent INTEGER NOT NULL DEFAULT 0,
	start_date         TEXT,
	end_date           TEXT,
	description        TEXT NOT NULL DEFAULT '',
	created_at         TEXT NOT NULL DEFAULT (strftime('%%Y-%%m-%%dT%%H:%%M:%%fZ', 'now'))
)`,
}

// SQLStore is a RowStore over database/sql.
type SQLStore struct {
	db      *sql.DB
	table   string
	dialect Dialect
}

// NewSQLStore wraps an open handle. table must be a plain identifier.
func NewSQLStore(db *sql.DB, dialect Dialect, table string) (*SQLStore, error) {
	if !validIdent(table) {
		return nil, fmt.Errorf("rowstore: invalid table name %q", table)
	}
	return &SQLStore{db: db, table: table, dialect: dialect}, nil
}

// OpenSQL opens and pings a database for the given dialect.
func OpenSQL(ctx context.Context, dialect Dialect, dsn string) (*sql.DB, error) {
	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dialect.Name == SQLite.Name {
		// One writer keeps modernc from returning SQLITE_BUSY under load.
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to configure sqlite: %w", err)
		}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// EnsureTable creates the table when it does not exist yet. Existing tables
// are left untouched.
func (s *SQLStore) EnsureTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(s.dialect.Schema, s.table))
	if err != nil {
		return fmt.Errorf("rowstore: create table %s: %w", s.table, err)
	}
	return nil
}

func (s *SQLStore) SelectAll(ctx context.Context, orderBy string) ([]Row, error) {
	if err := checkOrderBy(orderBy); err != nil {
		return nil, err
	}
	q := fmt.Sprintf("SELECT * FROM %s ORDER BY %s ASC", s.table, orderBy)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("rowstore: select: %w", err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("rowstore: select: %w", err)
	}
	appLog.Debug("rowstore select", "backend", s.dialect.Name, "table", s.table, "rows", len(out))
	return out, nil
}

func (s *SQLStore) Insert(ctx context.Context, row Row) (Row, error) {
	if err := checkColumns(row); err != nil {
		return nil, err
	}
	cols, args := orderedColumns(row)
	if s.dialect.ClientIDs {
		cols = append([]string{"id"}, cols...)
		args = append([]any{uuid.NewString()}, args...)
	}

	ph := make([]string, len(cols))
	for i := range cols {
		ph[i] = s.dialect.Placeholder(i + 1)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		s.table, strings.Join(cols, ", "), strings.Join(ph, ", "))

	stored, err := s.queryOne(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("rowstore: insert: %w", err)
	}
	return stored, nil
}

func (s *SQLStore) Update(ctx context.Context, id string, row Row) (Row, error) {
	if err := checkColumns(row); err != nil {
		return nil, err
	}
	if len(row) == 0 {
		return nil, errors.New("rowstore: update with no columns")
	}
	cols, args := orderedColumns(row)
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = " + s.dialect.Placeholder(i+1)
	}
	args = append(args, id)
	q := fmt.Sprintf("UPDATE %s SET %s WHERE id = %s RETURNING *",
		s.table, strings.Join(sets, ", "), s.dialect.Placeholder(len(args)))

	stored, err := s.queryOne(ctx, q, args...)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("rowstore: update %s: %w", id, err)
	}
	return stored, nil
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	q := fmt.Sprintf("DELETE FROM %s WHERE id = %s", s.table, s.dialect.Placeholder(1))
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("rowstore: delete %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rowstore: delete %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) queryOne(ctx context.Context, q string, args ...any) (Row, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out[0], nil
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := make([]Row, 0)
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		r := make(Row, len(cols))
		for i, c := range cols {
			switch v := vals[i].(type) {
			case []byte:
				// Drivers hand back text-ish columns as bytes; copy out of the scan buffer.
				r[c] = string(v)
			case time.Time:
				r[c] = v.UTC().Format(time.RFC3339Nano)
			default:
				r[c] = v
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// orderedColumns returns the payload's columns in table order so generated
// SQL is stable.
func orderedColumns(row Row) ([]string, []any) {
	cols := make([]string, 0, len(row))
	args := make([]any, 0, len(row))
	for _, c := range Columns {
		if v, ok := row[c]; ok {
			cols = append(cols, c)
			args = append(args, v)
		}
	}
	return cols, args
}

func validIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
