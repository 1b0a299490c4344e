// Package sqlite implements the SQLite load target on the pure-Go modernc
// driver. SQLite has no TRUNCATE, so the table is emptied with DELETE FROM,
// which is transactional.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"insuraflow/internal/storage"
)

// maxParams is SQLITE_MAX_VARIABLE_NUMBER for SQLite >= 3.32.
const maxParams = 32766

// Dialect is the SQLite storage.Dialect.
type Dialect struct{}

var _ storage.Dialect = Dialect{}

func (Dialect) Name() string { return "sqlite" }

func (Dialect) QuoteIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

func (Dialect) Placeholder(int) string { return "?" }

func (Dialect) MaxParams() int { return maxParams }

func (d Dialect) TruncateSQL(table string, _ bool) string {
	return "DELETE FROM " + storage.QuoteTable(d, table)
}

// ColumnsQuery reads the declared column types through pragma_table_info,
// honouring an attached-schema prefix ("main.policies").
func (Dialect) ColumnsQuery(table string) (string, []any) {
	schema, name := storage.SplitTable(table)
	if schema == "" {
		schema = "main"
	}
	return `SELECT name, type FROM pragma_table_info(?, ?) ORDER BY cid`, []any{name, schema}
}

// IsIdentifierType matches columns declared as UUID. SQLite keeps the
// declared type verbatim, so "uuid" and "UUID" both count.
func (Dialect) IsIdentifierType(t string) bool {
	return strings.EqualFold(strings.TrimSpace(t), "uuid")
}

// DSN converts a connection URL to a modernc DSN:
//
//	sqlite:///var/lib/insuraflow.db  -> /var/lib/insuraflow.db
//	sqlite://data/local.db           -> data/local.db
//	sqlite::memory:                  -> :memory:
//	file:local.db?_pragma=...        -> unchanged
func DSN(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, p := range []string{"sqlite3://", "sqlite://", "sqlite3:", "sqlite:"} {
		if strings.HasPrefix(raw, p) {
			return strings.TrimPrefix(raw, p)
		}
	}
	return raw
}

// Open opens a single-connection handle for dsn with foreign keys on and a
// busy timeout so a concurrent reader does not fail the load outright.
func Open(ctx context.Context, dsn string) (*storage.SQLConn, error) {
	if dsn == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	c, err := storage.NewSQLConn(ctx, db, Dialect{})
	if err != nil {
		return nil, err
	}
	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if err := c.Exec(ctx, pragma); err != nil {
			_ = c.Close(ctx)
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}
	return c, nil
}
