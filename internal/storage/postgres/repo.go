// Package postgres implements the Postgres load target on a single pgx v5
// connection. Rows are written with multi-row parameterised INSERTs inside
// one transaction; TRUNCATE is transactional in Postgres, so the atomic
// replace mode needs no special casing.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"insuraflow/internal/storage"
)

// maxParams is the wire protocol's limit on bind parameters (uint16).
const maxParams = 65535

// pgConnLike is the subset of *pgx.Conn the backend uses.
type pgConnLike interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Close(ctx context.Context) error
}

// Conn is a Postgres storage.Conn.
type Conn struct {
	conn pgConnLike
}

var _ storage.Conn = (*Conn)(nil)

// Connect opens one connection to url.
func Connect(ctx context.Context, url string) (*Conn, error) {
	c, err := pgx.Connect(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	return &Conn{conn: c}, nil
}

const columnsSQL = `
SELECT column_name, data_type
FROM information_schema.columns
WHERE table_schema = COALESCE($1::text, current_schema())
  AND table_name = $2
ORDER BY ordinal_position`

// Columns implements storage.Conn. An unqualified name resolves against
// current_schema().
func (c *Conn) Columns(ctx context.Context, table string) ([]storage.ColumnSchema, error) {
	schema, name := storage.SplitTable(table)
	var schemaArg any
	if schema != "" {
		schemaArg = schema
	}
	rows, err := c.conn.Query(ctx, columnsSQL, schemaArg, name)
	if err != nil {
		return nil, fmt.Errorf("postgres: columns of %s: %w", table, pgErr(err))
	}
	defer rows.Close()

	var out []storage.ColumnSchema
	for rows.Next() {
		var col storage.ColumnSchema
		if err := rows.Scan(&col.Name, &col.DataType); err != nil {
			return nil, fmt.Errorf("postgres: scan column: %w", err)
		}
		col.IsIdentifier = col.DataType == "uuid"
		out = append(out, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: columns of %s: %w", table, pgErr(err))
	}
	return out, nil
}

// Truncate implements storage.Conn. Outside a transaction the statement
// commits on its own.
func (c *Conn) Truncate(ctx context.Context, table string) error {
	if _, err := c.conn.Exec(ctx, truncateSQL(table)); err != nil {
		return fmt.Errorf("postgres: truncate %s: %w", table, pgErr(err))
	}
	return nil
}

// Begin implements storage.Conn.
func (c *Conn) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin: %w", pgErr(err))
	}
	return &Tx{tx: tx}, nil
}

// MaxParams implements storage.Conn.
func (c *Conn) MaxParams() int { return maxParams }

// Close implements storage.Conn.
func (c *Conn) Close(ctx context.Context) error { return c.conn.Close(ctx) }

// Tx is a Postgres storage.Tx.
type Tx struct {
	tx pgx.Tx
}

// Truncate implements storage.Tx.
func (t *Tx) Truncate(ctx context.Context, table string) error {
	if _, err := t.tx.Exec(ctx, truncateSQL(table)); err != nil {
		return fmt.Errorf("postgres: truncate %s: %w", table, pgErr(err))
	}
	return nil
}

// InsertRows implements storage.Tx.
func (t *Tx) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("postgres: row %d has %d values for %d columns", i, len(row), len(columns))
		}
		args = append(args, row...)
	}
	if len(args) > maxParams {
		return 0, fmt.Errorf("postgres: %d bind parameters exceed the limit of %d", len(args), maxParams)
	}
	tag, err := t.tx.Exec(ctx, storage.InsertSQL(dialect{}, table, columns, len(rows)), args...)
	if err != nil {
		return 0, fmt.Errorf("postgres: insert: %w", pgErr(err))
	}
	return tag.RowsAffected(), nil
}

// Commit implements storage.Tx.
func (t *Tx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", pgErr(err))
	}
	return nil
}

// Rollback implements storage.Tx. Rolling back a finished transaction is a
// no-op.
func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("postgres: rollback: %w", err)
	}
	return nil
}

// dialect supplies quoting and $n placeholders to storage.InsertSQL.
type dialect struct{}

func (dialect) QuoteIdent(id string) string { return pgIdent(id) }
func (dialect) Placeholder(n int) string    { return "$" + strconv.Itoa(n) }

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

func truncateSQL(table string) string {
	return "TRUNCATE TABLE " + storage.QuoteTable(dialect{}, table)
}

// pgError keeps the server's detail and SQLSTATE in the message while
// leaving the *pgconn.PgError reachable through errors.As.
type pgError struct {
	*pgconn.PgError
}

func (e pgError) Error() string {
	msg := e.PgError.Message
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return fmt.Sprintf("%s (SQLSTATE %s)", msg, e.Code)
}

func (e pgError) Unwrap() error { return e.PgError }

func pgErr(err error) error {
	var pe *pgconn.PgError
	if errors.As(err, &pe) && pe.Detail != "" {
		return pgError{pe}
	}
	return err
}
