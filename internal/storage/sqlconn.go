package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Dialect captures what differs between the database/sql backends.
type Dialect interface {
	// Name is the backend kind, used in error messages.
	Name() string
	// QuoteIdent quotes a single identifier.
	QuoteIdent(id string) string
	// Placeholder returns the bind marker for the n-th (1-based) argument.
	Placeholder(n int) string
	MaxParams() int
	// TruncateSQL empties table; inTx selects a form that is safe inside a
	// transaction.
	TruncateSQL(table string, inTx bool) string
	// ColumnsQuery returns a query yielding (name, data_type) rows in
	// ordinal order for table.
	ColumnsQuery(table string) (string, []any)
	// IsIdentifierType reports whether a catalog data type is identifier-typed.
	IsIdentifierType(dataType string) bool
}

// QuoteTable quotes a possibly schema-qualified name part by part.
func QuoteTable(d interface{ QuoteIdent(string) string }, name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = d.QuoteIdent(p)
	}
	return strings.Join(parts, ".")
}

// InsertSQL builds "INSERT INTO t (c1,c2) VALUES (..),(..)" for nrows rows.
func InsertSQL(d interface {
	QuoteIdent(string) string
	Placeholder(int) string
}, table string, columns []string, nrows int) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(QuoteTable(d, table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(d.QuoteIdent(c))
	}
	b.WriteString(") VALUES ")
	n := 0
	for r := 0; r < nrows; r++ {
		if r > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('(')
		for c := range columns {
			if c > 0 {
				b.WriteByte(',')
			}
			n++
			b.WriteString(d.Placeholder(n))
		}
		b.WriteByte(')')
	}
	return b.String()
}

// flatten lays rows out as one argument list.
func flatten(columns []string, rows [][]any) ([]any, error) {
	args := make([]any, 0, len(columns)*len(rows))
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d values for %d columns", i, len(row), len(columns))
		}
		args = append(args, row...)
	}
	return args, nil
}

// SQLConn implements Conn over one dedicated database/sql connection.
type SQLConn struct {
	db      *sql.DB
	conn    *sql.Conn
	dialect Dialect
}

// NewSQLConn pins one connection from db. The returned Conn owns db and
// closes it on Close.
func NewSQLConn(ctx context.Context, db *sql.DB, d Dialect) (*SQLConn, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: connect: %w", d.Name(), err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping: %w", d.Name(), err)
	}
	return &SQLConn{db: db, conn: conn, dialect: d}, nil
}

var _ Conn = (*SQLConn)(nil)

// Columns implements Conn.
func (c *SQLConn) Columns(ctx context.Context, table string) ([]ColumnSchema, error) {
	q, args := c.dialect.ColumnsQuery(table)
	rows, err := c.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: columns of %s: %w", c.dialect.Name(), table, err)
	}
	defer rows.Close()

	var out []ColumnSchema
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return nil, fmt.Errorf("%s: scan column: %w", c.dialect.Name(), err)
		}
		out = append(out, ColumnSchema{Name: name, DataType: typ, IsIdentifier: c.dialect.IsIdentifierType(typ)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: columns of %s: %w", c.dialect.Name(), table, err)
	}
	return out, nil
}

// Truncate implements Conn.
func (c *SQLConn) Truncate(ctx context.Context, table string) error {
	if _, err := c.conn.ExecContext(ctx, c.dialect.TruncateSQL(table, false)); err != nil {
		return fmt.Errorf("%s: truncate %s: %w", c.dialect.Name(), table, err)
	}
	return nil
}

// Begin implements Conn.
func (c *SQLConn) Begin(ctx context.Context) (Tx, error) {
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: begin: %w", c.dialect.Name(), err)
	}
	return &sqlTx{tx: tx, dialect: c.dialect}, nil
}

// Exec runs a statement outside any transaction, typically a session
// setting or DDL.
func (c *SQLConn) Exec(ctx context.Context, query string, args ...any) error {
	if _, err := c.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: exec: %w", c.dialect.Name(), err)
	}
	return nil
}

// MaxParams implements Conn.
func (c *SQLConn) MaxParams() int { return c.dialect.MaxParams() }

// Close implements Conn.
func (c *SQLConn) Close(context.Context) error {
	err := c.conn.Close()
	if derr := c.db.Close(); err == nil {
		err = derr
	}
	return err
}

type sqlTx struct {
	tx      *sql.Tx
	dialect Dialect
}

func (t *sqlTx) Truncate(ctx context.Context, table string) error {
	if _, err := t.tx.ExecContext(ctx, t.dialect.TruncateSQL(table, true)); err != nil {
		return fmt.Errorf("%s: truncate %s: %w", t.dialect.Name(), table, err)
	}
	return nil
}

func (t *sqlTx) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	args, err := flatten(columns, rows)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", t.dialect.Name(), err)
	}
	if len(args) > t.dialect.MaxParams() {
		return 0, fmt.Errorf("%s: %d bind parameters exceed the limit of %d", t.dialect.Name(), len(args), t.dialect.MaxParams())
	}
	res, err := t.tx.ExecContext(ctx, InsertSQL(t.dialect, table, columns, len(rows)), args...)
	if err != nil {
		return 0, fmt.Errorf("%s: insert: %w", t.dialect.Name(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return int64(len(rows)), nil
	}
	return n, nil
}

func (t *sqlTx) Commit(context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", t.dialect.Name(), err)
	}
	return nil
}

func (t *sqlTx) Rollback(context.Context) error {
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("%s: rollback: %w", t.dialect.Name(), err)
	}
	return nil
}
