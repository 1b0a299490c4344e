// Package mssql implements the SQL Server load target on go-mssqldb through
// database/sql. TRUNCATE TABLE is transactional in SQL Server, so the same
// statement serves both the committed and the in-transaction reset.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"insuraflow/internal/storage"
)

// maxParams is SQL Server's per-request parameter limit.
const maxParams = 2100

// Dialect is the SQL Server storage.Dialect.
type Dialect struct{}

var _ storage.Dialect = Dialect{}

func (Dialect) Name() string { return "mssql" }

func (Dialect) QuoteIdent(id string) string { return msIdent(id) }

func (Dialect) Placeholder(n int) string { return "@p" + strconv.Itoa(n) }

func (Dialect) MaxParams() int { return maxParams }

func (Dialect) TruncateSQL(table string, _ bool) string { return "TRUNCATE TABLE " + msFQN(table) }

// ColumnsQuery resolves an unqualified name against the session's default
// schema.
func (Dialect) ColumnsQuery(table string) (string, []any) {
	schema, name := storage.SplitTable(table)
	var schemaArg any
	if schema != "" {
		schemaArg = schema
	}
	return `SELECT COLUMN_NAME, DATA_TYPE
FROM INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_SCHEMA = COALESCE(@p1, SCHEMA_NAME())
  AND TABLE_NAME = @p2
ORDER BY ORDINAL_POSITION`, []any{schemaArg, name}
}

func (Dialect) IsIdentifierType(t string) bool { return strings.EqualFold(t, "uniqueidentifier") }

// DSN accepts the mssql:// alias for the driver's sqlserver:// scheme.
func DSN(raw string) string {
	raw = strings.TrimSpace(raw)
	if rest, ok := strings.CutPrefix(raw, "mssql://"); ok {
		return "sqlserver://" + rest
	}
	return raw
}

// Open validates dsn and opens one connection.
func Open(ctx context.Context, dsn string) (*storage.SQLConn, error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(dsn); err != nil {
		return nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("mssql: open: %w", err)
	}
	return storage.NewSQLConn(ctx, db, Dialect{})
}

// msIdent safely quotes a single identifier segment for SQL Server.
func msIdent(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }

// msFQN quotes a possibly schema-qualified name like "dbo.insurance_data" to
// "[dbo].[insurance_data]".
func msFQN(name string) string { return storage.QuoteTable(Dialect{}, name) }
