// Package mysql implements the MySQL/MariaDB load target on
// go-sql-driver/mysql through database/sql. TRUNCATE TABLE commits
// implicitly in MySQL, so inside a transaction the table is emptied with
// DELETE FROM instead.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"

	"insuraflow/internal/storage"
)

// maxParams is the protocol's prepared-statement placeholder limit.
const maxParams = 65535

// Dialect is the MySQL storage.Dialect.
type Dialect struct{}

var _ storage.Dialect = Dialect{}

func (Dialect) Name() string { return "mysql" }

func (Dialect) QuoteIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

func (Dialect) Placeholder(int) string { return "?" }

func (Dialect) MaxParams() int { return maxParams }

func (d Dialect) TruncateSQL(table string, inTx bool) string {
	if inTx {
		return "DELETE FROM " + storage.QuoteTable(d, table)
	}
	return "TRUNCATE TABLE " + storage.QuoteTable(d, table)
}

// ColumnsQuery resolves an unqualified name against the connection's
// current database.
func (Dialect) ColumnsQuery(table string) (string, []any) {
	schema, name := storage.SplitTable(table)
	var schemaArg any
	if schema != "" {
		schemaArg = schema
	}
	return "SELECT COLUMN_NAME, DATA_TYPE\n" +
		"FROM information_schema.COLUMNS\n" +
		"WHERE TABLE_SCHEMA = COALESCE(?, DATABASE())\n" +
		"  AND TABLE_NAME = ?\n" +
		"ORDER BY ORDINAL_POSITION", []any{schemaArg, name}
}

// IsIdentifierType matches MariaDB's native UUID type. MySQL has none, so
// a MySQL table never reports identifier columns.
func (Dialect) IsIdentifierType(t string) bool { return strings.EqualFold(t, "uuid") }

// DSN converts a connection URL to the driver's DSN format:
//
//	mysql://u:p@db:3306/claims?parseTime=true -> u:p@tcp(db:3306)/claims?parseTime=true
//	mysql://u:p@tcp(db:3306)/claims           -> u:p@tcp(db:3306)/claims
//
// Driver-style DSNs pass through unchanged. The result is validated with
// mysql.ParseDSN.
func DSN(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	rest := raw
	isURL := false
	for _, p := range []string{"mysql://", "mariadb://"} {
		if r, ok := strings.CutPrefix(raw, p); ok {
			rest, isURL = r, true
			break
		}
	}
	if isURL && !strings.Contains(rest, "(") {
		u, err := url.Parse("mysql://" + rest)
		if err != nil {
			return "", fmt.Errorf("mysql dsn: %w", err)
		}
		addr := u.Host
		if u.Port() == "" {
			addr = net.JoinHostPort(u.Hostname(), "3306")
		}
		var b strings.Builder
		if u.User != nil {
			b.WriteString(u.User.Username())
			if pw, ok := u.User.Password(); ok {
				b.WriteString(":" + pw)
			}
			b.WriteByte('@')
		}
		b.WriteString("tcp(" + addr + ")")
		b.WriteString("/" + strings.TrimPrefix(u.Path, "/"))
		if u.RawQuery != "" {
			b.WriteString("?" + u.RawQuery)
		}
		rest = b.String()
	}
	cfg, err := mysql.ParseDSN(rest)
	if err != nil {
		return "", fmt.Errorf("mysql dsn: %w", err)
	}
	return cfg.FormatDSN(), nil
}

// Open opens one connection for a driver-style dsn.
func Open(ctx context.Context, dsn string) (*storage.SQLConn, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: open: %w", err)
	}
	return storage.NewSQLConn(ctx, db, Dialect{})
}
