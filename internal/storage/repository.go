// Package storage contains the backend-agnostic contracts of the bulk-load
// target and the factory that opens a connection for a configured database.
//
// Backends live in subpackages (postgres, mssql, sqlite, mysql) and register
// themselves in init. Importing storage/all enables every one of them:
//
//	import _ "insuraflow/internal/storage/all"
//
//	conn, err := storage.Open(ctx, storage.Config{URL: cfg.Database.URL})
//	if err != nil { ... }
//	defer conn.Close(ctx)
//
// A Conn is a single physical connection. The loader opens one per load and
// never shares it.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// ColumnSchema describes one column of the target table.
type ColumnSchema struct {
	Name     string
	DataType string
	// IsIdentifier marks identifier-typed columns (UUID and equivalents),
	// which only accept a well-formed identifier or NULL.
	IsIdentifier bool
}

// Conn is one connection to the target database.
type Conn interface {
	// Columns lists the columns of table in ordinal order. table may be
	// schema-qualified. A table that does not exist yields no columns.
	Columns(ctx context.Context, table string) ([]ColumnSchema, error)
	// Truncate removes every row of table and commits.
	Truncate(ctx context.Context, table string) error
	// Begin starts a transaction.
	Begin(ctx context.Context) (Tx, error)
	// MaxParams is the largest number of bind parameters one statement may
	// carry.
	MaxParams() int
	// Close releases the connection.
	Close(ctx context.Context) error
}

// Tx is an open transaction on a Conn.
type Tx interface {
	// Truncate removes every row of table as part of the transaction.
	Truncate(ctx context.Context, table string) error
	// InsertRows inserts rows (aligned with columns) with one multi-row
	// INSERT statement and returns the affected row count.
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Config selects and addresses a backend.
type Config struct {
	// Kind forces a backend; empty means infer it from URL.
	Kind string
	// URL is the connection string.
	URL string
}

// Opener opens a connection for a registered kind.
type Opener func(ctx context.Context, cfg Config) (Conn, error)

var (
	mu      sync.RWMutex
	openers = map[string]Opener{}
)

// Register registers (or replaces) the Opener for kind. Backends call it from
// init.
func Register(kind string, fn Opener) {
	mu.Lock()
	defer mu.Unlock()
	openers[kind] = fn
}

// ListKinds returns the registered kinds in sorted order.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(openers))
	for k := range openers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Open resolves the backend kind and opens one connection.
func Open(ctx context.Context, cfg Config) (Conn, error) {
	kind := strings.ToLower(strings.TrimSpace(cfg.Kind))
	if kind == "" {
		var err error
		if kind, err = KindFromURL(cfg.URL); err != nil {
			return nil, err
		}
	}
	cfg.Kind = kind

	mu.RLock()
	fn, ok := openers[kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: unsupported kind %q (registered: %s)", kind, strings.Join(ListKinds(), ", "))
	}
	return fn(ctx, cfg)
}

// KindFromURL maps a connection URL's scheme to a backend kind.
func KindFromURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("storage: empty connection URL")
	}
	scheme := ""
	if u, err := url.Parse(raw); err == nil {
		scheme = strings.ToLower(u.Scheme)
	} else if i := strings.Index(raw, "://"); i > 0 {
		// mysql DSNs such as mysql://u:p@tcp(host:3306)/db are not valid URLs.
		scheme = strings.ToLower(raw[:i])
	}
	switch scheme {
	case "postgres", "postgresql":
		return "postgres", nil
	case "sqlserver", "mssql":
		return "mssql", nil
	case "sqlite", "sqlite3", "file":
		return "sqlite", nil
	case "mysql", "mariadb":
		return "mysql", nil
	case "":
		return "", fmt.Errorf("storage: connection URL has no scheme; set database.kind")
	default:
		return "", fmt.Errorf("storage: unknown URL scheme %q", scheme)
	}
}

// SplitTable splits "schema.table" into its parts. schema is empty for an
// unqualified name.
func SplitTable(name string) (schema, table string) {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}
