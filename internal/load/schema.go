package load

import (
	"context"
	"fmt"
	"sort"

	"insuraflow/internal/etlerr"
	"insuraflow/internal/storage"
)

// Columns lists the columns of table through the backend's catalog query on
// conn. A failed query, or a table with no visible columns, wraps
// etlerr.ErrSchemaQueryFailed.
func Columns(ctx context.Context, conn storage.Conn, table string) ([]storage.ColumnSchema, error) {
	cols, err := conn.Columns(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", etlerr.ErrSchemaQueryFailed, table, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: table %s has no columns or does not exist", etlerr.ErrSchemaQueryFailed, table)
	}
	return cols, nil
}

// IdentifierColumns returns the names of the identifier-typed columns of
// table. A table without any yields an empty set.
func IdentifierColumns(ctx context.Context, conn storage.Conn, table string) (map[string]struct{}, error) {
	cols, err := Columns(ctx, conn, table)
	if err != nil {
		return nil, err
	}
	return identifierSet(cols), nil
}

func identifierSet(cols []storage.ColumnSchema) map[string]struct{} {
	ids := make(map[string]struct{})
	for _, c := range cols {
		if c.IsIdentifier {
			ids[c.Name] = struct{}{}
		}
	}
	return ids
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
