package load

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"insuraflow/internal/etlerr"
	"insuraflow/internal/storage"
)

// fold strips accents and case so "Prémium" and "premium" compare equal.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// reconcile maps every record column to a table column: exact name first,
// then folded. The result is aligned with recordCols. Unmatched columns, and
// two record columns landing on the same table column, wrap
// etlerr.ErrColumnMismatch.
func reconcile(recordCols []string, table []storage.ColumnSchema) ([]string, error) {
	exact := make(map[string]bool, len(table))
	folded := make(map[string][]string, len(table))
	for _, c := range table {
		exact[c.Name] = true
		k := fold(c.Name)
		folded[k] = append(folded[k], c.Name)
	}

	out := make([]string, len(recordCols))
	used := make(map[string]string, len(recordCols))
	var unmatched []string
	for i, rc := range recordCols {
		target := ""
		switch cands := folded[fold(rc)]; {
		case exact[rc]:
			target = rc
		case len(cands) == 1:
			target = cands[0]
		case len(cands) > 1:
			return nil, fmt.Errorf("%w: record column %q matches %d table columns %v", etlerr.ErrColumnMismatch, rc, len(cands), cands)
		default:
			unmatched = append(unmatched, rc)
			continue
		}
		if prev, dup := used[target]; dup {
			return nil, fmt.Errorf("%w: record columns %q and %q both map to %q", etlerr.ErrColumnMismatch, prev, rc, target)
		}
		used[target] = rc
		out[i] = target
	}
	if len(unmatched) > 0 {
		return nil, fmt.Errorf("%w: table has no column for %s", etlerr.ErrColumnMismatch, strings.Join(quoteAll(unmatched), ", "))
	}
	return out, nil
}

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = fmt.Sprintf("%q", s)
	}
	return out
}
