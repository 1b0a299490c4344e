// Package coerce maps the textual null markers a processing unit may leave in
// its output to real nulls before the rows reach the database.
package coerce

import (
	"math"
	"strings"

	"github.com/google/uuid"

	"insuraflow/internal/records"
)

// Coerce returns a copy of rec with null markers replaced by nil.
//
// Every column: "", "None", a float NaN, or the string "nan" in any case
// becomes nil. Columns in ids (identifier-typed, e.g. UUID) additionally
// treat whitespace-only strings and "none"/"null" in any case as nil, and
// rewrite valid UUID strings to their canonical lowercase hyphenated form.
// rec is not modified.
func Coerce(rec records.Record, ids map[string]struct{}) records.Record {
	out := make(records.Record, len(rec))
	for i, f := range rec {
		v := general(f.Value)
		if _, ok := ids[f.Name]; ok {
			v = identifier(f.Value, v)
		}
		out[i] = records.Field{Name: f.Name, Value: v}
	}
	return out
}

// CoerceAll applies Coerce to every record of ds. ds is not modified.
func CoerceAll(ds records.Dataset, ids map[string]struct{}) records.Dataset {
	out := records.Dataset{
		Columns: append([]string(nil), ds.Columns...),
		Records: make([]records.Record, len(ds.Records)),
	}
	for i, rec := range ds.Records {
		out.Records[i] = Coerce(rec, ids)
	}
	return out
}

func general(v any) any {
	switch x := v.(type) {
	case string:
		if x == "" || x == "None" || strings.EqualFold(x, "nan") {
			return nil
		}
	case float64:
		if math.IsNaN(x) {
			return nil
		}
	case float32:
		if math.IsNaN(float64(x)) {
			return nil
		}
	}
	return v
}

// identifier works from the original value so it holds even when the general
// rule is bypassed; coerced is the general rule's result.
func identifier(orig, coerced any) any {
	s, ok := orig.(string)
	if !ok {
		return coerced
	}
	t := strings.TrimSpace(s)
	if t == "" || strings.EqualFold(t, "none") || strings.EqualFold(t, "null") {
		return nil
	}
	if coerced == nil {
		return nil
	}
	if u, err := uuid.Parse(t); err == nil {
		return u.String()
	}
	return coerced
}
