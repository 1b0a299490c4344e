package coerce

import (
	"math"
	"reflect"
	"testing"

	"insuraflow/internal/records"
)

func rec(kv ...any) records.Record {
	var r records.Record
	for i := 0; i+1 < len(kv); i += 2 {
		r = append(r, records.Field{Name: kv[i].(string), Value: kv[i+1]})
	}
	return r
}

func TestCoerce_GeneralRule(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   any
		want any
	}{
		{"empty", "", nil},
		{"None", "None", nil},
		{"nan lower", "nan", nil},
		{"NaN mixed", "NaN", nil},
		{"float NaN", math.NaN(), nil},
		{"none lower kept", "none", "none"},
		{"space kept", " ", " "},
		{"text", "Zurich", "Zurich"},
		{"int", int64(0), int64(0)},
		{"float", 1.5, 1.5},
		{"bool", false, false},
		{"nil", nil, nil},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Coerce(rec("c", tc.in), nil)
			if v, _ := got.Get("c"); !reflect.DeepEqual(v, tc.want) {
				t.Fatalf("Coerce(%#v)=%#v want %#v", tc.in, v, tc.want)
			}
		})
	}
}

/*
TestCoerce_IdentifierRule verifies the identifier-only nulls and UUID
canonicalisation, and that non-identifier columns are left alone.
*/
func TestCoerce_IdentifierRule(t *testing.T) {
	t.Parallel()
	ids := map[string]struct{}{"policy_id": {}}
	cases := []struct {
		in, want any
	}{
		{"", nil},
		{"   ", nil},
		{"None", nil},
		{"NULL", nil},
		{"null", nil},
		{"nan", nil},
		{"6BA7B810-9DAD-11D1-80B4-00C04FD430C8", "6ba7b810-9dad-11d1-80b4-00c04fd430c8"},
		{" 6ba7b810-9dad-11d1-80b4-00c04fd430c8 ", "6ba7b810-9dad-11d1-80b4-00c04fd430c8"},
		{"not-a-uuid", "not-a-uuid"},
		{int64(5), int64(5)},
	}
	for _, tc := range cases {
		got := Coerce(rec("policy_id", tc.in, "note", "null"), ids)
		if v, _ := got.Get("policy_id"); !reflect.DeepEqual(v, tc.want) {
			t.Fatalf("policy_id %#v -> %#v want %#v", tc.in, v, tc.want)
		}
		if v, _ := got.Get("note"); v != "null" {
			t.Fatalf("non-identifier column changed: %#v", v)
		}
	}
}

// TestCoerce_EmptyIdentifierKeepsAmount checks that a blank identifier becomes
// nil while the amount beside it is left as is.
func TestCoerce_EmptyIdentifierKeepsAmount(t *testing.T) {
	t.Parallel()
	in := rec("policy_id", "", "amount", int64(100))
	got := Coerce(in, map[string]struct{}{"policy_id": {}})
	want := rec("policy_id", nil, "amount", int64(100))
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v want %#v", got, want)
	}
	if v, _ := in.Get("policy_id"); v != "" {
		t.Fatalf("input record was mutated: %#v", in)
	}
}

func TestCoerceAll(t *testing.T) {
	t.Parallel()
	ds := records.Dataset{
		Columns: []string{"id", "v"},
		Records: []records.Record{rec("id", "None", "v", "x"), rec("id", "b", "v", "")},
	}
	out := CoerceAll(ds, map[string]struct{}{"id": {}})
	rows := out.Rows(out.Columns)
	want := [][]any{{nil, "x"}, {"b", nil}}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows=%#v want %#v", rows, want)
	}
	if v, _ := ds.Records[0].Get("id"); v != "None" {
		t.Fatal("CoerceAll mutated its input")
	}
}
