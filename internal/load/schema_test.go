package load

import (
	"context"
	"reflect"
	"testing"

	"insuraflow/internal/storage"
)

func TestIdentifierColumns_SQLite(t *testing.T) {
	t.Parallel()
	url, _ := newDB(t,
		`CREATE TABLE with_ids (policy_id UUID, holder_id uuid, amount INTEGER)`,
		`CREATE TABLE without_ids (amount INTEGER, note TEXT)`,
	)
	conn, err := open(context.Background(), storageConfig(url))
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close(context.Background())

	ids, err := IdentifierColumns(context.Background(), conn, "with_ids")
	if err != nil {
		t.Fatal(err)
	}
	if got := sortedKeys(ids); !reflect.DeepEqual(got, []string{"holder_id", "policy_id"}) {
		t.Fatalf("ids = %v", got)
	}

	ids, err = IdentifierColumns(context.Background(), conn, "without_ids")
	if err != nil || ids == nil || len(ids) != 0 {
		t.Fatalf("no identifier columns: ids=%v err=%v", ids, err)
	}
}

func TestReconcile(t *testing.T) {
	t.Parallel()
	schema := schemaOf("policy_id", "premium", "Region", "región")

	got, err := reconcile([]string{"policy_id", "PREMIUM", "Region"}, schema)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"policy_id", "premium", "Region"}) {
		t.Fatalf("mapping = %v", got)
	}

	// "REGION" folds onto both "Region" and "región".
	if _, err := reconcile([]string{"REGION"}, schema); err == nil {
		t.Fatal("ambiguous fold: want error")
	}
	if _, err := reconcile([]string{"premium", "Premium"}, schema); err == nil {
		t.Fatal("two record columns on one table column: want error")
	}
	if _, err := reconcile([]string{"missing"}, schema); err == nil {
		t.Fatal("unmatched column: want error")
	}
}

func TestFold(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"Prémium":   "premium",
		"NAÏVE":     "naive",
		"policy_id": "policy_id",
	}
	for in, want := range cases {
		if got := fold(in); got != want {
			t.Errorf("fold(%q) = %q, want %q", in, got, want)
		}
	}
}

func storageConfig(url string) storage.Config { return storage.Config{URL: url} }

func schemaOf(names ...string) []storage.ColumnSchema {
	out := make([]storage.ColumnSchema, len(names))
	for i, n := range names {
		out[i] = storage.ColumnSchema{Name: n}
	}
	return out
}
