package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"insuraflow/internal/storage"
)

/*
Package-level test helpers (TB-aware)
*/

func newConn(tb testing.TB) (*storage.SQLConn, string) {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), "test.db")
	c, err := Open(context.Background(), path)
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	tb.Cleanup(func() { _ = c.Close(context.Background()) })
	return c, path
}

func mustExec(tb testing.TB, c *storage.SQLConn, stmt string) {
	tb.Helper()
	if err := c.Exec(context.Background(), stmt); err != nil {
		tb.Fatalf("exec %q: %v", stmt, err)
	}
}

// countRows reads through a second handle so it only sees committed rows.
func countRows(tb testing.TB, path, table string) int {
	tb.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		tb.Fatal(err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		tb.Fatalf("count %s: %v", table, err)
	}
	return n
}

/*
Unit tests
*/

func TestColumns_DetectsUUID(t *testing.T) {
	t.Parallel()
	c, _ := newConn(t)
	mustExec(t, c, `CREATE TABLE policies (policy_id UUID, holder_id uuid, amount INTEGER, region TEXT)`)

	cols, err := c.Columns(context.Background(), "policies")
	if err != nil {
		t.Fatalf("Columns: %v", err)
	}
	want := []storage.ColumnSchema{
		{Name: "policy_id", DataType: "UUID", IsIdentifier: true},
		{Name: "holder_id", DataType: "uuid", IsIdentifier: true},
		{Name: "amount", DataType: "INTEGER"},
		{Name: "region", DataType: "TEXT"},
	}
	if !reflect.DeepEqual(cols, want) {
		t.Fatalf("columns:\n got %+v\nwant %+v", cols, want)
	}

	cols, err = c.Columns(context.Background(), "main.policies")
	if err != nil || len(cols) != 4 {
		t.Fatalf("schema-qualified: cols=%d err=%v", len(cols), err)
	}
	cols, err = c.Columns(context.Background(), "absent")
	if err != nil || len(cols) != 0 {
		t.Fatalf("absent table: cols=%v err=%v", cols, err)
	}
}

/*
TestTxInsertAndRollback verifies multi-row inserts inside a transaction, that
a rollback discards them, and that Truncate empties the table.
*/
func TestTxInsertAndRollback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, path := newConn(t)
	mustExec(t, c, `CREATE TABLE t (id TEXT, amount INTEGER, note TEXT)`)
	cols := []string{"id", "amount", "note"}

	tx, err := c.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	n, err := tx.InsertRows(ctx, "t", cols, [][]any{{"a", int64(1), nil}, {"b", int64(2), "x"}})
	if err != nil || n != 2 {
		t.Fatalf("InsertRows: n=%d err=%v", n, err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatal(err)
	}
	if got := countRows(t, path, "t"); got != 0 {
		t.Fatalf("rows after rollback = %d", got)
	}

	tx, err = c.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tx.InsertRows(ctx, "t", cols, [][]any{{"a", int64(1), nil}}); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatal(err)
	}
	if got := countRows(t, path, "t"); got != 1 {
		t.Fatalf("rows after commit = %d", got)
	}

	if err := c.Truncate(ctx, "t"); err != nil {
		t.Fatal(err)
	}
	if got := countRows(t, path, "t"); got != 0 {
		t.Fatalf("rows after truncate = %d", got)
	}
}

func TestInsertRows_RejectsRaggedRowsAndParamOverflow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, _ := newConn(t)
	mustExec(t, c, `CREATE TABLE t (a INTEGER, b INTEGER)`)

	tx, err := c.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.InsertRows(ctx, "t", []string{"a", "b"}, [][]any{{1}}); err == nil {
		t.Fatal("ragged row: want error")
	}
	rows := make([][]any, maxParams/2+1)
	for i := range rows {
		rows[i] = []any{i, i}
	}
	_, err = tx.InsertRows(ctx, "t", []string{"a", "b"}, rows)
	if err == nil || !strings.Contains(err.Error(), "exceed") {
		t.Fatalf("param overflow: want error, got %v", err)
	}
}

func TestDialect_SQL(t *testing.T) {
	t.Parallel()
	d := Dialect{}
	if got := d.TruncateSQL("main.t", true); got != `DELETE FROM "main"."t"` {
		t.Fatalf("truncate = %s", got)
	}
	if got := storage.InsertSQL(d, "t", []string{"a", `we"ird`}, 2); got != `INSERT INTO "t" ("a","we""ird") VALUES (?,?),(?,?)` {
		t.Fatalf("insert = %s", got)
	}
}
