package sqlite

import (
	"context"
	"errors"
	"testing"

	"insuraflow/internal/storage"
)

// TestRegistrationUsesOpenHook verifies that the "sqlite" kind registered in
// init goes through the open hook with the URL converted to a driver DSN.
func TestRegistrationUsesOpenHook(t *testing.T) {
	orig := open
	defer func() { open = orig }()

	var got string
	sentinel := errors.New("stop here")
	open = func(ctx context.Context, dsn string) (*storage.SQLConn, error) {
		got = dsn
		return nil, sentinel
	}

	_, err := storage.Open(context.Background(), storage.Config{URL: "sqlite:///var/lib/insuraflow/load.db"})
	if !errors.Is(err, sentinel) {
		t.Fatalf("storage.Open error = %v, want hook error", err)
	}
	if got != "/var/lib/insuraflow/load.db" {
		t.Fatalf("hook dsn = %q", got)
	}
}

func TestDSN(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"sqlite:///abs/x.db":       "/abs/x.db",
		"sqlite://rel/x.db":        "rel/x.db",
		"sqlite::memory:":          ":memory:",
		"file:x.db?_pragma=foo(1)": "file:x.db?_pragma=foo(1)",
		"sqlite3:///abs/y.db":      "/abs/y.db",
	}
	for in, want := range cases {
		if got := DSN(in); got != want {
			t.Errorf("DSN(%q) = %q, want %q", in, got, want)
		}
	}
}
