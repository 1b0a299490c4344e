package mssql

import (
	"context"

	"insuraflow/internal/storage"
)

// open is a test hook that points to Open by default.
var open = Open

func init() {
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Conn, error) {
		c, err := open(ctx, DSN(cfg.URL))
		if err != nil {
			return nil, err
		}
		return c, nil
	})
}
