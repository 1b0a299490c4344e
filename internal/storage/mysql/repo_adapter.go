package mysql

import (
	"context"

	"insuraflow/internal/storage"
)

// open is a test hook that points to Open by default.
var open = Open

func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Conn, error) {
		dsn, err := DSN(cfg.URL)
		if err != nil {
			return nil, err
		}
		c, err := open(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
}
