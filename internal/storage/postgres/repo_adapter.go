package postgres

import (
	"context"

	"insuraflow/internal/storage"
)

// connect is a test hook that points to Connect by default.
var connect = Connect

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Conn, error) {
		c, err := connect(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
}
