// Package logging builds the per-run logger: every line goes to stderr and,
// when configured, to a log file that is truncated at the start of the run.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

// Flags are the timestamp flags used for every run log.
const Flags = log.LstdFlags | log.Lmicroseconds

// Open returns a logger writing to stderr and to path. path is created (with
// its parent directory) or truncated. An empty path logs to stderr only.
// The returned close function releases the file.
func Open(path string) (*log.Logger, func() error, error) {
	return open(os.Stderr, path)
}

func open(console io.Writer, path string) (*log.Logger, func() error, error) {
	if path == "" {
		return log.New(console, "", Flags), func() error { return nil }, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("logging: create %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("logging: open %s: %w", path, err)
	}
	return log.New(io.MultiWriter(console, f), "", Flags), f.Close, nil
}
