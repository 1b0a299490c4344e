// Package runlock serialises runs against the same table across processes
// with an advisory flock on <dir>/<table>.lock.
package runlock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"insuraflow/internal/etlerr"
)

// Lock is a held run lock.
type Lock struct {
	f    *os.File
	path string
}

// Path returns the lock file's path.
func (l *Lock) Path() string { return l.path }

// Acquire takes the lock for table without blocking. A lock held by another
// run wraps etlerr.ErrLocked.
func Acquire(dir, table string) (*Lock, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("runlock: create %s: %w", dir, err)
	}
	path := filepath.Join(dir, fileName(table))
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("runlock: open %s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s (%s)", etlerr.ErrLocked, table, path)
		}
		return nil, fmt.Errorf("runlock: flock %s: %w", path, err)
	}
	// Holder's pid, for operators only.
	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}
	return &Lock{f: f, path: path}, nil
}

// Release drops the lock. The file stays behind for the next run.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	l.f = nil
	return err
}

// fileName maps a possibly schema-qualified table to a file name.
func fileName(table string) string {
	r := strings.NewReplacer("/", "_", `\`, "_", string(os.PathSeparator), "_")
	return r.Replace(table) + ".lock"
}
