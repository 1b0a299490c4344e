package records

import (
	"fmt"
	"io"
	"os"

	"github.com/zeebo/xxh3"
	"golang.org/x/sys/unix"
)

// Fingerprint streams the file at path through xxh3 and returns the 64-bit
// digest together with the number of bytes read.
func Fingerprint(path string) (uint64, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_WILLNEED)

	h := xxh3.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return 0, 0, fmt.Errorf("fingerprint %s: %w", path, err)
	}
	return h.Sum64(), n, nil
}
