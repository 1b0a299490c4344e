package config

import (
	"fmt"
	"os"
	"strconv"
)

// getenvInt returns the integer value of k, or def when k is unset.
// A set but malformed value is an error rather than a silent default.
func getenvInt(k string, def int) (int, error) {
	s, ok := os.LookupEnv(k)
	if !ok || s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", k, err)
	}
	return n, nil
}
