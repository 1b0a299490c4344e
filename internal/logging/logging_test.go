package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestOpen_TruncatesAndTees verifies that a previous run's log is discarded
// and that each line reaches both the console and the file.
func TestOpen_TruncatesAndTees(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "logs", "pipeline.log")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("previous run\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var console bytes.Buffer
	logger, closeFn, err := open(&console, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	logger.Printf("stage: cleaning start")
	if err := closeFn(); err != nil {
		t.Fatal(err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(b), "previous run") {
		t.Fatalf("log file not truncated: %q", b)
	}
	if !strings.Contains(string(b), "stage: cleaning start") || !strings.Contains(console.String(), "stage: cleaning start") {
		t.Fatalf("file=%q console=%q", b, console.String())
	}
}

func TestOpen_NoFile(t *testing.T) {
	t.Parallel()
	var console bytes.Buffer
	logger, closeFn, err := open(&console, "")
	if err != nil {
		t.Fatal(err)
	}
	logger.Print("hello")
	if err := closeFn(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(console.String(), "hello") {
		t.Fatalf("console = %q", console.String())
	}
}
