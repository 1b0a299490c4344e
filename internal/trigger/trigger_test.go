package trigger

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var quiet = log.New(io.Discard, "", 0)

/*
TestWatch_DebouncesBurst writes the watched file several times in quick
succession and expects a single run once the burst settles. Writes to other
files in the directory are ignored.
*/
func TestWatch_DebouncesBurst(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	target := filepath.Join(dir, "raw.jsonl")
	if err := os.WriteFile(target, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var runs atomic.Int32
	done := make(chan struct{}, 4)
	tr := New(func(context.Context) error {
		runs.Add(1)
		done <- struct{}{}
		return nil
	}, quiet)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- tr.Watch(ctx, target, 100*time.Millisecond) }()
	time.Sleep(100 * time.Millisecond) // let the watcher register

	if err := os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(target, []byte("{\"n\": 1}\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("no run after file change")
	}
	time.Sleep(300 * time.Millisecond)
	if got := runs.Load(); got != 1 {
		t.Fatalf("runs = %d, want 1", got)
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Watch: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

// TestFire_Serialises checks that concurrent fires never overlap and that a
// failing run does not prevent the next one.
func TestFire_Serialises(t *testing.T) {
	t.Parallel()
	var active, maxActive, calls atomic.Int32
	tr := New(func(context.Context) error {
		n := active.Add(1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		if calls.Add(1) == 1 {
			return errors.New("first run fails")
		}
		return nil
	}, quiet)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.fire(context.Background(), "test")
		}()
	}
	wg.Wait()
	if calls.Load() != 4 || maxActive.Load() != 1 {
		t.Fatalf("calls=%d maxActive=%d", calls.Load(), maxActive.Load())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tr.fire(ctx, "cancelled")
	if calls.Load() != 4 {
		t.Fatal("fire ran with a cancelled context")
	}
}

func TestSchedule_InvalidSpec(t *testing.T) {
	t.Parallel()
	tr := New(func(context.Context) error { return nil }, quiet)
	if err := tr.Schedule(context.Background(), "not a cron"); err == nil {
		t.Fatal("want error for invalid spec")
	}
}

func TestSchedule_RunsAndStops(t *testing.T) {
	t.Parallel()
	ran := make(chan struct{}, 1)
	tr := New(func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}, quiet)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- tr.Schedule(ctx, "@every 1s") }()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduled run did not happen")
	}
	cancel()
	if err := <-errc; err != nil {
		t.Fatalf("Schedule: %v", err)
	}
}

func TestServe_RequiresATrigger(t *testing.T) {
	t.Parallel()
	tr := New(func(context.Context) error { return nil }, quiet)
	if err := tr.Serve(context.Background(), Options{}); err == nil {
		t.Fatal("want error")
	}
}
