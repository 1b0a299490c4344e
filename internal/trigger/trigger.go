// Package trigger starts whole pipeline runs unattended: on a cron schedule,
// when the raw data changes, or both. Runs never overlap.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// DefaultDebounce is the quiet period after the last file event before a
// watch-triggered run starts.
const DefaultDebounce = 500 * time.Millisecond

// RunFunc performs one complete run.
type RunFunc func(ctx context.Context) error

// Trigger invokes a RunFunc from schedules and file events, one run at a
// time. A failed run is logged and does not stop the trigger.
type Trigger struct {
	run RunFunc
	log *log.Logger

	mu   sync.Mutex
	runs int
}

// New returns a Trigger for run. A nil logger uses log.Default().
func New(run RunFunc, logger *log.Logger) *Trigger {
	if logger == nil {
		logger = log.Default()
	}
	return &Trigger{run: run, log: logger}
}

// Options selects the active triggers for Serve.
type Options struct {
	Cron      string
	WatchPath string
	Debounce  time.Duration
}

// Serve runs every configured trigger until ctx is cancelled or one of them
// fails to start.
func (t *Trigger) Serve(ctx context.Context, opts Options) error {
	if opts.Cron == "" && opts.WatchPath == "" {
		return errors.New("trigger: neither a schedule nor a watch path is configured")
	}
	g, ctx := errgroup.WithContext(ctx)
	if opts.Cron != "" {
		g.Go(func() error { return t.Schedule(ctx, opts.Cron) })
	}
	if opts.WatchPath != "" {
		g.Go(func() error { return t.Watch(ctx, opts.WatchPath, opts.Debounce) })
	}
	return g.Wait()
}

// fire performs one run unless ctx is already done. Concurrent callers
// queue behind the run in progress.
func (t *Trigger) fire(ctx context.Context, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	t.runs++
	n := t.runs
	start := time.Now()
	t.log.Printf("trigger: run #%d start reason=%s", n, reason)
	if err := t.run(ctx); err != nil {
		t.log.Printf("trigger: run #%d FAILED reason=%s elapsed=%s err=%v", n, reason, time.Since(start).Truncate(time.Millisecond), err)
		return
	}
	t.log.Printf("trigger: run #%d done reason=%s elapsed=%s", n, reason, time.Since(start).Truncate(time.Millisecond))
}

// Schedule runs on spec (standard five-field cron or a descriptor such as
// @daily) until ctx is cancelled. A tick that arrives while the previous run
// is still going is skipped.
func (t *Trigger) Schedule(ctx context.Context, spec string) error {
	logger := cron.PrintfLogger(t.log)
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	if _, err := c.AddFunc(spec, func() { t.fire(ctx, "schedule") }); err != nil {
		return fmt.Errorf("trigger: invalid cron expression %q: %w", spec, err)
	}
	c.Start()
	t.log.Printf("trigger: scheduled cron=%q", spec)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// Watch runs after path changes, once events have been quiet for debounce.
// path may be a file (its directory is watched and events are filtered) or a
// directory (any entry counts).
func (t *Trigger) Watch(ctx context.Context, path string, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("trigger: %w", err)
	}
	dir, match := filepath.Dir(abs), abs
	if fi, err := os.Stat(abs); err == nil && fi.IsDir() {
		dir, match = abs, ""
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("trigger: create watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("trigger: watch %s: %w", dir, err)
	}
	t.log.Printf("trigger: watching %s debounce=%s", abs, debounce)

	// pending holds at most one queued run; bursts coalesce into it.
	pending := make(chan struct{}, 1)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-pending:
				t.fire(ctx, "watch")
			}
		}
	})
	g.Go(func() error {
		timer := time.NewTimer(debounce)
		if !timer.Stop() {
			<-timer.C
		}
		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case ev, ok := <-w.Events:
				if !ok {
					return nil
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if match != "" && filepath.Clean(ev.Name) != match {
					continue
				}
				timer.Reset(debounce)
			case <-timer.C:
				select {
				case pending <- struct{}{}:
				default:
				}
			case err, ok := <-w.Errors:
				if !ok {
					return nil
				}
				t.log.Printf("trigger: watcher error: %v", err)
			}
		}
	})
	return g.Wait()
}
