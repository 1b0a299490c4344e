package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"insuraflow/internal/config"
	"insuraflow/internal/etlerr"
	"insuraflow/internal/load"
	"insuraflow/internal/logging"
	"insuraflow/internal/metrics"
	"insuraflow/internal/metrics/datadog"
	"insuraflow/internal/metrics/prompush"
	"insuraflow/internal/pipeline"
	"insuraflow/internal/runlock"
	"insuraflow/internal/unit"
)

// app is one configured pipeline.
type app struct {
	cfg   config.Config
	units pipeline.UnitResolver
	now   func() time.Time
}

// newApp wires the external unit command from cfg.Runner as the default
// unit for every stage.
func newApp(cfg config.Config) (*app, error) {
	cmd, err := unit.NewCommand(cfg.Runner.Command, unit.WithDir(cfg.Runner.Dir), unit.WithTimeout(cfg.Runner.Timeout))
	if err != nil {
		return nil, fmt.Errorf("%w: runner.command: %w", etlerr.ErrConfigMissing, err)
	}
	return &app{cfg: cfg, units: unit.NewRegistry(cmd), now: time.Now}, nil
}

// runLogged opens the run's log file and performs one run.
func (a *app) runLogged(ctx context.Context) error {
	logger, closeLog, err := logging.Open(a.cfg.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()
	if err := a.run(ctx, logger); err != nil {
		logger.Printf("insuraflow: run FAILED err=%v", err)
		return err
	}
	return nil
}

// run holds the table lock across both stages and the load.
func (a *app) run(ctx context.Context, logger *log.Logger) error {
	start := time.Now()
	table := a.table()
	lock, err := runlock.Acquire(a.cfg.LockDir, table)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Printf("insuraflow: WARN release lock %s: %v", lock.Path(), err)
		}
	}()

	stages, err := pipeline.Resolve(a.cfg, a.now())
	if err != nil {
		return err
	}
	runner := pipeline.NewRunner(a.units, a.cfg.Job, logger)
	out, err := pipeline.NewExecutor(runner, logger).Execute(ctx, stages)
	if err != nil {
		return err
	}

	st, err := load.NewLoader(a.cfg.Database, a.cfg.Job, logger).Load(ctx, out, table)
	if err != nil {
		return err
	}
	logger.Printf("insuraflow: run complete table=%s rows=%d batches=%d elapsed=%s",
		table, st.Rows, st.Batches, time.Since(start).Truncate(time.Millisecond))
	return nil
}

// load runs only the loader, under the table lock.
func (a *app) load(ctx context.Context, logger *log.Logger, path string) error {
	table := a.table()
	lock, err := runlock.Acquire(a.cfg.LockDir, table)
	if err != nil {
		return err
	}
	defer lock.Release()

	st, err := load.NewLoader(a.cfg.Database, a.cfg.Job, logger).Load(ctx, path, table)
	if err != nil {
		return err
	}
	logger.Printf("insuraflow: load complete table=%s rows=%d batches=%d identifier_columns=%v",
		table, st.Rows, st.Batches, st.IdentifierColumns)
	return nil
}

func (a *app) table() string {
	if a.cfg.Database.TableName != "" {
		return a.cfg.Database.TableName
	}
	return config.DefaultTableName
}

// setupMetrics installs the configured metrics backend and returns the
// function that flushes it at exit.
func setupMetrics(cfg config.Config, logger *log.Logger) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch cfg.Metrics.Backend {
	case "", "none":
		return func() {}
	case "pushgateway":
		b, err = prompush.NewBackend(cfg.Job, cfg.Metrics.PushgatewayURL)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:      cfg.Metrics.DatadogAddr,
			Namespace: "insuraflow.",
			Tags:      cfg.Metrics.DatadogTags,
		})
	default:
		err = errors.New("unknown backend")
	}
	if err != nil {
		logger.Printf("metrics: backend=%s disabled: %v", cfg.Metrics.Backend, err)
		return func() {}
	}
	logger.Printf("metrics: backend=%s job=%s", cfg.Metrics.Backend, cfg.Job)
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			logger.Printf("metrics: flush error: %v", err)
		}
	}
}
