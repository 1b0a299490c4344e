// Package load replaces the contents of the target table with a record file:
// it discovers the table's schema, coerces the records against it, empties
// the table and inserts every row in one transaction.
package load

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"insuraflow/internal/coerce"
	"insuraflow/internal/config"
	"insuraflow/internal/etlerr"
	"insuraflow/internal/metrics"
	"insuraflow/internal/records"
	"insuraflow/internal/storage"
)

// Stats summarises a successful load.
type Stats struct {
	Rows              int64
	Batches           int
	Columns           []string
	IdentifierColumns []string
	Duration          time.Duration
}

// InsertError reports the INSERT page that failed. It matches
// etlerr.ErrInsertFailed and the backend cause through errors.Is/As.
type InsertError struct {
	Batch    int
	Batches  int
	FirstRow int
	LastRow  int
	Err      error
}

func (e *InsertError) Error() string {
	return fmt.Sprintf("%v: batch %d/%d (rows %d-%d): %v",
		etlerr.ErrInsertFailed, e.Batch, e.Batches, e.FirstRow, e.LastRow, e.Err)
}

func (e *InsertError) Unwrap() []error { return []error{etlerr.ErrInsertFailed, e.Err} }

// open is a test hook that points to storage.Open by default.
var open = storage.Open

// Loader bulk-loads record files into the configured database.
type Loader struct {
	db  config.Database
	job string
	log *log.Logger
}

// NewLoader returns a Loader for db. A nil logger uses log.Default().
func NewLoader(db config.Database, job string, logger *log.Logger) *Loader {
	if logger == nil {
		logger = log.Default()
	}
	return &Loader{db: db, job: job, log: logger}
}

// Load replaces the rows of table with the records in recordsPath. An empty
// table name falls back to the configured one, then to
// config.DefaultTableName.
//
// Records are read, coerced and reconciled with the table's columns before
// anything is truncated, so a malformed file or a column mismatch leaves the
// table untouched. After the truncate, a failed insert rolls back every
// page; unless AtomicReplace is set the table is then left empty.
func (l *Loader) Load(ctx context.Context, recordsPath, table string) (st Stats, err error) {
	start := time.Now()
	defer func() {
		st.Duration = time.Since(start)
		metrics.RecordStep(l.job, "load", err, st.Duration)
	}()

	if table == "" {
		table = l.db.TableName
	}
	if table == "" {
		table = config.DefaultTableName
	}
	if l.db.URL == "" {
		return st, fmt.Errorf("%w: database.url", etlerr.ErrConfigMissing)
	}
	if _, err := os.Stat(recordsPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return st, fmt.Errorf("%w: %s", etlerr.ErrSourceFileMissing, recordsPath)
		}
		return st, fmt.Errorf("%w: %s: %w", etlerr.ErrSourceFileMissing, recordsPath, err)
	}

	conn, err := open(ctx, storage.Config{Kind: l.db.Kind, URL: l.db.URL})
	if err != nil {
		return st, fmt.Errorf("loader: connect: %w", err)
	}
	defer func() {
		if cerr := conn.Close(context.WithoutCancel(ctx)); cerr != nil {
			l.log.Printf("loader: WARN close connection: %v", cerr)
		}
	}()

	schema, err := Columns(ctx, conn, table)
	if err != nil {
		return st, err
	}
	ids := identifierSet(schema)
	st.IdentifierColumns = sortedKeys(ids)
	sum, size, ferr := records.Fingerprint(recordsPath)
	if ferr != nil {
		l.log.Printf("loader: WARN fingerprint %s: %v", recordsPath, ferr)
	}
	l.log.Printf("loader: start file=%s bytes=%d xxh3=%016x table=%s columns=%d identifier_columns=%v",
		recordsPath, size, sum, table, len(schema), st.IdentifierColumns)

	ds, err := records.ReadFile(recordsPath)
	if err != nil {
		return st, err
	}
	metrics.RecordRow(l.job, "read", int64(len(ds.Records)))

	targets, err := reconcile(ds.Columns, schema)
	if err != nil {
		return st, err
	}
	// Records with no keys have nothing to insert.
	if len(targets) == 0 && len(ds.Records) > 0 {
		return st, fmt.Errorf("%w: %d records carry no columns", etlerr.ErrColumnMismatch, len(ds.Records))
	}
	// Coercion keys on record column names.
	recIDs := make(map[string]struct{}, len(ids))
	for i, rc := range ds.Columns {
		if _, ok := ids[targets[i]]; ok {
			recIDs[rc] = struct{}{}
		}
	}
	ds = coerce.CoerceAll(ds, recIDs)
	rows := ds.Rows(ds.Columns)
	st.Columns = targets

	pageSize := l.pageSize(conn.MaxParams(), len(targets))

	if !l.db.AtomicReplace {
		if err := conn.Truncate(ctx, table); err != nil {
			return st, fmt.Errorf("loader: truncate %s: %w", table, err)
		}
		l.log.Printf("loader: truncated table=%s", table)
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return st, fmt.Errorf("%w: begin: %w", etlerr.ErrInsertFailed, err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rerr := tx.Rollback(context.WithoutCancel(ctx)); rerr != nil {
			l.log.Printf("loader: WARN rollback: %v", rerr)
		} else {
			l.log.Printf("loader: rolled back table=%s", table)
		}
	}()

	if l.db.AtomicReplace {
		if err := tx.Truncate(ctx, table); err != nil {
			return st, fmt.Errorf("loader: truncate %s: %w", table, err)
		}
		l.log.Printf("loader: truncated table=%s in transaction", table)
	}

	n, batches, err := storage.InsertBatches(ctx, tx, table, targets, rows, pageSize, l.log)
	if err != nil {
		var be *storage.BatchError
		if errors.As(err, &be) {
			return st, &InsertError{Batch: be.Batch, Batches: be.Batches, FirstRow: be.FirstRow, LastRow: be.LastRow, Err: be.Err}
		}
		return st, fmt.Errorf("%w: %w", etlerr.ErrInsertFailed, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return st, fmt.Errorf("%w: commit: %w", etlerr.ErrInsertFailed, err)
	}
	committed = true

	st.Rows = n
	st.Batches = batches
	metrics.RecordRow(l.job, "inserted", n)
	metrics.RecordBatches(l.job, int64(batches))
	l.log.Printf("loader: done table=%s rows=%d batches=%d page_size=%d elapsed=%s",
		table, n, batches, pageSize, time.Since(start).Truncate(time.Millisecond))
	return st, nil
}

// pageSize caps the configured page size so one INSERT stays within the
// backend's bind-parameter limit.
func (l *Loader) pageSize(maxParams, ncols int) int {
	size := l.db.PageSize
	if size <= 0 {
		size = config.DefaultPageSize
	}
	if ncols > 0 && maxParams > 0 {
		if limit := maxParams / ncols; limit < size {
			size = max(limit, 1)
		}
	}
	return size
}
