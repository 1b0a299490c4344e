package storage

import (
	"context"
	"fmt"
	"log"
	"time"
)

// BatchError reports the page of rows that failed to insert. Rows are
// numbered from 1 in record-file order.
type BatchError struct {
	Batch    int
	Batches  int
	FirstRow int
	LastRow  int
	Err      error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d/%d (rows %d-%d): %v", e.Batch, e.Batches, e.FirstRow, e.LastRow, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// InsertBatches inserts rows into table through tx in pages of batchSize and
// returns the number of rows the backend reported as inserted and the number
// of pages written. It stops at the first failing page and returns a
// *BatchError; the caller owns the rollback.
//
// A progress line is logged per page with running totals and rows/sec since
// the previous page.
func InsertBatches(
	ctx context.Context,
	tx Tx,
	table string,
	columns []string,
	rows [][]any,
	batchSize int,
	logger *log.Logger,
) (int64, int, error) {
	if batchSize <= 0 {
		return 0, 0, fmt.Errorf("batchSize must be > 0")
	}
	if logger == nil {
		logger = log.Default()
	}

	var (
		total     int64
		batches   = (len(rows) + batchSize - 1) / batchSize
		start     = time.Now()
		lastFlush = start
	)
	for b := 0; b < batches; b++ {
		if err := ctx.Err(); err != nil {
			return total, b, err
		}
		lo := b * batchSize
		hi := min(lo+batchSize, len(rows))
		n, err := tx.InsertRows(ctx, table, columns, rows[lo:hi])
		if err != nil {
			logger.Printf("loader: batch #%d/%d failed rows=%d-%d sample=%s err=%v",
				b+1, batches, lo+1, hi, sample(columns, rows[lo]), err)
			return total, b, &BatchError{Batch: b + 1, Batches: batches, FirstRow: lo + 1, LastRow: hi, Err: err}
		}
		total += n

		now := time.Now()
		sinceLast := now.Sub(lastFlush)
		rps := float64(0)
		if sinceLast > 0 {
			rps = float64(n) / sinceLast.Seconds()
		}
		logger.Printf("loader: batch #%d/%d rows=%d-%d rps=%.0f inserted=%d total_inserted=%d elapsed=%s",
			b+1, batches, lo+1, hi, rps, n, total, now.Sub(start).Truncate(time.Millisecond))
		lastFlush = now
	}
	return total, batches, nil
}

// sample renders the first row of a failed page, truncating long values.
func sample(columns []string, row []any) string {
	const maxVal = 40
	out := "{"
	for i, c := range columns {
		if i > 0 {
			out += " "
		}
		var v any
		if i < len(row) {
			v = row[i]
		}
		s := fmt.Sprintf("%v", v)
		if v == nil {
			s = "NULL"
		}
		if len(s) > maxVal {
			s = s[:maxVal] + "..."
		}
		out += c + "=" + s
	}
	return out + "}"
}
