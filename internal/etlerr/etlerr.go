// Package etlerr holds the error categories shared by the pipeline, the
// loader and the configuration layer.
//
// Every failure returned by this module wraps exactly one of these sentinels,
// usually together with the underlying cause:
//
//	fmt.Errorf("%w: stage %s: %w", etlerr.ErrUnitExecutionFailed, name, err)
//
// Callers branch with errors.Is on the category and still reach the cause
// through errors.As.
package etlerr

import "errors"

var (
	// ErrConfigMissing reports a required configuration key that is absent,
	// or a stage whose unit reference cannot be resolved.
	ErrConfigMissing = errors.New("config missing")

	// ErrInputNotFound reports a stage input path that does not exist.
	ErrInputNotFound = errors.New("input not found")

	// ErrSourceFileMissing reports an absent record file handed to the loader.
	ErrSourceFileMissing = errors.New("source file missing")

	// ErrUnitExecutionFailed reports a processing unit that returned an error.
	ErrUnitExecutionFailed = errors.New("unit execution failed")

	// ErrOutputMissing reports a stage whose declared output is absent or
	// empty after the unit reported success.
	ErrOutputMissing = errors.New("output missing")

	// ErrSchemaQueryFailed reports a failed catalog query against the target.
	ErrSchemaQueryFailed = errors.New("schema query failed")

	// ErrColumnMismatch reports a record column the target table lacks.
	ErrColumnMismatch = errors.New("column mismatch")

	// ErrInsertFailed reports a failed insert batch or commit.
	ErrInsertFailed = errors.New("insert failed")

	// ErrLocked reports a table that another run currently owns.
	ErrLocked = errors.New("table locked by another run")
)
