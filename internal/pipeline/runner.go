package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"insuraflow/internal/etlerr"
	"insuraflow/internal/metrics"
	"insuraflow/internal/records"
	"insuraflow/internal/unit"
)

// UnitResolver maps a stage's unit reference to a runnable unit.
// *unit.Registry satisfies it.
type UnitResolver interface {
	Resolve(ref string) (unit.Unit, error)
}

// StageRunner runs a single stage.
type StageRunner interface {
	Run(ctx context.Context, stage StageSpec, extraParams map[string]string) (StageResult, error)
}

// Runner invokes one stage's unit against its declared paths and enforces
// the stage's postconditions.
type Runner struct {
	units UnitResolver
	job   string
	log   *log.Logger
}

// NewRunner returns a Runner. A nil logger uses log.Default().
func NewRunner(units UnitResolver, job string, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{units: units, job: job, log: logger}
}

// Run executes stage once, synchronously and without retry.
//
// The unit receives the stage's params overlaid with extraParams. After the
// unit reports success the output must exist and be non-empty. The work
// artifact is removed before Run returns, whatever the outcome.
func (r *Runner) Run(ctx context.Context, stage StageSpec, extraParams map[string]string) (res StageResult, err error) {
	start := time.Now()
	res = StageResult{Name: stage.Name, OutputPath: stage.Output}
	defer func() {
		res.Duration = time.Since(start)
		metrics.RecordStep(r.job, stage.Name, err, res.Duration)
	}()
	artifact := newWorkArtifact(stage.WorkArtifact, stage.Name, r.log)
	defer artifact.release()

	if stage.Unit == "" {
		return res, fmt.Errorf("%w: stage %s: no unit reference", etlerr.ErrConfigMissing, stage.Name)
	}
	u, err := r.units.Resolve(stage.Unit)
	if err != nil {
		return res, fmt.Errorf("stage %s: %w", stage.Name, err)
	}
	if !stage.External {
		if _, err := os.Stat(stage.Input); err != nil {
			return res, fmt.Errorf("%w: stage %s: %s: %w", etlerr.ErrInputNotFound, stage.Name, stage.Input, err)
		}
	}
	for _, p := range []string{stage.Output, stage.WorkArtifact} {
		if dir := filepath.Dir(p); p != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return res, fmt.Errorf("stage %s: create %s: %w", stage.Name, dir, err)
			}
		}
	}

	inv := unit.Invocation{
		Stage:        stage.Name,
		Unit:         stage.Unit,
		Input:        stage.Input,
		Output:       stage.Output,
		WorkArtifact: stage.WorkArtifact,
		Params:       mergeParams(stage.Params, extraParams),
	}
	r.log.Printf("stage: %s start unit=%s input=%s output=%s artifact=%s", stage.Name, stage.Unit, stage.Input, stage.Output, stage.WorkArtifact)

	if err := u.Run(ctx, inv); err != nil {
		r.log.Printf("stage: %s FAILED unit=%s err=%v", stage.Name, stage.Unit, err)
		return res, fmt.Errorf("%w: stage %s: %w", etlerr.ErrUnitExecutionFailed, stage.Name, err)
	}

	fi, err := os.Stat(stage.Output)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return res, fmt.Errorf("%w: stage %s reported success but %s does not exist", etlerr.ErrOutputMissing, stage.Name, stage.Output)
	case err != nil:
		return res, fmt.Errorf("%w: stage %s: %s: %w", etlerr.ErrOutputMissing, stage.Name, stage.Output, err)
	case fi.IsDir() || fi.Size() == 0:
		return res, fmt.Errorf("%w: stage %s reported success but %s is empty", etlerr.ErrOutputMissing, stage.Name, stage.Output)
	}

	sum, n, err := records.Fingerprint(stage.Output)
	if err != nil {
		return res, fmt.Errorf("stage %s: %w", stage.Name, err)
	}
	res.Success = true
	res.Fingerprint = sum
	res.Bytes = n
	metrics.RecordOutput(r.job, stage.Name, n)
	r.log.Printf("stage: %s done output=%s bytes=%d fingerprint=%016x elapsed=%s", stage.Name, stage.Output, n, sum, time.Since(start).Truncate(time.Millisecond))
	return res, nil
}

func mergeParams(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
