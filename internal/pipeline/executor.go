package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"insuraflow/internal/etlerr"
)

// Executor runs stages strictly in order and stops at the first failure.
type Executor struct {
	runner StageRunner
	log    *log.Logger
}

// NewExecutor returns an Executor. A nil logger uses log.Default().
func NewExecutor(runner StageRunner, logger *log.Logger) *Executor {
	if logger == nil {
		logger = log.Default()
	}
	return &Executor{runner: runner, log: logger}
}

// Execute runs stages in sequence. Each stage after the first reads the
// output path the previous stage produced. The first stage error is returned
// as is and no later stage is started. On success it returns the last
// stage's output path.
func (e *Executor) Execute(ctx context.Context, stages []StageSpec) (string, error) {
	if len(stages) == 0 {
		return "", fmt.Errorf("%w: no stages configured", etlerr.ErrConfigMissing)
	}
	runID := uuid.NewString()
	start := time.Now()
	e.log.Printf("pipeline: run=%s start stages=%d", runID, len(stages))

	var prev StageResult
	for i, st := range stages {
		if i > 0 {
			st.Input = prev.OutputPath
		}
		if err := ctx.Err(); err != nil {
			e.log.Printf("pipeline: run=%s cancelled before stage=%s", runID, st.Name)
			return "", err
		}
		e.log.Printf("pipeline: run=%s stage %d/%d %s", runID, i+1, len(stages), st.Name)
		res, err := e.runner.Run(ctx, st, nil)
		if err != nil {
			e.log.Printf("pipeline: run=%s failed stage=%s err=%v", runID, st.Name, err)
			return "", err
		}
		prev = res
	}
	e.log.Printf("pipeline: run=%s finished output=%s elapsed=%s", runID, prev.OutputPath, time.Since(start).Truncate(time.Millisecond))
	return prev.OutputPath, nil
}
