// Package pipeline runs the processing stages of an InsuraFlow run in order,
// handing each stage's declared output to the next stage as its input.
//
// A run is built in three steps:
//
//	stages, err := pipeline.Resolve(cfg, time.Now())
//	runner := pipeline.NewRunner(registry, cfg.Job, logger)
//	final, err := pipeline.NewExecutor(runner, logger).Execute(ctx, stages)
//
// The final path is then handed to the bulk loader.
package pipeline

import (
	"fmt"
	"strings"
	"time"

	"insuraflow/internal/config"
	"insuraflow/internal/etlerr"
)

// TimestampLayout expands {timestamp} in a stage's output_temp.
const TimestampLayout = "20060102_150405"

// StageSpec is one resolved stage. It is not modified after Resolve.
type StageSpec struct {
	Name         string
	Unit         string
	Input        string
	Output       string
	WorkArtifact string
	// External marks a stage whose input is a raw source outside the
	// pipeline's control; its existence is not checked up front.
	External bool
	Params   map[string]string
}

// StageResult describes a completed stage.
type StageResult struct {
	Name        string
	OutputPath  string
	Success     bool
	Fingerprint uint64
	Bytes       int64
	Duration    time.Duration
}

// Resolve builds the fixed cleaning → transforming stage list from cfg.
// Missing keys wrap etlerr.ErrConfigMissing and name the dotted key path.
func Resolve(cfg config.Config, now time.Time) ([]StageSpec, error) {
	if err := requireKey("paths.raw_data", cfg.Paths.RawData); err != nil {
		return nil, err
	}
	if err := requireKey("paths.cleaned_data", cfg.Paths.CleanedData); err != nil {
		return nil, err
	}
	if err := requireKey("paths.transformed_data", cfg.Paths.TransformedData); err != nil {
		return nil, err
	}

	plan := []struct {
		name     string
		in, out  string
		external bool
	}{
		{config.StageCleaning, cfg.Paths.RawData, cfg.Paths.CleanedData, true},
		{config.StageTransforming, cfg.Paths.CleanedData, cfg.Paths.TransformedData, false},
	}

	ts := now.Format(TimestampLayout)
	stages := make([]StageSpec, 0, len(plan))
	for _, p := range plan {
		nb, ok := cfg.Stage(p.name)
		if !ok {
			return nil, fmt.Errorf("%w: notebooks.%s", etlerr.ErrConfigMissing, p.name)
		}
		if err := requireKey("notebooks."+p.name+".input", nb.Input); err != nil {
			return nil, err
		}
		if err := requireKey("notebooks."+p.name+".output_temp", nb.OutputTemp); err != nil {
			return nil, err
		}

		params := make(map[string]string, len(nb.Params)+1)
		for k, v := range nb.Params {
			params[k] = v
		}
		if p.name == config.StageCleaning && cfg.Source != "" {
			if _, set := params["config_path"]; !set {
				params["config_path"] = cfg.Source
			}
		}

		stages = append(stages, StageSpec{
			Name:         p.name,
			Unit:         nb.Input,
			Input:        p.in,
			Output:       p.out,
			WorkArtifact: expand(nb.OutputTemp, p.name, ts),
			External:     p.external,
			Params:       params,
		})
	}
	return stages, nil
}

func requireKey(path, v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("%w: %s", etlerr.ErrConfigMissing, path)
	}
	return nil
}

func expand(tmpl, stage, ts string) string {
	return strings.NewReplacer("{timestamp}", ts, "{stage}", stage).Replace(tmpl)
}
