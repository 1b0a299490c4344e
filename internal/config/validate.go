package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"

	"insuraflow/internal/etlerr"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding that is surfaced but does not block.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "database.url",
// "notebooks.cleaning.output_temp"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// Validate performs static validation of a Config without touching the
// filesystem or the database. It does not mutate c.
func Validate(c Config) []Issue {
	var issues []Issue
	issues = append(issues, validatePaths(c.Paths)...)
	issues = append(issues, validateNotebooks(c)...)
	issues = append(issues, validateDatabase(c.Database)...)
	issues = append(issues, validateMetrics(c.Metrics)...)
	issues = append(issues, validateSchedule(c.Schedule)...)
	if strings.TrimSpace(c.LogFile) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "log_file",
			Message:  "no log file configured; logging to stderr only",
		})
	}
	return issues
}

// Check returns the first error-severity issue wrapped in
// etlerr.ErrConfigMissing, or nil when c has none.
func Check(c Config) error {
	for _, iss := range Validate(c) {
		if iss.Severity == SeverityError {
			return fmt.Errorf("%w: %s: %s", etlerr.ErrConfigMissing, iss.Path, iss.Message)
		}
	}
	return nil
}

func required(path, v string) []Issue {
	if strings.TrimSpace(v) != "" {
		return nil
	}
	return []Issue{{Severity: SeverityError, Path: path, Message: "required key is missing"}}
}

func validatePaths(p Paths) []Issue {
	var issues []Issue
	issues = append(issues, required("paths.raw_data", p.RawData)...)
	issues = append(issues, required("paths.cleaned_data", p.CleanedData)...)
	issues = append(issues, required("paths.transformed_data", p.TransformedData)...)
	if p.RawData != "" && p.RawData == p.CleanedData {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "paths.cleaned_data",
			Message:  "cleaned_data equals raw_data; the cleaning stage will overwrite its own input",
		})
	}
	return issues
}

func validateNotebooks(c Config) []Issue {
	var issues []Issue
	for _, stage := range []string{StageCleaning, StageTransforming} {
		nb, ok := c.Stage(stage)
		if !ok {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "notebooks." + stage,
				Message:  "required key is missing",
			})
			continue
		}
		issues = append(issues, required("notebooks."+stage+".input", nb.Input)...)
		issues = append(issues, required("notebooks."+stage+".output_temp", nb.OutputTemp)...)
	}
	for name := range c.Notebooks {
		switch name {
		case StageCleaning, StageTransforming, "clean", "transform":
		default:
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "notebooks." + name,
				Message:  "unknown stage; only cleaning and transforming are run",
			})
		}
	}
	return issues
}

func validateDatabase(d Database) []Issue {
	var issues []Issue
	if strings.TrimSpace(d.URL) == "" {
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     "database.url",
			Message:  "required key is missing (set it in the config or DATABASE_URL)",
		})
	}
	switch strings.ToLower(d.Kind) {
	case "", "postgres", "mssql", "sqlite", "mysql":
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "database.kind",
			Message:  fmt.Sprintf("unsupported kind %q", d.Kind),
		})
	}
	if d.Kind == "" {
		if u, err := url.Parse(d.URL); err != nil || u.Scheme == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "database.url",
				Message:  "url has no scheme and database.kind is not set",
			})
		}
	}
	if strings.Count(d.TableName, ".") > 1 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "database.table_name",
			Message:  "expected table or schema.table",
		})
	}
	if d.PageSize > 0 && d.PageSize < 10 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "database.page_size",
			Message:  "very small page size; loads will issue many statements",
		})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	switch strings.ToLower(m.Backend) {
	case "", "none":
		return nil
	case "pushgateway":
		return required("metrics.pushgateway_url", m.PushgatewayURL)
	case "datadog":
		return required("metrics.datadog_addr", m.DatadogAddr)
	default:
		return []Issue{{
			Severity: SeverityError,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unsupported backend %q (want none, pushgateway or datadog)", m.Backend),
		}}
	}
}

func validateSchedule(s Schedule) []Issue {
	if s.Cron == "" {
		return nil
	}
	if _, err := cron.ParseStandard(s.Cron); err != nil {
		return []Issue{{
			Severity: SeverityError,
			Path:     "schedule.cron",
			Message:  err.Error(),
		}}
	}
	return nil
}
