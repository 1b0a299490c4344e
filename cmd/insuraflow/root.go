package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"insuraflow/internal/config"
	"insuraflow/internal/etlerr"
	"insuraflow/internal/logging"
	"insuraflow/internal/trigger"
)

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:   "insuraflow",
		Short: "Clean, transform and bulk-load insurance data",
		Long: `insuraflow runs two processing units (cleaning, then transforming) over a raw
data file and replaces the contents of a database table with the result.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "",
		"config file (default $"+config.EnvConfigPath+" or "+config.DefaultPath+")")

	root.AddCommand(
		newRunCmd(&cfgPath),
		newLoadCmd(&cfgPath),
		newValidateCmd(&cfgPath),
		newScheduleCmd(&cfgPath),
		newWatchCmd(&cfgPath),
	)
	return root
}

// loadConfig reads and validates the config selected by --config.
func loadConfig(cfgPath string) (config.Config, error) {
	cfg, err := config.Load(config.ResolvePath(cfgPath))
	if err != nil {
		return cfg, err
	}
	if err := config.Check(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func newRunCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run cleaning, transforming and load once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			defer setupMetrics(cfg, log.Default())()

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			return a.runLogged(cmd.Context())
		},
	}
}

func newLoadCmd(cfgPath *string) *cobra.Command {
	var table string
	cmd := &cobra.Command{
		Use:   "load [records.jsonl]",
		Short: "Load a record file into the target table, skipping the stages",
		Long: `load replaces the target table's rows with the given NDJSON record file,
or with paths.transformed_data when no file is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.ResolvePath(*cfgPath))
			if err != nil {
				return err
			}
			path := cfg.Paths.TransformedData
			if len(args) == 1 {
				path = args[0]
			}
			if table != "" {
				cfg.Database.TableName = table
			}
			defer setupMetrics(cfg, log.Default())()

			logger, closeLog, err := logging.Open(cfg.LogFile)
			if err != nil {
				return err
			}
			defer closeLog()

			a := &app{cfg: cfg}
			if err := a.load(cmd.Context(), logger, path); err != nil {
				logger.Printf("insuraflow: load FAILED err=%v", err)
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&table, "table", "t", "", "target table (overrides database.table_name)")
	return cmd
}

func newValidateCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the config and print every issue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ResolvePath(*cfgPath)
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			errs := 0
			for _, iss := range config.Validate(cfg) {
				fmt.Fprintf(out, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
				if iss.Severity == config.SeverityError {
					errs++
				}
			}
			if errs > 0 {
				return fmt.Errorf("configuration %s is invalid: %d error(s)", path, errs)
			}
			fmt.Fprintf(out, "configuration %s is valid\n", path)
			return nil
		},
	}
}

func newScheduleCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run on schedule.cron (and on raw data changes when schedule.watch is set)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			if cfg.Schedule.Cron == "" {
				return fmt.Errorf("%w: schedule.cron", etlerr.ErrConfigMissing)
			}
			opts := trigger.Options{Cron: cfg.Schedule.Cron, Debounce: cfg.Schedule.Debounce}
			if cfg.Schedule.Watch {
				opts.WatchPath = cfg.Paths.RawData
			}
			return serve(cmd, cfg, opts)
		},
	}
}

func newWatchCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run whenever paths.raw_data changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			return serve(cmd, cfg, trigger.Options{WatchPath: cfg.Paths.RawData, Debounce: cfg.Schedule.Debounce})
		},
	}
}

// serve runs the pipeline from triggers until the command's context is
// cancelled. Each run gets a fresh (truncated) log file.
func serve(cmd *cobra.Command, cfg config.Config, opts trigger.Options) error {
	console := log.New(os.Stderr, "", logging.Flags)
	defer setupMetrics(cfg, console)()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	t := trigger.New(a.runLogged, console)
	return t.Serve(cmd.Context(), opts)
}
