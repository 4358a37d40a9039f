// Command salesdw builds the sales star schema from raw operational tables
// and loads it into the configured warehouse.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/spf13/cobra"

	"github.com/znumunz/pram2/internal/config"
	"github.com/znumunz/pram2/internal/extract"
	"github.com/znumunz/pram2/internal/logger"
	"github.com/znumunz/pram2/internal/metrics"
	"github.com/znumunz/pram2/internal/metrics/datadog"
	"github.com/znumunz/pram2/internal/metrics/prompush"

	// register every warehouse backend with the storage factory; the config
	// picks one at runtime.
	_ "github.com/znumunz/pram2/internal/storage/all"
)

// rootFlags are shared by every subcommand. Flags that were set explicitly
// win over the loaded configuration.
type rootFlags struct {
	configPath     string
	envFile        string
	logLevel       string
	logJSON        bool
	metricsBackend string
	pushgatewayURL string
	datadogAddr    string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:           "salesdw",
		Short:         "Build and load the sales data warehouse",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	f.bind(root)

	root.AddCommand(
		newRunCmd(f),
		newValidateCmd(f),
		newScheduleCmd(f),
		newDateDimCmd(f),
	)
	return root
}

func (f *rootFlags) bind(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", "", "pipeline config file (YAML or JSON)")
	pf.StringVar(&f.envFile, "env-file", ".env", "dotenv file applied before the environment")
	pf.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&f.logJSON, "log-json", false, "log as JSON")
	pf.StringVar(&f.metricsBackend, "metrics-backend", "", "metrics backend: none, pushgateway, datadog")
	pf.StringVar(&f.pushgatewayURL, "pushgateway-url", "", "Pushgateway base URL")
	pf.StringVar(&f.datadogAddr, "datadog-addr", "", "DogStatsD address")
}

// loadPipeline loads the configuration, applies explicit flags and rejects
// it when validation reports errors. Warnings are logged.
func loadPipeline(cmd *cobra.Command, f *rootFlags) (config.Pipeline, logger.Logger, error) {
	p, err := config.Load(f.configPath, config.LoadOptions{EnvFile: f.envFile})
	if err != nil {
		return config.Pipeline{}, nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		p.Log.Level = f.logLevel
	}
	if flags.Changed("log-json") {
		p.Log.JSON = f.logJSON
	}
	if flags.Changed("metrics-backend") {
		p.Metrics.Backend = f.metricsBackend
	}
	if flags.Changed("pushgateway-url") {
		p.Metrics.PushgatewayURL = f.pushgatewayURL
	}
	if flags.Changed("datadog-addr") {
		p.Metrics.DatadogAddr = f.datadogAddr
	}

	log := logger.NewLogger(&logger.Config{
		Level:      logger.LogLevel(p.Log.Level),
		Output:     cmd.ErrOrStderr(),
		JSON:       p.Log.JSON,
		TimeFormat: time.TimeOnly,
	})

	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		if iss.Severity == config.SeverityError {
			log.Error("config", "path", iss.Path, "issue", iss.Message)
		} else {
			log.Warn("config", "path", iss.Path, "issue", iss.Message)
		}
	}
	if config.HasErrors(issues) {
		return p, log, fmt.Errorf("configuration is invalid: %d issue(s)", len(issues))
	}
	return p, log, nil
}

// setupMetrics installs the configured backend and returns a flush function
// to defer. Backend failures downgrade to the no-op backend.
func setupMetrics(p config.Pipeline, runID string, log logger.Logger) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch p.Metrics.Backend {
	case "pushgateway":
		b, err = prompush.NewBackend(p.Job, p.Metrics.PushgatewayURL, prompush.WithGrouping("run_id", runID))
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       p.Metrics.DatadogAddr,
			Namespace:  p.Metrics.Namespace,
			GlobalTags: []string{"job:" + p.Job},
		})
	default:
		log.Debug("metrics disabled", "backend", p.Metrics.Backend)
		return func() {}
	}
	if err != nil {
		log.Warn("metrics backend unavailable; using nop", "backend", p.Metrics.Backend, "err", err)
		return func() {}
	}
	log.Info("metrics enabled", "backend", p.Metrics.Backend)
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Warn("metrics flush failed", "err", err)
		}
	}
}

func newRunCmd(f *rootFlags) *cobra.Command {
	var dryRun, strict bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Extract, transform and load once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, log, err := loadPipeline(cmd, f)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("strict") {
				p.Extract.Strict = strict
			}
			r := newRunner(p, log)
			r.dryRun = dryRun
			defer setupMetrics(p, r.runID, log)()

			sum, err := r.run(cmd.Context())
			if sum != nil {
				printSummary(cmd, sum)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "transform but do not write to the warehouse")
	cmd.Flags().BoolVar(&strict, "strict", false, "abort when any source is missing or unreadable")
	return cmd
}

func newValidateCmd(f *rootFlags) *cobra.Command {
	var checkSources bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and optionally check sources",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, log, err := loadPipeline(cmd, f)
			if err != nil {
				return err
			}
			if checkSources {
				rep := extract.New(p, log).Check(cmd.Context())
				for _, res := range rep.Results {
					status := "ok"
					switch {
					case res.Missing:
						status = "missing"
					case res.Err != nil:
						status = "error"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%-15s %-8s %s\n", res.Source, status, res.Location)
				}
				if p.Extract.Strict && len(rep.Missing()) > 0 {
					return fmt.Errorf("missing sources: %s", strings.Join(rep.Missing(), ", "))
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkSources, "check-sources", false, "report which local sources exist")
	return cmd
}

func newScheduleCmd(f *rootFlags) *cobra.Command {
	var every time.Duration
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the pipeline on a fixed interval until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if every <= 0 {
				return fmt.Errorf("--every must be positive")
			}
			p, log, err := loadPipeline(cmd, f)
			if err != nil {
				return err
			}
			return schedule(cmd.Context(), p, log, every)
		},
	}
	cmd.Flags().DurationVar(&every, "every", time.Hour, "interval between runs")
	return cmd
}

// schedule runs the pipeline every interval, starting immediately, until ctx
// is done. Runs never overlap; the date dimension cache is shared between
// runs.
func schedule(ctx context.Context, p config.Pipeline, log logger.Logger, every time.Duration) error {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	dates := newDateCache()
	_, err := s.Every(every).Do(func() {
		r := newRunner(p, log)
		r.dates = dates
		flush := setupMetrics(p, r.runID, log)
		defer flush()
		if _, err := r.run(ctx); err != nil {
			log.Error("scheduled run failed", "run_id", r.runID, "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule: %w", err)
	}

	log.Info("scheduler started", "every", every)
	s.StartAsync()
	<-ctx.Done()
	s.Stop()
	log.Info("scheduler stopped")
	return nil
}

func newDateDimCmd(f *rootFlags) *cobra.Command {
	var start, end string
	var fiscal int
	cmd := &cobra.Command{
		Use:   "datedim",
		Short: "Build and load only dim_date",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, log, err := loadPipeline(cmd, f)
			if err != nil {
				return err
			}
			dd := &p.Transform.DateDimension
			if cmd.Flags().Changed("start") {
				dd.Start = start
			}
			if cmd.Flags().Changed("end") {
				dd.End = end
			}
			if cmd.Flags().Changed("fiscal-start") {
				dd.FiscalYearStartMonth = fiscal
			}
			r := newRunner(p, log)
			sum, err := r.dateDimension(cmd.Context())
			if sum != nil {
				printSummary(cmd, sum)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "first date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "last date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&fiscal, "fiscal-start", 0, "month that opens the fiscal year (1-12)")
	return cmd
}

func printSummary(cmd *cobra.Command, s *runSummary) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "run %s (%s)\n", s.RunID, s.Duration.Truncate(time.Millisecond))
	for _, row := range s.Tables() {
		fmt.Fprintf(w, "  %-14s %-9s %6d rows  %s\n", row.Table, row.Status, row.Rows, row.Note)
	}
}
