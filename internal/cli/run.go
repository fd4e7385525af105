package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/vaoffenders/offender-census/internal/browser"
	"github.com/vaoffenders/offender-census/internal/census"
	"github.com/vaoffenders/offender-census/internal/config"
	"github.com/vaoffenders/offender-census/internal/logger"
	"github.com/vaoffenders/offender-census/internal/metrics"
	"github.com/vaoffenders/offender-census/internal/query"
	"github.com/vaoffenders/offender-census/internal/storage"
)

const sinkTimeout = 2 * time.Minute

type runFlags struct {
	source      string
	population  string
	counties    []string
	limit       int
	csv         string
	xlsx        string
	sqlite      string
	s3Bucket    string
	s3Prefix    string
	maxAttempts int
	pace        time.Duration
	jitter      float64
	chromeBin   string
	controlURL  string
	showWindow  bool
	metricsFile string
	sortOrder   string
}

func newRunCmd() *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Resolve offender counts for every county in the population table",
		Long: `Resolve the five offender counts of every county in the population table,
compute per-capita rates and write the results to every configured output.

Exit status is 0 when every count was resolved, 2 when the run finished with
missing counts, and 1 on error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, f)
		},
	}

	f.bind(cmd.Flags())
	return cmd
}

// bind registers the run flags on fl.
func (f *runFlags) bind(fl *pflag.FlagSet) {
	fl.StringVar(&f.source, "source", "", "Population source: csv, html or s3")
	fl.StringVar(&f.population, "population", "", "Population CSV path (csv source)")
	fl.StringSliceVar(&f.counties, "county", nil, "Only process these counties (repeatable)")
	fl.IntVar(&f.limit, "limit", 0, "Only process the first N counties")
	fl.StringVar(&f.csv, "csv", "", "Write results to this CSV file")
	fl.StringVar(&f.xlsx, "xlsx", "", "Write results to this XLSX file")
	fl.StringVar(&f.sqlite, "sqlite", "", "Append results to this SQLite database")
	fl.StringVar(&f.s3Bucket, "s3-bucket", "", "Upload results to this S3 bucket")
	fl.StringVar(&f.s3Prefix, "s3-prefix", "", "Key prefix for the S3 upload")
	fl.IntVar(&f.maxAttempts, "max-attempts", 0, "Attempts per county and filter")
	fl.DurationVar(&f.pace, "pace", 0, "Minimum time between counties")
	fl.Float64Var(&f.jitter, "jitter", 0, "Randomization factor for retry delays (0 for a fixed delay)")
	fl.StringVar(&f.chromeBin, "chrome-bin", "", "Chrome executable")
	fl.StringVar(&f.controlURL, "control-url", "", "DevTools URL of a running browser")
	fl.BoolVar(&f.showWindow, "show-window", false, "Run Chrome with a visible window")
	fl.StringVar(&f.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file at the end of the run")
	fl.StringVar(&f.sortOrder, "sort", "", "Sort text output by: county, count or per-capita (default: input order)")
}

// apply overrides cfg with the flags that were set explicitly.
func (f *runFlags) apply(fl *pflag.FlagSet, cfg *config.Config) {
	changed := fl.Changed
	if changed("source") {
		cfg.Population.Source = f.source
	}
	if changed("population") {
		cfg.Population.Path = f.population
	}
	if changed("csv") {
		cfg.Output.CSV = f.csv
	}
	if changed("xlsx") {
		cfg.Output.XLSX = f.xlsx
	}
	if changed("sqlite") {
		cfg.Output.SQLite = f.sqlite
	}
	if changed("s3-bucket") {
		cfg.Output.S3Bucket = f.s3Bucket
	}
	if changed("s3-prefix") {
		cfg.Output.S3Prefix = f.s3Prefix
	}
	if changed("max-attempts") {
		cfg.Retry.MaxAttempts = f.maxAttempts
	}
	if changed("pace") {
		cfg.Retry.PaceMs = int(f.pace / time.Millisecond)
	}
	if changed("jitter") {
		cfg.Retry.Jitter = f.jitter
	}
	if changed("chrome-bin") {
		cfg.Browser.Bin = f.chromeBin
	}
	if changed("control-url") {
		cfg.Browser.ControlURL = f.controlURL
	}
	if changed("show-window") {
		cfg.Browser.ShowWindow = f.showWindow
	}
	if changed("metrics-file") {
		cfg.MetricsFile = f.metricsFile
	}
}

func runRun(cmd *cobra.Command, f *runFlags) error {
	ctx := cmd.Context()

	cfg, format, err := loadConfig()
	if err != nil {
		return err
	}
	f.apply(cmd.Flags(), &cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	order, err := ParseSortOrder(f.sortOrder)
	if err != nil {
		return err
	}

	src, err := populationSource(ctx, cfg)
	if err != nil {
		return err
	}
	subjects, err := src.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading population: %w", err)
	}
	subjects, err = selectSubjects(subjects, f.counties, f.limit)
	if err != nil {
		return err
	}

	sink, closeSinks, err := buildSinks(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSinks()

	m := metrics.New()
	resolver := cfg.Resolver()
	resolver.Metrics = m
	agg := census.NewAggregator(query.NewBuilder(cfg.Portal.BaseURL), resolver)
	agg.Metrics = m
	agg.Pace = cfg.Pace()

	logger.Info("Starting run", logger.Fields{
		"counties": len(subjects),
		"source":   cfg.Population.Source,
		"portal":   cfg.Portal.BaseURL,
	})

	sess, err := browser.Open(ctx, cfg.BrowserConfig())
	if err != nil {
		return fmt.Errorf("starting browser: %w", err)
	}
	run, runErr := agg.Run(ctx, sess, subjects)
	if err := sess.Close(); err != nil {
		logger.Warn("Closing browser failed", logger.Fields{"error": err.Error()})
	}

	// Results are written even when the run was cut short.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
	defer cancel()
	sinkErr := sink.Write(wctx, run)

	if cfg.MetricsFile != "" {
		if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Warn("Writing metrics failed", logger.Fields{"path": cfg.MetricsFile, "error": err.Error()})
		}
	}

	logger.Info("Run finished", logger.Fields{
		"run_id":   run.ID,
		"counties": len(run.Results),
		"missing":  run.Missing(),
		"duration": run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String(),
	})

	if err := WriteOutput(cmd.OutOrStdout(), run, format, order, flagVerbose); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	switch {
	case runErr != nil:
		return fmt.Errorf("run aborted: %w", errors.Join(runErr, sinkErr))
	case sinkErr != nil:
		return fmt.Errorf("writing results: %w", sinkErr)
	case !run.Complete():
		return ErrPartial
	}
	return nil
}

// selectSubjects keeps the named counties (in table order) and then the
// first limit of them.
func selectSubjects(subjects []census.Subject, names []string, limit int) ([]census.Subject, error) {
	if len(names) > 0 {
		want := make(map[string]bool, len(names))
		for _, n := range names {
			want[strings.ToLower(strings.TrimSpace(n))] = true
		}
		var picked []census.Subject
		for _, s := range subjects {
			key := strings.ToLower(s.Name)
			if want[key] {
				picked = append(picked, s)
				delete(want, key)
			}
		}
		if len(want) > 0 {
			missing := make([]string, 0, len(want))
			for n := range want {
				missing = append(missing, n)
			}
			return nil, fmt.Errorf("counties not in population table: %s", strings.Join(missing, ", "))
		}
		subjects = picked
	}
	if limit > 0 && limit < len(subjects) {
		subjects = subjects[:limit]
	}
	return subjects, nil
}

// buildSinks returns every configured output, the snapshot store always
// first, and a func releasing them.
func buildSinks(ctx context.Context, cfg config.Config) (storage.Sink, func(), error) {
	store, err := storage.New(cfg.Output.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing storage: %w", err)
	}
	sinks := storage.Multi{store}
	closers := []func() error{}

	if cfg.Output.CSV != "" {
		sinks = append(sinks, storage.CSVSink{Path: cfg.Output.CSV})
	}
	if cfg.Output.XLSX != "" {
		sinks = append(sinks, storage.XLSXSink{Path: cfg.Output.XLSX})
	}
	if cfg.Output.SQLite != "" {
		db, err := storage.OpenSQLite(ctx, cfg.Output.SQLite)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, db)
		closers = append(closers, db.Close)
	}
	if cfg.Output.S3Bucket != "" {
		client, err := s3Client(ctx, cfg.AWSRegion)
		if err != nil {
			for _, c := range closers {
				c()
			}
			return nil, nil, err
		}
		sinks = append(sinks, storage.S3Sink{
			Client: client,
			Bucket: cfg.Output.S3Bucket,
			Prefix: cfg.Output.S3Prefix,
			Format: cfg.Output.S3Format,
		})
	}

	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn("Closing output failed", logger.Fields{"error": err.Error()})
			}
		}
	}
	return sinks, closeAll, nil
}
