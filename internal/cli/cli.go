package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"
	"github.com/vaoffenders/offender-census/internal/config"
	"github.com/vaoffenders/offender-census/internal/logger"
	"github.com/vaoffenders/offender-census/internal/population"
)

const (
	ExitSuccess = 0
	ExitError   = 1
	ExitPartial = 2
)

// ErrPartial reports a run that finished with missing counts.
var ErrPartial = errors.New("run finished with missing counts")

var (
	flagConfig  string
	flagDataDir string
	flagFormat  string
	flagVerbose bool
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "offender-census",
		Short: "Count registered offenders per Virginia county",
		Long: `A CLI tool that queries the Virginia sex offender registry for every
county in a population table and reports offender counts and per-capita rates
for all, homeless, non-incarcerated, civilly committed and incarcerated
registrants.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logger.LevelInfo
			if flagVerbose {
				level = logger.LevelDebug
			}
			logger.SetDefault(logger.New(level, os.Stderr))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (JSON5); a .local variant next to it overrides it")
	cmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "Data directory for run snapshots (default ~/.local/share/offender-census)")
	cmd.PersistentFlags().StringVar(&flagFormat, "format", "text", "Output format: text or json")
	cmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")

	cmd.AddCommand(newRunCmd(), newFetchPopulationCmd(), newResolveCmd(), newShowCmd())
	return cmd
}

// loadConfig reads --config and applies the persistent flags.
func loadConfig() (config.Config, OutputFormat, error) {
	format, err := ParseFormat(flagFormat)
	if err != nil {
		return config.Config{}, "", err
	}
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return config.Config{}, "", fmt.Errorf("loading config: %w", err)
	}
	if flagDataDir != "" {
		cfg.Output.DataDir = flagDataDir
	}
	return cfg, format, nil
}

// s3Client builds an S3 client from the default AWS credential chain.
func s3Client(ctx context.Context, region string) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.RetryMaxAttempts = 3
		o.RetryMode = aws.RetryModeStandard
	}), nil
}

// populationSource returns the configured population table.
func populationSource(ctx context.Context, cfg config.Config) (population.Source, error) {
	p := cfg.Population
	switch p.Source {
	case config.SourceCSV:
		return population.CSVFile{Path: p.Path}, nil
	case config.SourceHTML:
		h := population.NewHTMLTable(p.URL)
		h.NameColumn = p.NameColumn
		h.PopulationPrefix = p.PopulationPrefix
		return h, nil
	case config.SourceS3:
		client, err := s3Client(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		return population.S3Object{Client: client, Bucket: p.Bucket, Key: p.Key}, nil
	default:
		return nil, fmt.Errorf("unknown population source %q", p.Source)
	}
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, ErrPartial):
		return ExitPartial
	default:
		return ExitError
	}
}

// Execute runs the CLI
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	_ = logger.Default().Sync()

	if err != nil && !errors.Is(err, ErrPartial) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitCode(err))
}
