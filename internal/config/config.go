package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/titanous/json5"
	"github.com/vaoffenders/offender-census/internal/browser"
	"github.com/vaoffenders/offender-census/internal/census"
	"github.com/vaoffenders/offender-census/internal/population"
	"github.com/vaoffenders/offender-census/internal/query"
	"github.com/vaoffenders/offender-census/internal/scraper"
	"github.com/vaoffenders/offender-census/internal/storage"
)

// Population source kinds.
const (
	SourceCSV  = "csv"
	SourceHTML = "html"
	SourceS3   = "s3"
)

type Portal struct {
	BaseURL   string `json:"base_url"`
	ElementID string `json:"element_id"`
}

type Retry struct {
	MaxAttempts      int     `json:"max_attempts"`
	BaseDelayMs      int     `json:"base_delay_ms"`
	Jitter           float64 `json:"jitter"`
	AttemptTimeoutMs int     `json:"attempt_timeout_ms"`
	PollIntervalMs   int     `json:"poll_interval_ms"`
	PaceMs           int     `json:"pace_ms"`
}

type Browser struct {
	Bin                 string   `json:"bin"`
	ControlURL          string   `json:"control_url"`
	ShowWindow          bool     `json:"show_window"`
	Flags               []string `json:"flags"`
	NavigationTimeoutMs int      `json:"navigation_timeout_ms"`
}

type Population struct {
	Source           string `json:"source"`
	Path             string `json:"path"`
	URL              string `json:"url"`
	NameColumn       string `json:"name_column"`
	PopulationPrefix string `json:"population_prefix"`
	Bucket           string `json:"bucket"`
	Key              string `json:"key"`
}

type Output struct {
	DataDir  string `json:"data_dir"`
	CSV      string `json:"csv"`
	XLSX     string `json:"xlsx"`
	SQLite   string `json:"sqlite"`
	S3Bucket string `json:"s3_bucket"`
	S3Prefix string `json:"s3_prefix"`
	S3Format string `json:"s3_format"`
}

// Config is the complete run configuration.
type Config struct {
	Portal      Portal     `json:"portal"`
	Retry       Retry      `json:"retry"`
	Browser     Browser    `json:"browser"`
	Population  Population `json:"population"`
	Output      Output     `json:"output"`
	MetricsFile string     `json:"metrics_file"`
	AWSRegion   string     `json:"aws_region"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Portal: Portal{
			BaseURL:   query.DefaultBaseURL,
			ElementID: scraper.DefaultElementID,
		},
		Retry: Retry{
			MaxAttempts:      scraper.DefaultMaxAttempts,
			BaseDelayMs:      millis(scraper.DefaultBaseDelay),
			Jitter:           scraper.DefaultJitter,
			AttemptTimeoutMs: millis(scraper.DefaultAttemptTimeout),
			PollIntervalMs:   millis(scraper.DefaultPollInterval),
			PaceMs:           millis(census.DefaultPace),
		},
		Browser: Browser{
			Flags:               append([]string(nil), browser.DefaultFlags...),
			NavigationTimeoutMs: millis(browser.DefaultNavigationTimeout),
		},
		Population: Population{
			Source:           SourceCSV,
			Path:             "data/total_population.csv",
			URL:              population.DefaultTableURL,
			NameColumn:       population.DefaultNameColumn,
			PopulationPrefix: population.DefaultPopulationPrefix,
			Key:              "total_population.csv",
		},
		Output: Output{
			DataDir:  storage.DefaultDataDir,
			CSV:      "data/offender_population.csv",
			S3Format: storage.FormatXLSX,
		},
	}
}

// Load reads path and its .local override, then fills unset values from
// Default. An empty path returns Default.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		if err := readFile(path, &cfg); err != nil {
			return Config{}, err
		}

		var local Config
		localPath := LocalPath(path)
		err := readFile(localPath, &local)
		switch {
		case err == nil:
			if err := mergo.Merge(&cfg, local, mergo.WithOverride); err != nil {
				return Config{}, fmt.Errorf("merging %s: %w", localPath, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return Config{}, err
		}
	}

	if err := mergo.Merge(&cfg, Default()); err != nil {
		return Config{}, fmt.Errorf("applying defaults: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LocalPath returns the override file for path: census.json5 becomes
// census.local.json5.
func LocalPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

func readFile(path string, into *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if err := json5.Unmarshal(data, into); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// Validate checks values a file can get wrong.
func (c Config) Validate() error {
	var errs []error
	switch c.Population.Source {
	case SourceCSV:
		if c.Population.Path == "" {
			errs = append(errs, fmt.Errorf("population.path is required for source %q", SourceCSV))
		}
	case SourceHTML:
	case SourceS3:
		if c.Population.Bucket == "" || c.Population.Key == "" {
			errs = append(errs, fmt.Errorf("population.bucket and population.key are required for source %q", SourceS3))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown population.source %q", c.Population.Source))
	}
	if c.Output.S3Format != storage.FormatXLSX && c.Output.S3Format != storage.FormatCSV {
		errs = append(errs, fmt.Errorf("unknown output.s3_format %q", c.Output.S3Format))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be at least 1"))
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter >= 1 {
		errs = append(errs, fmt.Errorf("retry.jitter must be in [0, 1)"))
	}
	return errors.Join(errs...)
}

// Resolver builds the retry controller.
func (c Config) Resolver() *scraper.Resolver {
	r := scraper.NewResolver()
	r.MaxAttempts = c.Retry.MaxAttempts
	r.BaseDelay = ms(c.Retry.BaseDelayMs)
	r.Jitter = c.Retry.Jitter
	r.AttemptTimeout = ms(c.Retry.AttemptTimeoutMs)
	r.PollInterval = ms(c.Retry.PollIntervalMs)
	r.ElementID = c.Portal.ElementID
	return r
}

// Pace is the minimum spacing between counties.
func (c Config) Pace() time.Duration {
	return ms(c.Retry.PaceMs)
}

// BrowserConfig returns the browser launch settings.
func (c Config) BrowserConfig() browser.Config {
	return browser.Config{
		Bin:               c.Browser.Bin,
		ControlURL:        c.Browser.ControlURL,
		ShowWindow:        c.Browser.ShowWindow,
		Flags:             c.Browser.Flags,
		NavigationTimeout: ms(c.Browser.NavigationTimeoutMs),
	}
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func millis(d time.Duration) int { return int(d / time.Millisecond) }
