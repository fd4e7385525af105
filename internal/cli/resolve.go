package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/vaoffenders/offender-census/internal/browser"
	"github.com/vaoffenders/offender-census/internal/census"
	"github.com/vaoffenders/offender-census/internal/query"
)

func newResolveCmd() *cobra.Command {
	var (
		pop        int
		controlURL string
	)
	cmd := &cobra.Command{
		Use:   "resolve <county>",
		Short: "Resolve the offender counts of a single county",
		Example: `  offender-census resolve "King & Queen County" --population 6608
  offender-census resolve "Accomack County" --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, format, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("control-url") {
				cfg.Browser.ControlURL = controlURL
			}

			subject := census.Subject{Name: strings.TrimSpace(args[0]), Population: pop}
			if err := census.ValidateSubjects([]census.Subject{subject}); err != nil {
				return err
			}

			agg := census.NewAggregator(query.NewBuilder(cfg.Portal.BaseURL), cfg.Resolver())
			sess, err := browser.Open(ctx, cfg.BrowserConfig())
			if err != nil {
				return fmt.Errorf("starting browser: %w", err)
			}
			defer sess.Close()

			run := census.NewRunResult()
			res, err := agg.ProcessSubject(ctx, sess, subject)
			if err != nil {
				return err
			}
			run.Results = append(run.Results, res)
			run.FinishedAt = time.Now().UTC()

			if err := WriteOutput(cmd.OutOrStdout(), run, format, SortByInput, flagVerbose); err != nil {
				return fmt.Errorf("writing output: %w", err)
			}
			if !run.Complete() {
				return ErrPartial
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&pop, "population", 0, "County population, for per-capita rates")
	cmd.Flags().StringVar(&controlURL, "control-url", "", "DevTools URL of a running browser")
	return cmd
}
