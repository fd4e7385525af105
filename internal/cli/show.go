package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vaoffenders/offender-census/internal/storage"
)

func newShowCmd() *cobra.Command {
	var sortOrder string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the results of the last run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, format, err := loadConfig()
			if err != nil {
				return err
			}
			order, err := ParseSortOrder(sortOrder)
			if err != nil {
				return err
			}

			store, err := storage.New(cfg.Output.DataDir)
			if err != nil {
				return fmt.Errorf("initializing storage: %w", err)
			}
			run, err := store.LoadSnapshot()
			if err != nil {
				return fmt.Errorf("loading snapshot: %w", err)
			}
			if run == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "No saved run in %s.\n", store.Dir())
				return nil
			}
			return WriteOutput(cmd.OutOrStdout(), run, format, order, flagVerbose)
		},
	}

	cmd.Flags().StringVar(&sortOrder, "sort", "", "Sort by: county, count or per-capita (default: input order)")
	return cmd
}
