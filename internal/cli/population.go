package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/vaoffenders/offender-census/internal/logger"
	"github.com/vaoffenders/offender-census/internal/population"
	"github.com/vaoffenders/offender-census/internal/storage"
)

func newFetchPopulationCmd() *cobra.Command {
	var (
		url string
		out string
	)
	cmd := &cobra.Command{
		Use:   "fetch-population",
		Short: "Download the county population table and save it as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("url") {
				cfg.Population.URL = url
			}
			if !cmd.Flags().Changed("out") {
				out = cfg.Population.Path
			}

			table := population.NewHTMLTable(cfg.Population.URL)
			table.NameColumn = cfg.Population.NameColumn
			table.PopulationPrefix = cfg.Population.PopulationPrefix

			subjects, err := table.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetching population: %w", err)
			}

			path, err := storage.ExpandHome(out)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return fmt.Errorf("creating output directory: %w", err)
			}
			file, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("creating %s: %w", path, err)
			}
			if err := population.WriteCSV(file, subjects); err != nil {
				file.Close()
				return fmt.Errorf("writing %s: %w", path, err)
			}
			if err := file.Close(); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}

			logger.Info("Population table saved", logger.Fields{"path": path, "counties": len(subjects)})
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %d counties to %s\n", len(subjects), path)
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", population.DefaultTableURL, "Page with the population table")
	cmd.Flags().StringVar(&out, "out", "", "Output CSV path (default: population.path from config)")
	return cmd
}
