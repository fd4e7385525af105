package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/vaoffenders/offender-census/internal/census"
	"github.com/vaoffenders/offender-census/internal/query"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

const missingCell = "-"

// ParseFormat validates a --format value.
func ParseFormat(s string) (OutputFormat, error) {
	format := OutputFormat(strings.ToLower(strings.TrimSpace(s)))
	if format != FormatText && format != FormatJSON {
		return "", fmt.Errorf("invalid format: %s (must be 'text' or 'json')", s)
	}
	return format, nil
}

var filterHeaders = [query.NumFilters]string{
	query.FilterAll:              "All",
	query.FilterHomeless:         "Homeless",
	query.FilterNotIncarcerated:  "Not incarcerated",
	query.FilterCivillyCommitted: "Civilly committed",
	query.FilterIncarcerated:     "Incarcerated",
}

// WriteOutput writes the run in the specified format
func WriteOutput(w io.Writer, run *census.RunResult, format OutputFormat, order SortOrder, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, run)
	case FormatText:
		return writeText(w, run, order, verbose)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// writeJSON outputs the run as JSON
func writeJSON(w io.Writer, run *census.RunResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(run)
}

// writeText outputs the run as a table followed by a summary
func writeText(w io.Writer, run *census.RunResult, order SortOrder, verbose bool) error {
	if len(run.Results) == 0 {
		fmt.Fprintln(w, "No counties processed.")
		return nil
	}

	results := append([]census.SubjectResult(nil), run.Results...)
	sortResults(results, order)

	t := table.NewWriter()
	t.SetOutputMirror(w)

	header := table.Row{"County", "Population"}
	for _, h := range filterHeaders {
		header = append(header, h)
	}
	header = append(header, "Per 1,000 (all)")
	t.AppendHeader(header)

	var (
		totals   [query.NumFilters]int
		partial  [query.NumFilters]bool
		totalPop int
	)
	for _, res := range results {
		row := table.Row{res.County, res.Population}
		for i, c := range res.Counts {
			row = append(row, countCell(c))
			if c == nil {
				partial[i] = true
				continue
			}
			totals[i] += *c
		}
		row = append(row, perThousandCell(res.PerCapita[query.FilterAll]))
		t.AppendRow(row)
		totalPop += res.Population
	}

	footer := table.Row{"Total", totalPop}
	for i, n := range totals {
		if partial[i] {
			footer = append(footer, missingCell)
			continue
		}
		footer = append(footer, n)
	}
	footer = append(footer, "")
	t.AppendFooter(footer)

	alignRight := make([]table.ColumnConfig, 0, query.NumFilters+2)
	for i := 2; i <= query.NumFilters+3; i++ {
		alignRight = append(alignRight, table.ColumnConfig{Number: i, Align: text.AlignRight, AlignFooter: text.AlignRight})
	}
	t.SetColumnConfigs(alignRight)
	t.SetStyle(table.StyleRounded)
	t.Render()

	missing := run.Missing()
	fmt.Fprintf(w, "\nTotal: %d counties, %d missing counts\n", len(run.Results), missing)

	if missing > 0 || verbose {
		for _, res := range run.Results {
			for _, f := range res.Failures {
				fmt.Fprintf(w, "  MISSING: %s / %s after %d attempts: %s\n", res.County, f.Filter, f.Attempts, f.Reason)
				if verbose {
					fmt.Fprintf(w, "       URL: %s\n", f.URL)
				}
			}
		}
	}
	if verbose {
		fmt.Fprintf(w, "Run ID: %s\n", run.ID)
	}
	return nil
}

func countCell(c *int) string {
	if c == nil {
		return missingCell
	}
	return strconv.Itoa(*c)
}

func perThousandCell(pc *float64) string {
	if pc == nil {
		return missingCell
	}
	return strconv.FormatFloat(*pc*1000, 'f', 2, 64)
}
