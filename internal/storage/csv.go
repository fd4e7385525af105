package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/vaoffenders/offender-census/internal/census"
)

// WriteCSV writes the header and one row per county.
func WriteCSV(w io.Writer, run *census.RunResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, res := range run.Results {
		if err := cw.Write(record(res)); err != nil {
			return fmt.Errorf("writing %q: %w", res.County, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVSink writes the run to a local CSV file.
type CSVSink struct {
	Path string
}

// Write implements Sink.
func (s CSVSink) Write(_ context.Context, run *census.RunResult) error {
	return writeFile(s.Path, func(w io.Writer) error { return WriteCSV(w, run) })
}
