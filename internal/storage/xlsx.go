package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/vaoffenders/offender-census/internal/census"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Sheet1"

// WriteXLSX writes the run as a single-sheet workbook. Missing values are
// left as blank cells.
func WriteXLSX(w io.Writer, run *census.RunResult) error {
	f := excelize.NewFile()
	defer f.Close()

	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for r, res := range run.Results {
		for c, v := range values(res) {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return fmt.Errorf("writing %q: %w", res.County, err)
			}
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("encoding workbook: %w", err)
	}
	return nil
}

// XLSXSink writes the run to a local .xlsx file.
type XLSXSink struct {
	Path string
}

// Write implements Sink.
func (s XLSXSink) Write(_ context.Context, run *census.RunResult) error {
	return writeFile(s.Path, func(w io.Writer) error { return WriteXLSX(w, run) })
}
