package population

import (
	"context"
	"fmt"
	"os"

	"github.com/vaoffenders/offender-census/internal/census"
)

// CSVFile reads the table from a local CSV file.
type CSVFile struct {
	Path string
}

// Load reads and validates the file.
func (f CSVFile) Load(_ context.Context) ([]census.Subject, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("opening population file: %w", err)
	}
	defer file.Close()

	subjects, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}
	return subjects, nil
}
