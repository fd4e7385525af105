package population

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/vaoffenders/offender-census/internal/census"
)

const (
	NameHeader       = "locality"
	PopulationHeader = "population"
)

// ErrNoColumn is returned when a table lacks a required column.
var ErrNoColumn = errors.New("column not found")

// Source loads the population table.
type Source interface {
	Load(ctx context.Context) ([]census.Subject, error)
}

// ParsePopulation parses a population cell such as "1,150,309" or "23100.0".
func ParsePopulation(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "_", "")
	if s == "" {
		return 0, fmt.Errorf("empty population")
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid population %q", raw)
	}
	if f >= float64(math.MaxInt) || f < float64(math.MinInt) {
		return 0, fmt.Errorf("population %q out of range", raw)
	}
	return int(f), nil
}

// ReadCSV reads a locality,population table. Other columns, such as an
// unnamed leading index, are ignored.
func ReadCSV(r io.Reader) ([]census.Subject, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("reading header: empty table")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	nameCol, popCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case NameHeader:
			nameCol = i
		case PopulationHeader:
			popCol = i
		}
	}
	if nameCol < 0 {
		return nil, fmt.Errorf("%q: %w", NameHeader, ErrNoColumn)
	}
	if popCol < 0 {
		return nil, fmt.Errorf("%q: %w", PopulationHeader, ErrNoColumn)
	}

	var subjects []census.Subject
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) <= nameCol || len(rec) <= popCol {
			return nil, fmt.Errorf("line %d: expected at least %d fields, got %d", line, max(nameCol, popCol)+1, len(rec))
		}
		name := strings.TrimSpace(rec[nameCol])
		if name == "" && strings.TrimSpace(rec[popCol]) == "" {
			continue
		}
		pop, err := ParsePopulation(rec[popCol])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		subjects = append(subjects, census.Subject{Name: name, Population: pop})
	}

	if err := census.ValidateSubjects(subjects); err != nil {
		return nil, fmt.Errorf("invalid population table: %w", err)
	}
	return subjects, nil
}

// WriteCSV writes subjects as a locality,population table.
func WriteCSV(w io.Writer, subjects []census.Subject) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{NameHeader, PopulationHeader}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, s := range subjects {
		if err := cw.Write([]string{s.Name, strconv.Itoa(s.Population)}); err != nil {
			return fmt.Errorf("writing %q: %w", s.Name, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
