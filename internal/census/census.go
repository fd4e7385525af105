package census

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vaoffenders/offender-census/internal/query"
)

// Subject is one county and its population.
type Subject struct {
	Name       string `json:"county"`
	Population int    `json:"population"`
}

// ValidateSubjects checks names are present and unique and populations are not negative.
func ValidateSubjects(subjects []Subject) error {
	seen := make(map[string]bool, len(subjects))
	var errs []error
	for i, s := range subjects {
		name := strings.TrimSpace(s.Name)
		switch {
		case name == "":
			errs = append(errs, fmt.Errorf("row %d: county name is required", i+1))
		case seen[name]:
			errs = append(errs, fmt.Errorf("row %d: duplicate county %q", i+1, name))
		}
		if s.Population < 0 {
			errs = append(errs, fmt.Errorf("row %d: negative population %d for %q", i+1, s.Population, name))
		}
		seen[name] = true
	}
	return errors.Join(errs...)
}

// Failure describes a filter whose count could not be resolved.
type Failure struct {
	Filter   query.Filter `json:"filter"`
	URL      string       `json:"url"`
	Attempts int          `json:"attempts"`
	Reason   string       `json:"reason"`
}

// SubjectResult is one output row. Counts and PerCapita follow query.Filters
// order; nil means missing.
type SubjectResult struct {
	County     string                     `json:"county"`
	Population int                        `json:"population"`
	Counts     [query.NumFilters]*int     `json:"counts"`
	PerCapita  [query.NumFilters]*float64 `json:"per_capita"`
	Failures   []Failure                  `json:"failures,omitempty"`
}

// NewSubjectResult builds a row from resolved counts, computing per-capita values.
func NewSubjectResult(subject Subject, counts [query.NumFilters]*int, failures []Failure) SubjectResult {
	r := SubjectResult{
		County:     subject.Name,
		Population: subject.Population,
		Counts:     counts,
		Failures:   failures,
	}
	for i, c := range counts {
		r.PerCapita[i] = PerCapita(c, subject.Population)
	}
	return r
}

// PerCapita returns count/population, or nil when the count is missing or
// the population is not positive.
func PerCapita(count *int, population int) *float64 {
	if count == nil || population <= 0 {
		return nil
	}
	v := float64(*count) / float64(population)
	return &v
}

// Count returns the count for f, or nil when missing.
func (r SubjectResult) Count(f query.Filter) *int {
	return r.Counts[f]
}

// Missing returns how many filter counts are missing.
func (r SubjectResult) Missing() int {
	n := 0
	for _, c := range r.Counts {
		if c == nil {
			n++
		}
	}
	return n
}

// RunResult is the ordered result of one run.
type RunResult struct {
	ID         string          `json:"id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Results    []SubjectResult `json:"results"`
}

// NewRunResult starts a run with a fresh id.
func NewRunResult() *RunResult {
	return &RunResult{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Results:   make([]SubjectResult, 0),
	}
}

// Missing returns how many filter counts are missing across the run.
func (r *RunResult) Missing() int {
	n := 0
	for _, res := range r.Results {
		n += res.Missing()
	}
	return n
}

// Complete reports whether every count of every county was resolved.
func (r *RunResult) Complete() bool {
	return r.Missing() == 0
}

// Failures returns every failure of the run, in processing order.
func (r *RunResult) Failures() []Failure {
	var out []Failure
	for _, res := range r.Results {
		out = append(out, res.Failures...)
	}
	return out
}
