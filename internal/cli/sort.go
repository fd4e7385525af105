package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vaoffenders/offender-census/internal/census"
	"github.com/vaoffenders/offender-census/internal/query"
)

// SortOrder represents the available sorting options
type SortOrder string

const (
	SortByInput     SortOrder = ""
	SortByCounty    SortOrder = "county"
	SortByCount     SortOrder = "count"
	SortByPerCapita SortOrder = "per-capita"
)

// ParseSortOrder validates a --sort value.
func ParseSortOrder(s string) (SortOrder, error) {
	order := SortOrder(strings.ToLower(strings.TrimSpace(s)))
	switch order {
	case SortByInput, SortByCounty, SortByCount, SortByPerCapita:
		return order, nil
	default:
		return "", fmt.Errorf("invalid sort order: %s (must be 'county', 'count' or 'per-capita')", s)
	}
}

// sortResults sorts results in place. Counts and rates sort descending, with
// missing values last; ties keep input order.
func sortResults(results []census.SubjectResult, order SortOrder) {
	switch order {
	case SortByCounty:
		sort.SliceStable(results, func(i, j int) bool {
			return strings.ToLower(results[i].County) < strings.ToLower(results[j].County)
		})
	case SortByCount:
		sort.SliceStable(results, func(i, j int) bool {
			return greater(results[i].Counts[query.FilterAll], results[j].Counts[query.FilterAll])
		})
	case SortByPerCapita:
		sort.SliceStable(results, func(i, j int) bool {
			return greater(results[i].PerCapita[query.FilterAll], results[j].PerCapita[query.FilterAll])
		})
	}
}

// greater reports whether a sorts before b in descending order, nil last.
func greater[T int | float64](a, b *T) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return *a > *b
	}
}
