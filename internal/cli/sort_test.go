package cli

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/vaoffenders/offender-census/internal/census"
	"github.com/vaoffenders/offender-census/internal/query"
)

func result(name string, pop int, all *int) census.SubjectResult {
	return census.NewSubjectResult(census.Subject{Name: name, Population: pop},
		[query.NumFilters]*int{all, nil, nil, nil, nil}, nil)
}

func names(results []census.SubjectResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.County
	}
	return out
}

func TestSortResults(t *testing.T) {
	input := func() []census.SubjectResult {
		return []census.SubjectResult{
			result("bath", 4000, intp(8)),
			result("Accomack", 33000, intp(33)),
			result("Craig", 5000, nil),
			result("Dickenson", 0, intp(20)),
		}
	}

	tests := []struct {
		order SortOrder
		want  []string
	}{
		{SortByInput, []string{"bath", "Accomack", "Craig", "Dickenson"}},
		{SortByCounty, []string{"Accomack", "bath", "Craig", "Dickenson"}},
		{SortByCount, []string{"Accomack", "Dickenson", "bath", "Craig"}},
		{SortByPerCapita, []string{"bath", "Accomack", "Craig", "Dickenson"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.order), func(t *testing.T) {
			results := input()
			sortResults(results, tt.order)
			if diff := cmp.Diff(tt.want, names(results)); diff != "" {
				t.Errorf("sortResults(%q) mismatch (-want +got):\n%s", tt.order, diff)
			}
		})
	}
}

func TestParseSortOrder(t *testing.T) {
	for _, s := range []string{"", "county", "COUNT", "per-capita"} {
		if _, err := ParseSortOrder(s); err != nil {
			t.Errorf("ParseSortOrder(%q) error = %v", s, err)
		}
	}
	if _, err := ParseSortOrder("population"); err == nil {
		t.Error("ParseSortOrder(population) error = nil, want error")
	}
}
