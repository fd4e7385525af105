package storage

import (
	"strconv"

	"github.com/vaoffenders/offender-census/internal/census"
	"github.com/vaoffenders/offender-census/internal/query"
)

// Column suffixes per filter. "comitted" is kept as spelled in the
// published datasets.
var filterSuffix = [query.NumFilters]string{
	query.FilterAll:              "",
	query.FilterHomeless:         "_homeless",
	query.FilterNotIncarcerated:  "_non_incarcerated",
	query.FilterCivillyCommitted: "_civilly_comitted",
	query.FilterIncarcerated:     "_incarcerated",
}

// Columns is the output header, in order.
var Columns = buildColumns()

func buildColumns() []string {
	cols := []string{"county", "population"}
	for _, f := range query.Filters {
		cols = append(cols, "total_offender_count"+filterSuffix[f])
	}
	for _, f := range query.Filters {
		suffix := filterSuffix[f]
		if f == query.FilterAll {
			suffix = "_all"
		}
		cols = append(cols, "per_capita"+suffix)
	}
	return cols
}

// values returns one row with nil for missing values.
func values(res census.SubjectResult) []interface{} {
	row := make([]interface{}, 0, len(Columns))
	row = append(row, res.County, res.Population)
	for _, c := range res.Counts {
		if c == nil {
			row = append(row, nil)
			continue
		}
		row = append(row, *c)
	}
	for _, pc := range res.PerCapita {
		if pc == nil {
			row = append(row, nil)
			continue
		}
		row = append(row, *pc)
	}
	return row
}

// record returns one row as text with empty strings for missing values.
func record(res census.SubjectResult) []string {
	row := make([]string, 0, len(Columns))
	for _, v := range values(res) {
		switch v := v.(type) {
		case nil:
			row = append(row, "")
		case string:
			row = append(row, v)
		case int:
			row = append(row, strconv.Itoa(v))
		case float64:
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
	}
	return row
}
