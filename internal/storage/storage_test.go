package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/vaoffenders/offender-census/internal/census"
	"github.com/vaoffenders/offender-census/internal/query"
	"github.com/xuri/excelize/v2"
)

func intp(v int) *int { return &v }

// testRun has a complete county and one with two missing counts and no
// population.
func testRun() *census.RunResult {
	run := census.NewRunResult()
	run.ID = "run-1"
	run.StartedAt = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	run.Results = []census.SubjectResult{
		census.NewSubjectResult(census.Subject{Name: "Alpha County", Population: 1000},
			[query.NumFilters]*int{intp(37), intp(2), intp(35), intp(0), intp(0)}, nil),
		census.NewSubjectResult(census.Subject{Name: "King & Queen County", Population: 0},
			[query.NumFilters]*int{intp(4), nil, intp(4), nil, intp(0)},
			[]census.Failure{
				{Filter: query.FilterHomeless, Attempts: 5, Reason: "render timeout"},
				{Filter: query.FilterCivillyCommitted, Attempts: 5, Reason: "render timeout"},
			}),
	}
	return run
}

func TestColumns(t *testing.T) {
	want := []string{
		"county", "population",
		"total_offender_count",
		"total_offender_count_homeless",
		"total_offender_count_non_incarcerated",
		"total_offender_count_civilly_comitted",
		"total_offender_count_incarcerated",
		"per_capita_all",
		"per_capita_homeless",
		"per_capita_non_incarcerated",
		"per_capita_civilly_comitted",
		"per_capita_incarcerated",
	}
	if diff := cmp.Diff(want, Columns); diff != "" {
		t.Errorf("Columns mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, testRun()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, Columns, rows[0])
	require.Equal(t,
		[]string{"Alpha County", "1000", "37", "2", "35", "0", "0", "0.037", "0.002", "0.035", "0", "0"},
		rows[1])
	require.Equal(t,
		[]string{"King & Queen County", "0", "4", "", "4", "", "0", "", "", "", "", ""},
		rows[2])
}

func TestCSVSink_Write(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "offender_population.csv")

	require.NoError(t, CSVSink{Path: path}.Write(context.Background(), testRun()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), "county,population,total_offender_count,"))

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	require.NoError(t, err)
	require.Empty(t, leftovers)
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, testRun()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	header, err := f.GetCellValue(sheetName, "C1")
	require.NoError(t, err)
	require.Equal(t, "total_offender_count", header)

	county, err := f.GetCellValue(sheetName, "A3")
	require.NoError(t, err)
	require.Equal(t, "King & Queen County", county)

	count, err := f.GetCellValue(sheetName, "C2")
	require.NoError(t, err)
	require.Equal(t, "37", count)

	// D3 is the missing homeless count.
	missing, err := f.GetCellValue(sheetName, "D3")
	require.NoError(t, err)
	require.Equal(t, "", missing)

	zero, err := f.GetCellValue(sheetName, "G3")
	require.NoError(t, err)
	require.Equal(t, "0", zero)
}

func TestXLSXSink_Write(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offender_population.xlsx")
	require.NoError(t, XLSXSink{Path: path}.Write(context.Background(), testRun()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
}

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &s3.PutObjectOutput{}, nil
}

func TestS3Sink_Write(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		prefix  string
		wantKey string
	}{
		{"xlsx default", "", "", "offender_population_2026-03-14.xlsx"},
		{"csv with prefix", FormatCSV, "reports/", "reports/offender_population_2026-03-14.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			putter := &fakePutter{}
			sink := S3Sink{Client: putter, Bucket: "registered-offender-bucket", Prefix: tt.prefix, Format: tt.format}

			require.NoError(t, sink.Write(context.Background(), testRun()))
			require.Equal(t, "registered-offender-bucket", *putter.input.Bucket)
			require.Equal(t, tt.wantKey, *putter.input.Key)
			require.NotEmpty(t, putter.body)
		})
	}
}

func TestS3Sink_Errors(t *testing.T) {
	boom := errors.New("access denied")
	err := S3Sink{Client: &fakePutter{err: boom}, Bucket: "b"}.Write(context.Background(), testRun())
	require.ErrorIs(t, err, boom)

	err = S3Sink{Client: &fakePutter{}, Bucket: "b", Format: "parquet"}.Write(context.Background(), testRun())
	require.ErrorContains(t, err, "unsupported")
}

func TestSQLiteSink_Write(t *testing.T) {
	ctx := context.Background()
	sink, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "census.db"))
	require.NoError(t, err)
	defer sink.Close()

	run := testRun()
	require.NoError(t, sink.Write(ctx, run))

	second := testRun()
	second.ID = "run-2"
	require.NoError(t, sink.Write(ctx, second))

	var total int
	require.NoError(t, sink.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM offender_counts").Scan(&total))
	require.Equal(t, 4, total)

	var (
		homeless  sql.NullInt64
		all       sql.NullInt64
		perCapita sql.NullFloat64
	)
	err = sink.DB.QueryRowContext(ctx,
		`SELECT total_offender_count, total_offender_count_homeless, per_capita_all
		 FROM offender_counts WHERE run_id = ? AND county = ?`,
		"run-1", "King & Queen County",
	).Scan(&all, &homeless, &perCapita)
	require.NoError(t, err)
	require.Equal(t, sql.NullInt64{Int64: 4, Valid: true}, all)
	require.False(t, homeless.Valid, "missing count must be NULL")
	require.False(t, perCapita.Valid, "per-capita with no population must be NULL")

	require.NoError(t, sink.DB.QueryRowContext(ctx,
		"SELECT per_capita_all FROM offender_counts WHERE run_id = ? AND county = ?",
		"run-2", "Alpha County",
	).Scan(&perCapita))
	require.InDelta(t, 0.037, perCapita.Float64, 1e-12)
}

func TestStorage_Snapshot(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)

	got, err := s.LoadSnapshot()
	require.NoError(t, err)
	require.Nil(t, got)

	run := testRun()
	require.NoError(t, s.Write(context.Background(), run))

	got, err = s.LoadSnapshot()
	require.NoError(t, err)
	require.Equal(t, run.ID, got.ID)
	require.Len(t, got.Results, 2)
	require.Nil(t, got.Results[1].Counts[query.FilterHomeless])
	require.Equal(t, 37, *got.Results[0].Counts[query.FilterAll])
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	got, err := ExpandHome("~/.local/share/offender-census")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".local/share/offender-census"), got)

	got, err = ExpandHome("/tmp/x")
	require.NoError(t, err)
	require.Equal(t, "/tmp/x", got)
}

func TestFileName(t *testing.T) {
	day := time.Date(2026, 10, 16, 23, 0, 0, 0, time.UTC)
	require.Equal(t, "offender_population_2026-10-16.xlsx", FileName(day, "xlsx"))
	require.Equal(t, "offender_population_2026-10-16.csv", FileName(day, ".csv"))
}

type failingSink struct{ err error }

func (f failingSink) Write(context.Context, *census.RunResult) error { return f.err }

func TestMulti_Write(t *testing.T) {
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	path := filepath.Join(t.TempDir(), "out.csv")

	err := Multi{failingSink{errA}, CSVSink{Path: path}, failingSink{errB}}.Write(context.Background(), testRun())
	require.ErrorIs(t, err, errA)
	require.ErrorIs(t, err, errB)

	_, statErr := os.Stat(path)
	require.NoError(t, statErr, "sinks after a failure still run")

	require.NoError(t, Multi{}.Write(context.Background(), testRun()))
}
