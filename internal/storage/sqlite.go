package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/vaoffenders/offender-census/internal/census"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// SQLiteSink appends every run to the offender_counts table, keyed by run
// id and county, so earlier runs are kept.
type SQLiteSink struct {
	DB *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies
// the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteSink, error) {
	path, err := ExpandHome(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLiteSink{DB: db}, nil
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.DB.Close()
}

var insertQuery = fmt.Sprintf(
	"INSERT OR REPLACE INTO offender_counts (run_id, run_started_at, %s) VALUES (?, ?%s)",
	strings.Join(Columns, ", "),
	strings.Repeat(", ?", len(Columns)),
)

// Write implements Sink.
func (s *SQLiteSink) Write(ctx context.Context, run *census.RunResult) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertQuery)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	started := run.StartedAt.UTC().Format(time.RFC3339)
	for _, res := range run.Results {
		args := append([]interface{}{run.ID, started}, values(res)...)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("inserting %q: %w", res.County, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run %s: %w", run.ID, err)
	}
	return nil
}
