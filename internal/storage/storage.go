package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vaoffenders/offender-census/internal/census"
)

// DefaultDataDir is where snapshots and local outputs go.
const DefaultDataDir = "~/.local/share/offender-census"

const snapshotFile = "snapshot.json"

// Sink receives a finished (possibly partial) run.
type Sink interface {
	Write(ctx context.Context, run *census.RunResult) error
}

// Storage handles persistence of run snapshots.
type Storage struct {
	dataDir string
}

// New creates a new Storage instance
func New(dataDir string) (*Storage, error) {
	dir, err := ExpandHome(dataDir)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	return &Storage{
		dataDir: dir,
	}, nil
}

// ExpandHome expands a leading ~/ to the user's home directory.
func ExpandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, path[2:]), nil
}

// Dir returns the data directory.
func (s *Storage) Dir() string {
	return s.dataDir
}

// Path returns name inside the data directory.
func (s *Storage) Path(name string) string {
	return filepath.Join(s.dataDir, name)
}

// FileName returns the dated output name, offender_population_<YYYY-MM-DD>.<ext>.
func FileName(day time.Time, ext string) string {
	return fmt.Sprintf("offender_population_%s.%s", day.Format("2006-01-02"), strings.TrimPrefix(ext, "."))
}

// LoadSnapshot loads the last saved run. It returns nil, nil when no run
// has been saved yet.
func (s *Storage) LoadSnapshot() (*census.RunResult, error) {
	data, err := os.ReadFile(s.Path(snapshotFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var run census.RunResult
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	return &run, nil
}

// SaveSnapshot saves run as the latest snapshot.
func (s *Storage) SaveSnapshot(run *census.RunResult) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	tmp := s.Path(snapshotFile + ".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.Path(snapshotFile)); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// Write implements Sink.
func (s *Storage) Write(_ context.Context, run *census.RunResult) error {
	return s.SaveSnapshot(run)
}

// Multi writes to every sink, even after a failure, and joins the errors.
type Multi []Sink

// Write implements Sink.
func (m Multi) Write(ctx context.Context, run *census.RunResult) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Write(ctx, run); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
