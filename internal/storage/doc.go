// Package storage writes run results.
//
// Every sink emits the same twelve columns in the same order: county,
// population, the five offender counts and the five per-capita values.
// Counts that could not be resolved are written as empty cells (CSV, XLSX)
// or NULL (SQLite), never as zero.
//
// Storage keeps a JSON snapshot of the latest run in a data directory,
// ~/.local/share/offender-census/ by default, so it can be shown again
// without scraping.
package storage
