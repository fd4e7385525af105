// Package config loads run settings from an optional JSON5 file.
//
// A file named census.json5 may be accompanied by census.local.json5,
// whose values override it. Anything left unset falls back to Default().
// Durations are given in milliseconds.
package config
