// Package cli implements the command-line interface for offender-census.
//
// The cli package provides the Cobra-based CLI. The run command loads the
// county population table, resolves the five offender counts of every county
// through a headless browser, and writes the results to the configured
// sinks. fetch-population refreshes the population table, resolve queries a
// single county, and show prints the last saved run. Output is a text table
// or JSON.
package cli
