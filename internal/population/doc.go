// Package population loads the county population table that drives a run.
//
// A table has one row per county with its name and population. It can be
// read from a local CSV file, from an object in S3, or scraped from an HTML
// table on a web page. WriteCSV stores a scraped table so later runs can
// read it locally.
package population
