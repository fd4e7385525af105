// Package query builds the portal search URLs for one county.
//
// Every county is queried once per offender status filter. The portal's
// results page is addressed entirely by query string, so a target is just a
// URL plus the county and filter it was built for. Targets are returned in
// the fixed filter order used throughout the output schema.
package query
