// Package scraper extracts offender counts from the portal's search results page.
//
// The results table is filled in asynchronously after the page loads, so a
// count is never read straight after navigation. Instead each attempt
// navigates, polls the table summary element until its text reaches a
// recognizable state, classifies that text into an Outcome and, when it is
// not yet usable, retries with a jittered delay up to a fixed attempt budget.
// The browser itself is behind the Session interface.
package scraper
