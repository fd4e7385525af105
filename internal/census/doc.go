// Package census joins offender counts with county populations.
//
// For each county the Aggregator resolves the five status filters one after
// another on a single browser session, then computes per-capita ratios. A
// filter whose attempts are exhausted is recorded as a missing count with a
// Failure entry; it never becomes a zero and never stops the run. Only a lost
// session or cancellation ends a run early.
package census
