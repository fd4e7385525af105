package scraper

import (
	"context"
	"errors"
)

// DefaultElementID is the id of the results table summary ("Showing 1 to 10 of 37 entries").
const DefaultElementID = "offenderTable_info"

var (
	// ErrRenderTimeout means the summary element never reached a ready state.
	ErrRenderTimeout = errors.New("render timeout")
	// ErrNotReady means the summary text was present but held no count.
	ErrNotReady = errors.New("count not yet available")
	// ErrSessionLost means the browser session is gone and cannot serve further queries.
	ErrSessionLost = errors.New("browser session lost")
	// ErrExhausted means every attempt for a target failed.
	ErrExhausted = errors.New("retry attempts exhausted")
)

// Session is a navigable browser page. Navigation replaces all prior page state.
// A Session is used by one goroutine at a time.
type Session interface {
	// Navigate loads url, replacing the current page.
	Navigate(ctx context.Context, url string) error
	// ElementText returns the displayed text of the element with the given id.
	ElementText(ctx context.Context, id string) (string, error)
	// Close tears the session down.
	Close() error
}
