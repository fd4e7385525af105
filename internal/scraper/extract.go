package scraper

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// OutcomeKind classifies one attempt.
type OutcomeKind int

const (
	// OutcomeEmpty is an explicit "no matching records" result.
	OutcomeEmpty OutcomeKind = iota
	// OutcomeCount is a parsed count.
	OutcomeCount
	// OutcomeNotReady is summary text that holds no interpretable count.
	OutcomeNotReady
	// OutcomeTransient is a navigation or element lookup failure.
	OutcomeTransient
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeEmpty:
		return "empty"
	case OutcomeCount:
		return "count"
	case OutcomeNotReady:
		return "not_ready"
	case OutcomeTransient:
		return "transient"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the classified state of one attempt.
type Outcome struct {
	Kind OutcomeKind
	N    int    // valid for OutcomeCount
	Text string // normalized summary text, when one was read
	Err  error  // valid for OutcomeTransient
}

// Empty returns an explicit empty result.
func Empty(text string) Outcome { return Outcome{Kind: OutcomeEmpty, Text: text} }

// Count returns a parsed count.
func Count(n int, text string) Outcome { return Outcome{Kind: OutcomeCount, N: n, Text: text} }

// NotReady returns an uninterpretable-text result.
func NotReady(text string) Outcome { return Outcome{Kind: OutcomeNotReady, Text: text} }

// Transient returns a lookup or navigation failure.
func Transient(err error) Outcome { return Outcome{Kind: OutcomeTransient, Err: err} }

// Resolved reports whether the outcome carries a definitive count.
func (o Outcome) Resolved() bool {
	return o.Kind == OutcomeEmpty || o.Kind == OutcomeCount
}

// Value returns the count for a resolved outcome. Empty is 0.
func (o Outcome) Value() int {
	if o.Kind == OutcomeCount {
		return o.N
	}
	return 0
}

// Cause returns the error describing an unresolved outcome, or nil.
func (o Outcome) Cause() error {
	switch o.Kind {
	case OutcomeTransient:
		return o.Err
	case OutcomeNotReady:
		return fmt.Errorf("%w: %q", ErrNotReady, o.Text)
	default:
		return nil
	}
}

// countPattern matches "of 1,234" in "showing 1 to 10 of 1,234 entries".
var countPattern = regexp.MustCompile(`\bof\s+(\d[\d,]*)`)

// Classify interprets summary text. It never fails: anything without a
// "no matching" marker or an "of <digits>" count is NotReady.
func Classify(raw string) Outcome {
	text := strings.ToLower(strings.TrimSpace(raw))

	if strings.Contains(text, "no matching") {
		return Empty(text)
	}

	m := countPattern.FindStringSubmatch(text)
	if m == nil {
		return NotReady(text)
	}

	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		// Overflowing digit run
		return NotReady(text)
	}
	if n == 0 {
		// "of 0 entries" and "no matching records" are the same result
		return Empty(text)
	}
	return Count(n, text)
}

// Extract reads the summary element and classifies it. Lookup failures are
// reported as a Transient outcome rather than an error.
func Extract(ctx context.Context, sess Session, elementID string) Outcome {
	text, err := sess.ElementText(ctx, elementID)
	if err != nil {
		return Transient(fmt.Errorf("reading #%s: %w", elementID, err))
	}
	return Classify(text)
}
