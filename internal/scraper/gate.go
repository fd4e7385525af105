package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultPollInterval is the pause between summary element reads.
const DefaultPollInterval = 250 * time.Millisecond

// Ready reports whether summary text looks fully rendered: it mentions a
// total ("... of 37 entries") or an explicit empty result.
func Ready(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "of") || strings.Contains(lower, "no matching")
}

// AwaitReady polls the element until its text is Ready, the timeout elapses
// (ErrRenderTimeout) or ctx is done. Lookup failures while polling are
// treated as "not rendered yet", except ErrSessionLost which is returned at once.
func AwaitReady(ctx context.Context, sess Session, elementID string, timeout, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	gctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		text, err := sess.ElementText(gctx, elementID)
		switch {
		case err == nil && Ready(text):
			return nil
		case err == nil:
			lastErr = nil
		case errors.Is(err, ErrSessionLost):
			return err
		case gctx.Err() == nil:
			lastErr = err
		}

		select {
		case <-gctx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if lastErr != nil {
				return fmt.Errorf("%w after %s: %w", ErrRenderTimeout, timeout, lastErr)
			}
			return fmt.Errorf("%w after %s", ErrRenderTimeout, timeout)
		case <-ticker.C:
		}
	}
}
