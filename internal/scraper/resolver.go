package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/vaoffenders/offender-census/internal/logger"
	"github.com/vaoffenders/offender-census/internal/metrics"
	"github.com/vaoffenders/offender-census/internal/query"
)

const (
	DefaultMaxAttempts    = 5
	DefaultBaseDelay      = 4500 * time.Millisecond
	DefaultJitter         = 0.33
	DefaultAttemptTimeout = 20 * time.Second
)

// ExhaustedError reports a target whose every attempt failed.
type ExhaustedError struct {
	Target   query.Target
	Attempts int
	Last     Outcome
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: %v after %d attempts: %v", e.Target, ErrExhausted, e.Attempts, e.Last.Cause())
}

// Is matches ErrExhausted.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}

// Unwrap exposes the cause of the last failed attempt.
func (e *ExhaustedError) Unwrap() error {
	return e.Last.Cause()
}

type resolveState int

const (
	stateAttempting resolveState = iota
	stateSuccess
	stateExhausted
)

// Resolver drives navigate, wait and extract for one target until it
// yields a count or the attempt budget is spent.
type Resolver struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	Jitter         float64 // randomization factor applied to BaseDelay
	AttemptTimeout time.Duration
	PollInterval   time.Duration
	ElementID      string
	Metrics        *metrics.Metrics

	// sleep waits between attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewResolver returns a Resolver with the default retry policy.
func NewResolver() *Resolver {
	return &Resolver{
		MaxAttempts:    DefaultMaxAttempts,
		BaseDelay:      DefaultBaseDelay,
		Jitter:         DefaultJitter,
		AttemptTimeout: DefaultAttemptTimeout,
		PollInterval:   DefaultPollInterval,
		ElementID:      DefaultElementID,
	}
}

// Resolve returns the count for target. When every attempt fails it returns
// an *ExhaustedError (errors.Is(err, ErrExhausted)). A lost session or a
// cancelled ctx is returned as-is and must abort the run.
func (r *Resolver) Resolve(ctx context.Context, sess Session, target query.Target) (int, error) {
	maxAttempts := r.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	delays := r.delays()

	var (
		state   = stateAttempting
		attempt int
		last    Outcome
	)

	for state == stateAttempting {
		attempt++
		last = r.attempt(ctx, sess, target)
		r.Metrics.ObserveAttempt(target.Filter.String(), last.Kind.String())

		if err := fatal(ctx, last); err != nil {
			return 0, fmt.Errorf("%s: %w", target, err)
		}

		fields := logger.Fields{
			"county":  target.Subject,
			"filter":  target.Filter.String(),
			"attempt": attempt,
			"outcome": last.Kind.String(),
			"text":    last.Text,
		}

		switch {
		case last.Resolved():
			state = stateSuccess
			fields["count"] = last.Value()
			logger.Debug("Target resolved", fields)
		case attempt >= maxAttempts:
			state = stateExhausted
		default:
			delay := delays.NextBackOff()
			fields["retry_in"] = delay.String()
			logger.Warn("Attempt failed, retrying", withCause(fields, last))
			if err := r.wait(ctx, delay); err != nil {
				return 0, fmt.Errorf("%s: waiting to retry: %w", target, err)
			}
		}
	}

	r.Metrics.ObserveResolution(target.Filter.String(), state == stateSuccess, attempt)

	if state == stateExhausted {
		err := &ExhaustedError{Target: target, Attempts: attempt, Last: last}
		logger.Error("Target failed", logger.Fields{
			"county":   target.Subject,
			"filter":   target.Filter.String(),
			"url":      target.URL,
			"attempts": attempt,
		}, err)
		return 0, err
	}
	return last.Value(), nil
}

// attempt runs one navigate, wait, extract cycle.
func (r *Resolver) attempt(ctx context.Context, sess Session, target query.Target) Outcome {
	elementID := r.ElementID
	if elementID == "" {
		elementID = DefaultElementID
	}
	timeout := r.AttemptTimeout
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}

	if err := sess.Navigate(ctx, target.URL); err != nil {
		return Transient(fmt.Errorf("navigating: %w", err))
	}
	if err := AwaitReady(ctx, sess, elementID, timeout, r.PollInterval); err != nil {
		return Transient(err)
	}
	return Extract(ctx, sess, elementID)
}

// fatal returns the error that must stop retrying altogether, if any.
func fatal(ctx context.Context, o Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if o.Kind == OutcomeTransient && errors.Is(o.Err, ErrSessionLost) {
		return o.Err
	}
	return nil
}

// delays yields BaseDelay randomized by Jitter; the multiplier of 1 keeps it flat.
func (r *Resolver) delays() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.BaseDelay
	b.MaxInterval = r.BaseDelay
	b.RandomizationFactor = r.Jitter
	b.Multiplier = 1
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (r *Resolver) wait(ctx context.Context, d time.Duration) error {
	if r.sleep != nil {
		return r.sleep(ctx, d)
	}
	return sleepContext(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func withCause(fields logger.Fields, o Outcome) logger.Fields {
	if cause := o.Cause(); cause != nil {
		fields["cause"] = cause.Error()
	}
	return fields
}
