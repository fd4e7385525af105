package census

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vaoffenders/offender-census/internal/logger"
	"github.com/vaoffenders/offender-census/internal/metrics"
	"github.com/vaoffenders/offender-census/internal/query"
	"github.com/vaoffenders/offender-census/internal/scraper"
	"golang.org/x/time/rate"
)

// DefaultPace is the minimum spacing between the starts of two counties.
const DefaultPace = 3500 * time.Millisecond

// Resolver resolves one query target to a count.
type Resolver interface {
	Resolve(ctx context.Context, sess scraper.Session, target query.Target) (int, error)
}

// Aggregator resolves every filter of every county on one session.
type Aggregator struct {
	Builder  *query.Builder
	Resolver Resolver
	Metrics  *metrics.Metrics
	Pace     time.Duration
}

// NewAggregator returns an Aggregator with the default pace.
func NewAggregator(builder *query.Builder, resolver Resolver) *Aggregator {
	return &Aggregator{
		Builder:  builder,
		Resolver: resolver,
		Pace:     DefaultPace,
	}
}

// ProcessSubject resolves the five filters of subject in order. Exhausted
// filters become missing counts; any other resolver error is returned.
func (a *Aggregator) ProcessSubject(ctx context.Context, sess scraper.Session, subject Subject) (SubjectResult, error) {
	targets, err := a.Builder.BuildTargets(subject.Name)
	if err != nil {
		return SubjectResult{}, fmt.Errorf("building targets: %w", err)
	}

	var (
		counts   [query.NumFilters]*int
		failures []Failure
	)
	for _, target := range targets {
		n, err := a.Resolver.Resolve(ctx, sess, target)
		if err != nil {
			if !errors.Is(err, scraper.ErrExhausted) {
				return SubjectResult{}, fmt.Errorf("resolving %s: %w", target, err)
			}
			failures = append(failures, newFailure(target, err))
			continue
		}
		counts[target.Filter] = &n
	}

	return NewSubjectResult(subject, counts, failures), nil
}

func newFailure(target query.Target, err error) Failure {
	f := Failure{
		Filter: target.Filter,
		URL:    target.URL,
		Reason: err.Error(),
	}
	var exhausted *scraper.ExhaustedError
	if errors.As(err, &exhausted) {
		f.Attempts = exhausted.Attempts
	}
	return f
}

// Run processes subjects in order. On a fatal error the partial result is
// returned along with the error.
func (a *Aggregator) Run(ctx context.Context, sess scraper.Session, subjects []Subject) (*RunResult, error) {
	run := NewRunResult()
	defer func() { run.FinishedAt = time.Now().UTC() }()

	var limiter *rate.Limiter
	if a.Pace > 0 {
		limiter = rate.NewLimiter(rate.Every(a.Pace), 1)
	}

	for i, subject := range subjects {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return run, fmt.Errorf("pacing before %q: %w", subject.Name, err)
			}
		}

		logger.Info("Processing county", logger.Fields{
			"run_id":   run.ID,
			"progress": fmt.Sprintf("%d / %d", i+1, len(subjects)),
			"county":   subject.Name,
		})

		start := time.Now()
		res, err := a.ProcessSubject(ctx, sess, subject)
		if err != nil {
			return run, fmt.Errorf("processing %q: %w", subject.Name, err)
		}
		a.Metrics.ObserveSubject(time.Since(start))
		run.Results = append(run.Results, res)

		logger.Info("County processed", logger.Fields{
			"county":  subject.Name,
			"counts":  countsField(res.Counts),
			"missing": res.Missing(),
		})
	}

	return run, nil
}

// countsField renders counts for logging, with missing values as null.
func countsField(counts [query.NumFilters]*int) []interface{} {
	out := make([]interface{}, len(counts))
	for i, c := range counts {
		if c != nil {
			out[i] = *c
		}
	}
	return out
}
