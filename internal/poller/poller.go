// Package poller reads remote job status with a bounded retry budget for
// transient failures.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/leca/dt-video-gen/internal/apperror"
	"github.com/leca/dt-video-gen/internal/metrics"
	"github.com/leca/dt-video-gen/internal/model"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

// Retriever performs a single status read.
type Retriever interface {
	RetrieveJob(ctx context.Context, jobID string) (*model.Job, error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Result is a successful poll.
type Result struct {
	Job      *model.Job
	Attempts int
}

// Failure is a poll that ended without a job object. Retryable is true when
// the budget was spent on transient failures and a later poll may succeed.
type Failure struct {
	Attempts  int
	Retryable bool
	Err       error
}

func (f *Failure) Error() string {
	return f.Err.Error()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Options configures a Poller. Zero values select the defaults.
type Options struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Sleep       SleepFunc
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
}

// Poller is stateless between calls and safe for concurrent use.
type Poller struct {
	client      Retriever
	maxAttempts int
	baseDelay   time.Duration
	sleep       SleepFunc
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// New creates a Poller over client.
func New(client Retriever, opts Options) *Poller {
	p := &Poller{
		client:      client,
		maxAttempts: opts.MaxAttempts,
		baseDelay:   opts.BaseDelay,
		sleep:       opts.Sleep,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
	}
	if p.maxAttempts <= 0 {
		p.maxAttempts = DefaultMaxAttempts
	}
	if p.baseDelay <= 0 {
		p.baseDelay = DefaultBaseDelay
	}
	if p.sleep == nil {
		p.sleep = Sleep
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Poll reads the status of jobID. Transient failures are retried after
// attempt × baseDelay until the budget is spent; anything else ends the poll
// at once.
func (p *Poller) Poll(ctx context.Context, jobID string) (*Result, error) {
	for attempt := 1; ; attempt++ {
		job, err := p.client.RetrieveJob(ctx, jobID)
		if err == nil {
			p.metrics.ObserveRemote("retrieve", "ok")
			p.metrics.ObservePoll(attempt)
			return &Result{Job: job, Attempts: attempt}, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			p.metrics.ObservePoll(attempt)
			return nil, &Failure{Attempts: attempt, Err: ctxErr}
		}

		if !apperror.IsTransient(err) {
			p.metrics.ObserveRemote("retrieve", "fatal")
			p.metrics.ObservePoll(attempt)
			p.logger.Warn("status poll failed", "job_id", jobID, "attempt", attempt, "error", err)
			return nil, &Failure{Attempts: attempt, Err: err}
		}

		p.metrics.ObserveRemote("retrieve", "transient")
		if attempt >= p.maxAttempts {
			p.metrics.ObservePoll(attempt)
			p.logger.Warn("status poll retries exhausted", "job_id", jobID, "attempts", attempt, "error", err)
			return nil, &Failure{Attempts: attempt, Retryable: true, Err: err}
		}

		delay := time.Duration(attempt) * p.baseDelay
		p.logger.Info("retrying status poll", "job_id", jobID, "attempt", attempt, "delay", delay, "error", err)
		if err := p.sleep(ctx, delay); err != nil {
			p.metrics.ObservePoll(attempt)
			return nil, &Failure{Attempts: attempt, Err: err}
		}
	}
}

// Sleep waits for d, returning early with ctx.Err() if ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsRetryable reports whether err is a poll failure a caller may retry.
func IsRetryable(err error) bool {
	var f *Failure
	return errors.As(err, &f) && f.Retryable
}
