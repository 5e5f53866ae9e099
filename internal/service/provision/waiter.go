// Package provision sequences drop and create statements for catalog objects
// against an asynchronous query service.
package provision

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"quilt-athena/internal/domain"
)

// WaitPolicy bounds how an execution is polled.
type WaitPolicy struct {
	PollInterval       time.Duration // delay after the first poll
	MaxInterval        time.Duration // backoff cap; <= PollInterval keeps it fixed
	Multiplier         float64       // interval growth per poll; <= 1 keeps it fixed
	MaxAttempts        int           // total polls before *domain.TimeoutError
	MaxTransientErrors int           // consecutive transient poll errors tolerated
	Timeout            time.Duration // overall budget, 0 = none
}

// DefaultWaitPolicy mirrors the config defaults.
func DefaultWaitPolicy() WaitPolicy {
	return WaitPolicy{
		PollInterval:       time.Second,
		MaxInterval:        10 * time.Second,
		Multiplier:         1.5,
		MaxAttempts:        120,
		MaxTransientErrors: 5,
		Timeout:            10 * time.Minute,
	}
}

// next returns the interval to use after d.
func (p WaitPolicy) next(d time.Duration) time.Duration {
	if p.Multiplier <= 1 {
		return d
	}
	n := time.Duration(float64(d) * p.Multiplier)
	if p.MaxInterval > 0 && n > p.MaxInterval {
		n = p.MaxInterval
	}
	return n
}

// Waiter blocks until a submitted execution reaches a terminal state.
type Waiter struct {
	queries domain.QueryService
	policy  WaitPolicy
	logger  *slog.Logger
}

// NewWaiter creates a waiter polling queries under policy.
func NewWaiter(queries domain.QueryService, policy WaitPolicy, logger *slog.Logger) *Waiter {
	if logger == nil {
		logger = slog.Default()
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Waiter{queries: queries, policy: policy, logger: logger}
}

// Await polls executionID until it is Succeeded, Failed or Cancelled and
// returns that status. Exhausting MaxAttempts or Timeout yields a
// *domain.TimeoutError; a *domain.FatalError from the service is returned
// at once; transient errors are retried up to MaxTransientErrors in a row.
func (w *Waiter) Await(ctx context.Context, executionID string) (domain.ExecutionStatus, error) {
	start := time.Now()
	if w.policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.policy.Timeout)
		defer cancel()
	}

	logger := w.logger.With("execution_id", executionID)
	interval := w.policy.PollInterval
	lastState := domain.ExecutionStateSubmitted
	transient := 0

	timeout := func(attempts int) error {
		return &domain.TimeoutError{
			ExecutionID: executionID,
			Attempts:    attempts,
			Elapsed:     time.Since(start),
			LastState:   lastState,
		}
	}

	for attempt := 1; attempt <= w.policy.MaxAttempts; attempt++ {
		status, err := w.queries.GetStatus(ctx, executionID)
		switch {
		case err == nil:
			transient = 0
			lastState = status.State
			if status.State.IsTerminal() {
				logger.Debug("execution terminal", "state", status.State, "polls", attempt)
				return status, nil
			}
		case isTransient(err):
			transient++
			if transient > w.policy.MaxTransientErrors {
				return domain.ExecutionStatus{}, err
			}
			logger.Warn("transient poll error", "attempt", attempt, "error", err)
		default:
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
				return domain.ExecutionStatus{}, timeout(attempt)
			}
			return domain.ExecutionStatus{}, err
		}

		if attempt == w.policy.MaxAttempts {
			break
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return domain.ExecutionStatus{}, timeout(attempt)
			}
			return domain.ExecutionStatus{}, ctx.Err()
		case <-timer.C:
		}
		interval = w.policy.next(interval)
	}

	return domain.ExecutionStatus{}, timeout(w.policy.MaxAttempts)
}

func isTransient(err error) bool {
	var tErr *domain.TransientError
	return errors.As(err, &tErr)
}
