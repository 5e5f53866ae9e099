package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quilt-athena/internal/domain"
	"quilt-athena/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func fastPolicy(maxAttempts int) WaitPolicy {
	return WaitPolicy{
		PollInterval:       time.Millisecond,
		MaxInterval:        time.Millisecond,
		Multiplier:         1,
		MaxAttempts:        maxAttempts,
		MaxTransientErrors: 3,
	}
}

func alwaysRunning(calls *atomic.Int32) *testutil.MockQueryService {
	return &testutil.MockQueryService{
		GetStatusFn: func(_ context.Context, id string) (domain.ExecutionStatus, error) {
			calls.Add(1)
			return domain.ExecutionStatus{ExecutionID: id, State: domain.ExecutionStateRunning}, nil
		},
	}
}

func TestWaiter_Await_ReachesTerminal(t *testing.T) {
	t.Parallel()

	fake := &testutil.FakeQueryService{RunningPolls: 2}
	id, err := fake.Submit(context.Background(), "SELECT 1", "s3://b/")
	require.NoError(t, err)

	w := NewWaiter(fake, fastPolicy(10), discardLogger())
	status, err := w.Await(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionStateSucceeded, status.State)
	assert.Equal(t, id, status.ExecutionID)
}

func TestWaiter_Await_FailedIsReturnedAsStatus(t *testing.T) {
	t.Parallel()

	fake := &testutil.FakeQueryService{Outcome: testutil.FailWhen("SELECT", "syntax error")}
	id, err := fake.Submit(context.Background(), "SELECT 1", "s3://b/")
	require.NoError(t, err)

	status, err := NewWaiter(fake, fastPolicy(10), discardLogger()).Await(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionStateFailed, status.State)
	assert.Equal(t, "syntax error", status.Reason)
}

func TestWaiter_Await_TimesOutAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	w := NewWaiter(alwaysRunning(&calls), fastPolicy(2), discardLogger())

	_, err := w.Await(context.Background(), "exec-1")
	require.Error(t, err)

	var tErr *domain.TimeoutError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, 2, tErr.Attempts)
	assert.Equal(t, "exec-1", tErr.ExecutionID)
	assert.Equal(t, domain.ExecutionStateRunning, tErr.LastState)
	assert.Equal(t, int32(2), calls.Load())
}

func TestWaiter_Await_OverallTimeout(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	policy := fastPolicy(1_000_000)
	policy.PollInterval = 5 * time.Millisecond
	policy.MaxInterval = 5 * time.Millisecond
	policy.Timeout = 30 * time.Millisecond

	_, err := NewWaiter(alwaysRunning(&calls), policy, discardLogger()).Await(context.Background(), "exec-1")

	var tErr *domain.TimeoutError
	require.ErrorAs(t, err, &tErr)
	assert.Less(t, tErr.Attempts, 1_000_000)
}

func TestWaiter_Await_TransientErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		failures   int
		wantErr    bool
		wantCalled int32
	}{
		{name: "retried within budget", failures: 3, wantErr: false, wantCalled: 4},
		{name: "budget exhausted", failures: 4, wantErr: true, wantCalled: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			svc := &testutil.MockQueryService{
				GetStatusFn: func(_ context.Context, id string) (domain.ExecutionStatus, error) {
					n := calls.Add(1)
					if int(n) <= tt.failures {
						return domain.ExecutionStatus{}, &domain.TransientError{ExecutionID: id, Err: fmt.Errorf("throttled")}
					}
					return domain.ExecutionStatus{ExecutionID: id, State: domain.ExecutionStateSucceeded}, nil
				},
			}

			status, err := NewWaiter(svc, fastPolicy(10), discardLogger()).Await(context.Background(), "exec-1")
			if tt.wantErr {
				var trErr *domain.TransientError
				require.ErrorAs(t, err, &trErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, domain.ExecutionStateSucceeded, status.State)
			}
			assert.Equal(t, tt.wantCalled, calls.Load())
		})
	}
}

func TestWaiter_Await_FatalErrorStopsImmediately(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	svc := &testutil.MockQueryService{
		GetStatusFn: func(_ context.Context, id string) (domain.ExecutionStatus, error) {
			calls.Add(1)
			return domain.ExecutionStatus{}, &domain.FatalError{ExecutionID: id, Err: errors.New("unknown execution")}
		},
	}

	_, err := NewWaiter(svc, fastPolicy(10), discardLogger()).Await(context.Background(), "missing")
	var fErr *domain.FatalError
	require.ErrorAs(t, err, &fErr)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWaiter_Await_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	svc := &testutil.MockQueryService{
		GetStatusFn: func(_ context.Context, id string) (domain.ExecutionStatus, error) {
			cancel()
			return domain.ExecutionStatus{ExecutionID: id, State: domain.ExecutionStateRunning}, nil
		},
	}
	policy := fastPolicy(10)
	policy.PollInterval = time.Second

	_, err := NewWaiter(svc, policy, discardLogger()).Await(ctx, "exec-1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWaitPolicy_Next(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		policy WaitPolicy
		in     time.Duration
		want   time.Duration
	}{
		{name: "fixed interval", policy: WaitPolicy{Multiplier: 1}, in: time.Second, want: time.Second},
		{name: "grows", policy: WaitPolicy{Multiplier: 2, MaxInterval: 10 * time.Second}, in: time.Second, want: 2 * time.Second},
		{name: "capped", policy: WaitPolicy{Multiplier: 2, MaxInterval: 3 * time.Second}, in: 2 * time.Second, want: 3 * time.Second},
		{name: "uncapped", policy: WaitPolicy{Multiplier: 1.5}, in: 2 * time.Second, want: 3 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.policy.next(tt.in))
		})
	}
}

func TestNewWaiter_ClampsAttempts(t *testing.T) {
	t.Parallel()

	w := NewWaiter(nil, WaitPolicy{}, nil)
	assert.Equal(t, 1, w.policy.MaxAttempts)
	assert.NotNil(t, w.logger)
}
