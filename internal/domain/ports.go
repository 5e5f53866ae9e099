package domain

import "context"

// QueryService abstracts an asynchronous query backend.
type QueryService interface {
	// Submit starts a query and returns its execution id without waiting.
	Submit(ctx context.Context, statement string, output OutputLocation) (string, error)
	// GetStatus polls an execution. Retryable failures are *TransientError,
	// unknown ids are *FatalError.
	GetStatus(ctx context.Context, executionID string) (ExecutionStatus, error)
	// GetResults fetches rows of a succeeded execution, or *NotReadyError.
	GetResults(ctx context.Context, executionID string) (*QueryResult, error)
}

// OutputChecker verifies that an output location is usable before any
// statement is submitted.
type OutputChecker interface {
	Verify(ctx context.Context, loc OutputLocation) error
}
