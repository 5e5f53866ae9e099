package domain

import "strings"

// ExecutionState represents the lifecycle state of a submitted query.
type ExecutionState string

// Query execution lifecycle states.
const (
	ExecutionStateSubmitted ExecutionState = "SUBMITTED"
	ExecutionStateRunning   ExecutionState = "RUNNING"
	ExecutionStateSucceeded ExecutionState = "SUCCEEDED"
	ExecutionStateFailed    ExecutionState = "FAILED"
	ExecutionStateCancelled ExecutionState = "CANCELLED"
)

// IsTerminal reports whether no further transitions can occur.
func (s ExecutionState) IsTerminal() bool {
	switch s {
	case ExecutionStateSucceeded, ExecutionStateFailed, ExecutionStateCancelled:
		return true
	default:
		return false
	}
}

// OutputLocation is the storage URI the query service writes results to.
// It is derived once per run and used for every submission.
type OutputLocation string

func (l OutputLocation) String() string { return string(l) }

// ExecutionStatus is a point-in-time view of a query execution.
type ExecutionStatus struct {
	ExecutionID string
	State       ExecutionState
	Reason      string // failure or cancellation reason reported by the service
}

// objectMissingHints are failure reasons meaning the target object was absent.
var objectMissingHints = []string{
	"does not exist",
	"not found",
	"entitynotfoundexception",
}

// IndicatesMissingObject reports whether a failed status means the object
// being dropped did not exist.
func (s ExecutionStatus) IndicatesMissingObject() bool {
	if s.State != ExecutionStateFailed {
		return false
	}
	reason := strings.ToLower(s.Reason)
	for _, hint := range objectMissingHints {
		if strings.Contains(reason, hint) {
			return true
		}
	}
	return false
}

// QueryResult holds rows fetched for a succeeded execution.
type QueryResult struct {
	ExecutionID string
	Columns     []string
	Rows        [][]string
	Truncated   bool
}
