// Package testutil provides shared mock implementations of domain interfaces
// for use in tests across the codebase. This follows the Go convention of a
// shared test utility package (like net/http/httptest).
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"quilt-athena/internal/domain"
)

// === Query Service Mock ===

// MockQueryService implements domain.QueryService with per-method hooks.
type MockQueryService struct {
	SubmitFn     func(ctx context.Context, statement string, output domain.OutputLocation) (string, error)
	GetStatusFn  func(ctx context.Context, executionID string) (domain.ExecutionStatus, error)
	GetResultsFn func(ctx context.Context, executionID string) (*domain.QueryResult, error)
}

// Submit implements the interface method for testing.
func (m *MockQueryService) Submit(ctx context.Context, statement string, output domain.OutputLocation) (string, error) {
	if m.SubmitFn != nil {
		return m.SubmitFn(ctx, statement, output)
	}
	panic("unexpected call to MockQueryService.Submit")
}

// GetStatus implements the interface method for testing.
func (m *MockQueryService) GetStatus(ctx context.Context, executionID string) (domain.ExecutionStatus, error) {
	if m.GetStatusFn != nil {
		return m.GetStatusFn(ctx, executionID)
	}
	panic("unexpected call to MockQueryService.GetStatus")
}

// GetResults implements the interface method for testing.
func (m *MockQueryService) GetResults(ctx context.Context, executionID string) (*domain.QueryResult, error) {
	if m.GetResultsFn != nil {
		return m.GetResultsFn(ctx, executionID)
	}
	panic("unexpected call to MockQueryService.GetResults")
}

var _ domain.QueryService = (*MockQueryService)(nil)

// === Fake Query Backend ===

// EventKind labels entries in a FakeQueryService event log.
type EventKind string

// Event kinds recorded by FakeQueryService.
const (
	EventSubmit   EventKind = "submit"
	EventTerminal EventKind = "terminal"
)

// Event is one entry in the FakeQueryService event log.
type Event struct {
	Kind        EventKind
	ExecutionID string
	Statement   string
	Output      domain.OutputLocation
	State       domain.ExecutionState // set for EventTerminal
}

// FakeQueryService is an in-memory asynchronous query backend. Each
// execution reports Running for RunningPolls polls and then the terminal
// state chosen by Outcome. It records submissions and first terminal
// observations in order, so tests can assert sequencing.
type FakeQueryService struct {
	// Outcome picks the terminal state and reason for a statement.
	// Nil means every statement succeeds.
	Outcome func(statement string) (domain.ExecutionState, string)
	// SubmitErr fails the submission of a statement when it returns non-nil.
	SubmitErr func(statement string) error
	// ResultsErr fails result fetches when set.
	ResultsErr error
	// RunningPolls is the number of polls that report Running before the
	// terminal state is reported.
	RunningPolls int

	mu     sync.Mutex
	seq    int
	execs  map[string]*fakeExecution
	events []Event
}

type fakeExecution struct {
	statement string
	polls     int
	terminal  bool
}

// Submit implements domain.QueryService.
func (f *FakeQueryService) Submit(_ context.Context, statement string, output domain.OutputLocation) (string, error) {
	if f.SubmitErr != nil {
		if err := f.SubmitErr(statement); err != nil {
			return "", &domain.SubmissionError{Statement: statement, Err: err}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.execs == nil {
		f.execs = make(map[string]*fakeExecution)
	}
	f.seq++
	id := fmt.Sprintf("exec-%d", f.seq)
	f.execs[id] = &fakeExecution{statement: statement}
	f.events = append(f.events, Event{Kind: EventSubmit, ExecutionID: id, Statement: statement, Output: output})
	return id, nil
}

// GetStatus implements domain.QueryService.
func (f *FakeQueryService) GetStatus(_ context.Context, executionID string) (domain.ExecutionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	exec, ok := f.execs[executionID]
	if !ok {
		return domain.ExecutionStatus{}, &domain.FatalError{
			ExecutionID: executionID,
			Err:         fmt.Errorf("execution %s not found", executionID),
		}
	}
	exec.polls++
	if exec.polls <= f.RunningPolls {
		return domain.ExecutionStatus{ExecutionID: executionID, State: domain.ExecutionStateRunning}, nil
	}

	state, reason := f.outcome(exec.statement)
	if !exec.terminal {
		exec.terminal = true
		f.events = append(f.events, Event{Kind: EventTerminal, ExecutionID: executionID, Statement: exec.statement, State: state})
	}
	return domain.ExecutionStatus{ExecutionID: executionID, State: state, Reason: reason}, nil
}

// GetResults implements domain.QueryService.
func (f *FakeQueryService) GetResults(ctx context.Context, executionID string) (*domain.QueryResult, error) {
	status, err := f.GetStatus(ctx, executionID)
	if err != nil {
		return nil, err
	}
	if status.State != domain.ExecutionStateSucceeded {
		return nil, &domain.NotReadyError{ExecutionID: executionID, State: status.State}
	}
	if f.ResultsErr != nil {
		return nil, f.ResultsErr
	}
	return &domain.QueryResult{ExecutionID: executionID}, nil
}

func (f *FakeQueryService) outcome(statement string) (domain.ExecutionState, string) {
	if f.Outcome == nil {
		return domain.ExecutionStateSucceeded, ""
	}
	return f.Outcome(statement)
}

// Events returns a copy of the event log.
func (f *FakeQueryService) Events() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Event(nil), f.events...)
}

// Submitted returns submitted statements in order.
func (f *FakeQueryService) Submitted() []string {
	var out []string
	for _, e := range f.Events() {
		if e.Kind == EventSubmit {
			out = append(out, e.Statement)
		}
	}
	return out
}

// IndexOf returns the position in the event log of the first event of kind
// whose statement contains substr, or -1.
func (f *FakeQueryService) IndexOf(kind EventKind, substr string) int {
	for i, e := range f.Events() {
		if e.Kind == kind && strings.Contains(e.Statement, substr) {
			return i
		}
	}
	return -1
}

var _ domain.QueryService = (*FakeQueryService)(nil)

// FailWhen returns an Outcome that fails statements containing substr with
// reason and succeeds everything else.
func FailWhen(substr, reason string) func(string) (domain.ExecutionState, string) {
	return func(statement string) (domain.ExecutionState, string) {
		if strings.Contains(statement, substr) {
			return domain.ExecutionStateFailed, reason
		}
		return domain.ExecutionStateSucceeded, ""
	}
}
