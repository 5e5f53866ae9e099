package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessages(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"template with path", &TemplateError{Path: "manifests.ddl", Message: "not found", Err: cause}, "template manifests.ddl: not found: boom"},
		{"inline template", ErrTemplate("unknown placeholder {%s}", "x"), "unknown placeholder {x}"},
		{"remote failure", &RemoteQueryFailure{ExecutionID: "e1", State: ExecutionStateFailed, Reason: "bad"}, "execution e1 ended FAILED: bad"},
		{"remote failure no reason", &RemoteQueryFailure{ExecutionID: "e1", State: ExecutionStateCancelled}, "execution e1 ended CANCELLED"},
		{"timeout", &TimeoutError{ExecutionID: "e1", Attempts: 3, Elapsed: 1500 * time.Millisecond, LastState: ExecutionStateRunning}, "execution e1 not terminal after 3 polls (1.5s, last state RUNNING)"},
		{"not ready", &NotReadyError{ExecutionID: "e1", State: ExecutionStateRunning}, "results for execution e1 not ready (state RUNNING)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	assert.ErrorIs(t, &SubmissionError{Statement: "SELECT 1", Err: cause}, cause)
	assert.ErrorIs(t, &TransientError{ExecutionID: "e1", Err: cause}, cause)
	assert.ErrorIs(t, &FatalError{ExecutionID: "e1", Err: cause}, cause)
	assert.ErrorIs(t, &TemplateError{Path: "p", Err: cause}, cause)
}
