package provision

import (
	"fmt"
	"time"

	"quilt-athena/internal/domain"
)

// Step is one planned catalog object with its resolved statements.
type Step struct {
	Object domain.CatalogObject
	Params domain.ProvisioningParameters
	Drop   string // empty for views
	Create string
}

// Plan is the fully resolved, ordered set of statements for a run.
type Plan struct {
	Output   domain.OutputLocation
	Steps    []Step   // execution order: every dependency precedes its dependents
	Families [][]Step // independent groups, each in execution order
}

// ObjectReport is the outcome for a single catalog object.
type ObjectReport struct {
	Object            domain.CatalogObject
	State             domain.ObjectState
	DropExecutionID   string
	CreateExecutionID string
	DropTolerated     bool // drop failed only because the object was absent
	ResultRows        int  // rows fetched for the create statement, when fetched
	Err               error
}

// Report describes what a run did. A run that fails part way leaves earlier
// objects created; Report makes that partial state visible.
type Report struct {
	RunID      string
	Output     domain.OutputLocation
	Objects    []*ObjectReport // plan order
	StartedAt  time.Time
	FinishedAt time.Time
}

// Created returns the objects that reached Created.
func (r *Report) Created() []domain.ObjectRef {
	var out []domain.ObjectRef
	for _, o := range r.Objects {
		if o.State == domain.ObjectStateCreated {
			out = append(out, o.Object.Ref())
		}
	}
	return out
}

// Failed returns the report of the first failed object, or nil.
func (r *Report) Failed() *ObjectReport {
	for _, o := range r.Objects {
		if o.State == domain.ObjectStateFailed {
			return o
		}
	}
	return nil
}

// Partial reports whether some but not all objects were created.
func (r *Report) Partial() bool {
	n := len(r.Created())
	return n > 0 && n < len(r.Objects)
}

// StepError reports the object, phase, statement and execution id of a
// failed step.
type StepError struct {
	Object      domain.ObjectRef
	Phase       string // "drop" or "create"
	ExecutionID string // empty when submission itself failed
	Statement   string
	Err         error
}

func (e *StepError) Error() string {
	if e.ExecutionID == "" {
		return fmt.Sprintf("%s %s: %v", e.Phase, e.Object, e.Err)
	}
	return fmt.Sprintf("%s %s (execution %s): %v", e.Phase, e.Object, e.ExecutionID, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
