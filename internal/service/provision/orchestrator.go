package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"quilt-athena/internal/catalog"
	"quilt-athena/internal/ddl"
	"quilt-athena/internal/domain"
	"quilt-athena/internal/storage"
)

// Phases of a step.
const (
	PhaseDrop   = "drop"
	PhaseCreate = "create"
)

// Deps holds the collaborators of an Orchestrator.
type Deps struct {
	Queries  domain.QueryService
	Resolver *ddl.Resolver
	Waiter   *Waiter
	Checker  domain.OutputChecker // optional preflight of the output location
	Logger   *slog.Logger
}

// Options tune a run.
type Options struct {
	OutputBucket  string // defaults to the provisioned bucket
	OutputSubpath string
	Parallel      bool // run independent families concurrently
	FetchResults  bool // fetch and log results after each create
}

// Orchestrator sequences drop/create statements per catalog object and
// enforces dependency order across the object set.
type Orchestrator struct {
	queries  domain.QueryService
	resolver *ddl.Resolver
	waiter   *Waiter
	checker  domain.OutputChecker
	logger   *slog.Logger
	opts     Options
}

// NewOrchestrator creates an orchestrator. A nil Waiter polls with
// DefaultWaitPolicy.
func NewOrchestrator(deps Deps, opts Options) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	waiter := deps.Waiter
	if waiter == nil {
		waiter = NewWaiter(deps.Queries, DefaultWaitPolicy(), logger)
	}
	return &Orchestrator{
		queries:  deps.Queries,
		resolver: deps.Resolver,
		waiter:   waiter,
		checker:  deps.Checker,
		logger:   logger,
		opts:     opts,
	}
}

// Plan validates and orders objects and resolves every statement. Template
// problems surface here, before anything is submitted.
func (o *Orchestrator) Plan(objects []domain.CatalogObject, params domain.ProvisioningParameters) (*Plan, error) {
	if err := ddl.ValidateBucketName(params.BucketName); err != nil {
		return nil, domain.ErrValidation("invalid bucket: %v", err)
	}
	if err := catalog.Validate(objects); err != nil {
		return nil, err
	}
	levels, err := catalog.Order(objects)
	if err != nil {
		return nil, err
	}
	families, err := catalog.Families(objects)
	if err != nil {
		return nil, err
	}

	outputBucket := o.opts.OutputBucket
	if outputBucket == "" {
		outputBucket = params.BucketName
	}
	output, err := storage.OutputLocationFor(outputBucket, o.opts.OutputSubpath)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Output: output}
	steps := make(map[domain.ObjectRef]Step, len(objects))
	for _, obj := range catalog.Flatten(levels) {
		step, err := o.planStep(obj, params)
		if err != nil {
			return nil, err
		}
		steps[obj.Ref()] = step
		plan.Steps = append(plan.Steps, step)
	}
	for _, family := range families {
		var fs []Step
		for _, obj := range family {
			fs = append(fs, steps[obj.Ref()])
		}
		plan.Families = append(plan.Families, fs)
	}
	return plan, nil
}

func (o *Orchestrator) planStep(obj domain.CatalogObject, params domain.ProvisioningParameters) (Step, error) {
	p := params.ForObject(obj)
	step := Step{Object: obj, Params: p}

	if obj.IsTable() {
		drop, err := ddl.DropStatement(o.resolver, obj, p)
		if err != nil {
			return Step{}, fmt.Errorf("plan %s: %w", obj.Ref(), err)
		}
		step.Drop = drop
	}
	create, err := ddl.CreateStatement(o.resolver, obj, p)
	if err != nil {
		return Step{}, fmt.Errorf("plan %s: %w", obj.Ref(), err)
	}
	step.Create = create
	return step, nil
}

// Run provisions objects. It stops at the first fatal error and returns it
// together with a report; objects created before the failure stay created.
func (o *Orchestrator) Run(ctx context.Context, objects []domain.CatalogObject, params domain.ProvisioningParameters) (*Report, error) {
	plan, err := o.Plan(objects, params)
	if err != nil {
		return nil, err
	}
	return o.Execute(ctx, plan)
}

// Execute runs an already resolved plan.
func (o *Orchestrator) Execute(ctx context.Context, plan *Plan) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		Output:    plan.Output,
		StartedAt: time.Now(),
	}
	byRef := make(map[domain.ObjectRef]*ObjectReport, len(plan.Steps))
	for _, step := range plan.Steps {
		or := &ObjectReport{Object: step.Object, State: domain.ObjectStatePending}
		report.Objects = append(report.Objects, or)
		byRef[step.Object.Ref()] = or
	}

	logger := o.logger.With("run_id", report.RunID, "output_location", plan.Output.String())
	defer func() { report.FinishedAt = time.Now() }()

	if o.checker != nil {
		if err := o.checker.Verify(ctx, plan.Output); err != nil {
			return report, fmt.Errorf("verify output location: %w", err)
		}
	}

	logger.Info("provisioning started", "objects", len(plan.Steps), "families", len(plan.Families), "parallel", o.opts.Parallel)

	var err error
	if o.opts.Parallel && len(plan.Families) > 1 {
		err = o.executeFamilies(ctx, plan.Families, byRef, plan.Output, logger)
	} else {
		err = o.executeSteps(ctx, plan.Steps, byRef, plan.Output, logger)
	}

	if err != nil {
		logger.Error("provisioning failed", "created", len(report.Created()), "error", err)
		return report, err
	}
	logger.Info("provisioning completed", "created", len(report.Created()),
		"duration", time.Since(report.StartedAt).Round(time.Millisecond))
	return report, nil
}

func (o *Orchestrator) executeSteps(ctx context.Context, steps []Step, byRef map[domain.ObjectRef]*ObjectReport,
	output domain.OutputLocation, logger *slog.Logger) error {
	for _, step := range steps {
		if err := o.provision(ctx, step, byRef[step.Object.Ref()], output, logger); err != nil {
			return err
		}
	}
	return nil
}

// executeFamilies runs each family on its own goroutine. The first failure
// cancels the context shared by the others.
func (o *Orchestrator) executeFamilies(ctx context.Context, families [][]Step, byRef map[domain.ObjectRef]*ObjectReport,
	output domain.OutputLocation, logger *slog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := range families {
		family := families[i]
		g.Go(func() error {
			return o.executeSteps(gctx, family, byRef, output, logger.With("family", family[0].Object.Name))
		})
	}
	return g.Wait()
}

// provision walks one object through its state machine.
func (o *Orchestrator) provision(ctx context.Context, step Step, rep *ObjectReport,
	output domain.OutputLocation, logger *slog.Logger) error {
	obj := step.Object
	logger = logger.With("object", obj.Name, "kind", obj.Kind, "name", ddl.ObjectName(step.Params))

	fail := func(err error) error {
		rep.State = domain.ObjectStateFailed
		rep.Err = err
		return err
	}

	if obj.IsTable() {
		rep.State = domain.ObjectStateDropping
		id, status, err := o.execute(ctx, PhaseDrop, step, step.Drop, output, logger)
		rep.DropExecutionID = id
		if err != nil {
			return fail(err)
		}
		switch {
		case status.State == domain.ExecutionStateSucceeded:
		case status.IndicatesMissingObject():
			rep.DropTolerated = true
			logger.Info("drop target absent, continuing", "execution_id", id, "reason", status.Reason)
		default:
			return fail(o.remoteFailure(PhaseDrop, step, step.Drop, status))
		}
		rep.State = domain.ObjectStateDropComplete
	}

	rep.State = domain.ObjectStateCreating
	id, status, err := o.execute(ctx, PhaseCreate, step, step.Create, output, logger)
	rep.CreateExecutionID = id
	if err != nil {
		return fail(err)
	}
	if status.State != domain.ExecutionStateSucceeded {
		return fail(o.remoteFailure(PhaseCreate, step, step.Create, status))
	}
	rep.State = domain.ObjectStateCreated
	logger.Info("object created", "execution_id", id)

	if o.opts.FetchResults {
		o.confirm(ctx, id, rep, logger)
	}
	return nil
}

// execute submits one statement and waits for it to reach a terminal state.
func (o *Orchestrator) execute(ctx context.Context, phase string, step Step, statement string,
	output domain.OutputLocation, logger *slog.Logger) (string, domain.ExecutionStatus, error) {
	logger.Info("submitting statement", "phase", phase, "statement", statement)

	id, err := o.queries.Submit(ctx, statement, output)
	if err != nil {
		return "", domain.ExecutionStatus{}, &StepError{
			Object: step.Object.Ref(), Phase: phase, Statement: statement, Err: err,
		}
	}
	logger.Debug("statement submitted", "phase", phase, "execution_id", id)

	status, err := o.waiter.Await(ctx, id)
	if err != nil {
		return id, domain.ExecutionStatus{}, &StepError{
			Object: step.Object.Ref(), Phase: phase, ExecutionID: id, Statement: statement, Err: err,
		}
	}
	logger.Info("statement finished", "phase", phase, "execution_id", id, "state", status.State)
	return id, status, nil
}

func (o *Orchestrator) remoteFailure(phase string, step Step, statement string, status domain.ExecutionStatus) error {
	return &StepError{
		Object:      step.Object.Ref(),
		Phase:       phase,
		ExecutionID: status.ExecutionID,
		Statement:   statement,
		Err: &domain.RemoteQueryFailure{
			ExecutionID: status.ExecutionID,
			Statement:   statement,
			State:       status.State,
			Reason:      status.Reason,
		},
	}
}

// confirm fetches the results of a create statement. Failures are logged
// and never fail the run.
func (o *Orchestrator) confirm(ctx context.Context, executionID string, rep *ObjectReport, logger *slog.Logger) {
	result, err := o.queries.GetResults(ctx, executionID)
	if err != nil {
		var notReady *domain.NotReadyError
		if errors.As(err, &notReady) {
			logger.Warn("results not ready", "execution_id", executionID, "state", notReady.State)
			return
		}
		logger.Warn("fetch results failed", "execution_id", executionID, "error", err)
		return
	}
	rep.ResultRows = len(result.Rows)
	logger.Info("results fetched", "execution_id", executionID, "rows", len(result.Rows), "truncated", result.Truncated)
}
