package cli

import (
	"os"

	"github.com/spf13/cobra"

	"quilt-athena/internal/catalog"
	"quilt-athena/internal/ddl"
	"quilt-athena/internal/domain"
	"quilt-athena/internal/service/provision"
)

// catalogObjects returns the configured catalog, or the built-in one.
func (e *runEnv) catalogObjects() ([]domain.CatalogObject, error) {
	if e.cfg.CatalogFile == "" {
		return catalog.Defaults(), nil
	}
	return catalog.LoadFile(e.cfg.CatalogFile)
}

func (e *runEnv) params(bucket string) domain.ProvisioningParameters {
	return domain.ProvisioningParameters{Prefix: e.prefix, BucketName: bucket}
}

func (e *runEnv) waitPolicy() provision.WaitPolicy {
	w := e.cfg.Wait
	return provision.WaitPolicy{
		PollInterval:       w.PollInterval,
		MaxInterval:        w.MaxPollInterval,
		Multiplier:         w.PollMultiplier,
		MaxAttempts:        w.MaxPollAttempts,
		MaxTransientErrors: w.TransientRetries,
		Timeout:            w.Timeout,
	}
}

func (e *runEnv) options() provision.Options {
	return provision.Options{
		OutputBucket:  e.cfg.OutputBucket,
		OutputSubpath: e.cfg.OutputSubpath,
		Parallel:      e.cfg.ParallelFamilies,
		FetchResults:  e.cfg.FetchResults,
	}
}

// planner builds an orchestrator that can only plan.
func (e *runEnv) planner() *provision.Orchestrator {
	return provision.NewOrchestrator(provision.Deps{
		Resolver: ddl.NewResolver(os.DirFS(e.cfg.TemplateDir)),
		Logger:   e.logger,
	}, e.options())
}

// orchestrator connects the backends and builds a runnable orchestrator.
func (e *runEnv) orchestrator(cmd *cobra.Command) (*provision.Orchestrator, error) {
	b, err := e.backends(cmd.Context(), e.cfg, e.logger)
	if err != nil {
		return nil, err
	}
	return provision.NewOrchestrator(provision.Deps{
		Queries:  b.Queries,
		Resolver: ddl.NewResolver(os.DirFS(e.cfg.TemplateDir)),
		Waiter:   provision.NewWaiter(b.Queries, e.waitPolicy(), e.logger),
		Checker:  b.Checker,
		Logger:   e.logger,
	}, e.options()), nil
}

func runProvision(cmd *cobra.Command, env *runEnv, bucket string) error {
	objects, err := env.catalogObjects()
	if err != nil {
		return err
	}
	params := env.params(bucket)

	// Resolve every template before connecting anywhere.
	if _, err := env.planner().Plan(objects, params); err != nil {
		return err
	}

	orch, err := env.orchestrator(cmd)
	if err != nil {
		return err
	}
	report, err := orch.Run(cmd.Context(), objects, params)
	if report != nil {
		if perr := printReport(cmd, report); perr != nil && err == nil {
			err = perr
		}
	}
	return err
}
