package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"quilt-athena/internal/service/provision"
)

const scheduleStopTimeout = 30 * time.Second

func newScheduleCmd(env *runEnv) *cobra.Command {
	var (
		spec   string
		runNow bool
	)

	cmd := &cobra.Command{
		Use:   "schedule <bucket>",
		Short: "Re-provision a bucket on a cron schedule until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if spec == "" {
				return fmt.Errorf("--cron is required")
			}
			objects, err := env.catalogObjects()
			if err != nil {
				return err
			}
			orch, err := env.orchestrator(cmd)
			if err != nil {
				return err
			}

			sched := provision.NewScheduler(orch, env.logger)
			params := env.params(args[0])
			if err := sched.Add(spec, objects, params); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if runNow {
				if _, err := sched.Trigger(ctx, params.BucketName); err != nil {
					env.logger.Warn("initial provisioning failed", "bucket", params.BucketName, "error", err)
				}
			}

			sched.Start()
			<-ctx.Done()

			stopCtx, cancel := context.WithTimeout(context.Background(), scheduleStopTimeout)
			defer cancel()
			sched.Stop(stopCtx)
			return nil
		},
	}

	cmd.Flags().StringVar(&spec, "cron", "", "Cron expression, e.g. \"0 * * * *\" or \"@hourly\" (required)")
	cmd.Flags().BoolVar(&runNow, "run-now", false, "Provision once immediately before the first tick")

	return cmd
}
