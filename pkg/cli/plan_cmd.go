package cli

import (
	"github.com/spf13/cobra"
)

func newPlanCmd(env *runEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "plan <bucket>",
		Short: "Print the statements a run would submit, in execution order",
		Long: "Resolves every template for the bucket and prints the drop and create\n" +
			"statements in the order they would run. Nothing is submitted.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			objects, err := env.catalogObjects()
			if err != nil {
				return err
			}
			plan, err := env.planner().Plan(objects, env.params(args[0]))
			if err != nil {
				return err
			}
			return printPlan(cmd, plan)
		},
	}
}
