package commands

import (
	"github.com/spf13/cobra"

	"github.com/tierctl/tierctl/cmd/tierctl/handlers"
)

// Deploy returns the command for converging a plan document.
//
// Optional flags:
//
//	--plan, -p: Path to the plan document (default: tierctl.yaml)
//	--concurrency: Bound on nodes provisioning at once (default: unbounded)
func Deploy() *cobra.Command {
	var planPath string
	var concurrency int

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Converge every resource in the plan",
		Long: `Converge every resource in the plan to its declared state.

Resources are provisioned in dependency order; independent resources run
concurrently. A failed resource skips its dependents but never stops
unrelated subtrees. Nothing is rolled back on partial failure: re-running
deploy retries only the resources that are not yet converged.

Examples:
  # Deploy using tierctl.yaml in the current directory
  tierctl deploy

  # Deploy a specific plan with at most 4 concurrent resources
  tierctl deploy -p production.yaml --concurrency 4`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Deploy(cmd.Context(), handlers.DeployOptions{
				PlanPath:    planPath,
				Concurrency: concurrency,
			})
		},
	}

	cmd.Flags().StringVarP(&planPath, "plan", "p", "", "Path to plan document (default: tierctl.yaml)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Maximum resources provisioning at once (0 = unbounded)")

	return cmd
}
