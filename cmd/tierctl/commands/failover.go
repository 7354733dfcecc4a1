package commands

import (
	"github.com/spf13/cobra"

	"github.com/tierctl/tierctl/cmd/tierctl/handlers"
)

// Failover returns the command for running the plan's recovery sequence.
//
// Optional flags:
//
//	--plan, -p: Path to the plan document (default: tierctl.yaml)
//	--resume-gates: Release manual gates without prompting
func Failover() *cobra.Command {
	var planPath string
	var resumeGates bool

	cmd := &cobra.Command{
		Use:   "failover",
		Short: "Boot the recovery groups in phased order",
		Long: `Boot the plan's recovery groups in order, one group at a time.

Each group's members are provisioned together and the next group starts
only after the whole group converged and its wait condition reports live.
Groups with a manual gate pause for operator confirmation. Any member
failure or wait-condition timeout fails the entire run; re-run failover
from the top after fixing the cause.

Examples:
  # Run a failover, pausing at each manual gate
  tierctl failover -p production.yaml

  # Rehearse without manual pauses
  tierctl failover -p production.yaml --resume-gates`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Failover(cmd.Context(), handlers.FailoverOptions{
				PlanPath:    planPath,
				ResumeGates: resumeGates,
			})
		},
	}

	cmd.Flags().StringVarP(&planPath, "plan", "p", "", "Path to plan document (default: tierctl.yaml)")
	cmd.Flags().BoolVar(&resumeGates, "resume-gates", false, "Release manual gates without prompting")

	return cmd
}
