package commands

import (
	"github.com/spf13/cobra"

	"github.com/tierctl/tierctl/cmd/tierctl/handlers"
)

// Validate returns the command for checking a plan document without
// provisioning anything.
func Validate() *cobra.Command {
	var planPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a plan document without provisioning",
		Long: `Check a plan document for the errors a deploy would hit before the
first resource starts: parse failures, duplicate or dangling references,
dependency cycles, and malformed recovery groups.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return handlers.Validate(handlers.ValidateOptions{PlanPath: planPath})
		},
	}

	cmd.Flags().StringVarP(&planPath, "plan", "p", "", "Path to plan document (default: tierctl.yaml)")

	return cmd
}
