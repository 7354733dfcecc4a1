package handlers

import (
	"fmt"
	"io"
	"time"

	"github.com/tierctl/tierctl/internal/failover"
	"github.com/tierctl/tierctl/internal/scheduler"
	"github.com/tierctl/tierctl/internal/secretbind"
)

// renderDeployReport writes the terminal deployment report: every node's
// final state and every binding's accepted/rejected sets. Partial success is
// never silent.
func renderDeployReport(w io.Writer, name string, result *scheduler.DeploymentResult, binds []secretbind.BindResult) {
	if name == "" {
		name = "deployment"
	}
	fmt.Fprintf(w, "%s: %s in %v\n", name, result.Outcome, result.Duration.Round(time.Millisecond))

	for _, node := range result.Nodes {
		line := fmt.Sprintf("  %-12s %s", node.ID, node.State)
		if node.Attempts > 1 {
			line += fmt.Sprintf(" (attempts: %d)", node.Attempts)
		}
		if node.Reason != "" {
			line += ": " + node.Reason
		}
		fmt.Fprintln(w, line)
	}

	if len(result.Failed) > 0 {
		fmt.Fprintf(w, "failed nodes: %v\n", result.Failed)
	}
	if len(result.Skipped) > 0 {
		fmt.Fprintf(w, "skipped nodes: %v\n", result.Skipped)
	}

	for _, bind := range binds {
		fmt.Fprintf(w, "vault %s: %d bound, %d rejected\n", bind.VaultRef, len(bind.Accepted), len(bind.Rejected)+len(bind.Errored))
		for _, ref := range bind.Accepted {
			fmt.Fprintf(w, "  accepted %s\n", ref)
		}
		for _, ref := range bind.Rejected {
			fmt.Fprintf(w, "  rejected %q (invalid principal ref)\n", ref)
		}
		for ref, detail := range bind.Errored {
			fmt.Fprintf(w, "  errored %s: %s\n", ref, detail)
		}
	}
}

// renderFailoverReport writes the terminal failover report with per-group
// node states.
func renderFailoverReport(w io.Writer, run *failover.FailoverRun) {
	fmt.Fprintf(w, "failover run %s: %s\n", run.ID, run.State())
	for i, result := range run.GroupResults() {
		group := run.Plan.Groups[i]
		fmt.Fprintf(w, "  group %q: %s\n", group.Name, result.Outcome)
		for _, node := range result.Nodes {
			fmt.Fprintf(w, "    %-12s %s\n", node.ID, node.State)
		}
	}
	if err := run.Err(); err != nil {
		fmt.Fprintf(w, "  error: %v\n", err)
	}
}
