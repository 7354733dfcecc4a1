package handlers

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/tierctl/tierctl/internal/config"
	"github.com/tierctl/tierctl/internal/executor"
	"github.com/tierctl/tierctl/internal/graph"
	"github.com/tierctl/tierctl/internal/observe"
	"github.com/tierctl/tierctl/internal/scheduler"
	"github.com/tierctl/tierctl/internal/secretbind"
)

// DeployOptions configures a deployment run.
type DeployOptions struct {
	// PlanPath is the plan document. Empty selects tierctl.yaml.
	PlanPath string
	// Concurrency overrides the tunable worker bound when positive.
	Concurrency int
	// Out receives the terminal report. Nil selects stdout.
	Out io.Writer
	// Observer receives structured events. Nil selects the console observer.
	Observer observe.Observer
}

// Deploy executes a full deployment run: build the plan, drive every node to
// a terminal state, then bind surfaced principals to their vaults. The
// terminal report enumerates every node and binding decision; a partial
// failure is reported as an error after the report is printed.
func Deploy(ctx context.Context, opts DeployOptions) error {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	observer := opts.Observer
	if observer == nil {
		observer = observe.NewConsoleObserver()
	}

	doc, err := loadDocument(opts.PlanPath)
	if err != nil {
		return err
	}
	tun := loadTunables()

	plan, err := graph.Build(nodeSpecs(doc))
	if err != nil {
		return err
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = tun.Concurrency
	}

	exec := executor.New(newLockProbe(), observer)
	builder := newTaskBuilder(doc, tun, newBootstrapAction(observer))
	sched := scheduler.New(exec, builder, observer, scheduler.WithConcurrency(concurrency))

	result := sched.Deploy(ctx, plan)

	// Secret binding runs after every deployment, full or partial. Missing
	// principals from failed nodes surface as rejected entries, never as a
	// binding failure.
	binds := runBindings(ctx, doc, result, observer)

	renderDeployReport(out, doc.Name, result, binds)

	switch result.Outcome {
	case scheduler.OutcomeCompleted:
		return nil
	case scheduler.OutcomeCancelled:
		return fmt.Errorf("deployment cancelled: %w", ctx.Err())
	default:
		return fmt.Errorf("deployment partially failed: %d failed, %d skipped", len(result.Failed), len(result.Skipped))
	}
}

// runBindings issues one bind pass per vault, preserving document order of
// the candidates.
func runBindings(ctx context.Context, doc *config.Document, result *scheduler.DeploymentResult, observer observe.Observer) []secretbind.BindResult {
	if len(doc.SecretBindings) == 0 {
		return nil
	}

	outputs := result.SucceededOutputs()
	var vaults []string
	byVault := make(map[string][]string)
	for _, b := range doc.SecretBindings {
		if _, seen := byVault[b.VaultRef]; !seen {
			vaults = append(vaults, b.VaultRef)
		}
		// A node that never succeeded contributes an empty candidate,
		// which the binder drops instead of failing the pass.
		byVault[b.VaultRef] = append(byVault[b.VaultRef], outputs[b.NodeID][b.Key()])
	}

	binder := secretbind.New(newBindingClient(observer), observer)
	results := make([]secretbind.BindResult, 0, len(vaults))
	for _, vault := range vaults {
		results = append(results, binder.Bind(ctx, vault, byVault[vault]))
	}
	return results
}
