// Package handlers implements the business logic for CLI commands.
//
// Handlers are framework-agnostic and can be tested independently of the CLI
// framework. External collaborators (plan loading, bootstrap actions, lock
// probes, binding clients) are factory variables so tests can inject fakes.
package handlers

import (
	"context"

	"github.com/tierctl/tierctl/internal/config"
	"github.com/tierctl/tierctl/internal/executor"
	"github.com/tierctl/tierctl/internal/graph"
	"github.com/tierctl/tierctl/internal/observe"
	"github.com/tierctl/tierctl/internal/runner"
	"github.com/tierctl/tierctl/internal/scheduler"
	"github.com/tierctl/tierctl/internal/secretbind"
	"github.com/tierctl/tierctl/internal/util/retry"
)

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// loadDocument loads a plan document from disk.
	loadDocument = config.Load

	// loadTunables loads environment-tunable defaults.
	loadTunables = config.LoadTunables

	// newBootstrapAction creates the bootstrap action used for every node.
	newBootstrapAction = func(observer observe.Observer) executor.Action {
		return runner.NewShellRunner(observer).Run
	}

	// newLockProbe creates the contended-resource release probe.
	newLockProbe = func() executor.LockProbe {
		return runner.FileLockProbe
	}

	// newBindingClient creates the vault access-binding client. The default
	// client only records the request; real vault transports are wired by
	// the embedding system.
	newBindingClient = func(observer observe.Observer) secretbind.BindingClient {
		return secretbind.BindingClientFunc(func(_ context.Context, vaultRef, principalRef string) error {
			observer.Printf("binding principal %s to vault %s", principalRef, vaultRef)
			return nil
		})
	}

	// newProbe creates a boot-group wait-condition probe from a plan command.
	newProbe = runner.CommandProbe
)

// nodeSpecs converts document resources to graph inputs.
func nodeSpecs(doc *config.Document) []graph.NodeSpec {
	specs := make([]graph.NodeSpec, 0, len(doc.Resources))
	for _, r := range doc.Resources {
		specs = append(specs, graph.NodeSpec{
			ID:        r.ID,
			DependsOn: r.DependsOn,
			Payload:   r.Payload,
			Omit:      r.Omitted(),
		})
	}
	return specs
}

// newTaskBuilder builds per-node bootstrap tasks from the document's records
// and the environment tunables.
func newTaskBuilder(doc *config.Document, tun *config.Tunables, action executor.Action) scheduler.TaskBuilder {
	byID := make(map[string]config.ResourceSpec, len(doc.Resources))
	for _, r := range doc.Resources {
		byID[r.ID] = r
	}

	defaults := retry.Policy{
		MaxAttempts: tun.RetryMaxAttempts,
		BaseDelay:   tun.RetryBaseDelay,
		Multiplier:  tun.RetryMultiplier,
		MaxDelay:    tun.RetryMaxDelay,
	}

	return func(node *graph.ResourceNode) executor.BootstrapTask {
		spec := byID[node.ID]

		task := executor.BootstrapTask{
			NodeID:            node.ID,
			Payload:           node.Payload,
			ContendedResource: spec.ContendedResource,
			MaxWait:           spec.MaxWait.Std(),
			PollInterval:      tun.LockPollInterval,
			Retry:             defaults,
			Action:            action,
		}
		if task.MaxWait <= 0 {
			task.MaxWait = tun.LockMaxWait
		}
		if spec.Retry != nil {
			if spec.Retry.MaxAttempts > 0 {
				task.Retry.MaxAttempts = spec.Retry.MaxAttempts
			}
			if spec.Retry.BaseDelay > 0 {
				task.Retry.BaseDelay = spec.Retry.BaseDelay.Std()
			}
			if spec.Retry.Multiplier >= 1 {
				task.Retry.Multiplier = spec.Retry.Multiplier
			}
			if spec.Retry.MaxDelay > 0 {
				task.Retry.MaxDelay = spec.Retry.MaxDelay.Std()
			}
		}
		return task
	}
}
