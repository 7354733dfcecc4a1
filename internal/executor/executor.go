package executor

import (
	"context"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/tierctl/tierctl/internal/observe"
	"github.com/tierctl/tierctl/internal/util/retry"
)

// Default timings for tasks that do not declare their own.
const (
	DefaultLockMaxWait  = 5 * time.Minute
	DefaultPollInterval = 2 * time.Second
)

// Action is the bootstrap action contract: it receives the node's opaque
// provisioning payload and returns the node's outputs. It must be safe to
// invoke more than once for the same node.
type Action func(ctx context.Context, payload map[string]string) (map[string]string, error)

// LockProbe reports whether the named contended resource is currently
// released. Probes observe external resources the orchestrator does not own;
// holding the resource is advisory cooperation, not mutual exclusion.
type LockProbe func(ctx context.Context, resource string) (released bool, err error)

// BootstrapTask describes one node's convergence attempt. Tasks are created
// per node at provisioning time and discarded after the terminal result.
type BootstrapTask struct {
	NodeID  string
	Payload map[string]string

	// ContendedResource names a shared lock the task must wait on before
	// acting. Empty means no contention is declared.
	ContendedResource string
	// MaxWait bounds the lock wait. Zero selects DefaultLockMaxWait.
	MaxWait time.Duration
	// PollInterval is the fixed sleep between release checks.
	// Zero selects DefaultPollInterval.
	PollInterval time.Duration

	Retry  retry.Policy
	Action Action
}

// Result is the terminal outcome of a task run.
type Result struct {
	NodeID   string
	Outputs  map[string]string
	Attempts int
	Err      error
}

// Succeeded reports whether the run converged.
func (r Result) Succeeded() bool {
	return r.Err == nil
}

// LockTimeoutError indicates the contended resource was never observed
// released within the task's MaxWait.
type LockTimeoutError struct {
	NodeID   string
	Resource string
	Waited   time.Duration
}

func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("node %q: contended resource %q not released within %v", e.NodeID, e.Resource, e.Waited)
}

// ActionFailureError indicates the bootstrap action failed after exhausting
// the retry policy.
type ActionFailureError struct {
	NodeID   string
	Attempts int
	Err      error
}

func (e *ActionFailureError) Error() string {
	return fmt.Sprintf("node %q: bootstrap action failed after %d attempts: %v", e.NodeID, e.Attempts, e.Err)
}

func (e *ActionFailureError) Unwrap() error {
	return e.Err
}

// Executor runs bootstrap tasks to convergence.
type Executor struct {
	locks    LockProbe
	observer observe.Observer
}

// New creates an executor. A nil probe means contention can never be
// observed, so declared locks are treated as released immediately.
func New(locks LockProbe, observer observe.Observer) *Executor {
	if observer == nil {
		observer = observe.Nop
	}
	return &Executor{locks: locks, observer: observer}
}

// Run drives the task to a terminal result. If a contended resource is
// declared, its release is polled at a fixed interval up to MaxWait; on
// expiry the run fails with LockTimeoutError rather than proceeding. Once
// unblocked, the action runs under the task's retry policy; the first success
// short-circuits remaining attempts.
func (e *Executor) Run(ctx context.Context, task BootstrapTask) Result {
	result := Result{NodeID: task.NodeID}

	if task.ContendedResource != "" && e.locks != nil {
		if err := e.waitForRelease(ctx, task); err != nil {
			result.Err = err
			return result
		}
	}

	var outputs map[string]string
	err := retry.Do(ctx, task.Retry, func() error {
		result.Attempts++
		if result.Attempts > 1 {
			e.observer.Event(observe.Event{
				Type:    observe.EventActionRetrying,
				Node:    task.NodeID,
				Message: fmt.Sprintf("attempt %d", result.Attempts),
			})
		}
		out, err := task.Action(ctx, task.Payload)
		if err != nil {
			return err
		}
		outputs = out
		return nil
	})
	if err != nil {
		result.Err = &ActionFailureError{NodeID: task.NodeID, Attempts: result.Attempts, Err: err}
		return result
	}

	result.Outputs = outputs
	return result
}

func (e *Executor) waitForRelease(ctx context.Context, task BootstrapTask) error {
	maxWait := task.MaxWait
	if maxWait <= 0 {
		maxWait = DefaultLockMaxWait
	}
	interval := task.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	e.observer.Event(observe.Event{
		Type:    observe.EventLockWaiting,
		Node:    task.NodeID,
		Message: fmt.Sprintf("waiting for %q (up to %v)", task.ContendedResource, maxWait),
	})

	err := wait.PollUntilContextTimeout(ctx, interval, maxWait, true,
		func(ctx context.Context) (bool, error) {
			released, probeErr := e.locks(ctx, task.ContendedResource)
			if probeErr != nil {
				// Probe errors mean we could not observe release; keep waiting.
				return false, nil
			}
			return released, nil
		})
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("node %q: lock wait interrupted: %w", task.NodeID, ctx.Err())
		}
		return &LockTimeoutError{NodeID: task.NodeID, Resource: task.ContendedResource, Waited: maxWait}
	}

	e.observer.Event(observe.Event{
		Type:    observe.EventLockReleased,
		Node:    task.NodeID,
		Message: fmt.Sprintf("%q released", task.ContendedResource),
	})
	return nil
}
