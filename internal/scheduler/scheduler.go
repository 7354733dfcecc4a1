package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tierctl/tierctl/internal/executor"
	"github.com/tierctl/tierctl/internal/graph"
	"github.com/tierctl/tierctl/internal/metrics"
	"github.com/tierctl/tierctl/internal/observe"
)

// TaskRunner runs a single bootstrap task to a terminal result.
// Implemented by executor.Executor.
type TaskRunner interface {
	Run(ctx context.Context, task executor.BootstrapTask) executor.Result
}

// TaskBuilder creates the bootstrap task for a node at provisioning time.
type TaskBuilder func(node *graph.ResourceNode) executor.BootstrapTask

// Outcome is the terminal state of one deployment run.
type Outcome string

const (
	// OutcomeCompleted means every node succeeded.
	OutcomeCompleted Outcome = "completed"
	// OutcomePartiallyFailed means at least one node failed or was skipped.
	OutcomePartiallyFailed Outcome = "partially_failed"
	// OutcomeCancelled means the run-level cancellation signal was raised
	// before every node converged.
	OutcomeCancelled Outcome = "cancelled"
)

// NodeReport is one node's final record in a deployment result.
type NodeReport struct {
	ID       string
	State    graph.NodeState
	Attempts int
	Outputs  map[string]string
	Reason   string
}

// DeploymentResult is the terminal report of a deployment run. It enumerates
// every node's final state explicitly; partial success is never silent.
type DeploymentResult struct {
	Outcome  Outcome
	Nodes    []NodeReport
	Failed   []string
	Skipped  []string
	Duration time.Duration
}

// SucceededOutputs returns the output map of every succeeded node, keyed by
// node id.
func (r *DeploymentResult) SucceededOutputs() map[string]map[string]string {
	out := make(map[string]map[string]string)
	for _, n := range r.Nodes {
		if n.State == graph.StateSucceeded {
			out[n.ID] = n.Outputs
		}
	}
	return out
}

// Scheduler drives deployment plans through the convergence executor.
type Scheduler struct {
	runner      TaskRunner
	build       TaskBuilder
	observer    observe.Observer
	concurrency int

	// mu guards node-state transitions. Each critical section is short and
	// never held across a blocking wait.
	mu sync.Mutex
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithConcurrency bounds the number of nodes provisioning at once.
// Zero or negative means unbounded.
func WithConcurrency(n int) Option {
	return func(s *Scheduler) {
		s.concurrency = n
	}
}

// New creates a scheduler.
func New(runner TaskRunner, build TaskBuilder, observer observe.Observer, opts ...Option) *Scheduler {
	if observer == nil {
		observer = observe.Nop
	}
	s := &Scheduler{
		runner:   runner,
		build:    build,
		observer: observer,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deploy executes the plan until no node is Pending or Provisioning.
//
// A node is never started before all of its dependencies report Succeeded.
// Sibling order is unspecified. Once the run context is cancelled, no new
// node enters Provisioning; in-flight runs finish their current attempt and
// the result reports Cancelled. Nothing is rolled back.
func (s *Scheduler) Deploy(ctx context.Context, plan *graph.DeploymentPlan) *DeploymentResult {
	start := time.Now()
	s.observer.Event(observe.Event{
		Type:    observe.EventRunStarted,
		Phase:   "deploy",
		Message: fmt.Sprintf("deploying %d nodes", plan.Len()),
	})

	results := make(chan executor.Result)
	attempts := make(map[string]int, plan.Len())
	inflight := 0
	done := 0

	for {
		cancelled := ctx.Err() != nil
		if !cancelled {
			inflight += s.launchReady(ctx, plan, inflight, results)
		}
		if inflight == 0 {
			break
		}

		res := <-results
		inflight--
		done++
		attempts[res.NodeID] = res.Attempts
		s.recordResult(plan, res)
		s.observer.Progress("deploy", done, plan.Len())
	}

	return s.summarize(ctx, plan, attempts, time.Since(start))
}

// launchReady starts every currently-ready node, bounded by the concurrency
// limit, and returns how many runs it launched.
func (s *Scheduler) launchReady(ctx context.Context, plan *graph.DeploymentPlan, inflight int, results chan<- executor.Result) int {
	s.mu.Lock()
	ready := plan.ReadyNodes()
	launched := 0
	tasks := make([]executor.BootstrapTask, 0, len(ready))
	for _, id := range ready {
		if s.concurrency > 0 && inflight+launched >= s.concurrency {
			break
		}
		node := plan.Node(id)
		node.State = graph.StateProvisioning
		tasks = append(tasks, s.build(node))
		launched++
	}
	s.mu.Unlock()

	for _, task := range tasks {
		s.observer.Event(observe.Event{
			Type:    observe.EventNodeProvisioning,
			Phase:   "deploy",
			Node:    task.NodeID,
			Message: "starting bootstrap task",
		})
		go func(t executor.BootstrapTask) {
			results <- s.runner.Run(ctx, t)
		}(task)
	}
	return launched
}

// recordResult applies one terminal result and cascades failure downstream.
func (s *Scheduler) recordResult(plan *graph.DeploymentPlan, res executor.Result) {
	s.mu.Lock()
	node := plan.Node(res.NodeID)
	var skipped []string
	if res.Succeeded() {
		node.State = graph.StateSucceeded
		node.Outputs = res.Outputs
	} else {
		node.State = graph.StateFailed
		node.Reason = res.Err.Error()
		for _, depID := range plan.TransitiveDependents(res.NodeID) {
			dep := plan.Node(depID)
			if dep.State == graph.StatePending {
				dep.State = graph.StateSkipped
				dep.Reason = fmt.Sprintf("upstream node %q failed", res.NodeID)
				skipped = append(skipped, depID)
			}
		}
	}
	s.mu.Unlock()

	if res.Succeeded() {
		metrics.RecordNodeResult(string(graph.StateSucceeded), res.Attempts)
		s.observer.Event(observe.Event{
			Type:    observe.EventNodeSucceeded,
			Phase:   "deploy",
			Node:    res.NodeID,
			Message: fmt.Sprintf("converged after %d attempt(s)", res.Attempts),
		})
		return
	}

	metrics.RecordNodeResult(string(graph.StateFailed), res.Attempts)
	s.observer.Event(observe.Event{
		Type:    observe.EventNodeFailed,
		Phase:   "deploy",
		Node:    res.NodeID,
		Message: res.Err.Error(),
	})
	for _, depID := range skipped {
		metrics.RecordNodeResult(string(graph.StateSkipped), 0)
		s.observer.Event(observe.Event{
			Type:    observe.EventNodeSkipped,
			Phase:   "deploy",
			Node:    depID,
			Message: fmt.Sprintf("upstream node %q failed", res.NodeID),
		})
	}
}

func (s *Scheduler) summarize(ctx context.Context, plan *graph.DeploymentPlan, attempts map[string]int, elapsed time.Duration) *DeploymentResult {
	result := &DeploymentResult{Duration: elapsed}

	allSucceeded := true
	for _, node := range plan.Nodes() {
		report := NodeReport{
			ID:       node.ID,
			State:    node.State,
			Attempts: attempts[node.ID],
			Outputs:  node.Outputs,
			Reason:   node.Reason,
		}
		result.Nodes = append(result.Nodes, report)

		switch node.State {
		case graph.StateFailed:
			result.Failed = append(result.Failed, node.ID)
			allSucceeded = false
		case graph.StateSkipped:
			result.Skipped = append(result.Skipped, node.ID)
			allSucceeded = false
		case graph.StateSucceeded:
		default:
			allSucceeded = false
		}
	}

	switch {
	case ctx.Err() != nil && !allSucceeded:
		result.Outcome = OutcomeCancelled
	case allSucceeded:
		result.Outcome = OutcomeCompleted
	default:
		result.Outcome = OutcomePartiallyFailed
	}

	metrics.RecordDeployRun(string(result.Outcome), elapsed)
	s.observer.Event(observe.Event{
		Type:    observe.EventRunCompleted,
		Phase:   "deploy",
		Message: fmt.Sprintf("%s in %v (failed=%d skipped=%d)", result.Outcome, elapsed.Round(time.Millisecond), len(result.Failed), len(result.Skipped)),
	})
	return result
}
