package failover

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/tierctl/tierctl/internal/graph"
	"github.com/tierctl/tierctl/internal/metrics"
	"github.com/tierctl/tierctl/internal/observe"
	"github.com/tierctl/tierctl/internal/scheduler"
)

// Default timings for wait conditions that do not declare their own.
const (
	DefaultWaitTimeout  = 10 * time.Minute
	DefaultPollInterval = 5 * time.Second
)

// Gate controls the transition that follows a boot group.
type Gate string

const (
	// GateAutomatic proceeds to the next group as soon as the wait
	// condition is satisfied.
	GateAutomatic Gate = "automatic"
	// GateManual parks the run until an explicit ResumeManualGate call.
	GateManual Gate = "manual"
)

// Probe is the wait-condition contract: it reports whether the group is
// considered live. It is polled at a fixed interval until ready or timeout.
type Probe func(ctx context.Context) (bool, error)

// BootGroup is one phase of a recovery plan.
type BootGroup struct {
	Name    string
	Members []string

	// Probe is the group's wait condition. Nil means the barrier alone is
	// sufficient.
	Probe Probe
	// WaitTimeout bounds the probe polling. Zero selects DefaultWaitTimeout.
	WaitTimeout time.Duration
	// PollInterval is the fixed sleep between probe checks.
	PollInterval time.Duration

	Gate Gate
}

// RecoveryPlan is an ordered list of boot groups whose members are drawn
// from a completed deployment plan.
type RecoveryPlan struct {
	Groups []BootGroup
}

// Validate checks the plan against the deployment it draws members from.
func (p *RecoveryPlan) Validate(source *graph.DeploymentPlan) error {
	if len(p.Groups) == 0 {
		return fmt.Errorf("recovery plan has no boot groups")
	}
	for i, group := range p.Groups {
		if len(group.Members) == 0 {
			return fmt.Errorf("boot group %d (%q) has no members", i, group.Name)
		}
		switch group.Gate {
		case GateAutomatic, GateManual:
		default:
			return fmt.Errorf("boot group %q: unknown gate %q", group.Name, group.Gate)
		}
		for _, member := range group.Members {
			if source.Node(member) == nil {
				return fmt.Errorf("boot group %q references unknown node %q", group.Name, member)
			}
		}
	}
	return nil
}

// RunState is the lifecycle state of a failover run.
type RunState string

const (
	StateNotStarted    RunState = "not_started"
	StateInProgress    RunState = "in_progress"
	StateWaitingOnGate RunState = "waiting_on_gate"
	StateSucceeded     RunState = "succeeded"
	StateFailed        RunState = "failed"
)

// Terminal reports whether s is a terminal run state.
func (s RunState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// GateTimeoutError indicates a group's wait condition was never satisfied
// within its timeout. It is terminal for the entire failover run.
type GateTimeoutError struct {
	Group  string
	Waited time.Duration
}

func (e *GateTimeoutError) Error() string {
	return fmt.Sprintf("boot group %q: wait condition not satisfied within %v", e.Group, e.Waited)
}

// GroupFailureError indicates a member of a boot group failed to provision.
type GroupFailureError struct {
	Group   string
	Failed  []string
	Skipped []string
}

func (e *GroupFailureError) Error() string {
	return fmt.Sprintf("boot group %q: members failed: %v", e.Group, e.Failed)
}

// FailoverRun tracks one failover attempt through the recovery plan.
type FailoverRun struct {
	ID     string
	Plan   *RecoveryPlan
	Source *graph.DeploymentPlan

	mu                sync.Mutex
	state             RunState
	currentGroupIndex int
	groupResults      []*scheduler.DeploymentResult
	err               error
}

// State returns the run's current state.
func (r *FailoverRun) State() RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// CurrentGroupIndex returns the index of the group the run is positioned at.
func (r *FailoverRun) CurrentGroupIndex() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentGroupIndex
}

// GroupResults returns the per-group deployment results gathered so far.
func (r *FailoverRun) GroupResults() []*scheduler.DeploymentResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*scheduler.DeploymentResult, len(r.groupResults))
	copy(out, r.groupResults)
	return out
}

// Err returns the error that terminated the run, if any.
func (r *FailoverRun) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Orchestrator drives failover runs. It reuses the scheduler's node
// execution primitive, treating each boot group as a flat plan with no
// internal dependencies.
type Orchestrator struct {
	runner   scheduler.TaskRunner
	build    scheduler.TaskBuilder
	observer observe.Observer

	mu   sync.Mutex
	runs map[string]*FailoverRun
}

// NewOrchestrator creates a failover orchestrator.
func NewOrchestrator(runner scheduler.TaskRunner, build scheduler.TaskBuilder, observer observe.Observer) *Orchestrator {
	if observer == nil {
		observer = observe.Nop
	}
	return &Orchestrator{
		runner:   runner,
		build:    build,
		observer: observer,
		runs:     make(map[string]*FailoverRun),
	}
}

// Start validates the plan against the source deployment and creates a new
// run positioned at the first boot group.
func (o *Orchestrator) Start(plan *RecoveryPlan, source *graph.DeploymentPlan) (*FailoverRun, error) {
	if err := plan.Validate(source); err != nil {
		return nil, err
	}

	run := &FailoverRun{
		ID:     uuid.NewString(),
		Plan:   plan,
		Source: source,
		state:  StateInProgress,
	}

	o.mu.Lock()
	o.runs[run.ID] = run
	o.mu.Unlock()

	o.observer.Event(observe.Event{
		Type:    observe.EventRunStarted,
		Phase:   "failover",
		Message: fmt.Sprintf("failover run %s started (%d groups)", run.ID, len(plan.Groups)),
	})
	return run, nil
}

// Run returns the active run with the given id, or nil if it does not exist
// or already reached a terminal state.
func (o *Orchestrator) Run(id string) *FailoverRun {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runs[id]
}

// Advance processes boot groups from the run's current position. Groups with
// an automatic gate chain without pause; a manual gate parks the run in
// WaitingOnGate until ResumeManualGate is called. A member failure or a
// wait-condition timeout marks the run Failed and halts.
func (o *Orchestrator) Advance(ctx context.Context, run *FailoverRun) error {
	for {
		run.mu.Lock()
		if run.state != StateInProgress {
			state := run.state
			run.mu.Unlock()
			if state.Terminal() {
				return run.Err()
			}
			return fmt.Errorf("failover run %s is %s, not in progress", run.ID, state)
		}
		index := run.currentGroupIndex
		run.mu.Unlock()

		group := run.Plan.Groups[index]
		if err := o.executeGroup(ctx, run, index, group); err != nil {
			o.fail(run, err)
			return err
		}

		if group.Gate == GateManual {
			run.mu.Lock()
			run.state = StateWaitingOnGate
			run.mu.Unlock()
			o.observer.Event(observe.Event{
				Type:    observe.EventGateWaiting,
				Phase:   "failover",
				Message: fmt.Sprintf("boot group %q complete, waiting on manual gate", group.Name),
			})
			return nil
		}

		if o.stepGroup(run) {
			return nil
		}
	}
}

// ResumeManualGate releases a run parked on a manual gate. It is the only
// side channel for manual transitions.
func (o *Orchestrator) ResumeManualGate(runID string) error {
	o.mu.Lock()
	run, ok := o.runs[runID]
	o.mu.Unlock()
	if !ok {
		return fmt.Errorf("no active failover run %q", runID)
	}

	run.mu.Lock()
	if run.state != StateWaitingOnGate {
		state := run.state
		run.mu.Unlock()
		return fmt.Errorf("failover run %s is %s, not waiting on a gate", runID, state)
	}
	run.state = StateInProgress
	run.mu.Unlock()

	o.observer.Event(observe.Event{
		Type:    observe.EventGateResumed,
		Phase:   "failover",
		Message: fmt.Sprintf("manual gate released for run %s", runID),
	})

	o.stepGroup(run)
	return nil
}

// executeGroup runs the group's members as a flat plan with a full-group
// barrier, then polls its wait condition.
func (o *Orchestrator) executeGroup(ctx context.Context, run *FailoverRun, index int, group BootGroup) error {
	start := time.Now()
	o.observer.Event(observe.Event{
		Type:    observe.EventGroupStarted,
		Phase:   "failover",
		Message: fmt.Sprintf("boot group %q (%d/%d): %d members", group.Name, index+1, len(run.Plan.Groups), len(group.Members)),
	})

	specs := make([]graph.NodeSpec, 0, len(group.Members))
	for _, member := range group.Members {
		specs = append(specs, graph.NodeSpec{
			ID:      member,
			Payload: run.Source.Node(member).Payload,
		})
	}
	flat, err := graph.Build(specs)
	if err != nil {
		return fmt.Errorf("boot group %q: %w", group.Name, err)
	}

	sched := scheduler.New(o.runner, o.build, o.observer.WithFields(map[string]string{"group": group.Name}))
	result := sched.Deploy(ctx, flat)

	run.mu.Lock()
	run.groupResults = append(run.groupResults, result)
	run.mu.Unlock()

	if result.Outcome != scheduler.OutcomeCompleted {
		return &GroupFailureError{Group: group.Name, Failed: result.Failed, Skipped: result.Skipped}
	}

	if group.Probe != nil {
		if err := o.awaitCondition(ctx, group); err != nil {
			return err
		}
	}

	metrics.RecordFailoverGroup(group.Name, time.Since(start))
	o.observer.Event(observe.Event{
		Type:    observe.EventGroupCompleted,
		Phase:   "failover",
		Message: fmt.Sprintf("boot group %q ready in %v", group.Name, time.Since(start).Round(time.Millisecond)),
	})
	return nil
}

func (o *Orchestrator) awaitCondition(ctx context.Context, group BootGroup) error {
	timeout := group.WaitTimeout
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	interval := group.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	err := wait.PollUntilContextTimeout(ctx, interval, timeout, true,
		func(ctx context.Context) (bool, error) {
			ready, probeErr := group.Probe(ctx)
			if probeErr != nil {
				// The group is not observably live yet; keep polling.
				return false, nil
			}
			return ready, nil
		})
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("boot group %q: wait interrupted: %w", group.Name, ctx.Err())
		}
		return &GateTimeoutError{Group: group.Name, Waited: timeout}
	}
	return nil
}

// stepGroup moves the run past its current group. It returns true when the
// run reached its terminal Succeeded state.
func (o *Orchestrator) stepGroup(run *FailoverRun) bool {
	run.mu.Lock()
	run.currentGroupIndex++
	finished := run.currentGroupIndex >= len(run.Plan.Groups)
	if finished {
		run.state = StateSucceeded
	} else {
		run.state = StateInProgress
	}
	run.mu.Unlock()

	if finished {
		o.finish(run, StateSucceeded)
	}
	return finished
}

func (o *Orchestrator) fail(run *FailoverRun, err error) {
	run.mu.Lock()
	run.state = StateFailed
	run.err = err
	run.mu.Unlock()
	o.finish(run, StateFailed)
}

// finish archives a terminal run: it leaves the registry and is observable
// only through the reference the caller holds.
func (o *Orchestrator) finish(run *FailoverRun, state RunState) {
	o.mu.Lock()
	delete(o.runs, run.ID)
	o.mu.Unlock()

	metrics.RecordFailoverRun(string(state))
	o.observer.Event(observe.Event{
		Type:    observe.EventRunCompleted,
		Phase:   "failover",
		Message: fmt.Sprintf("failover run %s %s", run.ID, state),
	})
}
