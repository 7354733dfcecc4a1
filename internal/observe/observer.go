package observe

import "time"

// Logger is the minimal printf-style logging surface.
type Logger interface {
	Printf(format string, v ...interface{})
}

// Observer receives structured events during orchestration.
type Observer interface {
	Logger

	// Event emits a structured event.
	Event(event Event)

	// Progress reports progress for a named phase.
	Progress(phase string, current, total int)

	// WithFields returns a new Observer with additional context fields.
	WithFields(fields map[string]string) Observer
}

// Event represents a structured orchestration event.
type Event struct {
	Type      EventType
	Phase     string
	Message   string
	Node      string
	Timestamp time.Time
	Fields    map[string]string
}

// EventType classifies orchestration events.
type EventType string

const (
	// EventRunStarted indicates a deployment or failover run has started.
	EventRunStarted EventType = "run.started"
	// EventRunCompleted indicates a run reached a terminal state.
	EventRunCompleted EventType = "run.completed"

	// EventNodeProvisioning indicates a node's bootstrap task is starting.
	EventNodeProvisioning EventType = "node.provisioning"
	// EventNodeSucceeded indicates a node converged successfully.
	EventNodeSucceeded EventType = "node.succeeded"
	// EventNodeFailed indicates a node reached terminal failure.
	EventNodeFailed EventType = "node.failed"
	// EventNodeSkipped indicates a node was skipped due to an upstream failure.
	EventNodeSkipped EventType = "node.skipped"

	// EventLockWaiting indicates a task is polling for a contended resource.
	EventLockWaiting EventType = "lock.waiting"
	// EventLockReleased indicates the contended resource was observed released.
	EventLockReleased EventType = "lock.released"
	// EventActionRetrying indicates a failed action attempt will be retried.
	EventActionRetrying EventType = "action.retrying"

	// EventBindAccepted indicates a principal reference was bound to the vault.
	EventBindAccepted EventType = "bind.accepted"
	// EventBindRejected indicates a principal reference was dropped as invalid.
	EventBindRejected EventType = "bind.rejected"

	// EventGroupStarted indicates a failover boot group began executing.
	EventGroupStarted EventType = "group.started"
	// EventGroupCompleted indicates a boot group reached its barrier.
	EventGroupCompleted EventType = "group.completed"
	// EventGateWaiting indicates a failover run is parked on a manual gate.
	EventGateWaiting EventType = "gate.waiting"
	// EventGateResumed indicates a manual gate was released by the operator.
	EventGateResumed EventType = "gate.resumed"
)

// Nop is an Observer that discards everything. Useful in tests.
var Nop Observer = nopObserver{}

type nopObserver struct{}

func (nopObserver) Printf(string, ...interface{})        {}
func (nopObserver) Event(Event)                          {}
func (nopObserver) Progress(string, int, int)            {}
func (n nopObserver) WithFields(map[string]string) Observer { return n }
