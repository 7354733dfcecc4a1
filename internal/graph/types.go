package graph

// NodeState represents the lifecycle state of a resource node.
type NodeState string

const (
	// StatePending indicates the node has not been considered for provisioning yet.
	StatePending NodeState = "pending"
	// StateReady indicates every dependency has succeeded and the node may start.
	StateReady NodeState = "ready"
	// StateProvisioning indicates the node's bootstrap task is running.
	StateProvisioning NodeState = "provisioning"
	// StateSucceeded indicates the bootstrap task completed successfully.
	StateSucceeded NodeState = "succeeded"
	// StateFailed indicates the bootstrap task exhausted its retry policy or timed out.
	StateFailed NodeState = "failed"
	// StateSkipped indicates a transitive dependency failed, so the node never ran.
	StateSkipped NodeState = "skipped"
)

// Terminal reports whether s is a terminal state.
func (s NodeState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateSkipped
}

// NodeSpec is the already-resolved input record for a single resource node.
//
// Conditional declarations are settled before graph construction: a spec with
// Omit set never enters the plan, and dependency references to omitted nodes
// are pruned from their dependents.
type NodeSpec struct {
	ID        string
	DependsOn []string
	Payload   map[string]string
	Omit      bool
}

// ResourceNode is a single provisionable unit inside a deployment plan.
type ResourceNode struct {
	ID        string
	DependsOn []string
	Payload   map[string]string

	State   NodeState
	Outputs map[string]string
	Reason  string
}
