package graph

import (
	"fmt"
	"sort"
)

// ValidationError indicates a malformed plan: a cyclic or dangling dependency
// reference. A plan that fails validation never starts executing.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "invalid deployment plan: " + e.Msg
}

// DeploymentPlan is an immutable set of resource nodes plus their dependency
// edges. Node state is mutated exclusively by the scheduler for the duration
// of one deployment run; the plan itself provides no synchronization.
type DeploymentPlan struct {
	nodes      map[string]*ResourceNode
	order      []string
	dependents map[string][]string
}

// Build validates the given node specs and assembles a deployment plan.
//
// Omitted specs are dropped, along with any dependency references to them.
// Build rejects duplicate ids, edges referencing unknown node ids, and cycles.
// Given the same spec set it always produces the same plan.
func Build(specs []NodeSpec) (*DeploymentPlan, error) {
	included := make(map[string]NodeSpec, len(specs))
	omitted := make(map[string]bool)
	for _, spec := range specs {
		if spec.ID == "" {
			return nil, &ValidationError{Msg: "node with empty id"}
		}
		if _, dup := included[spec.ID]; dup || omitted[spec.ID] {
			return nil, &ValidationError{Msg: fmt.Sprintf("duplicate node id %q", spec.ID)}
		}
		if spec.Omit {
			omitted[spec.ID] = true
			continue
		}
		included[spec.ID] = spec
	}

	plan := &DeploymentPlan{
		nodes:      make(map[string]*ResourceNode, len(included)),
		dependents: make(map[string][]string),
	}
	for id, spec := range included {
		deps := make([]string, 0, len(spec.DependsOn))
		seen := make(map[string]bool, len(spec.DependsOn))
		for _, dep := range spec.DependsOn {
			if omitted[dep] || seen[dep] {
				continue
			}
			if dep == id {
				return nil, &ValidationError{Msg: fmt.Sprintf("node %q depends on itself", id)}
			}
			if _, ok := included[dep]; !ok {
				return nil, &ValidationError{Msg: fmt.Sprintf("node %q depends on unknown node %q", id, dep)}
			}
			seen[dep] = true
			deps = append(deps, dep)
		}
		sort.Strings(deps)
		plan.nodes[id] = &ResourceNode{
			ID:        id,
			DependsOn: deps,
			Payload:   spec.Payload,
			State:     StatePending,
		}
	}

	plan.order = make([]string, 0, len(plan.nodes))
	for id := range plan.nodes {
		plan.order = append(plan.order, id)
	}
	sort.Strings(plan.order)

	for _, id := range plan.order {
		for _, dep := range plan.nodes[id].DependsOn {
			plan.dependents[dep] = append(plan.dependents[dep], id)
		}
	}
	for _, ids := range plan.dependents {
		sort.Strings(ids)
	}

	if err := plan.detectCycles(); err != nil {
		return nil, err
	}
	return plan, nil
}

// detectCycles runs a depth-first traversal with three-color marking.
// Nodes in the current recursion stack are "gray"; revisiting a gray node
// means the dependency edges form a cycle.
func (p *DeploymentPlan) detectCycles() error {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(p.nodes))

	var visit func(id string) error
	visit = func(id string) error {
		switch color[id] {
		case black:
			return nil
		case gray:
			return &ValidationError{Msg: fmt.Sprintf("dependency cycle involving node %q", id)}
		}
		color[id] = gray
		for _, dep := range p.nodes[id].DependsOn {
			if err := visit(dep); err != nil {
				return err
			}
		}
		color[id] = black
		return nil
	}

	for _, id := range p.order {
		if err := visit(id); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of nodes in the plan.
func (p *DeploymentPlan) Len() int {
	return len(p.nodes)
}

// Node returns the node with the given id, or nil if it does not exist.
func (p *DeploymentPlan) Node(id string) *ResourceNode {
	return p.nodes[id]
}

// Nodes returns every node in deterministic (lexical id) order.
func (p *DeploymentPlan) Nodes() []*ResourceNode {
	out := make([]*ResourceNode, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.nodes[id])
	}
	return out
}

// Dependents returns the ids of nodes that directly depend on the given node,
// in deterministic order.
func (p *DeploymentPlan) Dependents(id string) []string {
	return p.dependents[id]
}

// ReadyNodes returns the ids of nodes whose dependencies have all succeeded
// and whose own state is still Pending. It is a pure query with no side
// effects; callers are responsible for state transitions.
func (p *DeploymentPlan) ReadyNodes() []string {
	var ready []string
	for _, id := range p.order {
		node := p.nodes[id]
		if node.State != StatePending {
			continue
		}
		ok := true
		for _, dep := range node.DependsOn {
			if p.nodes[dep].State != StateSucceeded {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, id)
		}
	}
	return ready
}

// TransitiveDependents returns every node reachable downstream of the given
// node, in deterministic order.
func (p *DeploymentPlan) TransitiveDependents(id string) []string {
	seen := make(map[string]bool)
	var walk func(string)
	walk = func(cur string) {
		for _, dep := range p.dependents[cur] {
			if !seen[dep] {
				seen[dep] = true
				walk(dep)
			}
		}
	}
	walk(id)

	out := make([]string, 0, len(seen))
	for dep := range seen {
		out = append(out, dep)
	}
	sort.Strings(out)
	return out
}
