// Package scheduler executes a deployment plan to completion.
//
// The scheduler repeatedly computes the set of ready nodes, launches a
// convergence run for each concurrently (bounded by an optional worker
// limit), and updates node state as terminal results arrive. A node's failure
// cascades to its transitive dependents as Skipped; unrelated branches of the
// graph continue to completion.
package scheduler
