// Package graph builds and validates deployment plans.
//
// A deployment plan is a directed acyclic graph of resource nodes. Each node
// carries an opaque provisioning payload and a set of dependency edges. The
// package rejects cyclic and dangling references at build time so the
// scheduler never has to reason about malformed plans at runtime.
package graph
