// Package executor drives a single resource node's bootstrap task to a
// terminal result.
//
// A run has two independent, composable policies: an advisory lock wait
// (poll for release of a contended resource, then time out rather than
// force-override) and a retry policy for the bootstrap action itself. The
// executor never inspects partial side effects; actions are contractually
// idempotent.
package executor
