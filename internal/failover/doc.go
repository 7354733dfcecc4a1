// Package failover replays a subset of a completed deployment as an ordered
// sequence of boot groups for disaster recovery.
//
// Each boot group runs as a flat plan with a full-group barrier: every member
// must reach a terminal state before the group's wait condition is probed.
// Transitions between groups are gated either automatically (probe-driven) or
// manually (an explicit operator signal). Any member failure or wait-condition
// timeout fails the entire run; groups are not retried across a failed
// attempt, because boot order is a hard precondition, not a best-effort hint.
package failover
