// Package observe provides structured observability for deployment and
// failover runs.
//
// Components report progress through the Observer interface rather than
// logging directly. Two implementations are provided: a console observer for
// plain CLI output and a logr-backed observer for structured logging.
package observe
