// Package retry provides exponential backoff retry logic for transient failures.
//
// The [Do] function drives an idempotent operation to success within a
// [Policy]: max attempts, base delay, backoff multiplier, delay cap. Errors
// wrapped with [Fatal] abort immediately without further attempts.
package retry
