// Package secretbind wires a vault's access policy to the principals
// surfaced by successful deployment nodes.
//
// Binding is a distinct phase that consumes the scheduler's result; it is
// never a node inside the deployment graph. Candidate principal references
// sourced from failed or partial node outputs may be empty or malformed;
// those entries are dropped and recorded, never escalated to a run-level
// failure. The expected remediation for a rejected entry is a subsequent
// deployment run that brings the missing node to Succeeded.
package secretbind

import (
	"context"
	"fmt"
	"strings"

	"github.com/tierctl/tierctl/internal/metrics"
	"github.com/tierctl/tierctl/internal/observe"
)

// DefaultMinRefLength is the minimum length a principal reference must have
// to be considered well-formed. The exact identifier format is opaque here;
// a length floor is sufficient to reject the empty and truncated references
// that partial deployments produce.
const DefaultMinRefLength = 8

// BindingClient issues a single access-binding request against a vault.
type BindingClient interface {
	Bind(ctx context.Context, vaultRef, principalRef string) error
}

// BindingClientFunc adapts a function to the BindingClient interface.
type BindingClientFunc func(ctx context.Context, vaultRef, principalRef string) error

// Bind implements BindingClient.
func (f BindingClientFunc) Bind(ctx context.Context, vaultRef, principalRef string) error {
	return f(ctx, vaultRef, principalRef)
}

// BindResult reports the outcome of one bind pass. Every candidate lands in
// exactly one of the three buckets.
type BindResult struct {
	VaultRef string
	// Accepted lists well-formed references that were bound.
	Accepted []string
	// Rejected lists references dropped by the validity check.
	Rejected []string
	// Errored maps well-formed references to the error detail of a failed
	// binding request. Like rejections, these never fail the run.
	Errored map[string]string
}

// Binder filters candidate principal references and issues binding requests
// for the valid ones.
type Binder struct {
	client    BindingClient
	observer  observe.Observer
	minLength int
}

// Option configures a Binder.
type Option func(*Binder)

// WithMinRefLength overrides the validity length floor.
func WithMinRefLength(n int) Option {
	return func(b *Binder) {
		b.minLength = n
	}
}

// New creates a binder that issues requests through the given client.
func New(client BindingClient, observer observe.Observer, opts ...Option) *Binder {
	if observer == nil {
		observer = observe.Nop
	}
	b := &Binder{
		client:    client,
		observer:  observer,
		minLength: DefaultMinRefLength,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Valid reports whether a candidate principal reference is well-formed:
// non-empty after trimming, free of whitespace, and at least the minimum
// length.
func (b *Binder) Valid(ref string) bool {
	if ref == "" || strings.TrimSpace(ref) != ref {
		return false
	}
	if strings.ContainsAny(ref, " \t\n") {
		return false
	}
	return len(ref) >= b.minLength
}

// Bind filters the candidates and binds every accepted reference to the
// vault. Invalid entries are recorded and skipped without error; a single
// malformed candidate never blocks the well-formed remainder. Candidate
// order is preserved within each bucket.
func (b *Binder) Bind(ctx context.Context, vaultRef string, candidates []string) BindResult {
	result := BindResult{VaultRef: vaultRef}

	for _, ref := range candidates {
		if !b.Valid(ref) {
			result.Rejected = append(result.Rejected, ref)
			metrics.RecordBinding("rejected")
			b.observer.Event(observe.Event{
				Type:    observe.EventBindRejected,
				Phase:   "secrets",
				Message: fmt.Sprintf("dropped invalid principal ref %q", ref),
			})
			continue
		}

		if err := b.client.Bind(ctx, vaultRef, ref); err != nil {
			if result.Errored == nil {
				result.Errored = make(map[string]string)
			}
			result.Errored[ref] = err.Error()
			metrics.RecordBinding("errored")
			b.observer.Event(observe.Event{
				Type:    observe.EventBindRejected,
				Phase:   "secrets",
				Message: fmt.Sprintf("binding %q failed: %v", ref, err),
			})
			continue
		}

		result.Accepted = append(result.Accepted, ref)
		metrics.RecordBinding("accepted")
		b.observer.Event(observe.Event{
			Type:    observe.EventBindAccepted,
			Phase:   "secrets",
			Message: fmt.Sprintf("bound principal %q to %q", ref, vaultRef),
		})
	}

	return result
}
