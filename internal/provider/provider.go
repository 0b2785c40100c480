// Package provider defines the outbound send contract of spec §6 and a
// deterministic mock implementation for tests and local runs, grounded
// on the teacher's internal/provider/mock.Provider (hash-of-ID
// determinism, configurable outcome rates).
package provider

import (
	"context"
	"fmt"

	"emaildispatch/internal/job"
)

// Result classifies the outcome of a send attempt the way spec §4.5/§7
// require: a clean success, a retriable failure (network blip, 5xx), or
// a permanent one (invalid recipient, rejected content) that should not
// be retried even if attempts remain.
type Result struct {
	OK        bool
	Retriable bool
	Err       error
}

// Provider sends a rendered job to its recipients.
type Provider interface {
	Name() string
	Send(ctx context.Context, j *job.Job, subject string, body string) Result
}

// Registry resolves a job's named provider, mirroring the teacher's
// pattern of a per-transport constructor keyed by name.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds an empty registry; call Register to populate it.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds p under its own Name().
func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

// Get resolves a provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider: unknown provider %q", name)
	}
	return p, nil
}
