// Package breaker implements the process-local, three-state circuit
// breaker of spec §4.3, grounded on
// original_source/workers/circuit_breaker.py's CircuitBreaker class.
package breaker

import (
	"sync"
	"time"
)

// State is one of the three breaker states.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// Config parameterizes a single provider's breaker (spec §4.3 defaults).
type Config struct {
	FailureThreshold  int
	Timeout           time.Duration
	RecoveryThreshold int
}

// DefaultConfig mirrors the spec's stated defaults.
func DefaultConfig() Config {
	return Config{FailureThreshold: 5, Timeout: 60 * time.Second, RecoveryThreshold: 3}
}

// Breaker is a single provider's fail-fast gate. It is deliberately not
// shared through the broker — spec §4.3/§9 call for fast local rejection,
// not fleet-wide coordination. Permit, RecordSuccess, and RecordFailure
// each take the mutex synchronously and never block on I/O while holding
// it (spec §5).
type Breaker struct {
	cfg Config

	mu           sync.Mutex
	state        State
	failureCount int
	successCount int
	lastFailure  time.Time
}

// New constructs a breaker starting CLOSED.
func New(cfg Config) *Breaker {
	return &Breaker{cfg: cfg, state: StateClosed}
}

// Permit reports whether a send may proceed, transitioning OPEN->HALF_OPEN
// when the timeout has elapsed.
func (b *Breaker) Permit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(b.lastFailure) > b.cfg.Timeout {
			b.state = StateHalfOpen
			b.successCount = 0
			return true
		}
		return false
	default: // HALF_OPEN
		return true
	}
}

// RecordSuccess accounts for a successful send.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.successCount++
		if b.successCount >= b.cfg.RecoveryThreshold {
			b.state = StateClosed
			b.failureCount = 0
		}
	case StateClosed:
		if b.failureCount > 0 {
			b.failureCount--
		}
	}
}

// RecordFailure accounts for a failed send, tripping the breaker OPEN once
// failureCount reaches the threshold, or immediately reopening from
// HALF_OPEN.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.state = StateOpen
		b.lastFailure = time.Now()
		return
	}

	b.failureCount++
	b.lastFailure = time.Now()
	if b.failureCount >= b.cfg.FailureThreshold {
		b.state = StateOpen
	}
}

// State returns the current state, mostly for tests and stats.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Registry holds one breaker per provider, created lazily on first use.
type Registry struct {
	mu       sync.Mutex
	cfg      Config
	breakers map[string]*Breaker
}

// NewRegistry builds a registry that hands out breakers configured with cfg.
func NewRegistry(cfg Config) *Registry {
	return &Registry{cfg: cfg, breakers: make(map[string]*Breaker)}
}

// Get returns the breaker for provider, creating it on first access.
func (r *Registry) Get(provider string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[provider]
	if !ok {
		b = New(r.cfg)
		r.breakers[provider] = b
	}
	return b
}
