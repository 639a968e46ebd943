// Package breaker implements a per-name circuit breaker used to isolate
// failures of external dependencies. Each named circuit tracks its own
// state, so an outage of one dependency never trips the breaker of an
// unrelated one. The registry is a pure state machine with no I/O of its
// own and is injected as a dependency so tests can build a fresh one.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

const (
	DefaultFailureThreshold = 5
	DefaultResetTimeout     = 60 * time.Second
	DefaultHalfOpenMaxCalls = 3
)

// ErrCircuitOpen is returned when a call is short-circuited and the
// caller supplied no fallback.
var ErrCircuitOpen = errors.New("circuit open")

type record struct {
	failures      int
	successes     int
	lastFailure   time.Time
	state         State
	halfOpenCalls int
}

// Metrics is a read-only snapshot of one circuit's counters.
type Metrics struct {
	Name        string     `json:"name"`
	State       State      `json:"state"`
	Failures    int        `json:"failures"`
	Successes   int        `json:"successes"`
	LastFailure *time.Time `json:"last_failure,omitempty"`
}

// Registry holds the circuit records, keyed by circuit name. Records are
// created lazily on first use. Safe for concurrent use.
type Registry struct {
	mu sync.Mutex

	failureThreshold int
	resetTimeout     time.Duration
	halfOpenMaxCalls int

	circuits map[string]*record
	now      func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

func WithFailureThreshold(n int) Option {
	return func(r *Registry) { r.failureThreshold = n }
}

func WithResetTimeout(d time.Duration) Option {
	return func(r *Registry) { r.resetTimeout = d }
}

func WithHalfOpenMaxCalls(n int) Option {
	return func(r *Registry) { r.halfOpenMaxCalls = n }
}

// withClock overrides the time source. Tests only.
func withClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		failureThreshold: DefaultFailureThreshold,
		resetTimeout:     DefaultResetTimeout,
		halfOpenMaxCalls: DefaultHalfOpenMaxCalls,
		circuits:         make(map[string]*record),
		now:              time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Do executes fn under the named circuit. When the circuit is open (or
// the half-open probe budget is exhausted) fn is not called: the fallback
// supplies the result if present, otherwise ErrCircuitOpen is returned.
// A nil error from fn counts as a success, anything else as a failure.
func Do[T any](ctx context.Context, r *Registry, name string, fn func(ctx context.Context) (T, error), fallback func() T) (T, error) {
	var zero T

	if !r.allow(name) {
		if fallback != nil {
			return fallback(), nil
		}
		return zero, fmt.Errorf("%w: %s", ErrCircuitOpen, name)
	}

	result, err := fn(ctx)
	if err != nil {
		r.recordFailure(name)
		if fallback != nil {
			return fallback(), nil
		}
		return zero, err
	}

	r.recordSuccess(name)
	return result, nil
}

// allow reports whether a call may proceed, performing the
// OPEN -> HALF_OPEN transition when the reset timeout has elapsed and
// consuming one probe slot while half-open.
func (r *Registry) allow(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.get(name)

	switch rec.state {
	case StateClosed:
		return true
	case StateOpen:
		if r.now().Sub(rec.lastFailure) >= r.resetTimeout {
			rec.state = StateHalfOpen
			rec.halfOpenCalls = 1
			return true
		}
		return false
	case StateHalfOpen:
		if rec.halfOpenCalls < r.halfOpenMaxCalls {
			rec.halfOpenCalls++
			return true
		}
		return false
	}

	return false
}

func (r *Registry) recordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.get(name)
	rec.successes++

	if rec.state == StateHalfOpen {
		rec.state = StateClosed
		rec.failures = 0
		rec.halfOpenCalls = 0
	}
}

func (r *Registry) recordFailure(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.get(name)
	rec.failures++
	rec.lastFailure = r.now()

	switch rec.state {
	case StateClosed:
		if rec.failures >= r.failureThreshold {
			rec.state = StateOpen
		}
	case StateHalfOpen:
		rec.state = StateOpen
		rec.halfOpenCalls = 0
	}
}

// Reset forces the named circuit back to CLOSED. Operator escape hatch.
func (r *Registry) Reset(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.get(name)
	rec.state = StateClosed
	rec.failures = 0
	rec.halfOpenCalls = 0
}

// StateOf returns the current state of the named circuit.
func (r *Registry) StateOf(name string) State {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.get(name).state
}

// AllMetrics returns a snapshot of every known circuit.
func (r *Registry) AllMetrics() []Metrics {
	r.mu.Lock()
	defer r.mu.Unlock()

	metrics := make([]Metrics, 0, len(r.circuits))
	for name, rec := range r.circuits {
		m := Metrics{
			Name:      name,
			State:     rec.state,
			Failures:  rec.failures,
			Successes: rec.successes,
		}
		if !rec.lastFailure.IsZero() {
			t := rec.lastFailure
			m.LastFailure = &t
		}
		metrics = append(metrics, m)
	}

	return metrics
}

// get returns the record for name, creating it lazily. Caller must hold r.mu.
func (r *Registry) get(name string) *record {
	rec, ok := r.circuits[name]
	if !ok {
		rec = &record{state: StateClosed}
		r.circuits[name] = rec
	}
	return rec
}
