// Package breaker implements the per-provider circuit breaker registry.
// Unlike a fixed-timeout, ratio-based trip built on sony/gobreaker, this
// state machine needs an escalating backoff keyed on cumulative failure
// count and a passive read that itself performs the open->half-open
// transition -- see DESIGN.md for why gobreaker was not reused here.
package breaker

import (
	"math"
	"sync"
	"time"
)

// State is one of the three circuit health states.
type State string

const (
	Closed   State = "closed"
	HalfOpen State = "half-open"
	Open     State = "open"
)

const (
	// FailureThreshold is T in the backoff formula below.
	FailureThreshold = 5
	baseBackoff      = 60 * time.Second
	maxBackoff       = 30 * time.Minute
)

type providerCircuit struct {
	mu               sync.Mutex
	state            State
	failureCount     int
	lastFailure      time.Time
	circuitOpenUntil time.Time
	probeInFlight    bool
}

// Registry owns one providerCircuit per provider id, created lazily.
type Registry struct {
	mu     sync.Mutex
	byID   map[int64]*providerCircuit
	now    func() time.Time // overridable for tests
}

// NewRegistry constructs an empty registry. All providers start closed with
// a zero failure count; circuit state is rebuilt from scratch on startup.
func NewRegistry() *Registry {
	return NewRegistryWithClock(time.Now)
}

// NewRegistryWithClock builds a registry backed by an injected clock, so
// callers (tests in other packages, which can't reach the unexported `now`
// field directly) can exercise backoff-expiry and half-open promotion
// without sleeping.
func NewRegistryWithClock(now func() time.Time) *Registry {
	return &Registry{
		byID: make(map[int64]*providerCircuit),
		now:  now,
	}
}

func (r *Registry) circuitFor(id int64) *providerCircuit {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		c = &providerCircuit{state: Closed}
		r.byID[id] = c
	}
	return c
}

// backoff implements the capped exponential curve:
// min(base * 2^(failureCount-T), max).
func backoff(failureCount int) time.Duration {
	exp := failureCount - FailureThreshold
	if exp < 0 {
		exp = 0
	}
	d := float64(baseBackoff) * math.Pow(2, float64(exp))
	if d > float64(maxBackoff) {
		return maxBackoff
	}
	return time.Duration(d)
}

// State returns the provider's current circuit state, promoting an expired
// open circuit to half-open as a side effect of the read -- the invariant
// is "state = open <-> now < circuitOpenUntil".
func (r *Registry) State(id int64) State {
	c := r.circuitFor(id)
	c.mu.Lock()
	defer c.mu.Unlock()
	r.promoteLocked(c)
	return c.state
}

// OpenUntil returns the timestamp the circuit reopens for, or the zero time
// if the circuit is not open.
func (r *Registry) OpenUntil(id int64) time.Time {
	c := r.circuitFor(id)
	c.mu.Lock()
	defer c.mu.Unlock()
	r.promoteLocked(c)
	if c.state != Open {
		return time.Time{}
	}
	return c.circuitOpenUntil
}

func (r *Registry) promoteLocked(c *providerCircuit) {
	if c.state == Open && !r.now().Before(c.circuitOpenUntil) {
		c.state = HalfOpen
		c.probeInFlight = false
	}
}

// RecordSuccess resets the breaker to closed. In half-open, this is the
// single probe succeeding; in closed, failureCount decays to zero.
func (r *Registry) RecordSuccess(id int64) {
	c := r.circuitFor(id)
	c.mu.Lock()
	defer c.mu.Unlock()
	r.promoteLocked(c)
	c.state = Closed
	c.failureCount = 0
	c.probeInFlight = false
}

// RecordFailure increments the failure count and opens the circuit once the
// threshold is reached. Any non-2xx or network error counts, so a
// misconfigured key rotates off quickly.
func (r *Registry) RecordFailure(id int64, _ error) {
	c := r.circuitFor(id)
	c.mu.Lock()
	defer c.mu.Unlock()
	r.promoteLocked(c)

	c.failureCount++
	c.lastFailure = r.now()
	c.probeInFlight = false

	if c.state == HalfOpen {
		// probe failed: back to open with a longer backoff.
		c.state = Open
		c.circuitOpenUntil = r.now().Add(backoff(c.failureCount))
		return
	}
	if c.failureCount >= FailureThreshold {
		c.state = Open
		c.circuitOpenUntil = r.now().Add(backoff(c.failureCount))
	}
}

// AllowProbe reports whether the caller may dispatch a request to this
// provider right now, admitting exactly one concurrent probe while
// half-open; concurrent probe admission is serialized.
func (r *Registry) AllowProbe(id int64) bool {
	c := r.circuitFor(id)
	c.mu.Lock()
	defer c.mu.Unlock()
	r.promoteLocked(c)

	switch c.state {
	case Closed:
		return true
	case HalfOpen:
		if c.probeInFlight {
			return false
		}
		c.probeInFlight = true
		return true
	default: // Open
		return false
	}
}
