package gateway

import (
	"sync"
	"time"
)

// Circuit breaker and backoff policy. Hard-coded: the remote endpoint is
// ours, so the thresholds are product decisions, not deployment knobs.
const (
	failureThreshold    = 5
	circuitOpenTimeout  = 60 * time.Second
	halfOpenMaxAttempts = 2

	maxRetries     = 3 // 4 attempts total
	baseBackoff    = time.Second
	maxBackoff     = 30 * time.Second
	tokenFreshness = 60 * time.Second
)

// circuitState is the breaker's position.
type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

func (s circuitState) String() string {
	switch s {
	case circuitOpen:
		return "open"
	case circuitHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// resilience is the shared health state for all calls from one gateway
// instance: circuit breaker position, consecutive failure count, and the
// rate-limit cooldown timestamp. All fields are guarded by mu; the mutex is
// never held across a network call or a wait, so one call's backoff cannot
// stall another. State is process-lifetime only, never persisted.
type resilience struct {
	mu                  sync.Mutex
	state               circuitState
	consecutiveFailures int
	circuitOpenedAt     time.Time
	halfOpenAttempts    int
	rateLimitedUntil    time.Time

	now func() time.Time // injected for tests
}

func newResilience(now func() time.Time) *resilience {
	if now == nil {
		now = time.Now
	}
	return &resilience{now: now}
}

// allow gates a call on the circuit breaker. Open circuits reject
// immediately; after the open timeout the breaker moves to half-open and
// admits up to halfOpenMaxAttempts probes.
func (r *resilience) allow() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case circuitOpen:
		if r.now().Sub(r.circuitOpenedAt) < circuitOpenTimeout {
			return newError(CodeCircuitOpen, "circuit breaker open, rejecting call")
		}
		r.state = circuitHalfOpen
		r.halfOpenAttempts = 0
		fallthrough
	case circuitHalfOpen:
		if r.halfOpenAttempts >= halfOpenMaxAttempts {
			return newError(CodeCircuitOpen, "circuit breaker half-open, probe budget exhausted")
		}
		r.halfOpenAttempts++
	}
	return nil
}

// recordSuccess resets the failure count and closes the breaker.
func (r *resilience) recordSuccess() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consecutiveFailures = 0
	r.state = circuitClosed
	r.halfOpenAttempts = 0
}

// recordFailure counts a terminal call failure and trips or re-opens the
// breaker when the thresholds are hit.
func (r *resilience) recordFailure() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consecutiveFailures++

	switch r.state {
	case circuitHalfOpen:
		if r.halfOpenAttempts >= halfOpenMaxAttempts {
			r.state = circuitOpen
			r.circuitOpenedAt = r.now()
		}
	case circuitClosed:
		if r.consecutiveFailures >= failureThreshold {
			r.state = circuitOpen
			r.circuitOpenedAt = r.now()
		}
	}
}

// recordRateLimit extends the cooldown. When the server gave no retry hint,
// the duration is exponential in the current failure count, capped.
func (r *resilience) recordRateLimit(retryAfter time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if retryAfter <= 0 {
		retryAfter = backoffDelay(r.consecutiveFailures)
	}
	until := r.now().Add(retryAfter)
	if until.After(r.rateLimitedUntil) {
		r.rateLimitedUntil = until
	}
}

// cooldownRemaining returns how long the current rate-limit cooldown still
// holds, or zero.
func (r *resilience) cooldownRemaining() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	remaining := r.rateLimitedUntil.Sub(r.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// snapshot returns the current breaker position and failure count for logs.
func (r *resilience) snapshot() (circuitState, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, r.consecutiveFailures
}

// backoffDelay is min(1s * 2^n, 30s).
func backoffDelay(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	if n > 30 {
		return maxBackoff
	}
	d := baseBackoff << uint(n)
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
