package gateway

import (
	"testing"
	"time"
)

// testClock returns a resilience clock that tests can advance manually.
func testClock() (func() time.Time, func(d time.Duration)) {
	current := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	now := func() time.Time { return current }
	advance := func(d time.Duration) { current = current.Add(d) }
	return now, advance
}

func TestCircuitOpensAfterConsecutiveFailures(t *testing.T) {
	now, _ := testClock()
	r := newResilience(now)

	for i := 0; i < failureThreshold-1; i++ {
		r.recordFailure()
		if err := r.allow(); err != nil {
			t.Fatalf("allow() after %d failures: %v", i+1, err)
		}
	}

	r.recordFailure()
	err := r.allow()
	if err == nil {
		t.Fatal("allow() should reject once the threshold is hit")
	}
	if CodeOf(err) != CodeCircuitOpen {
		t.Errorf("code = %q, want %q", CodeOf(err), CodeCircuitOpen)
	}
}

func TestCircuitHalfOpenProbeBudget(t *testing.T) {
	now, advance := testClock()
	r := newResilience(now)

	for i := 0; i < failureThreshold; i++ {
		r.recordFailure()
	}
	if err := r.allow(); err == nil {
		t.Fatal("circuit should be open")
	}

	// Still open just before the timeout elapses.
	advance(circuitOpenTimeout - time.Second)
	if err := r.allow(); err == nil {
		t.Fatal("circuit should stay open before the timeout")
	}

	advance(2 * time.Second)
	if err := r.allow(); err != nil {
		t.Fatalf("first half-open probe rejected: %v", err)
	}
	r.recordFailure() // one failed probe keeps half-open
	if err := r.allow(); err != nil {
		t.Fatalf("second half-open probe rejected: %v", err)
	}
	if err := r.allow(); err == nil {
		t.Fatal("probe budget exhausted, allow() should reject")
	}

	// Second failed probe re-opens for a full timeout.
	r.recordFailure()
	state, _ := r.snapshot()
	if state != circuitOpen {
		t.Errorf("state = %v, want open after failed probes", state)
	}
}

func TestSuccessClosesCircuitAndResetsFailures(t *testing.T) {
	now, advance := testClock()
	r := newResilience(now)

	for i := 0; i < failureThreshold; i++ {
		r.recordFailure()
	}
	advance(circuitOpenTimeout + time.Second)
	if err := r.allow(); err != nil {
		t.Fatalf("half-open probe rejected: %v", err)
	}

	r.recordSuccess()
	state, failures := r.snapshot()
	if state != circuitClosed {
		t.Errorf("state = %v, want closed after success", state)
	}
	if failures != 0 {
		t.Errorf("consecutiveFailures = %d, want 0", failures)
	}
	if err := r.allow(); err != nil {
		t.Errorf("allow() after recovery: %v", err)
	}
}

func TestRateLimitCooldown(t *testing.T) {
	now, advance := testClock()
	r := newResilience(now)

	r.recordRateLimit(5 * time.Second)
	if got := r.cooldownRemaining(); got != 5*time.Second {
		t.Errorf("cooldownRemaining = %v, want 5s", got)
	}

	// A shorter hint never shortens an existing cooldown.
	r.recordRateLimit(time.Second)
	if got := r.cooldownRemaining(); got != 5*time.Second {
		t.Errorf("cooldownRemaining = %v after shorter hint, want 5s", got)
	}

	advance(6 * time.Second)
	if got := r.cooldownRemaining(); got != 0 {
		t.Errorf("cooldownRemaining = %v after expiry, want 0", got)
	}
}

func TestRateLimitWithoutHintUsesBackoff(t *testing.T) {
	now, _ := testClock()
	r := newResilience(now)

	r.recordFailure()
	r.recordFailure()
	r.recordRateLimit(0)
	if got, want := r.cooldownRemaining(), backoffDelay(2); got != want {
		t.Errorf("cooldownRemaining = %v, want %v", got, want)
	}
}

func TestBackoffDelay(t *testing.T) {
	cases := []struct {
		n    int
		want time.Duration
	}{
		{-1, time.Second},
		{0, time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{100, 30 * time.Second},
	}
	for _, tc := range cases {
		if got := backoffDelay(tc.n); got != tc.want {
			t.Errorf("backoffDelay(%d) = %v, want %v", tc.n, got, tc.want)
		}
	}
}
