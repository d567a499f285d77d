package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/timesage/timesage/internal/auth"
)

// callTimeout bounds the wall-clock time of one logical call, including all
// retries, backoff waits, and rate-limit cooldowns.
const callTimeout = 60 * time.Second

// RemoteResponse is the envelope the analysis endpoint returns for every
// operation.
type RemoteResponse struct {
	Success       bool    `json:"success"`
	Description   string  `json:"description,omitempty"`
	SelectedID    string  `json:"selectedId,omitempty"`
	SelectedName  string  `json:"selectedName,omitempty"`
	Summary       string  `json:"summary,omitempty"`
	Confidence    float64 `json:"confidence,omitempty"`
	Error         string  `json:"error,omitempty"`
	ErrorCode     string  `json:"errorCode,omitempty"`
	IsRateLimited bool    `json:"isRateLimited,omitempty"`
	RetryAfter    int64   `json:"retryAfter,omitempty"` // milliseconds
}

// transport wraps every outbound call with token freshness, the circuit
// breaker, rate-limit cooldowns, and bounded retries. It never leaks a raw
// error: everything surfaces as *Error.
type transport struct {
	endpoint   string
	httpClient *http.Client
	provider   auth.Provider
	res        *resilience
	log        *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func newTransport(endpoint string, provider auth.Provider, client *http.Client, log *zap.Logger) *transport {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &transport{
		endpoint:   endpoint,
		httpClient: client,
		provider:   provider,
		res:        newResilience(nil),
		log:        log,
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// call issues one logical request: fresh token, cooldown wait, breaker gate,
// then up to maxRetries+1 attempts with exponential backoff. Terminal
// failures feed the circuit breaker.
func (t *transport) call(ctx context.Context, payload any) (*RemoteResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	token, err := t.freshToken(ctx)
	if err != nil {
		return nil, err
	}

	// Rate-limit cooldown: wait, don't reject. The wait can be long, so the
	// token is re-checked afterwards.
	if wait := t.res.cooldownRemaining(); wait > 0 {
		t.log.Debug("waiting out rate-limit cooldown", zap.Duration("wait", wait))
		if err := t.sleep(ctx, wait); err != nil {
			return nil, wrapError(CodeTransient, err, "canceled during rate-limit cooldown")
		}
		if token, err = t.freshToken(ctx); err != nil {
			return nil, err
		}
	}

	if err := t.res.allow(); err != nil {
		state, failures := t.res.snapshot()
		t.log.Debug("call rejected by circuit breaker",
			zap.Stringer("state", state), zap.Int("consecutiveFailures", failures))
		return nil, err
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		resp, err := t.doOnce(ctx, token, payload)
		if err == nil {
			t.res.recordSuccess()
			return resp, nil
		}
		lastErr = err

		if !retryable(err) || attempt >= maxRetries {
			break
		}

		// A 429 extends the cooldown inside doOnce; honor whichever wait is
		// longer, the cooldown or the per-attempt backoff.
		delay := backoffDelay(attempt)
		if cd := t.res.cooldownRemaining(); cd > delay {
			delay = cd
		}
		t.log.Debug("retrying remote call",
			zap.Int("attempt", attempt+1), zap.Duration("delay", delay), zap.Error(err))
		if serr := t.sleep(ctx, delay); serr != nil {
			lastErr = wrapError(CodeTransient, serr, "canceled during retry backoff")
			break
		}

		// Backoff waits can outlive the token; re-check before the next try.
		if token, err = t.freshToken(ctx); err != nil {
			lastErr = err
			break
		}
	}

	t.res.recordFailure()
	state, failures := t.res.snapshot()
	t.log.Warn("remote call failed",
		zap.Stringer("circuitState", state),
		zap.Int("consecutiveFailures", failures),
		zap.Error(lastErr))
	return nil, lastErr
}

// doOnce performs a single HTTP attempt and classifies the outcome.
func (t *transport) doOnce(ctx context.Context, token string, payload any) (*RemoteResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, wrapError(CodeInvalidRequest, err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, wrapError(CodeInvalidRequest, err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, wrapError(CodeTransient, err, "request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapError(CodeTransient, err, "read response")
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var out RemoteResponse
		if err := json.Unmarshal(respBody, &out); err != nil {
			return nil, wrapError(CodeTransient, err, "decode response")
		}
		return &out, nil
	}

	return nil, t.classifyHTTPError(resp, respBody)
}

// classifyHTTPError maps a non-2xx response onto the error taxonomy. Non-2xx
// bodies are JSON {error} envelopes, parsed leniently since a proxy or load
// balancer may answer with something else entirely.
func (t *transport) classifyHTTPError(resp *http.Response, body []byte) error {
	msg := gjson.GetBytes(body, "error").String()
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = resp.Status
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		t.res.recordRateLimit(retryAfterHint(resp, body))
		return newError(CodeRateLimited, "rate limited: %s", msg)

	case resp.StatusCode == http.StatusUnauthorized:
		// A 401 for an invalid/expired token fails only this call; other
		// in-flight calls keep their sessions.
		code := gjson.GetBytes(body, "errorCode").String()
		lower := strings.ToLower(msg + " " + code)
		if strings.Contains(lower, "expired") || strings.Contains(lower, "invalid") ||
			strings.Contains(lower, "token") {
			return newError(CodeSessionExpired, "session rejected: %s", msg)
		}
		return newError(CodeAuth, "unauthorized: %s", msg)

	case resp.StatusCode >= 500:
		return newError(CodeTransient, "server error %d: %s", resp.StatusCode, msg)

	default:
		return newError(CodeInvalidRequest, "request rejected %d: %s", resp.StatusCode, msg)
	}
}

// retryAfterHint extracts a server retry hint: the Retry-After header in
// seconds, or a retryAfter body field in milliseconds. Zero means no hint.
func retryAfterHint(resp *http.Response, body []byte) time.Duration {
	if h := resp.Header.Get("Retry-After"); h != "" {
		if secs, err := strconv.Atoi(h); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	if ms := gjson.GetBytes(body, "retryAfter").Int(); ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return 0
}

// freshToken returns a token valid for at least the freshness window. When a
// refresh fails but the current token still has time left, the stale token
// is used best-effort; with no time left the call fails without touching the
// network.
func (t *transport) freshToken(ctx context.Context) (string, error) {
	session, err := t.provider.Session(ctx)
	if err != nil {
		return "", wrapError(CodeAuth, err, "no session")
	}
	if session == nil {
		return "", newError(CodeAuth, "not signed in")
	}

	remaining := session.ExpiresAt.Sub(t.now())
	if remaining >= tokenFreshness {
		return session.AccessToken, nil
	}

	refreshed, err := t.provider.Refresh(ctx)
	if err == nil && refreshed != nil {
		return refreshed.AccessToken, nil
	}

	if remaining > 0 {
		t.log.Warn("token refresh failed, proceeding with stale token",
			zap.Duration("remaining", remaining), zap.Error(err))
		return session.AccessToken, nil
	}
	return "", wrapError(CodeAuth, err, "session expired and refresh failed")
}
