package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	zkr "github.com/zalando/go-keyring"
	"go.uber.org/zap"
)

const (
	keychainService = "timesage"
	keychainAccount = "refresh-token"
)

// KeychainProvider keeps the refresh token in the OS keychain and exchanges
// it against the account service for short-lived access tokens. The current
// session is cached in memory for the life of the process.
type KeychainProvider struct {
	tokenURL   string
	httpClient *http.Client
	log        *zap.Logger

	mu      sync.Mutex
	current *Session
}

// NewKeychainProvider creates a provider that refreshes against tokenURL.
func NewKeychainProvider(tokenURL string, log *zap.Logger) *KeychainProvider {
	if log == nil {
		log = zap.NewNop()
	}
	return &KeychainProvider{
		tokenURL:   tokenURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        log,
	}
}

// StoreRefreshToken saves the refresh token in the OS keychain (sign-in flow).
func StoreRefreshToken(token string) error {
	return zkr.Set(keychainService, keychainAccount, token)
}

// ClearRefreshToken removes the stored refresh token (sign-out flow).
func ClearRefreshToken() error {
	return zkr.Delete(keychainService, keychainAccount)
}

// Session returns the cached session, or nil when signed out.
func (p *KeychainProvider) Session(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	s := p.current
	p.mu.Unlock()
	if s != nil {
		return s, nil
	}
	return p.Refresh(ctx)
}

// Refresh exchanges the keychain refresh token for a new session.
func (p *KeychainProvider) Refresh(ctx context.Context) (*Session, error) {
	refreshToken, err := zkr.Get(keychainService, keychainAccount)
	if err != nil {
		return nil, fmt.Errorf("keychain get: %w", err)
	}

	body, err := json.Marshal(map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refresh request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("refresh failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var tr struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(respBody, &tr); err != nil {
		return nil, fmt.Errorf("decode refresh response: %w", err)
	}

	session := sessionFromToken(tr.AccessToken, tr.ExpiresIn)

	p.mu.Lock()
	p.current = session
	p.mu.Unlock()

	p.log.Debug("session refreshed", zap.Time("expiresAt", session.ExpiresAt))
	return session, nil
}

// sessionFromToken builds a session from an access token, preferring the
// token's own exp/sub claims over the response's expires_in hint. The token
// is decoded without signature verification: the account service issued it
// over TLS and the gateway only needs the expiry, the remote side does the
// real validation.
func sessionFromToken(accessToken string, expiresIn int64) *Session {
	session := &Session{AccessToken: accessToken}
	if expiresIn > 0 {
		session.ExpiresAt = time.Now().Add(time.Duration(expiresIn) * time.Second)
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return session
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		session.ExpiresAt = exp.Time
	}
	if sub, err := claims.GetSubject(); err == nil {
		session.UserID = sub
	}
	return session
}
