// Package auth owns the account session used to authenticate gateway calls.
// The gateway only reads sessions and may ask for a refresh; it never stores
// tokens itself.
package auth

import (
	"context"
	"time"
)

// Session is the current authenticated session.
type Session struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	UserID      string    `json:"userId"`
}

// Provider supplies sessions to the gateway. Session returns the current
// session (nil when signed out); Refresh exchanges credentials for a fresh
// one. Implementations are expected to be safe for concurrent use.
type Provider interface {
	Session(ctx context.Context) (*Session, error)
	Refresh(ctx context.Context) (*Session, error)
}

// StaticProvider returns a fixed session; used in tests and for API-token
// setups that never expire mid-run.
type StaticProvider struct {
	S *Session
}

// Session returns the fixed session.
func (p *StaticProvider) Session(ctx context.Context) (*Session, error) {
	return p.S, nil
}

// Refresh returns the fixed session unchanged.
func (p *StaticProvider) Refresh(ctx context.Context) (*Session, error) {
	return p.S, nil
}
