// Package auth covers the OAuth authorization-code flow against the ads
// platform and the access tokens it produces.
package auth

import (
	"context"
	"sync"
	"time"
)

type Token struct {
	AccessToken  string
	RefreshToken string
	Scope        string
	ExpiresAt    time.Time
}

func (t *Token) Expired(now time.Time) bool {
	return t == nil || !now.Before(t.ExpiresAt)
}

type Provider interface {
	AuthorizationURL() string
	Exchange(ctx context.Context, code string) (*Token, error)
	Refresh(ctx context.Context, refreshToken string) (*Token, error)
}

// Refresher renews the current credential.
type Refresher interface {
	Refresh(ctx context.Context) (*Token, error)
}

// Session holds the token of the running conversation.
type Session struct {
	provider Provider
	timeout  time.Duration

	mu    sync.Mutex
	token *Token
}

func NewSession(provider Provider, timeout time.Duration) *Session {
	return &Session{provider: provider, timeout: timeout}
}

func (s *Session) Token() *Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *Session) AuthorizationURL() string {
	return s.provider.AuthorizationURL()
}

// Login exchanges an authorization code and stores the resulting token.
func (s *Session) Login(ctx context.Context, code string) (*Token, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	token, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return token, nil
}

// Refresh swaps the stored token for a new one. It fails with ErrRefresh
// when no refresh token is held.
func (s *Session) Refresh(ctx context.Context) (*Token, error) {
	s.mu.Lock()
	current := s.token
	s.mu.Unlock()
	if current == nil || current.RefreshToken == "" {
		return nil, newError(ErrRefresh)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	token, err := s.provider.Refresh(ctx, current.RefreshToken)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return token, nil
}

func (s *Session) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
