package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tbxark/adagent/config"
)

const mockIssuer = "adagent-mock-oauth"

// Claims are carried by access tokens issued by Mock.
type Claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// Mock simulates the platform OAuth server. Codes "valid_code",
// "invalid_client" and "no_permission" drive the outcome of Exchange.
type Mock struct {
	conf config.Auth
	now  func() time.Time

	mu            sync.Mutex
	refreshTokens map[string]bool
}

type MockOption func(*Mock)

// WithClock replaces time.Now for issued token timestamps.
func WithClock(now func() time.Time) MockOption {
	return func(m *Mock) {
		m.now = now
	}
}

func NewMock(conf config.Auth, opts ...MockOption) *Mock {
	m := &Mock{
		conf:          conf,
		now:           time.Now,
		refreshTokens: make(map[string]bool),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

func (m *Mock) AuthorizationURL() string {
	params := url.Values{}
	params.Set("client_key", m.conf.ClientID)
	params.Set("redirect_uri", m.conf.RedirectURI)
	params.Set("response_type", "code")
	params.Set("scope", m.conf.Scope)
	params.Set("state", uuid.NewString())
	return m.conf.AuthorizeURL + "?" + params.Encode()
}

func (m *Mock) Exchange(ctx context.Context, code string) (*Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch strings.TrimSpace(code) {
	case "valid_code":
	case "invalid_client":
		return nil, newError(ErrInvalidClient)
	case "no_permission":
		return nil, newError(ErrMissingScope)
	default:
		return nil, newError(ErrInvalidCode)
	}
	if m.conf.ClientID == "" || m.conf.ClientSecret == "" {
		return nil, newError(ErrInvalidClient)
	}
	return m.issue()
}

func (m *Mock) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	known := m.refreshTokens[refreshToken]
	delete(m.refreshTokens, refreshToken)
	m.mu.Unlock()
	if !known {
		return nil, newError(ErrRefresh)
	}
	slog.Info("Refreshed access token")
	return m.issue()
}

func (m *Mock) issue() (*Token, error) {
	now := m.now()
	expiresAt := now.Add(m.conf.TokenTTL)
	claims := Claims{
		Scope: m.conf.Scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    mockIssuer,
			Subject:   m.conf.ClientID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.conf.TokenSecret))
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh := uuid.NewString()
	m.mu.Lock()
	m.refreshTokens[refresh] = true
	m.mu.Unlock()
	return &Token{
		AccessToken:  signed,
		RefreshToken: refresh,
		Scope:        m.conf.Scope,
		ExpiresAt:    expiresAt,
	}, nil
}

// Verify checks an access token issued by Mock and returns its claims.
// Expired tokens fail with ErrTokenExpired, anything else with ErrTokenInvalid.
func Verify(accessToken, secret string, now time.Time) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(mockIssuer),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	claims := &Claims{}
	_, err := parser.ParseWithClaims(accessToken, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, newError(ErrTokenExpired)
	default:
		e := newError(ErrTokenInvalid)
		e.Err = fmt.Errorf("%w: %v", ErrTokenInvalid, err)
		return nil, e
	}
}
