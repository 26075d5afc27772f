package auth

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Static errors for err113 compliance.
var (
	ErrNoToken                  = errors.New("no access token configured")
	ErrStaticTokenCannotRefresh = errors.New("static token cannot be refreshed")
)

// expiryBuffer treats tokens about to expire as already expired.
const expiryBuffer = 30 * time.Second

// TokenManager supplies the bearer token injected into every request.
type TokenManager interface {
	GetToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) error
	SetToken(token string, expiresAt time.Time)
}

// Token is an access token with an optional expiry.
type Token struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
}

// Valid reports whether the token is present and not about to expire.
func (t *Token) Valid() bool {
	if t == nil || t.AccessToken == "" {
		return false
	}

	if t.ExpiresAt.IsZero() {
		return true
	}

	return time.Now().Add(expiryBuffer).Before(t.ExpiresAt)
}

// TokenStore holds a token behind a lock.
type TokenStore struct {
	mu    sync.RWMutex
	token *Token
}

// NewTokenStore creates an empty token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// Get returns the current token or nil.
func (s *TokenStore) Get() *Token {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token
}

// Set replaces the current token.
func (s *TokenStore) Set(token *Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
}

// StaticTokenManager serves a fixed token until it is replaced with SetToken.
type StaticTokenManager struct {
	store *TokenStore
}

// NewStaticTokenManager creates a manager for token. An empty token yields
// a manager whose GetToken fails until SetToken is called.
func NewStaticTokenManager(token string) *StaticTokenManager {
	manager := &StaticTokenManager{store: NewTokenStore()}
	if token != "" {
		manager.store.Set(&Token{AccessToken: token, TokenType: "bearer"})
	}

	return manager
}

// GetToken implements TokenManager.
func (m *StaticTokenManager) GetToken(ctx context.Context) (string, error) {
	token := m.store.Get()
	if !token.Valid() {
		return "", ErrNoToken
	}

	return token.AccessToken, nil
}

// RefreshToken implements TokenManager. Static tokens cannot be refreshed.
func (m *StaticTokenManager) RefreshToken(ctx context.Context) error {
	return ErrStaticTokenCannotRefresh
}

// SetToken implements TokenManager.
func (m *StaticTokenManager) SetToken(token string, expiresAt time.Time) {
	m.store.Set(&Token{AccessToken: token, TokenType: "bearer", ExpiresAt: expiresAt})
}
