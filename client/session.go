package client

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/akinalp/pulse/models"
)

// ErrNoSession is returned by Load when nothing is stored.
var ErrNoSession = errors.New("no session")

// Session is the authenticated identity and its credential. A client holds at
// most one at a time.
type Session struct {
	User      models.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// NewSession builds a session from an auth response. The expiry is read from
// the token's exp claim; the signature is the server's business, not ours.
func NewSession(resp *models.AuthResponse) (*Session, error) {
	if resp == nil || resp.User == nil || resp.Token == "" {
		return nil, fmt.Errorf("incomplete auth response")
	}

	claims := &models.TokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(resp.Token, claims); err != nil {
		return nil, fmt.Errorf("parse credential: %w", err)
	}

	s := &Session{User: *resp.User, Token: resp.Token}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

// Expired reports whether the credential is past its expiry at now. A session
// without a known expiry never expires locally; the server will say so.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// SessionStore persists the current session.
type SessionStore interface {
	Save(s *Session) error
	Load() (*Session, error) // ErrNoSession when empty
	Clear() error
}

// MemoryStore keeps the session for the lifetime of the process.
type MemoryStore struct {
	mu      sync.Mutex
	session *Session
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Save(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.session = &cp
	return nil
}

func (m *MemoryStore) Load() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, ErrNoSession
	}
	cp := *m.session
	return &cp, nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}
