// Package session holds the process-wide login state. It is read from its
// store once at Init and cleared by Teardown on logout or a 401.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kiranshivaraju/pilotwatch/pkg/models"
)

var ErrNotInitialized = errors.New("session not initialized")

// Credentials is what a login leaves behind: the bearer token and the user it belongs to.
type Credentials struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresAt   time.Time   `json:"expires_at"`
	User        models.User `json:"user_info"`
}

// Expired reports whether the token is past its expiry. A zero ExpiresAt never expires.
func (c *Credentials) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// TokenStore persists credentials between process runs.
// Implementations must be safe for concurrent use.
type TokenStore interface {
	Load(ctx context.Context) (*Credentials, bool, error)
	Save(ctx context.Context, creds *Credentials) error
	Clear(ctx context.Context) error
}

// Session is injected into every component that needs to know who is logged in.
type Session struct {
	store TokenStore
	now   func() time.Time

	mu          sync.RWMutex
	creds       *Credentials
	initialized bool
	hooks       []func()
}

// New creates a Session backed by store. Call Init before use.
func New(store TokenStore) *Session {
	return &Session{store: store, now: time.Now}
}

// Init reads the store once. Expired credentials are discarded and cleared.
// Later calls are no-ops.
func (s *Session) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}

	creds, found, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}
	s.initialized = true

	if !found {
		return nil
	}
	if creds.AccessToken == "" || creds.Expired(s.now()) {
		if err := s.store.Clear(ctx); err != nil {
			return fmt.Errorf("clearing expired session: %w", err)
		}
		return nil
	}

	s.creds = creds
	return nil
}

// Token returns the bearer token, or "" when logged out or expired.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.creds == nil || s.creds.Expired(s.now()) {
		return ""
	}
	return s.creds.AccessToken
}

// User returns the logged-in user.
func (s *Session) User() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.creds == nil || s.creds.Expired(s.now()) {
		return models.User{}, false
	}
	return s.creds.User, true
}

func (s *Session) LoggedIn() bool {
	return s.Token() != ""
}

// Establish stores a successful login in memory and in the store.
func (s *Session) Establish(ctx context.Context, resp models.LoginResponse) error {
	if resp.AccessToken == "" {
		return errors.New("login response has no access token")
	}

	creds := &Credentials{
		AccessToken: resp.AccessToken,
		TokenType:   resp.TokenType,
		User:        resp.User,
	}
	if resp.ExpiresIn > 0 {
		creds.ExpiresAt = s.now().Add(time.Duration(resp.ExpiresIn) * time.Second).UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	if err := s.store.Save(ctx, creds); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	s.creds = creds
	return nil
}

// Teardown drops the credentials from memory and the store, then runs the
// OnTeardown hooks. The in-memory state is cleared even if the store fails.
func (s *Session) Teardown(ctx context.Context) error {
	s.mu.Lock()
	s.creds = nil
	hooks := append([]func(){}, s.hooks...)
	s.mu.Unlock()

	err := s.store.Clear(ctx)

	for _, h := range hooks {
		h()
	}

	if err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

// OnTeardown registers fn to run after every Teardown.
func (s *Session) OnTeardown(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}
