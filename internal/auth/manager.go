package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"lorebook/internal/logging"
	"lorebook/internal/lore"
	"lorebook/internal/store"
)

var validate = validator.New()

type credentialsInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6,max=72"`
}

func checkCredentials(email, password string) error {
	err := validate.Struct(credentialsInput{Email: email, Password: password})
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %v", lore.ErrValidation, err)
	}
	fe := fieldErrs[0]
	switch {
	case fe.Field() == "Email" && fe.Tag() == "required":
		return fmt.Errorf("%w: email is required", lore.ErrValidation)
	case fe.Field() == "Email":
		return fmt.Errorf("%w: %q is not a valid email address", lore.ErrValidation, email)
	case fe.Tag() == "required":
		return fmt.Errorf("%w: password is required", lore.ErrValidation)
	case fe.Tag() == "min":
		return fmt.Errorf("%w: password must be at least %s characters", lore.ErrValidation, fe.Param())
	}
	return fmt.Errorf("%w: password must be at most %s characters", lore.ErrValidation, fe.Param())
}

// Manager owns the current session: it signs in and out through a
// Provider and persists the session to a file so later runs reuse it.
type Manager struct {
	provider Provider
	path     string
	now      func() time.Time

	mu      sync.Mutex
	current *Session
}

// NewManager creates a manager persisting to path. An empty path keeps
// the session in memory only.
func NewManager(provider Provider, path string) *Manager {
	return &Manager{provider: provider, path: path, now: time.Now}
}

// SignIn authenticates and persists the session.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", lore.ErrValidation)
	}
	s, err := m.provider.SignIn(ctx, email, password)
	if err != nil {
		logging.Get(logging.CategorySession).Warn("sign-in failed for %s: %v", email, err)
		return nil, err
	}
	if err := m.set(s); err != nil {
		return nil, err
	}
	logging.Session("signed in as %s (%s)", s.Email, s.UserID)
	return s, nil
}

// SignUp registers a new account. When the backend returns a session the
// user is signed in immediately.
func (m *Manager) SignUp(ctx context.Context, email, password string) (*SignUpResult, error) {
	email = strings.TrimSpace(email)
	if err := checkCredentials(email, password); err != nil {
		return nil, err
	}
	res, err := m.provider.SignUp(ctx, email, password)
	if err != nil {
		logging.Get(logging.CategorySession).Warn("sign-up failed for %s: %v", email, err)
		return nil, err
	}
	if res.Message == "" {
		res.Message = SignUpMessage
	}
	if res.Session != nil {
		if err := m.set(res.Session); err != nil {
			return nil, err
		}
	}
	logging.Session("signed up %s (session issued: %v)", email, res.Session != nil)
	return res, nil
}

// SignOut ends the session: Forget, then Revoke.
func (m *Manager) SignOut(ctx context.Context) error {
	return m.Revoke(ctx, m.Forget())
}

// Forget drops the current session and its file and returns it so the
// backend can be told later. It never touches the network.
func (m *Manager) Forget() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.current
	m.current = nil
	if s == nil && m.path != "" {
		s, _ = loadSession(m.path)
	}
	if m.path != "" {
		if err := removeSession(m.path); err != nil {
			logging.Get(logging.CategorySession).Warn("remove session file: %v", err)
		}
	}
	logging.Session("signed out")
	return s
}

// Revoke tells the backend that s has ended. It does not change the
// current session, which may already belong to a later sign-in.
func (m *Manager) Revoke(ctx context.Context, s *Session) error {
	if s == nil {
		return nil
	}
	if err := m.provider.SignOut(ctx, s); err != nil {
		logging.Get(logging.CategorySession).Warn("remote sign-out failed: %v", err)
		return err
	}
	return nil
}

// Current returns the active session, restoring it from disk and
// refreshing it when expired. Returns lore.ErrUnauthenticated when there
// is none.
func (m *Manager) Current(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil && m.path != "" {
		s, err := loadSession(m.path)
		switch {
		case err == nil:
			m.current = s
			logging.SessionDebug("restored session for %s", s.UserID)
		case !errors.Is(err, os.ErrNotExist):
			logging.Get(logging.CategorySession).Warn("ignoring unreadable session: %v", err)
		}
	}
	if m.current == nil {
		return nil, fmt.Errorf("%w: no active session", lore.ErrUnauthenticated)
	}

	if m.current.Expired(m.now()) {
		if m.current.RefreshToken == "" {
			m.dropLocked()
			return nil, fmt.Errorf("%w: session expired", lore.ErrUnauthenticated)
		}
		fresh, err := m.provider.Refresh(ctx, m.current)
		if err != nil {
			if errors.Is(err, lore.ErrUnauthenticated) {
				m.dropLocked()
			}
			return nil, err
		}
		m.current = fresh
		if m.path != "" {
			if err := saveSession(m.path, fresh); err != nil {
				logging.Get(logging.CategorySession).Warn("could not persist refreshed session: %v", err)
			}
		}
		logging.Session("refreshed session for %s", fresh.UserID)
	}

	if v, ok := m.provider.(Verifier); ok {
		uid, err := v.Verify(m.current.AccessToken)
		if err != nil || uid != m.current.UserID {
			logging.Get(logging.CategorySession).Warn("discarding session for %s: access token rejected", m.current.UserID)
			m.dropLocked()
			return nil, fmt.Errorf("%w: session token rejected", lore.ErrUnauthenticated)
		}
	}

	s := *m.current
	return &s, nil
}

// Credentials implements store.Principal.
func (m *Manager) Credentials(ctx context.Context) (store.Credentials, error) {
	s, err := m.Current(ctx)
	if err != nil {
		return store.Credentials{}, err
	}
	return store.Credentials{UserID: s.UserID, AccessToken: s.AccessToken}, nil
}

func (m *Manager) set(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = s
	if m.path == "" {
		return nil
	}
	if err := saveSession(m.path, s); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

func (m *Manager) dropLocked() {
	m.current = nil
	if m.path != "" {
		_ = removeSession(m.path)
	}
}

var _ store.Principal = (*Manager)(nil)
