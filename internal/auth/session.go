// Package auth is the authentication delegate. A Provider talks to the
// backend (Supabase GoTrue or the local SQLite user table); the Manager
// keeps the current session on disk and refreshes it when it expires.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"lorebook/internal/lore"
)

// SignUpMessage is shown after a successful sign-up.
const SignUpMessage = "Account created! Please check your email to verify (or try signing in if email confirmation is disabled)."

// Session is an authenticated user session.
type Session struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the access token is expired at now, with a
// small margin so a token is not used in its last seconds.
func (s *Session) Expired(now time.Time) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(30 * time.Second).Before(s.ExpiresAt)
}

// SignUpResult is the outcome of a sign-up. Session is nil when the
// backend requires email confirmation before the first sign-in.
type SignUpResult struct {
	Session *Session
	UserID  string
	Message string
}

// Provider is a backend that verifies credentials and issues tokens.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string) (*SignUpResult, error)
	SignOut(ctx context.Context, s *Session) error
	Refresh(ctx context.Context, s *Session) (*Session, error)
}

// Verifier is implemented by providers that can check their own access
// tokens offline. The manager refuses a session whose token fails the
// check or names another user.
type Verifier interface {
	Verify(token string) (userID string, err error)
}

// Unconfigured is the provider used when the backend URL or key is
// missing. Sign-in fails without touching the network.
type Unconfigured struct {
	Reason string
}

func (u Unconfigured) err() error {
	reason := u.Reason
	if reason == "" {
		reason = "auth URL or key not set"
	}
	return fmt.Errorf("%w: %w: %s", lore.ErrStoreUnavailable, lore.ErrMissingCredential, reason)
}

// SignIn always fails.
func (u Unconfigured) SignIn(context.Context, string, string) (*Session, error) {
	return nil, u.err()
}

// SignUp always fails.
func (u Unconfigured) SignUp(context.Context, string, string) (*SignUpResult, error) {
	return nil, u.err()
}

// SignOut has nothing to revoke.
func (u Unconfigured) SignOut(context.Context, *Session) error { return nil }

// Refresh always fails.
func (u Unconfigured) Refresh(context.Context, *Session) (*Session, error) {
	return nil, u.err()
}

// tokenExpiry reads the exp claim of an access token without verifying
// its signature; the backend verifies it on every call.
func tokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, errors.New("token has no exp claim")
	}
	return exp.Time, nil
}

func loadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse session file: %w", err)
	}
	if s.UserID == "" || s.AccessToken == "" {
		return nil, errors.New("session file is incomplete")
	}
	return &s, nil
}

func saveSession(path string, s *Session) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return os.Rename(tmp, path)
}

func removeSession(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
