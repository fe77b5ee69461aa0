package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/gotrue-go/types"

	"lorebook/internal/lore"
	"lorebook/internal/supabase"
)

// SupabaseProvider authenticates against Supabase GoTrue.
type SupabaseProvider struct {
	client *supabase.Client
	now    func() time.Time
}

// NewSupabaseProvider creates a provider over an existing client.
func NewSupabaseProvider(client *supabase.Client) *SupabaseProvider {
	return &SupabaseProvider{client: client, now: time.Now}
}

func (p *SupabaseProvider) session(r types.Session) (*Session, error) {
	if r.AccessToken == "" || r.User.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: auth response carried no session", lore.ErrUnauthenticated)
	}
	s := &Session{
		UserID:       r.User.ID.String(),
		Email:        r.User.Email,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
	}
	switch {
	case r.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(r.ExpiresAt, 0)
	case r.ExpiresIn > 0:
		s.ExpiresAt = p.now().Add(time.Duration(r.ExpiresIn) * time.Second)
	default:
		if exp, err := tokenExpiry(r.AccessToken); err == nil {
			s.ExpiresAt = exp
		}
	}
	return s, nil
}

// SignIn exchanges email and password for a session.
func (p *SupabaseProvider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	gt, call := p.client.Auth(ctx, "")
	resp, err := gt.SignInWithEmailPassword(email, password)
	if err != nil {
		return nil, classify("sign in", call.Err(err))
	}
	return p.session(resp.Session)
}

// SignUp registers an account. Projects with email confirmation enabled
// answer with the user only.
func (p *SupabaseProvider) SignUp(ctx context.Context, email, password string) (*SignUpResult, error) {
	gt, call := p.client.Auth(ctx, "")
	resp, err := gt.Signup(types.SignupRequest{Email: email, Password: password})
	if err != nil {
		return nil, classify("sign up", call.Err(err))
	}
	res := &SignUpResult{Message: SignUpMessage}
	if resp.User.ID != uuid.Nil {
		res.UserID = resp.User.ID.String()
	}
	if resp.AccessToken != "" {
		s, err := p.session(resp.Session)
		if err != nil {
			return nil, err
		}
		res.Session = s
		res.UserID = s.UserID
	}
	return res, nil
}

// SignOut revokes the session's refresh tokens.
func (p *SupabaseProvider) SignOut(ctx context.Context, s *Session) error {
	gt, call := p.client.Auth(ctx, s.AccessToken)
	if err := gt.Logout(); err != nil {
		return classify("sign out", call.Err(err))
	}
	return nil
}

// Refresh exchanges the refresh token for a new session.
func (p *SupabaseProvider) Refresh(ctx context.Context, s *Session) (*Session, error) {
	gt, call := p.client.Auth(ctx, "")
	resp, err := gt.RefreshToken(s.RefreshToken)
	if err != nil {
		return nil, classify("refresh session", call.Err(err))
	}
	return p.session(resp.Session)
}

func classify(op string, err error) error {
	if supabase.IsTransport(err) {
		return fmt.Errorf("%w: %s: %w", lore.ErrStoreUnavailable, op, err)
	}
	apiErr, ok := supabase.AsAPIError(err)
	if !ok {
		if errors.Is(err, types.ErrInvalidTokenRequest) {
			return fmt.Errorf("%w: %s: %w", lore.ErrValidation, op, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	switch {
	case apiErr.Status >= 500:
		return fmt.Errorf("%w: %s: %s", lore.ErrStoreUnavailable, op, apiErr.Text())
	case apiErr.Status == http.StatusUnprocessableEntity && apiErr.Code != "" && apiErr.Code != "invalid_credentials":
		// weak_password, email_address_invalid, user_already_exists, ...
		return fmt.Errorf("%w: %s", lore.ErrValidation, apiErr.Text())
	}
	return fmt.Errorf("%w: %s", lore.ErrUnauthenticated, apiErr.Text())
}
