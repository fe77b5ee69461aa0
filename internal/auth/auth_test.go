package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lorebook/internal/lore"
	"lorebook/internal/store"
	"lorebook/internal/supabase"
)

type fakeProvider struct {
	signIns   int
	refreshes int
	signOuts  int
	session   *Session
	signUp    *SignUpResult
	err       error
	refresh   func(*Session) (*Session, error)
}

func (f *fakeProvider) SignIn(context.Context, string, string) (*Session, error) {
	f.signIns++
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

func (f *fakeProvider) SignUp(context.Context, string, string) (*SignUpResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.signUp, nil
}

func (f *fakeProvider) SignOut(context.Context, *Session) error {
	f.signOuts++
	return nil
}

func (f *fakeProvider) Refresh(_ context.Context, s *Session) (*Session, error) {
	f.refreshes++
	return f.refresh(s)
}

func TestManagerCurrentWithoutSession(t *testing.T) {
	m := NewManager(&fakeProvider{}, filepath.Join(t.TempDir(), "session.json"))
	_, err := m.Current(context.Background())
	assert.ErrorIs(t, err, lore.ErrUnauthenticated)

	_, err = m.Credentials(context.Background())
	assert.ErrorIs(t, err, lore.ErrUnauthenticated)
}

func TestManagerPersistsAndRestores(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	p := &fakeProvider{session: &Session{
		UserID: "u1", Email: "a@b.co", AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour),
	}}

	m := NewManager(p, path)
	_, err := m.SignIn(context.Background(), " a@b.co ", "secret")
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	restored := NewManager(p, path)
	creds, err := restored.Credentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, store.Credentials{UserID: "u1", AccessToken: "tok"}, creds)

	require.NoError(t, restored.SignOut(context.Background()))
	assert.Equal(t, 1, p.signOuts)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	_, err = restored.Current(context.Background())
	assert.ErrorIs(t, err, lore.ErrUnauthenticated)
}

func TestManagerRefreshesExpiredSession(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p := &fakeProvider{
		session: &Session{UserID: "u1", AccessToken: "old", RefreshToken: "r", ExpiresAt: now.Add(10 * time.Second)},
		refresh: func(s *Session) (*Session, error) {
			return &Session{UserID: s.UserID, AccessToken: "new", RefreshToken: "r2", ExpiresAt: now.Add(time.Hour)}, nil
		},
	}
	m := NewManager(p, "")
	m.now = func() time.Time { return now }

	_, err := m.SignIn(context.Background(), "a@b.co", "secret")
	require.NoError(t, err)

	s, err := m.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new", s.AccessToken)
	assert.Equal(t, 1, p.refreshes)

	_, err = m.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, p.refreshes, "fresh session is not refreshed again")
}

func TestManagerDropsSessionWhenRefreshRejected(t *testing.T) {
	now := time.Now()
	p := &fakeProvider{
		session: &Session{UserID: "u1", AccessToken: "old", RefreshToken: "r", ExpiresAt: now.Add(-time.Minute)},
		refresh: func(*Session) (*Session, error) {
			return nil, errors.Join(lore.ErrUnauthenticated, errors.New("refresh token revoked"))
		},
	}
	m := NewManager(p, filepath.Join(t.TempDir(), "s.json"))
	_, err := m.SignIn(context.Background(), "a@b.co", "secret")
	require.NoError(t, err)

	_, err = m.Current(context.Background())
	assert.ErrorIs(t, err, lore.ErrUnauthenticated)
	_, err = m.Current(context.Background())
	assert.ErrorIs(t, err, lore.ErrUnauthenticated)
	assert.Equal(t, 1, p.refreshes)
}

func TestManagerSignUpValidation(t *testing.T) {
	m := NewManager(&fakeProvider{signUp: &SignUpResult{}}, "")
	tests := []struct {
		email, password, want string
	}{
		{"", "secret1", "email is required"},
		{"not-an-email", "secret1", "not a valid email"},
		{"a@b.co", "", "password is required"},
		{"a@b.co", "123", "at least 6"},
	}
	for _, tt := range tests {
		_, err := m.SignUp(context.Background(), tt.email, tt.password)
		require.ErrorIs(t, err, lore.ErrValidation)
		assert.Contains(t, err.Error(), tt.want)
	}

	res, err := m.SignUp(context.Background(), "a@b.co", "secret1")
	require.NoError(t, err)
	assert.Equal(t, SignUpMessage, res.Message)
	assert.Nil(t, res.Session)
}

func TestManagerSignInRequiresBothFields(t *testing.T) {
	p := &fakeProvider{}
	m := NewManager(p, "")
	_, err := m.SignIn(context.Background(), "a@b.co", "")
	assert.ErrorIs(t, err, lore.ErrValidation)
	assert.Zero(t, p.signIns)
}

func newGoTrue(t *testing.T, h http.HandlerFunc) *SupabaseProvider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := supabase.New(srv.URL, "anon", 2*time.Second)
	require.NoError(t, err)
	return NewSupabaseProvider(c)
}

func TestSupabaseSignIn(t *testing.T) {
	p := newGoTrue(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"email":"a@b.co","password":"pw"}`, string(body))
		_, _ = w.Write([]byte(`{"access_token":"at","token_type":"bearer","expires_in":3600,"expires_at":1714564800,"refresh_token":"rt","user":{"id":"0b7c9f4e-1d2a-4c3b-8e5f-6a7b8c9d0e1f","email":"a@b.co"}}`))
	})

	s, err := p.SignIn(context.Background(), "a@b.co", "pw")
	require.NoError(t, err)
	assert.Equal(t, "0b7c9f4e-1d2a-4c3b-8e5f-6a7b8c9d0e1f", s.UserID)
	assert.Equal(t, "rt", s.RefreshToken)
	assert.Equal(t, int64(1714564800), s.ExpiresAt.Unix())
}

func TestSupabaseSignInBadCredentials(t *testing.T) {
	p := newGoTrue(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
	})
	_, err := p.SignIn(context.Background(), "a@b.co", "wrong")
	require.ErrorIs(t, err, lore.ErrUnauthenticated)
	assert.Contains(t, err.Error(), "Invalid login credentials")
}

func TestSupabaseSignUpNeedsConfirmation(t *testing.T) {
	p := newGoTrue(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/signup", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"9a8b7c6d-5e4f-4a3b-9c2d-1e0f9a8b7c6d","email":"a@b.co","confirmation_sent_at":"2024-05-01T00:00:00Z"}`))
	})
	res, err := p.SignUp(context.Background(), "a@b.co", "secret1")
	require.NoError(t, err)
	assert.Nil(t, res.Session)
	assert.Equal(t, "9a8b7c6d-5e4f-4a3b-9c2d-1e0f9a8b7c6d", res.UserID)
	assert.Equal(t, SignUpMessage, res.Message)
}

func TestSupabaseSignUpWeakPassword(t *testing.T) {
	p := newGoTrue(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"code":"weak_password","msg":"Password should be at least 6 characters."}`))
	})
	_, err := p.SignUp(context.Background(), "a@b.co", "x")
	assert.ErrorIs(t, err, lore.ErrValidation)
}

func TestSupabaseExpiryFromTokenClaim(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1", "exp": exp.Unix(),
	}).SignedString([]byte("whatever"))
	require.NoError(t, err)

	p := newGoTrue(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  token,
			"refresh_token": "rt",
			"user":          map[string]string{"id": "0b7c9f4e-1d2a-4c3b-8e5f-6a7b8c9d0e1f"},
		})
	})
	s, err := p.Refresh(context.Background(), &Session{RefreshToken: "rt"})
	require.NoError(t, err)
	assert.True(t, s.ExpiresAt.Equal(exp), "got %v", s.ExpiresAt)
}

func TestSupabaseUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()
	c, err := supabase.New(base, "anon", time.Second)
	require.NoError(t, err)

	_, err = NewSupabaseProvider(c).SignIn(context.Background(), "a@b.co", "pw")
	assert.ErrorIs(t, err, lore.ErrStoreUnavailable)
}

func newLocal(t *testing.T) *LocalProvider {
	t.Helper()
	dir := t.TempDir()
	db, err := store.OpenDB(filepath.Join(dir, "lore.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	p, err := NewLocalProvider(db, filepath.Join(dir, "local.key"), time.Hour)
	require.NoError(t, err)
	return p
}

func TestLocalSignUpSignIn(t *testing.T) {
	p := newLocal(t)
	ctx := context.Background()

	res, err := p.SignUp(ctx, "Mira@Example.com", "secret1")
	require.NoError(t, err)
	require.NotNil(t, res.Session)

	uid, err := p.Verify(res.Session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.UserID, uid)

	_, err = p.SignUp(ctx, "mira@example.com", "another1")
	assert.ErrorIs(t, err, lore.ErrValidation, "duplicate email")

	s, err := p.SignIn(ctx, "mira@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, res.UserID, s.UserID)

	_, err = p.SignIn(ctx, "mira@example.com", "wrong")
	assert.ErrorIs(t, err, lore.ErrUnauthenticated)
	_, err = p.SignIn(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, lore.ErrUnauthenticated)
}

func TestLocalRefreshAndTokenUse(t *testing.T) {
	p := newLocal(t)
	ctx := context.Background()
	res, err := p.SignUp(ctx, "a@b.co", "secret1")
	require.NoError(t, err)

	_, err = p.Verify(res.Session.RefreshToken)
	assert.ErrorIs(t, err, lore.ErrUnauthenticated, "refresh token is not an access token")

	fresh, err := p.Refresh(ctx, res.Session)
	require.NoError(t, err)
	assert.Equal(t, res.UserID, fresh.UserID)

	_, err = p.Refresh(ctx, &Session{RefreshToken: res.Session.AccessToken})
	assert.ErrorIs(t, err, lore.ErrUnauthenticated)

	p.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = p.Verify(fresh.AccessToken)
	assert.ErrorIs(t, err, lore.ErrUnauthenticated, "expired access token")
}

func TestLocalSecretIsReused(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "local.key")
	a, err := loadOrCreateSecret(path)
	require.NoError(t, err)
	b, err := loadOrCreateSecret(path)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestUnconfiguredProvider(t *testing.T) {
	m := NewManager(Unconfigured{}, filepath.Join(t.TempDir(), "session.json"))

	_, err := m.SignIn(context.Background(), "a@b.co", "secret1")
	assert.ErrorIs(t, err, lore.ErrMissingCredential)
	assert.ErrorIs(t, err, lore.ErrStoreUnavailable)

	_, err = m.SignUp(context.Background(), "a@b.co", "secret1")
	assert.ErrorIs(t, err, lore.ErrMissingCredential)

	assert.NoError(t, Unconfigured{}.SignOut(context.Background(), nil))
}

func TestRevokeKeepsLaterSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	first := &Session{UserID: "u1", Email: "a@b.co", AccessToken: "first", ExpiresAt: time.Now().Add(time.Hour)}
	p := &fakeProvider{session: first}
	m := NewManager(p, path)
	ctx := context.Background()

	_, err := m.SignIn(ctx, "a@b.co", "secret1")
	require.NoError(t, err)
	ended := m.Forget()
	require.NotNil(t, ended)
	assert.Equal(t, "first", ended.AccessToken)

	p.session = &Session{UserID: "u1", Email: "a@b.co", AccessToken: "second", ExpiresAt: time.Now().Add(time.Hour)}
	_, err = m.SignIn(ctx, "a@b.co", "secret1")
	require.NoError(t, err)

	require.NoError(t, m.Revoke(ctx, ended))
	assert.Equal(t, 1, p.signOuts)

	cur, err := m.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", cur.AccessToken)
	restored, err := NewManager(p, path).Current(ctx)
	require.NoError(t, err, "session file of the later sign-in survives")
	assert.Equal(t, "second", restored.AccessToken)

	assert.NoError(t, m.Revoke(ctx, nil))
	assert.Equal(t, 1, p.signOuts)
}

func TestLocalSessionFileMustCarryValidToken(t *testing.T) {
	dir := t.TempDir()
	db, err := store.OpenDB(filepath.Join(dir, "lore.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	p, err := NewLocalProvider(db, filepath.Join(dir, "local.key"), time.Hour)
	require.NoError(t, err)
	ctx := context.Background()
	path := filepath.Join(dir, "session.json")

	victim := NewManager(p, path)
	res, err := victim.SignUp(ctx, "victim@example.com", "secret1")
	require.NoError(t, err)
	victimStore, err := store.NewSQLiteStore(db, victim)
	require.NoError(t, err)
	_, err = victimStore.Create(ctx, lore.NewPlace(res.UserID, "Secret", "", "Vault"))
	require.NoError(t, err)

	other, err := p.SignUp(ctx, "other@example.com", "secret1")
	require.NoError(t, err)

	for name, forged := range map[string]*Session{
		"not a token":       {UserID: res.UserID, AccessToken: "not-a-jwt"},
		"another user's":    {UserID: res.UserID, AccessToken: other.Session.AccessToken},
		"refresh as access": {UserID: res.UserID, AccessToken: res.Session.RefreshToken},
	} {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, saveSession(path, forged))
			m := NewManager(p, path)
			s, err := store.NewSQLiteStore(db, m)
			require.NoError(t, err)

			_, err = s.List(ctx, res.UserID)
			assert.ErrorIs(t, err, lore.ErrUnauthenticated)
			_, statErr := os.Stat(path)
			assert.True(t, os.IsNotExist(statErr), "rejected session file is removed")
		})
	}

	require.NoError(t, saveSession(path, res.Session))
	got, err := victimStore.List(ctx, res.UserID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Secret", got[0].Name)
}
