package supabase

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/supabase-community/gotrue-go/types"
	"github.com/supabase-community/postgrest-go"

	"lorebook/internal/lore"
)

func TestNewRequiresCredentials(t *testing.T) {
	for _, tc := range []struct{ url, key string }{
		{"", "anon"},
		{"https://x.supabase.co", ""},
		{"  ", "  "},
	} {
		_, err := New(tc.url, tc.key, time.Second)
		assert.ErrorIs(t, err, lore.ErrMissingCredential, "url=%q key=%q", tc.url, tc.key)
	}

	c, err := New("https://x.supabase.co/", "anon", 0)
	require.NoError(t, err)
	assert.Equal(t, "https://x.supabase.co", c.BaseURL())
}

func TestRestSendsHeadersAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/entities", r.URL.Path)
		assert.Equal(t, "eq.u1", r.URL.Query().Get("user_id"))
		assert.Equal(t, "created_at.desc.nullslast", r.URL.Query().Get("order"))
		assert.Equal(t, "anon", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"a"},{"id":"b"}]`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, "anon", time.Second)
	require.NoError(t, err)

	rest, call := c.Rest(context.Background(), "tok")
	var out []struct {
		ID string `json:"id"`
	}
	_, err = rest.From("entities").
		Select("*", "", false).
		Eq("user_id", "u1").
		Order("created_at", &postgrest.OrderOpts{}).
		ExecuteTo(&out)
	require.NoError(t, call.Err(err))
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[1].ID)
}

func TestRestFallsBackToAnonKeyAsBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer anon", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, "anon", time.Second)
	require.NoError(t, err)
	rest, call := c.Rest(context.Background(), "")
	_, _, err = rest.From("x").Select("*", "", false).Execute()
	require.NoError(t, call.Err(err))
}

func TestAuthSendsPasswordGrant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "anon", r.Header.Get("apikey"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"email":"a@b.co","password":"pw"}`, string(body))
		_, _ = w.Write([]byte(`{"access_token":"at","refresh_token":"rt","user":{"id":"0b7c9f4e-1d2a-4c3b-8e5f-6a7b8c9d0e1f","email":"a@b.co"}}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, "anon", time.Second)
	require.NoError(t, err)
	gt, call := c.Auth(context.Background(), "")
	resp, err := gt.SignInWithEmailPassword("a@b.co", "pw")
	require.NoError(t, call.Err(err))
	assert.Equal(t, "at", resp.AccessToken)
	assert.Equal(t, "0b7c9f4e-1d2a-4c3b-8e5f-6a7b8c9d0e1f", resp.User.ID.String())
}

func TestCallDecodesErrorBodies(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
		wantText string
	}{
		{"postgrest", 409, `{"code":"23505","message":"duplicate key","details":"Key (id) exists"}`, "23505", "duplicate key"},
		{"gotrue oauth", 400, `{"error":"invalid_grant","error_description":"Invalid login credentials"}`, "", "Invalid login credentials"},
		{"gotrue msg", 422, `{"code":"weak_password","msg":"Password should be at least 6 characters"}`, "weak_password", "Password should be at least 6 characters"},
		{"not json", 502, `<html>bad gateway</html>`, "", "Bad Gateway"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, err := New(srv.URL, "anon", time.Second)
			require.NoError(t, err)
			rest, call := c.Rest(context.Background(), "tok")
			_, _, err = rest.From("entities").Select("*", "", false).Execute()
			err = call.Err(err)

			apiErr, ok := AsAPIError(err)
			require.True(t, ok, "want *APIError, got %T", err)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.Equal(t, tt.wantText, apiErr.Text())
			assert.False(t, IsTransport(err))
		})
	}
}

func TestAuthErrorIsDecoded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"code":"user_already_exists","msg":"User already registered"}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, "anon", time.Second)
	require.NoError(t, err)
	gt, call := c.Auth(context.Background(), "")
	_, err = gt.Signup(types.SignupRequest{Email: "a@b.co", Password: "secret1"})
	apiErr, ok := AsAPIError(call.Err(err))
	require.True(t, ok)
	assert.Equal(t, "user_already_exists", apiErr.Code)
	assert.Equal(t, "User already registered", apiErr.Text())
}

func TestCallTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	c, err := New(base, "anon", time.Second)
	require.NoError(t, err)
	rest, call := c.Rest(context.Background(), "")
	_, _, err = rest.From("entities").Select("*", "", false).Execute()
	err = call.Err(err)
	assert.True(t, IsTransport(err), "got %v", err)
}

func TestCallHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c, err := New(srv.URL, "anon", 10*time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gt, call := c.Auth(ctx, "")
	_, err = gt.SignInWithEmailPassword("a@b.co", "pw")
	err = call.Err(err)
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestCallPassesOtherErrorsThrough(t *testing.T) {
	c, err := New("https://x.supabase.co", "anon", time.Second)
	require.NoError(t, err)
	gt, call := c.Auth(context.Background(), "")
	_, err = gt.RefreshToken("")
	err = call.Err(err)
	assert.ErrorIs(t, err, types.ErrInvalidTokenRequest)
	assert.False(t, IsTransport(err))
}
