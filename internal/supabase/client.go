// Package supabase binds the Supabase client libraries lorebook uses,
// postgrest-go for /rest/v1 and gotrue-go for /auth/v1, to one project
// and to the caller's context.
//
// Neither library takes a context or exposes the response status, so every
// call goes through a Call: an http.RoundTripper that applies the context
// and timeout and keeps the failed response for classification.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/postgrest-go"

	"lorebook/internal/logging"
	"lorebook/internal/lore"
)

// Client holds the project coordinates shared by the REST and auth clients.
type Client struct {
	baseURL   string
	anonKey   string
	timeout   time.Duration
	transport http.RoundTripper
}

// New creates a client. An empty URL or key yields lore.ErrMissingCredential.
func New(baseURL, anonKey string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	anonKey = strings.TrimSpace(anonKey)
	if baseURL == "" || anonKey == "" {
		return nil, fmt.Errorf("%w: supabase url and anon key are required", lore.ErrMissingCredential)
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("%w: invalid supabase url %q: %v", lore.ErrMissingCredential, baseURL, err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:   baseURL,
		anonKey:   anonKey,
		timeout:   timeout,
		transport: http.DefaultTransport,
	}, nil
}

// BaseURL returns the project URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Rest returns a PostgREST client for one call. The user's access token
// is sent as the bearer; the anon key is used when token is empty.
func (c *Client) Rest(ctx context.Context, token string) (*postgrest.Client, *Call) {
	call := c.newCall(ctx)
	if token == "" {
		token = c.anonKey
	}
	rest := postgrest.NewClient(c.baseURL+"/rest/v1", "public", nil).
		SetApiKey(c.anonKey).
		SetAuthToken(token)
	rest.Transport.Parent = call
	return rest, call
}

// Auth returns a GoTrue client for one call, authenticated as token when
// it is non-empty.
func (c *Client) Auth(ctx context.Context, token string) (gotrue.Client, *Call) {
	call := c.newCall(ctx)
	auth := gotrue.New("", c.anonKey).
		WithCustomGoTrueURL(c.baseURL + "/auth/v1").
		WithClient(http.Client{Transport: call})
	if token != "" {
		auth = auth.WithToken(token)
	}
	return auth, call
}

func (c *Client) newCall(ctx context.Context) *Call {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Call{ctx: ctx, timeout: c.timeout, base: c.transport}
}

// Call is one exchange made through a library client.
type Call struct {
	ctx     context.Context
	timeout time.Duration
	base    http.RoundTripper

	mu           sync.Mutex
	status       int
	body         []byte
	transportErr error
}

// RoundTrip sends the request under the call's context and buffers the
// response body so the deadline can be released here.
func (c *Call) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.base.RoundTrip(req.WithContext(ctx))
	if err != nil {
		logging.Get(logging.CategoryAPI).Warn("%s %s failed after %v: %v", req.Method, req.URL.Path, time.Since(start), err)
		c.record(0, nil, err)
		return nil, err
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		err = fmt.Errorf("read response: %w", err)
		c.record(0, nil, err)
		return nil, err
	}
	logging.APIDebug("%s %s -> %d in %v", req.Method, req.URL.Path, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.record(resp.StatusCode, data, nil)
	}
	resp.Body = io.NopCloser(bytes.NewReader(data))
	resp.ContentLength = int64(len(data))
	return resp, nil
}

func (c *Call) record(status int, body []byte, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status, c.body, c.transportErr = status, body, err
}

// Err turns the error a library method returned into a *TransportError
// when no response arrived, or an *APIError decoded from the failed
// response. Other errors (request building, decoding) pass through.
func (c *Call) Err(err error) error {
	if err == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.transportErr != nil:
		return &TransportError{Err: c.transportErr}
	case c.status != 0:
		apiErr := &APIError{Status: c.status}
		_ = json.Unmarshal(c.body, apiErr)
		return apiErr
	}
	return err
}

// APIError is a non-2xx response. It carries whichever of the PostgREST
// ({code,message,details,hint}) or GoTrue ({error,error_description} or
// {code,msg}) fields the body had.
type APIError struct {
	Status           int
	Code             string `json:"code"`
	Message          string `json:"message"`
	Details          string `json:"details"`
	Hint             string `json:"hint"`
	Msg              string `json:"msg"`
	ErrorName        string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (e *APIError) Error() string {
	text := firstNonEmpty(e.Message, e.Msg, e.ErrorDescription, e.ErrorName, http.StatusText(e.Status))
	if e.Code != "" {
		text = e.Code + ": " + text
	}
	if e.Details != "" {
		text += " (" + e.Details + ")"
	}
	return fmt.Sprintf("supabase %d: %s", e.Status, text)
}

// Text returns the human-readable part of the error.
func (e *APIError) Text() string {
	return firstNonEmpty(e.ErrorDescription, e.Msg, e.Message, e.ErrorName, http.StatusText(e.Status))
}

// TransportError wraps failures that never produced an HTTP response.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "supabase unreachable: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is a transport-level failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// AsAPIError extracts an APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
