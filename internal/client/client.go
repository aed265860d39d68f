// Package client talks to the auth service on behalf of an end user. It keeps
// the session in a TokenStore and transparently refreshes an expired access
// token once per failed request.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/JaiminPatel345/glowup-sub002/internal/domain"
)

const defaultTimeout = 30 * time.Second

// ErrSessionExpired means the refresh token was rejected and the stored session
// has been cleared. The user has to sign in again.
var ErrSessionExpired = errors.New("session expired")

// APIError is a non-2xx answer from the service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("auth service: %d %s", e.Status, e.Message)
}

type Client struct {
	baseURL string
	store   TokenStore
	anon    *http.Client
	authed  *http.Client
	group   singleflight.Group
}

type Option func(*options)

type options struct {
	timeout   time.Duration
	transport http.RoundTripper
}

func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithTransport replaces the underlying transport, http.DefaultTransport by default.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// New returns a client for the API rooted at baseURL, e.g. https://api.example.com/api/v1.
func New(baseURL string, store TokenStore, opts ...Option) *Client {
	o := options{timeout: defaultTimeout, transport: http.DefaultTransport}
	for _, opt := range opts {
		opt(&o)
	}
	c := &Client{baseURL: strings.TrimRight(baseURL, "/"), store: store}
	c.anon = &http.Client{Timeout: o.timeout, Transport: o.transport}
	c.authed = &http.Client{Timeout: o.timeout, Transport: &bearerTransport{client: c, base: o.transport}}
	return c
}

type RegisterRequest struct {
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	FirstName string  `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
}

type sessionResponse struct {
	User         domain.Profile `json:"user"`
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
}

func (c *Client) Register(ctx context.Context, in RegisterRequest) (*domain.Profile, error) {
	var out sessionResponse
	if err := c.call(ctx, c.anon, http.MethodPost, "/auth/register", in, &out); err != nil {
		return nil, err
	}
	return &out.User, c.store.Save(Session{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken})
}

func (c *Client) Login(ctx context.Context, email, password string) (*domain.Profile, error) {
	var out sessionResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.call(ctx, c.anon, http.MethodPost, "/auth/login", body, &out); err != nil {
		return nil, err
	}
	return &out.User, c.store.Save(Session{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken})
}

// Logout revokes the refresh token on the server and always clears the local
// session, even if the server cannot be reached.
func (c *Client) Logout(ctx context.Context) error {
	if sess, err := c.store.Load(); err == nil && sess.RefreshToken != "" {
		_ = c.call(ctx, c.anon, http.MethodPost, "/auth/logout", map[string]string{"refreshToken": sess.RefreshToken}, nil)
	}
	return c.store.Clear()
}

func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	body := map[string]string{"currentPassword": current, "newPassword": next}
	return c.call(ctx, c.authed, http.MethodPost, "/auth/change-password", body, nil)
}

func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	return c.call(ctx, c.anon, http.MethodPost, "/auth/reset-password", map[string]string{"email": email}, nil)
}

func (c *Client) Me(ctx context.Context) (*domain.Profile, error) {
	var out struct {
		User domain.Profile `json:"user"`
	}
	if err := c.call(ctx, c.authed, http.MethodGet, "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func (c *Client) call(ctx context.Context, hc *http.Client, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			return ErrSessionExpired
		}
		return err
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)
	if resp.StatusCode >= http.StatusBadRequest {
		return &APIError{Status: resp.StatusCode, Message: env.Error}
	}
	if decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}
	if out != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

// refresh exchanges the stored refresh token for a new pair. Concurrent callers
// share one exchange. stale is the access token the caller saw rejected; if the
// store already holds a different one, another request refreshed in the meantime.
func (c *Client) refresh(ctx context.Context, stale string) (string, error) {
	v, err, _ := c.group.Do("refresh", func() (interface{}, error) {
		sess, err := c.store.Load()
		if err != nil || sess.RefreshToken == "" {
			return "", ErrSessionExpired
		}
		if sess.AccessToken != "" && sess.AccessToken != stale {
			return sess.AccessToken, nil
		}
		var out struct {
			AccessToken  string `json:"accessToken"`
			RefreshToken string `json:"refreshToken"`
		}
		err = c.call(ctx, c.anon, http.MethodPost, "/auth/refresh", map[string]string{"refreshToken": sess.RefreshToken}, &out)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
			_ = c.store.Clear()
			return "", ErrSessionExpired
		}
		if err != nil {
			return "", err
		}
		if err := c.store.Save(Session{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken}); err != nil {
			return "", err
		}
		return out.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// bearerTransport attaches the stored access token and, on a 401, refreshes the
// session and retries the request exactly once. A second 401 clears the store.
type bearerTransport struct {
	client *Client
	base   http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	sess, err := t.client.store.Load()
	if err != nil {
		return nil, ErrSessionExpired
	}
	resp, err := t.base.RoundTrip(withBearer(req, sess.AccessToken))
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	access, err := t.client.refresh(req.Context(), sess.AccessToken)
	if err != nil {
		return nil, err
	}
	retry := withBearer(req, access)
	if req.GetBody != nil {
		if retry.Body, err = req.GetBody(); err != nil {
			return nil, err
		}
	}
	resp, err = t.base.RoundTrip(retry)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	// A fresh token was rejected too: the server no longer accepts this session.
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	_ = t.client.store.Clear()
	return nil, ErrSessionExpired
}

func withBearer(req *http.Request, token string) *http.Request {
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}

// UserMessage turns an error from Client into text fit for an end user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrSessionExpired) {
		return "Your session has expired, please sign in again"
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == http.StatusUnauthorized:
			return "Please check your credentials and try again"
		case apiErr.Status == http.StatusTooManyRequests:
			return "Too many attempts, please try again later"
		case apiErr.Status < http.StatusInternalServerError && apiErr.Message != "":
			return apiErr.Message
		}
	}
	return "Something went wrong, please try again"
}
