package hostedauth

// Package hostedauth implements ports.AuthBackend against the club's hosted
// database-as-a-service auth API. Every request carries the public API key;
// the client keeps the issued tokens so the identity survives restarts when
// a token store is attached.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	domainauth "github.com/iotgcet/club-portal/internal/domain/auth"
	"github.com/iotgcet/club-portal/internal/ports"
)

// TokenStore persists the refresh token between process restarts so
// CurrentIdentity can restore a session. A nil store means sessions live
// only as long as the process.
type TokenStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, refreshToken string) error
	Clear(ctx context.Context) error
}

// Config holds configuration for the hosted backend client.
type Config struct {
	// BaseURL is the backend origin, e.g. "https://club.backend.example".
	BaseURL string
	// APIKey is the public (anon) API key.
	APIKey string
	// HTTPClient is optional; a 15s-timeout client is used when nil.
	HTTPClient *http.Client
	// Tokens is optional refresh-token persistence.
	Tokens TokenStore
}

// Client is the hosted backend adapter.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	tokens     TokenStore

	mu        sync.Mutex
	identity  *domainauth.Identity
	access    string
	refresh   string
	expiresAt time.Time

	subMu   sync.Mutex
	subs    map[int]func(domainauth.Event)
	nextSub int
}

// New constructs a hosted backend client. It fails when the endpoint or key
// is absent; callers treat that as "auth unavailable" rather than crashing.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" || cfg.APIKey == "" {
		return nil, domainauth.ErrBackendUnavailable
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("hostedauth: invalid base URL: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		tokens:     cfg.Tokens,
		subs:       make(map[int]func(domainauth.Event)),
	}, nil
}

// tokenResponse is the backend's token grant payload.
type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int         `json:"expires_in"`
	User         userPayload `json:"user"`
}

type userPayload struct {
	ID       string                    `json:"id"`
	Email    string                    `json:"email"`
	Metadata domainauth.SignupMetadata `json:"user_metadata"`
}

func (u userPayload) identity() domainauth.Identity {
	return domainauth.Identity{
		ID:       u.ID,
		Email:    domainauth.NormalizeEmail(u.Email),
		Metadata: u.Metadata,
	}
}

// errorResponse covers the variations of the backend's error body.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (e errorResponse) text() string {
	for _, s := range []string{e.ErrorDescription, e.Msg, e.Message, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// CurrentIdentity restores any persisted session: the in-memory one when the
// access token is still valid, otherwise a refresh grant from the token
// store. A missing session is nil, nil rather than an error.
func (c *Client) CurrentIdentity(ctx context.Context) (*domainauth.Identity, error) {
	c.mu.Lock()
	if c.identity != nil && time.Now().Before(c.expiresAt) {
		id := *c.identity
		c.mu.Unlock()
		return &id, nil
	}
	refresh := c.refresh
	c.mu.Unlock()

	if refresh == "" && c.tokens != nil {
		stored, err := c.tokens.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load refresh token: %w", err)
		}
		refresh = stored
	}
	if refresh == "" {
		return nil, nil
	}

	tok, err := c.tokenGrant(ctx, "refresh_token", map[string]string{"refresh_token": refresh})
	if err != nil {
		// A dead refresh token is an absent session, not a failure.
		return nil, nil
	}

	id := c.adopt(ctx, tok, domainauth.EventRefreshed)
	return &id, nil
}

// SignIn performs a password grant.
func (c *Client) SignIn(ctx context.Context, creds ports.Credentials) (domainauth.Identity, error) {
	tok, err := c.tokenGrant(ctx, "password", map[string]string{
		"email":    domainauth.NormalizeEmail(creds.Email),
		"password": creds.Password,
	})
	if err != nil {
		return domainauth.Identity{}, err
	}
	return c.adopt(ctx, tok, domainauth.EventSignedIn), nil
}

// SignUp registers a new identity with attached metadata. The profile row
// is created separately and may not exist when this returns.
func (c *Client) SignUp(ctx context.Context, creds ports.Credentials, meta domainauth.SignupMetadata) (domainauth.Identity, error) {
	body := map[string]any{
		"email":    domainauth.NormalizeEmail(creds.Email),
		"password": creds.Password,
		"data":     meta,
	}

	var resp struct {
		userPayload
		User *userPayload `json:"user"`
	}
	if err := c.post(ctx, "/auth/v1/signup", body, "", &resp); err != nil {
		return domainauth.Identity{}, err
	}
	if resp.User != nil {
		return resp.User.identity(), nil
	}
	return resp.userPayload.identity(), nil
}

// SignOut revokes the backend session and clears local tokens. Local state
// is cleared first so a failing revocation never leaves a stuck session.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	access := c.access
	c.identity = nil
	c.access = ""
	c.refresh = ""
	c.mu.Unlock()

	if c.tokens != nil {
		if err := c.tokens.Clear(ctx); err != nil {
			return fmt.Errorf("clear refresh token: %w", err)
		}
	}
	c.emit(domainauth.Event{Kind: domainauth.EventSignedOut})

	if access == "" {
		return nil
	}
	return c.post(ctx, "/auth/v1/logout", nil, access, nil)
}

// Subscribe registers fn on the change feed and returns its unsubscribe.
func (c *Client) Subscribe(fn func(domainauth.Event)) func() {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

// adopt stores a granted token set, persists the refresh token, and emits
// the transition event.
func (c *Client) adopt(ctx context.Context, tok tokenResponse, kind domainauth.EventKind) domainauth.Identity {
	id := tok.User.identity()

	c.mu.Lock()
	c.identity = &id
	c.access = tok.AccessToken
	c.refresh = tok.RefreshToken
	c.expiresAt = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	c.mu.Unlock()

	if c.tokens != nil && tok.RefreshToken != "" {
		// Persistence is best-effort; the session still works in memory.
		_ = c.tokens.Save(ctx, tok.RefreshToken)
	}

	c.emit(domainauth.Event{Kind: kind, Identity: &id})
	return id
}

func (c *Client) tokenGrant(ctx context.Context, grantType string, body map[string]string) (tokenResponse, error) {
	var tok tokenResponse
	path := "/auth/v1/token?grant_type=" + url.QueryEscape(grantType)
	if err := c.post(ctx, path, body, "", &tok); err != nil {
		return tokenResponse{}, err
	}
	return tok, nil
}

// post issues a JSON POST with the API key and optional bearer token, and
// classifies error bodies into typed domain failures.
func (c *Client) post(ctx context.Context, path string, body any, bearer string, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domainauth.ErrBackendUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return classifyError(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// classifyError maps provider error bodies onto the typed failures the rest
// of the application understands.
func classifyError(status int, raw []byte) error {
	var body errorResponse
	_ = json.Unmarshal(raw, &body)
	msg := body.text()
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "already registered"), strings.Contains(lower, "already exists"):
		return domainauth.ErrEmailTaken
	case strings.Contains(lower, "not confirmed"):
		return domainauth.ErrEmailNotConfirmed
	case strings.Contains(lower, "invalid login credentials"), status == http.StatusUnauthorized:
		return domainauth.ErrInvalidCredentials
	}

	if msg == "" {
		msg = http.StatusText(status)
	}
	return fmt.Errorf("backend error (%d): %s", status, msg)
}

func (c *Client) emit(ev domainauth.Event) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for i := 0; i < c.nextSub; i++ {
		if fn, ok := c.subs[i]; ok {
			fn(ev)
		}
	}
}
