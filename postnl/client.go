// Package postnl is a client for the PostNL consumer portal. It logs in with
// the portal account, keeps a bearer token valid and fetches the parcel inbox.
//
// Usage:
//
//	pending, err := postnl.New(cfg)
//	client, err := pending.Login(ctx, username, password)
//	packages, err := client.GetPackages(ctx)
package postnl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/oauth2"

	"github.com/al-bashkir/postnl-go/internal/auth"
)

const inboxPath = "/web/api/default/inbox"

// ErrUnauthorized is returned when the resource API rejects the bearer token.
// The cached token is dropped so the next call mints a new one.
var ErrUnauthorized = errors.New("portal rejected the access token")

// Option customizes a client.
type Option func(*options)

type options struct {
	transport http.RoundTripper
	authOpts  []auth.Option
}

// WithTransport replaces the round tripper for both the login session and the
// resource API.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.transport = rt
		o.authOpts = append(o.authOpts, auth.WithTransport(rt))
	}
}

// Pending is a client that has not logged in yet.
type Pending struct {
	cfg     Config
	handler *auth.New
	api     *http.Client
}

// New creates a client for the portal described by cfg. Start from
// DefaultConfig or LoadConfig.
func New(cfg *Config, opts ...Option) (*Pending, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	authOpts := append([]auth.Option{auth.WithTimeout(cfg.HTTP.RequestTimeout())}, o.authOpts...)
	handler, err := auth.NewHandler(&cfg.Portal, &cfg.Login, authOpts...)
	if err != nil {
		return nil, err
	}

	base := o.transport
	if base == nil {
		base = http.DefaultTransport
	}

	return &Pending{
		cfg:     *cfg,
		handler: handler,
		api: &http.Client{
			Transport: &headerTransport{
				base:       base,
				userAgent:  cfg.Portal.UserAgent,
				apiVersion: cfg.Portal.APIVersion,
			},
			Timeout: cfg.HTTP.RequestTimeout(),
		},
	}, nil
}

// Login authenticates with the portal. The first token is minted on the
// first call that needs one, reusing this login.
func (p *Pending) Login(ctx context.Context, username, password string) (*Client, error) {
	l, err := p.handler.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return p.client(l), nil
}

// Resume returns a client without logging in. Use it with SetToken to
// reinstate a stored token; the credentials are used once the token can no
// longer be refreshed.
func (p *Pending) Resume(username, password string) (*Client, error) {
	l, err := p.handler.Resume(username, password)
	if err != nil {
		return nil, err
	}
	return p.client(l), nil
}

func (p *Pending) client(l *auth.LoggedIn) *Client {
	return &Client{
		auth:      l,
		api:       p.api,
		apiBase:   p.cfg.Portal.APIBase(),
		serialize: p.cfg.Login.Serialize,
	}
}

// Client is a logged in portal client. It is safe for concurrent use.
//
// Concurrent callers that all find the token slot empty or expired each mint
// a token; the last one stored wins. Set login.serialize to run one token
// computation at a time instead.
type Client struct {
	auth      *auth.LoggedIn
	api       *http.Client
	apiBase   string
	serialize bool

	mu    sync.Mutex // guards token
	token *auth.Token

	flight sync.Mutex // held across a token computation when serialize is set
}

// Authenticate returns a valid access token, refreshing or logging in again
// when the cached one has expired.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	tok, err := c.authenticate(ctx)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

func (c *Client) authenticate(ctx context.Context) (*auth.Token, error) {
	if c.serialize {
		c.flight.Lock()
		defer c.flight.Unlock()
	}

	c.mu.Lock()
	cached := c.token
	c.token = nil
	c.mu.Unlock()

	tok, err := c.auth.Refresh(ctx, cached)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.token = tok
	c.mu.Unlock()

	return tok, nil
}

// GetToken returns a copy of a valid token for persistence.
func (c *Client) GetToken(ctx context.Context) (*Token, error) {
	tok, err := c.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	cp := *tok
	return &cp, nil
}

// SetToken reinstates a stored token. It is refreshed on first use if it has
// expired.
func (c *Client) SetToken(tok *Token) {
	var cp *auth.Token
	if tok != nil {
		t := *tok
		cp = &t
	}

	c.mu.Lock()
	c.token = cp
	c.mu.Unlock()
}

func (c *Client) invalidate() {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()
}

// Username returns the account the client logs in with.
func (c *Client) Username() string {
	return c.auth.Username()
}

// Identity returns the account details from the current id token.
func (c *Client) Identity(ctx context.Context) (*Identity, error) {
	tok, err := c.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	return c.auth.Identity(ctx, tok)
}

// TokenSource exposes the client as an oauth2.TokenSource bound to ctx.
func (c *Client) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, c: c}
}

type tokenSource struct {
	ctx context.Context
	c   *Client
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.c.authenticate(s.ctx)
	if err != nil {
		return nil, err
	}
	return tok.OAuth2(), nil
}

// HTTPClient returns an HTTP client that sends the portal headers and a valid
// bearer token with every request.
func (c *Client) HTTPClient(ctx context.Context) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: c.TokenSource(ctx),
			Base:   c.api.Transport,
		},
		Timeout: c.api.Timeout,
	}
}

type inboxResponse struct {
	Receiver []InboxPackage `json:"receiver"`
}

// GetPackages returns the packages in the inbox that are addressed to the
// account.
func (c *Client) GetPackages(ctx context.Context) ([]InboxPackage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+inboxPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create inbox request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient(ctx).Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch inbox: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		c.invalidate()
		return nil, ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("inbox request failed with status %d", resp.StatusCode)
	}

	var inbox inboxResponse
	if err := json.NewDecoder(resp.Body).Decode(&inbox); err != nil {
		return nil, fmt.Errorf("failed to decode inbox: %w", err)
	}

	slog.Debug("fetched inbox", "packages", len(inbox.Receiver))
	return inbox.Receiver, nil
}

// headerTransport adds the headers the portal API expects.
type headerTransport struct {
	base       http.RoundTripper
	userAgent  string
	apiVersion string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	if t.apiVersion != "" {
		req.Header.Set("Api-Version", t.apiVersion)
	}
	return t.base.RoundTrip(req)
}
