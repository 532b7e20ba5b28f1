// Package auth implements the PostNL portal login: bot verification, credential
// post, PKCE authorization and the token lifecycle.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/al-bashkir/postnl-go/internal/config"
	"github.com/al-bashkir/postnl-go/internal/session"
)

const (
	loginPath     = "/identity/Account/Login"
	authorizePath = "/identity/connect/authorize"
	tokenPath     = "/identity/connect/token"
)

// Option customizes a handler.
type Option func(*options)

type options struct {
	transport http.RoundTripper
	timeout   time.Duration
	prompt    string
	now       func() time.Time
}

// WithTransport replaces the HTTP round tripper of the session.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithTimeout bounds every request of the session.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithPrompt overrides the authorize prompt, e.g. "login" or "consent" when
// interactive consent is required instead of silent renewal.
func WithPrompt(prompt string) Option {
	return func(o *options) { o.prompt = prompt }
}

// WithClock replaces the clock used to stamp token expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

type endpoints struct {
	base      *url.URL
	login     string
	authorize string
	token     string
}

func newEndpoints(baseURL string) (endpoints, error) {
	base, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return endpoints{}, fmt.Errorf("invalid base URL: %w", err)
	}
	e := endpoints{base: base}
	e.login = e.resolve(loginPath)
	e.authorize = e.resolve(authorizePath)
	e.token = e.resolve(tokenPath)
	return e, nil
}

func (e endpoints) resolve(path string) string {
	return e.base.JoinPath(path).String()
}

// flow holds everything the login steps share. The session and its cookie jar
// live as long as the handler.
type flow struct {
	portal     config.PortalConfig
	sess       *session.Session
	oauth      *oauth2.Config
	endpoints  endpoints
	sensorData string
	prompt     string
	now        func() time.Time
	limiter    *rate.Limiter
}

// signIn runs the login page scrape, bot verification and credential post.
// It fails with KindThrottled instead of waiting when the login limiter has
// no token left.
func (f *flow) signIn(ctx context.Context, username, password string) error {
	if !f.limiter.Allow() {
		slog.Warn("login attempts exhausted, not contacting the portal")
		return &Error{Kind: KindThrottled}
	}

	attempt := uuid.NewString()
	log := slog.With("attempt_id", attempt)
	log.Debug("fetching login page", "url", f.endpoints.login)

	info, err := f.fetchLoginPage(ctx)
	if err != nil {
		log.Error("failed to scrape login page", "error", err)
		return err
	}

	log.Debug("submitting bot verification", "static_path", info.StaticPath)
	if err := f.verify(ctx, info.StaticPath); err != nil {
		return err
	}

	log.Debug("submitting credentials")
	if err := f.login(ctx, info, username, password); err != nil {
		if IsBlocked(err) {
			log.Error("login blocked by bot detection, not retrying")
		}
		return err
	}

	log.Info("logged in to portal")
	return nil
}

// mint runs the authorize and token exchange steps with the current session.
func (f *flow) mint(ctx context.Context) (*Token, error) {
	code, err := f.authorize(ctx)
	if err != nil {
		return nil, err
	}

	tok, err := f.exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	slog.Debug("token minted", "expires_at", tok.ExpiresAt)
	return tok, nil
}

// New is a handler that has not logged in yet. Its only operations turn it
// into a LoggedIn handler; afterwards it is consumed.
type New struct {
	f        *flow
	consumed atomic.Bool
}

// NewHandler creates a handler with a fresh session for the given portal.
func NewHandler(portal *config.PortalConfig, login *config.LoginConfig, opts ...Option) (*New, error) {
	o := options{
		prompt: portal.Prompt,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.prompt == "" {
		o.prompt = PromptNone
	}

	ep, err := newEndpoints(portal.BaseURL)
	if err != nil {
		return nil, initError(err)
	}

	sensorData, err := loadSensorData(portal.SensorDataFile)
	if err != nil {
		return nil, initError(err)
	}

	sess, err := session.New(session.Options{
		UserAgent: portal.UserAgent,
		Timeout:   o.timeout,
		Transport: o.transport,
	})
	if err != nil {
		return nil, initError(err)
	}

	var lc config.LoginConfig
	if login != nil {
		lc = *login
	}
	limit := rate.Inf
	if interval := lc.LoginInterval(); interval > 0 {
		limit = rate.Every(interval)
	}
	burst := lc.Burst
	if burst <= 0 {
		burst = 1
	}

	oauthCfg := &oauth2.Config{
		ClientID:    portal.ClientID,
		RedirectURL: portal.RedirectURI,
		Scopes:      strings.Fields(portal.Scope),
		Endpoint: oauth2.Endpoint{
			AuthURL:  ep.authorize,
			TokenURL: ep.token,
		},
	}

	return &New{
		f: &flow{
			portal:     *portal,
			sess:       sess,
			oauth:      oauthCfg,
			endpoints:  ep,
			sensorData: sensorData,
			prompt:     o.prompt,
			now:        o.now,
			limiter:    rate.NewLimiter(limit, burst),
		},
	}, nil
}

// Login performs the scrape, bot verification and credential post, and
// returns a LoggedIn handler owning the same session. The New handler is
// consumed even when login fails.
func (n *New) Login(ctx context.Context, username, password string) (*LoggedIn, error) {
	if !n.consumed.CompareAndSwap(false, true) {
		return nil, ErrHandlerConsumed
	}

	if err := n.f.signIn(ctx, username, password); err != nil {
		return nil, err
	}

	l := &LoggedIn{f: n.f, username: username, password: password}
	l.fresh.Store(true)
	return l, nil
}

// Resume returns a LoggedIn handler without contacting the provider. It is
// used with a token reinstated from storage; the first token that needs to be
// minted performs a full login with the stored credentials.
func (n *New) Resume(username, password string) (*LoggedIn, error) {
	if !n.consumed.CompareAndSwap(false, true) {
		return nil, ErrHandlerConsumed
	}
	return &LoggedIn{f: n.f, username: username, password: password}, nil
}

// LoggedIn mints and refreshes tokens for an authenticated session.
type LoggedIn struct {
	f        *flow
	username string
	password string

	// fresh is set between Login and the first mint, while the session
	// cookies from the credential post are known to be current.
	fresh atomic.Bool
}

// Username returns the account this handler logs in with.
func (l *LoggedIn) Username() string {
	return l.username
}

// GenerateToken runs the authorize and token exchange steps using the
// cookies already in the session.
func (l *LoggedIn) GenerateToken(ctx context.Context) (*Token, error) {
	l.fresh.Store(false)
	return l.f.mint(ctx)
}

// NewToken runs the complete flow: login page, bot verification, credential
// post, authorize and token exchange.
func (l *LoggedIn) NewToken(ctx context.Context) (*Token, error) {
	l.fresh.Store(false)
	if err := l.f.signIn(ctx, l.username, l.password); err != nil {
		return nil, err
	}
	return l.f.mint(ctx)
}

// Refresh returns a valid token given the cached one:
//
//   - nil: mint a new token (full login unless the session was just logged in)
//   - fresh: returned as is
//   - expired: try the id_token grant, falling back to a full login
//
// A failed id_token grant is discarded; only a failure of the following full
// login is reported. Transport errors are always reported.
func (l *LoggedIn) Refresh(ctx context.Context, cached *Token) (*Token, error) {
	if cached == nil {
		if l.fresh.CompareAndSwap(true, false) {
			return l.f.mint(ctx)
		}
		return l.NewToken(ctx)
	}

	if !cached.NeedRefreshAt(l.f.now()) {
		return cached, nil
	}

	tok, err := l.f.refresh(ctx, cached.IDToken)
	if err == nil {
		slog.Debug("token refreshed with id_token grant", "expires_at", tok.ExpiresAt)
		return tok, nil
	}
	if IsRetryable(err) {
		return nil, err
	}

	slog.Debug("id_token grant failed, logging in again", "error", err)
	return l.NewToken(ctx)
}

// Identity decodes the id token claims of tok.
func (l *LoggedIn) Identity(ctx context.Context, tok *Token) (*Identity, error) {
	return ParseIdentity(ctx, l.f.portal.ClientID, tok.IDToken)
}
