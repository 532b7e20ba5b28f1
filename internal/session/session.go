// Package session provides the browser-like HTTP session used during portal login.
package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// Session is an HTTP client with a persistent cookie store that never follows
// redirects. Redirect targets carry protocol signals (bot detection flags,
// authorization codes), so callers inspect the Location header themselves.
//
// A Session owns its cookie jar for its whole lifetime; cookies set by the
// verification and login steps are what later authorize requests rely on.
type Session struct {
	client    *http.Client
	jar       http.CookieJar
	userAgent string
}

// Options configures a new Session.
type Options struct {
	// UserAgent is sent on every request. The bot check expects a browser value.
	UserAgent string

	// Timeout bounds each request. Zero keeps the transport default.
	Timeout time.Duration

	// Transport overrides the underlying round tripper (tests).
	Transport http.RoundTripper
}

// New creates a Session with an empty cookie jar.
func New(opts Options) (*Session, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	client := &http.Client{
		Jar:     jar,
		Timeout: opts.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	if opts.Transport != nil {
		client.Transport = opts.Transport
	}

	return &Session{
		client:    client,
		jar:       jar,
		userAgent: opts.UserAgent,
	}, nil
}

// Get issues a GET request.
func (s *Session) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return s.Do(req)
}

// PostForm posts url-encoded form values.
func (s *Session) PostForm(ctx context.Context, rawURL string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.Do(req)
}

// PostJSON posts a pre-encoded JSON body.
func (s *Session) PostJSON(ctx context.Context, rawURL string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.Do(req)
}

// Do sends req through the session, adding the browser User-Agent.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	if s.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	return s.client.Do(req)
}

// Cookies returns the cookies the jar would send to rawURL.
func (s *Session) Cookies(rawURL string) []*http.Cookie {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	return s.jar.Cookies(u)
}

// Location returns the parsed Location header of a redirect response.
// The second return value is false when the header is absent or unparseable.
// Relative targets are resolved against the request URL.
func Location(resp *http.Response) (*url.URL, bool) {
	raw := resp.Header.Get("Location")
	if raw == "" {
		return nil, false
	}
	loc, err := url.Parse(raw)
	if err != nil {
		return nil, false
	}
	if resp.Request != nil && resp.Request.URL != nil {
		loc = resp.Request.URL.ResolveReference(loc)
	}
	return loc, true
}

// ReadBody reads and closes the response body.
func ReadBody(resp *http.Response) ([]byte, error) {
	defer func() { _ = resp.Body.Close() }()
	return io.ReadAll(resp.Body)
}

// Drain discards and closes the response body so the connection can be reused.
func Drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
