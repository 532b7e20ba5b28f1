package auth

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/al-bashkir/postnl-go/internal/config"
)

func TestLoginAndGenerateToken(t *testing.T) {
	p := newFakePortal(t)
	p.expiresIn = 100

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	h := p.handler(t, WithClock(func() time.Time { return now }))

	l, err := h.Login(t.Context(), "user@example.com", "secret")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	tok, err := l.Refresh(t.Context(), nil)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if tok.AccessToken != "access-1" || tok.IDToken != "id-1" {
		t.Errorf("unexpected token: %+v", tok)
	}
	if want := now.Add(85 * time.Second); !tok.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", tok.ExpiresAt, want)
	}

	// The first mint reuses the fresh login.
	if got := p.count("login"); got != 1 {
		t.Errorf("credential posts = %d, want 1", got)
	}

	if got := p.loginForm.Get("__RequestVerificationToken"); got != "T1" {
		t.Errorf("verification token = %q, want T1", got)
	}
	if p.loginForm.Get("Username") != "user@example.com" || p.loginForm.Get("Password") != "secret" {
		t.Errorf("unexpected credential form: %v", p.loginForm)
	}
	if !strings.Contains(p.userAgent, "Firefox") {
		t.Errorf("User-Agent = %q, want the configured browser agent", p.userAgent)
	}
}

func TestSensorPayloadShape(t *testing.T) {
	p := newFakePortal(t)

	if _, err := p.handler(t).Login(t.Context(), "u", "p"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	data := p.sensorData
	if len(data) < 24 || data[0] != '\'' || data[23] != '\'' {
		t.Fatalf("sensor data does not start with a quoted nonce: %.30q", data)
	}
	if strings.Trim(data[1:23], "0123456789abcdef") != "" {
		t.Errorf("nonce %q is not hex", data[1:23])
	}
	if data[24:] != strings.TrimSpace(bundledSensorData) {
		t.Error("sensor data blob was not appended verbatim")
	}
}

func TestAuthorizeRequest(t *testing.T) {
	p := newFakePortal(t)

	l, err := p.handler(t).Login(t.Context(), "u", "p")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	tok, err := l.GenerateToken(t.Context())
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if tok.NeedRefresh() {
		t.Error("freshly minted token needs refresh")
	}

	q := p.authorizeQuery
	want := map[string]string{
		"client_id":             "pwb-web",
		"audience":              "poa-profiles-api",
		"scope":                 "openid profile email poa-profiles-api pwb-web-api",
		"response_type":         "code",
		"redirect_uri":          "https://jouw.postnl.nl/silent-renew.html",
		"code_challenge_method": "S256",
		"prompt":                "none",
		"ui_locales":            "nl_NL",
	}
	for key, value := range want {
		if got := q.Get(key); got != value {
			t.Errorf("%s = %q, want %q", key, got, value)
		}
	}
	if len(q.Get("state")) != stateLength {
		t.Errorf("state = %q", q.Get("state"))
	}
}

func TestLoginBlocked(t *testing.T) {
	p := newFakePortal(t)
	p.botDetected = true

	_, err := p.handler(t).Login(t.Context(), "u", "p")
	if !IsBlocked(err) {
		t.Fatalf("expected blocked error, got %v", err)
	}
	if p.count("authorize") != 0 {
		t.Error("authorize was called after bot detection")
	}
}

func TestVerificationRejected(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		reason string
	}{
		{"with reason", `{"success":false,"error":"bad sensor"}`, "bad sensor"},
		{"without reason", `{"success":false,"error":null}`, "no error provided"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakePortal(t)
			p.verifyResponse = tt.body

			_, err := p.handler(t).Login(t.Context(), "u", "p")
			if !errors.Is(err, &Error{Kind: KindVerification, Reason: tt.reason}) {
				t.Fatalf("expected verification failure %q, got %v", tt.reason, err)
			}
			if p.count("login") != 0 {
				t.Error("credentials were posted after a rejected verification")
			}
		})
	}
}

func TestAuthorizeError(t *testing.T) {
	p := newFakePortal(t)
	p.authorizeError = "access_denied"

	l, err := p.handler(t).Login(t.Context(), "u", "p")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	_, err = l.GenerateToken(t.Context())
	if !errors.Is(err, &Error{Kind: KindAuthorization, Reason: "access_denied"}) {
		t.Fatalf("expected access_denied, got %v", err)
	}
	if p.count("token") != 0 {
		t.Error("token endpoint was called after a failed authorize")
	}
}

func TestParseAuthorizeRedirect(t *testing.T) {
	f := &flow{}

	tests := []struct {
		name     string
		location string
		strict   bool
		want     string
		reason   string
	}{
		{name: "code", location: "https://x/cb?code=XYZ&state=S", want: "XYZ"},
		{name: "no location", location: "", reason: "no valid redirect provided"},
		{name: "unparseable", location: "://bad", reason: "no valid redirect provided"},
		{name: "error param", location: "https://x/cb?error=login_required", reason: "login_required"},
		{name: "no code", location: "https://x/cb?state=S", reason: "no code provided"},
		{name: "lenient state mismatch", location: "https://x/cb?code=XYZ&state=other", want: "XYZ"},
		{name: "strict state mismatch", location: "https://x/cb?code=XYZ&state=other", strict: true, reason: "state mismatch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.portal.StrictState = tt.strict
			resp := &http.Response{StatusCode: http.StatusFound, Header: http.Header{}}
			if tt.location != "" {
				resp.Header.Set("Location", tt.location)
			}

			code, err := f.parseAuthorizeRedirect(resp, "S")
			if tt.reason != "" {
				if !errors.Is(err, &Error{Kind: KindAuthorization, Reason: tt.reason}) {
					t.Fatalf("expected reason %q, got %v", tt.reason, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if code != tt.want {
				t.Errorf("code = %q, want %q", code, tt.want)
			}
		})
	}
}

func TestBotDetected(t *testing.T) {
	tests := []struct {
		location string
		want     bool
	}{
		{"/identity/Account/Login?botdetected=true", true},
		{"https://jouw.postnl.nl/login?foo=1&botdetected=true", true},
		{"/identity/Account/Login?botdetected=false", false},
		{"/", false},
		{"", false},
		{"://bad?botdetected=true", false},
	}

	for _, tt := range tests {
		if got := botDetected(tt.location); got != tt.want {
			t.Errorf("botDetected(%q) = %v, want %v", tt.location, got, tt.want)
		}
	}
}

func TestTokenEndpointError(t *testing.T) {
	p := newFakePortal(t)
	p.tokenBody = `{"error":"invalid_client"}`

	l, err := p.handler(t).Login(t.Context(), "u", "p")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	_, err = l.GenerateToken(t.Context())
	if !errors.Is(err, &Error{Kind: KindFailedToken, Reason: "invalid_client"}) {
		t.Fatalf("expected failed token, got %v", err)
	}
}

func TestRefreshReturnsValidToken(t *testing.T) {
	p := newFakePortal(t)

	l, err := p.handler(t).Resume("u", "p")
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}

	cached := &Token{AccessToken: "cached", IDToken: "id", ExpiresAt: time.Now().Add(time.Hour)}
	tok, err := l.Refresh(t.Context(), cached)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if tok != cached {
		t.Errorf("valid token was replaced: %+v", tok)
	}
	if p.count("page")+p.count("refresh") != 0 {
		t.Error("a valid token caused network traffic")
	}
}

func TestRefreshFallsBackToLogin(t *testing.T) {
	p := newFakePortal(t)
	p.refreshStatus = http.StatusBadRequest

	l, err := p.handler(t).Resume("u", "p")
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}

	expired := &Token{AccessToken: "old", IDToken: "old-id", ExpiresAt: time.Now().Add(-time.Minute)}
	tok, err := l.Refresh(t.Context(), expired)
	if err != nil {
		t.Fatalf("Refresh should fall back silently, got %v", err)
	}

	if tok.AccessToken != "access-1" {
		t.Errorf("expected a token from the full login, got %+v", tok)
	}
	if p.count("refresh") != 1 || p.count("login") != 1 {
		t.Errorf("refresh calls = %d, logins = %d, want 1 and 1", p.count("refresh"), p.count("login"))
	}
}

func TestRefreshWithIDToken(t *testing.T) {
	p := newFakePortal(t)
	p.refreshStatus = http.StatusOK
	p.refreshBody = `{"access_token":"renewed","id_token":"renewed-id","expires_in":3600}`

	l, err := p.handler(t).Resume("u", "p")
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}

	expired := &Token{AccessToken: "old", IDToken: "old-id", ExpiresAt: time.Now().Add(-time.Minute)}
	tok, err := l.Refresh(t.Context(), expired)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if tok.AccessToken != "renewed" || tok.IDToken != "renewed-id" {
		t.Errorf("unexpected token: %+v", tok)
	}
	if p.count("login") != 0 {
		t.Error("a successful refresh performed a full login")
	}
}

func TestRefreshFallbackFailureIsReported(t *testing.T) {
	p := newFakePortal(t)
	p.botDetected = true

	l, err := p.handler(t).Resume("u", "p")
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}

	_, err = l.Refresh(t.Context(), &Token{IDToken: "old-id"})
	if !IsBlocked(err) {
		t.Fatalf("expected the fallback login failure, got %v", err)
	}
}

type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

func TestRefreshNetworkErrorPropagates(t *testing.T) {
	portal := config.DefaultConfig().Portal
	portal.BaseURL = "http://portal.invalid"

	h, err := NewHandler(&portal, nil, WithTransport(failingTransport{}))
	if err != nil {
		t.Fatalf("NewHandler failed: %v", err)
	}
	l, err := h.Resume("u", "p")
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}

	_, err = l.Refresh(t.Context(), &Token{IDToken: "old-id"})
	if !IsRetryable(err) {
		t.Fatalf("expected a network error, got %v", err)
	}
}

func TestHandlerConsumed(t *testing.T) {
	p := newFakePortal(t)
	h := p.handler(t)

	if _, err := h.Resume("u", "p"); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if _, err := h.Resume("u", "p"); !errors.Is(err, ErrHandlerConsumed) {
		t.Errorf("second Resume = %v, want ErrHandlerConsumed", err)
	}
	if _, err := h.Login(t.Context(), "u", "p"); !errors.Is(err, ErrHandlerConsumed) {
		t.Errorf("Login after Resume = %v, want ErrHandlerConsumed", err)
	}
}

func TestNewHandlerInvalidConfig(t *testing.T) {
	portal := config.DefaultConfig().Portal
	portal.SensorDataFile = "/nonexistent/sensor.txt"

	_, err := NewHandler(&portal, nil)
	if !errors.Is(err, ErrClientInitialization) {
		t.Fatalf("expected client initialization error, got %v", err)
	}
}

func TestNewTokenAfterLogin(t *testing.T) {
	p := newFakePortal(t)

	l, err := p.handler(t).Login(t.Context(), "u", "p")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	first, err := l.Refresh(t.Context(), nil)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	second, err := l.Refresh(t.Context(), nil)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if first.AccessToken == second.AccessToken {
		t.Error("second mint reused the first token")
	}
	if got := p.count("login"); got != 2 {
		t.Errorf("credential posts = %d, want 2", got)
	}
}

func TestLoginThrottledFailsFast(t *testing.T) {
	p := newFakePortal(t)

	h, err := NewHandler(p.portalConfig(), &config.LoginConfig{MinInterval: 30, Burst: 2})
	if err != nil {
		t.Fatalf("NewHandler failed: %v", err)
	}
	l, err := h.Login(t.Context(), "u", "p")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	// Minting on the fresh session does not count as a login attempt.
	if _, err := l.Refresh(t.Context(), nil); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if _, err := l.Refresh(t.Context(), nil); err != nil {
		t.Fatalf("second full login failed: %v", err)
	}

	start := time.Now()
	_, err = l.Refresh(t.Context(), nil)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrThrottled) || !IsThrottled(err) {
		t.Fatalf("err = %v, want throttled", err)
	}
	if KindOf(err) != KindThrottled {
		t.Errorf("kind = %v, want %v", KindOf(err), KindThrottled)
	}
	if IsRetryable(err) || IsBlocked(err) {
		t.Error("throttled error classified as network or blocked")
	}
	if elapsed > time.Second {
		t.Errorf("throttled login took %v, want immediate failure", elapsed)
	}
	if got := p.count("page"); got != 2 {
		t.Errorf("login page fetches = %d, want 2", got)
	}
	if got := p.count("login"); got != 2 {
		t.Errorf("credential posts = %d, want 2", got)
	}
}

func TestLoginLimiterIsPerHandler(t *testing.T) {
	p := newFakePortal(t)

	h, err := NewHandler(p.portalConfig(), &config.LoginConfig{MinInterval: 30, Burst: 1})
	if err != nil {
		t.Fatalf("NewHandler failed: %v", err)
	}
	if _, err := h.Login(t.Context(), "u", "p"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	h2, err := NewHandler(p.portalConfig(), &config.LoginConfig{MinInterval: 30, Burst: 1})
	if err != nil {
		t.Fatalf("NewHandler failed: %v", err)
	}
	l, err := h2.Resume("u", "p")
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	// Each handler owns its limiter, so the resumed one still has its burst.
	if _, err := l.Refresh(t.Context(), nil); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if _, err := l.Refresh(t.Context(), nil); !IsThrottled(err) {
		t.Fatalf("err = %v, want throttled", err)
	}
}
