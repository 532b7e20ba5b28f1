package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/al-bashkir/postnl-go/internal/config"
)

const testLoginPage = `<!DOCTYPE html>
<html>
<head><script type="text/javascript" src="/static/abc123"></script></head>
<body>
<form method="post" action="/identity/Account/Login">
<input name="__RequestVerificationToken" type="hidden" value="T1" />
<input name="Username" /><input name="Password" type="password" />
</form>
</body>
</html>`

// fakePortal emulates the identity endpoints of the portal. Cookies gate each
// step the same way the real provider does: verification sets "verified",
// a successful credential post sets "auth", authorize requires "auth".
type fakePortal struct {
	t   *testing.T
	srv *httptest.Server

	mu sync.Mutex

	loginPage      string
	verifyResponse string
	botDetected    bool
	authorizeError string
	code           string
	expiresIn      int64
	tokenBody      string // overrides the authorization_code response when set
	refreshStatus  int
	refreshBody    string

	calls          map[string]int
	challenge      string
	authorizeQuery url.Values
	loginForm      url.Values
	sensorData     string
	userAgent      string
	issued         int
}

func newFakePortal(t *testing.T) *fakePortal {
	t.Helper()

	p := &fakePortal{
		t:              t,
		loginPage:      testLoginPage,
		verifyResponse: `{"success":true,"error":null}`,
		code:           "XYZ",
		expiresIn:      3600,
		refreshStatus:  http.StatusBadRequest,
		refreshBody:    `{"error":"invalid_grant"}`,
		calls:          make(map[string]int),
	}
	p.srv = httptest.NewServer(http.HandlerFunc(p.serveHTTP))
	t.Cleanup(p.srv.Close)
	return p
}

func (p *fakePortal) count(step string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[step]
}

func (p *fakePortal) portalConfig() *config.PortalConfig {
	portal := config.DefaultConfig().Portal
	portal.BaseURL = p.srv.URL
	return &portal
}

func (p *fakePortal) handler(t *testing.T, opts ...Option) *New {
	t.Helper()
	h, err := NewHandler(p.portalConfig(), &config.LoginConfig{Burst: 10}, opts...)
	if err != nil {
		t.Fatalf("NewHandler failed: %v", err)
	}
	return h
}

func hasCookie(r *http.Request, name string) bool {
	_, err := r.Cookie(name)
	return err == nil
}

func (p *fakePortal) serveHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Path == loginPath:
		p.calls["page"]++
		p.userAgent = r.Header.Get("User-Agent")
		_, _ = fmt.Fprint(w, p.loginPage)

	case r.Method == http.MethodPost && r.URL.Path == "/static/abc123":
		p.calls["verify"]++
		var payload sensorPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, "bad payload", http.StatusBadRequest)
			return
		}
		p.sensorData = payload.SensorData
		http.SetCookie(w, &http.Cookie{Name: "verified", Value: "1", Path: "/"})
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, p.verifyResponse)

	case r.Method == http.MethodPost && r.URL.Path == loginPath:
		p.calls["login"]++
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		p.loginForm = r.PostForm
		if p.botDetected || !hasCookie(r, "verified") {
			http.Redirect(w, r, loginPath+"?botdetected=true", http.StatusFound)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "auth", Value: "1", Path: "/"})
		http.Redirect(w, r, "/", http.StatusFound)

	case r.Method == http.MethodGet && r.URL.Path == authorizePath:
		p.calls["authorize"]++
		q := r.URL.Query()
		p.authorizeQuery = q
		p.challenge = q.Get("code_challenge")
		target, _ := url.Parse(q.Get("redirect_uri"))
		rq := url.Values{}
		switch {
		case !hasCookie(r, "auth"):
			rq.Set("error", "login_required")
		case p.authorizeError != "":
			rq.Set("error", p.authorizeError)
		default:
			rq.Set("code", p.code)
			rq.Set("state", q.Get("state"))
		}
		target.RawQuery = rq.Encode()
		w.Header().Set("Location", target.String())
		w.WriteHeader(http.StatusFound)

	case r.Method == http.MethodPost && r.URL.Path == tokenPath:
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.PostForm.Get("grant_type") {
		case "authorization_code":
			p.calls["token"]++
			if p.tokenBody != "" {
				_, _ = fmt.Fprint(w, p.tokenBody)
				return
			}
			if r.PostForm.Get("code") != p.code || CodeChallenge(r.PostForm.Get("code_verifier")) != p.challenge {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = fmt.Fprint(w, `{"error":"invalid_grant"}`)
				return
			}
			p.issued++
			_, _ = fmt.Fprintf(w, `{"access_token":"access-%d","id_token":"id-%d","expires_in":%d,"token_type":"Bearer"}`,
				p.issued, p.issued, p.expiresIn)
		case "id_token":
			p.calls["refresh"]++
			w.WriteHeader(p.refreshStatus)
			_, _ = fmt.Fprint(w, p.refreshBody)
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = fmt.Fprint(w, `{"error":"unsupported_grant_type"}`)
		}

	default:
		http.NotFound(w, r)
	}
}
