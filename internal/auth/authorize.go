package auth

import (
	"context"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/al-bashkir/postnl-go/internal/logsanitize"
	"github.com/al-bashkir/postnl-go/internal/session"
)

// PromptNone asks the provider for silent renewal with the existing session.
const PromptNone = "none"

// AuthorizationCode binds the code to the verifier that produced its challenge.
// It is passed by value so a retry can never pair a code with another verifier.
type AuthorizationCode struct {
	Code         string
	CodeVerifier string
}

// authCodeURL builds the authorize request URL for p.
func (f *flow) authCodeURL(p PKCE) string {
	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("audience", f.portal.Audience),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		oauth2.SetAuthURLParam("code_challenge", p.CodeChallenge),
		oauth2.SetAuthURLParam("prompt", f.prompt),
	}
	if f.portal.UILocales != "" {
		opts = append(opts, oauth2.SetAuthURLParam("ui_locales", f.portal.UILocales))
	}
	return f.oauth.AuthCodeURL(p.State, opts...)
}

// authorize issues the PKCE authorize request with the session cookies and
// reads the code from the redirect. Credentials are not sent again.
func (f *flow) authorize(ctx context.Context) (AuthorizationCode, error) {
	p, err := NewPKCE()
	if err != nil {
		return AuthorizationCode{}, err
	}

	resp, err := f.sess.Get(ctx, f.authCodeURL(p))
	if err != nil {
		return AuthorizationCode{}, networkError(err)
	}
	session.Drain(resp)

	code, err := f.parseAuthorizeRedirect(resp, p.State)
	if err != nil {
		return AuthorizationCode{}, err
	}

	return AuthorizationCode{Code: code, CodeVerifier: p.CodeVerifier}, nil
}

// parseAuthorizeRedirect extracts the authorization code from the redirect.
//
// The echoed state is only compared with the one sent when strict_state is
// enabled. Otherwise a mismatch is logged and the code is still accepted.
func (f *flow) parseAuthorizeRedirect(resp *http.Response, sentState string) (string, error) {
	loc, ok := session.Location(resp)
	if !ok {
		return "", &Error{Kind: KindAuthorization, Reason: "no valid redirect provided"}
	}

	query := loc.Query()
	if e := query.Get("error"); e != "" {
		slog.Debug("authorize redirect carried an error", "error", logsanitize.Sanitize(e))
		return "", &Error{Kind: KindAuthorization, Reason: e}
	}

	code := query.Get("code")
	if code == "" {
		return "", &Error{Kind: KindAuthorization, Reason: "no code provided"}
	}

	if state := query.Get("state"); state != sentState {
		if f.portal.StrictState {
			return "", &Error{Kind: KindAuthorization, Reason: "state mismatch"}
		}
		slog.Warn("authorize redirect state does not match the state sent", "state_present", state != "")
	}

	return code, nil
}
