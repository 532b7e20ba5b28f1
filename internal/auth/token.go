package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/al-bashkir/postnl-go/internal/session"
)

// expiryMargin is subtracted from the provider TTL so a token never expires
// while a request using it is in flight.
const expiryMargin = 15 * time.Second

// Token is the access/id token pair. It is JSON serializable so a collaborator
// can persist it and reinstate it later.
type Token struct {
	// AccessToken is presented as the Bearer credential
	AccessToken string `json:"access"`

	// IDToken is used as the refresh credential (grant_type=id_token)
	IDToken string `json:"id_token"`

	// ExpiresAt is now + expires_in - 15s at the time the token was minted
	ExpiresAt time.Time `json:"expires"`
}

// NeedRefresh reports whether the token has expired.
func (t *Token) NeedRefresh() bool {
	return t.NeedRefreshAt(time.Now())
}

// NeedRefreshAt reports whether the token has expired at now.
func (t *Token) NeedRefreshAt(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}

// OAuth2 converts the token for use with golang.org/x/oauth2 transports.
func (t *Token) OAuth2() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken: t.AccessToken,
		TokenType:   "Bearer",
		Expiry:      t.ExpiresAt,
	}
	return tok.WithExtra(map[string]interface{}{"id_token": t.IDToken})
}

// rawToken is the success shape of the token endpoint.
type rawToken struct {
	AccessToken *string `json:"access_token"`
	IDToken     *string `json:"id_token"`
	ExpiresIn   *int64  `json:"expires_in"`
}

func (r *rawToken) complete() bool {
	return r.AccessToken != nil && r.IDToken != nil && r.ExpiresIn != nil
}

// errorResponse is the error shape of the token endpoint.
type errorResponse struct {
	Error *string `json:"error"`
}

// tokenResponse is the decoded token endpoint body. Exactly one of Token and
// Failure is set.
type tokenResponse struct {
	Token   *rawToken
	Failure *errorResponse
}

// decodeTokenResponse tries the success shape first and falls back to the
// error shape. A body matching neither is a decode error.
func decodeTokenResponse(data []byte) (tokenResponse, error) {
	var ok rawToken
	if err := json.Unmarshal(data, &ok); err == nil && ok.complete() {
		return tokenResponse{Token: &ok}, nil
	}

	var fail errorResponse
	if err := json.Unmarshal(data, &fail); err != nil {
		return tokenResponse{}, decodeError(err)
	}
	if fail.Error == nil {
		return tokenResponse{}, decodeError(fmt.Errorf("token response matches neither the success nor the error shape"))
	}

	return tokenResponse{Failure: &fail}, nil
}

// toToken maps the success variant to a Token with the expiry margin applied,
// and the error variant to a FailedToken error.
func (r tokenResponse) toToken(now time.Time) (*Token, error) {
	if r.Token == nil {
		return nil, &Error{Kind: KindFailedToken, Reason: *r.Failure.Error}
	}

	ttl := time.Duration(*r.Token.ExpiresIn) * time.Second
	return &Token{
		AccessToken: *r.Token.AccessToken,
		IDToken:     *r.Token.IDToken,
		ExpiresAt:   now.Add(ttl - expiryMargin),
	}, nil
}

// exchange trades the authorization code for a token pair.
func (f *flow) exchange(ctx context.Context, code AuthorizationCode) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", f.portal.ClientID)
	form.Set("code", code.Code)
	form.Set("code_verifier", code.CodeVerifier)
	form.Set("redirect_uri", f.portal.RedirectURI)

	return f.postToken(ctx, form)
}

// refresh exchanges the id token for a new pair. Non-2xx responses and bodies
// that do not decode to a token are returned as non-network errors so the
// caller can fall back to a full login.
func (f *flow) refresh(ctx context.Context, idToken string) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "id_token")
	form.Set("id_token", idToken)

	resp, err := f.sess.PostForm(ctx, f.endpoints.token, form)
	if err != nil {
		return nil, networkError(err)
	}

	body, err := session.ReadBody(resp)
	if err != nil {
		return nil, networkError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Kind: KindFailedToken, Reason: fmt.Sprintf("refresh rejected with status %d", resp.StatusCode)}
	}

	decoded, err := decodeTokenResponse(body)
	if err != nil {
		return nil, err
	}
	return decoded.toToken(f.now())
}

func (f *flow) postToken(ctx context.Context, form url.Values) (*Token, error) {
	resp, err := f.sess.PostForm(ctx, f.endpoints.token, form)
	if err != nil {
		return nil, networkError(err)
	}

	body, err := session.ReadBody(resp)
	if err != nil {
		return nil, networkError(err)
	}

	decoded, err := decodeTokenResponse(body)
	if err != nil {
		return nil, err
	}
	return decoded.toToken(f.now())
}
