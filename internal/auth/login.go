package auth

import (
	"context"
	"net/url"

	"github.com/al-bashkir/postnl-go/internal/session"
)

// fetchLoginPage loads the login page unauthenticated and scrapes it.
func (f *flow) fetchLoginPage(ctx context.Context) (VerificationInfo, error) {
	resp, err := f.sess.Get(ctx, f.endpoints.login)
	if err != nil {
		return VerificationInfo{}, networkError(err)
	}

	body, err := session.ReadBody(resp)
	if err != nil {
		return VerificationInfo{}, networkError(err)
	}

	return ScrapeLoginPage(string(body))
}

// login posts the credentials together with the verification token. A redirect
// carrying botdetected=true is terminal for the whole attempt.
func (f *flow) login(ctx context.Context, info VerificationInfo, username, password string) error {
	form := url.Values{}
	form.Set("__RequestVerificationToken", info.Token)
	form.Set("ReturnUrl", "")
	form.Set("Username", username)
	form.Set("Password", password)

	resp, err := f.sess.PostForm(ctx, f.endpoints.login, form)
	if err != nil {
		return networkError(err)
	}
	session.Drain(resp)

	if botDetected(resp.Header.Get("Location")) {
		return &Error{Kind: KindBlocked}
	}

	return nil
}

// botDetected reports whether a login redirect target flags the session.
// An absent or unparseable target is not a bot signal.
func botDetected(location string) bool {
	if location == "" {
		return false
	}
	u, err := url.Parse(location)
	if err != nil {
		return false
	}
	return u.Query().Get("botdetected") == "true"
}
