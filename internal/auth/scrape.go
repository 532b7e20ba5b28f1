package auth

import "regexp"

// The login page shape is owned by the provider and cannot be assumed stable.
// Both patterns are a fixed contract with that page; a miss means the page
// changed and the attempt cannot continue.
var (
	verificationTokenPattern = regexp.MustCompile(`__RequestVerificationToken.* value="([^"]*)`)
	staticPathPattern        = regexp.MustCompile(`src="(/static/[a-z0-9]+)"`)
)

// VerificationInfo is scraped from the login page and consumed within the same
// login attempt.
type VerificationInfo struct {
	// Token is the anti-forgery token posted back with the credentials
	Token string

	// StaticPath is the per-session bot verification script, e.g. /static/abc123
	StaticPath string
}

// ScrapeLoginPage extracts the request verification token and the static
// verification path from the login page HTML. It performs no I/O.
func ScrapeLoginPage(body string) (VerificationInfo, error) {
	token := verificationTokenPattern.FindStringSubmatch(body)
	if token == nil {
		return VerificationInfo{}, &Error{Kind: KindMissingVerificationToken}
	}

	static := staticPathPattern.FindStringSubmatch(body)
	if static == nil {
		return VerificationInfo{}, &Error{Kind: KindMissingStaticPath}
	}

	return VerificationInfo{
		Token:      token[1],
		StaticPath: static[1],
	}, nil
}
