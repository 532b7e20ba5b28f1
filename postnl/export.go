package postnl

import "github.com/al-bashkir/postnl-go/internal/auth"

// Token is the serializable token pair. Persist it with GetToken and restore
// it with SetToken.
type Token = auth.Token

// Identity is the account information from the id token.
type Identity = auth.Identity

// Error is the authentication error type; match it with errors.Is against the
// sentinels below.
type Error = auth.Error

// Kind classifies an Error.
type Kind = auth.Kind

const (
	KindClientInitialization     = auth.KindClientInitialization
	KindNetwork                  = auth.KindNetwork
	KindMissingVerificationToken = auth.KindMissingVerificationToken
	KindMissingStaticPath        = auth.KindMissingStaticPath
	KindVerification             = auth.KindVerification
	KindBlocked                  = auth.KindBlocked
	KindAuthorization            = auth.KindAuthorization
	KindFailedToken              = auth.KindFailedToken
	KindDecode                   = auth.KindDecode
	KindThrottled                = auth.KindThrottled
)

var (
	ErrClientInitialization     = auth.ErrClientInitialization
	ErrNetwork                  = auth.ErrNetwork
	ErrMissingVerificationToken = auth.ErrMissingVerificationToken
	ErrMissingStaticPath        = auth.ErrMissingStaticPath
	ErrVerification             = auth.ErrVerification
	ErrBlocked                  = auth.ErrBlocked
	ErrAuthorization            = auth.ErrAuthorization
	ErrFailedToken              = auth.ErrFailedToken
	ErrDecode                   = auth.ErrDecode
	ErrThrottled                = auth.ErrThrottled
	ErrHandlerConsumed          = auth.ErrHandlerConsumed
)

// IsBlocked reports whether the portal flagged the login as a bot. Back off
// before trying again.
func IsBlocked(err error) bool {
	return auth.IsBlocked(err)
}

// IsRetryable reports whether err is a transport failure that may be retried.
func IsRetryable(err error) bool {
	return auth.IsRetryable(err)
}

// IsThrottled reports whether a full login was refused locally by the login
// rate limit (login.min_interval and login.burst).
func IsThrottled(err error) bool {
	return auth.IsThrottled(err)
}

// KindOf returns the Kind of err, or 0 when err is not an authentication error.
func KindOf(err error) Kind {
	return auth.KindOf(err)
}
