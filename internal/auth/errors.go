package auth

import "errors"

// Kind classifies authentication failures. Callers branch on the kind, not on
// the message: a Blocked failure needs a back-off, a Network failure is safe to
// retry, everything else means the provider rejected this attempt.
type Kind int

const (
	KindClientInitialization Kind = iota + 1
	KindNetwork
	KindMissingVerificationToken
	KindMissingStaticPath
	KindVerification
	KindBlocked
	KindAuthorization
	KindFailedToken
	KindDecode
	KindThrottled
)

func (k Kind) String() string {
	switch k {
	case KindClientInitialization:
		return "client_initialization"
	case KindNetwork:
		return "network"
	case KindMissingVerificationToken:
		return "missing_verification_token"
	case KindMissingStaticPath:
		return "missing_static_path"
	case KindVerification:
		return "verification_failure"
	case KindBlocked:
		return "blocked"
	case KindAuthorization:
		return "authorization_failure"
	case KindFailedToken:
		return "failed_token"
	case KindDecode:
		return "decode_error"
	case KindThrottled:
		return "throttled"
	default:
		return "unknown"
	}
}

// Error is returned by every step of the login and token flow.
type Error struct {
	Kind   Kind
	Reason string // provider supplied reason, if any
	Err    error  // underlying transport or decode error, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case KindClientInitialization:
		msg = "failed to initialize the client"
	case KindNetwork:
		msg = "network error"
	case KindMissingVerificationToken:
		msg = "failed to retrieve request verification token for login"
	case KindMissingStaticPath:
		msg = "failed to retrieve static url for login"
	case KindVerification:
		msg = "failed to validate login request"
	case KindBlocked:
		msg = "connection blocked by PostNL, try again in a while"
	case KindAuthorization:
		msg = "failed to authorize login request"
	case KindFailedToken:
		msg = "failed to get token"
	case KindDecode:
		msg = "error while parsing json result"
	case KindThrottled:
		msg = "too many login attempts, try again later"
	default:
		msg = "authentication error"
	}

	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind, and on Reason when the target carries one, so that
// errors.Is(err, ErrBlocked) works for any Blocked error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Reason == "" || t.Reason == e.Reason)
}

// Sentinel values for errors.Is.
var (
	ErrClientInitialization     = &Error{Kind: KindClientInitialization}
	ErrNetwork                  = &Error{Kind: KindNetwork}
	ErrMissingVerificationToken = &Error{Kind: KindMissingVerificationToken}
	ErrMissingStaticPath        = &Error{Kind: KindMissingStaticPath}
	ErrVerification             = &Error{Kind: KindVerification}
	ErrBlocked                  = &Error{Kind: KindBlocked}
	ErrAuthorization            = &Error{Kind: KindAuthorization}
	ErrFailedToken              = &Error{Kind: KindFailedToken}
	ErrDecode                   = &Error{Kind: KindDecode}
	ErrThrottled                = &Error{Kind: KindThrottled}
)

// ErrHandlerConsumed is returned when Login or Resume is called on a New
// handler that already produced a LoggedIn handler.
var ErrHandlerConsumed = errors.New("auth handler already consumed by a previous login")

// IsBlocked reports whether the provider flagged the session as a bot.
// Do not retry immediately; further attempts risk longer penalties.
func IsBlocked(err error) bool {
	return errors.Is(err, ErrBlocked)
}

// IsThrottled reports whether a full login was refused locally because the
// login rate limit is exhausted. No request reached the provider.
func IsThrottled(err error) bool {
	return errors.Is(err, ErrThrottled)
}

// IsRetryable reports whether err is a transport failure that is safe to retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetwork)
}

// KindOf returns the Kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func networkError(err error) error {
	return &Error{Kind: KindNetwork, Err: err}
}

func decodeError(err error) error {
	return &Error{Kind: KindDecode, Err: err}
}

func initError(err error) error {
	return &Error{Kind: KindClientInitialization, Err: err}
}
