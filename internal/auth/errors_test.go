package auth

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

func TestErrorIs(t *testing.T) {
	blocked := &Error{Kind: KindBlocked}
	wrapped := fmt.Errorf("login: %w", blocked)

	if !errors.Is(wrapped, ErrBlocked) {
		t.Error("wrapped blocked error does not match ErrBlocked")
	}
	if errors.Is(wrapped, ErrVerification) {
		t.Error("blocked error matches ErrVerification")
	}

	denied := &Error{Kind: KindAuthorization, Reason: "access_denied"}
	if !errors.Is(denied, ErrAuthorization) {
		t.Error("authorization error does not match the kind sentinel")
	}
	if !errors.Is(denied, &Error{Kind: KindAuthorization, Reason: "access_denied"}) {
		t.Error("authorization error does not match its own reason")
	}
	if errors.Is(denied, &Error{Kind: KindAuthorization, Reason: "login_required"}) {
		t.Error("authorization error matches a different reason")
	}
}

func TestErrorUnwrap(t *testing.T) {
	err := networkError(io.ErrUnexpectedEOF)

	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("network error does not unwrap to its cause")
	}
	if !IsRetryable(err) {
		t.Error("network error should be retryable")
	}
	if IsRetryable(&Error{Kind: KindFailedToken}) {
		t.Error("failed token should not be retryable")
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{&Error{Kind: KindBlocked}, "connection blocked by PostNL, try again in a while"},
		{&Error{Kind: KindVerification, Reason: "no error provided"}, "failed to validate login request: no error provided"},
		{&Error{Kind: KindFailedToken, Reason: "invalid_grant"}, "failed to get token: invalid_grant"},
		{&Error{Kind: KindNetwork, Err: io.EOF}, "network error: EOF"},
	}

	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(fmt.Errorf("x: %w", &Error{Kind: KindDecode})); got != KindDecode {
		t.Errorf("KindOf = %v, want %v", got, KindDecode)
	}
	if got := KindOf(errors.New("plain")); got != 0 {
		t.Errorf("KindOf(plain) = %v, want 0", got)
	}
	if !strings.Contains(KindBlocked.String(), "blocked") {
		t.Errorf("KindBlocked.String() = %q", KindBlocked.String())
	}
}
