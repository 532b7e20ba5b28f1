package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/oauth2"
)

const (
	// codeVerifierLength and stateLength are in hex characters.
	codeVerifierLength = 64
	stateLength        = 64

	// sensorNonceLength is the random prefix of the sensor data payload.
	sensorNonceLength = 22
)

// PKCE holds the per-attempt proof key parameters. It is generated fresh for
// every authorize request and never reused or persisted.
type PKCE struct {
	// CodeVerifier is sent with the token exchange only
	CodeVerifier string

	// State is echoed back by the provider on the redirect
	State string

	// CodeChallenge is BASE64URL(SHA256(CodeVerifier)) without padding
	CodeChallenge string
}

// NewPKCE generates a code verifier, state and the matching S256 challenge.
func NewPKCE() (PKCE, error) {
	verifier, err := HexRandom(codeVerifierLength)
	if err != nil {
		return PKCE{}, fmt.Errorf("failed to generate code verifier: %w", err)
	}

	state, err := HexRandom(stateLength)
	if err != nil {
		return PKCE{}, fmt.Errorf("failed to generate state: %w", err)
	}

	return PKCE{
		CodeVerifier:  verifier,
		State:         state,
		CodeChallenge: CodeChallenge(verifier),
	}, nil
}

// CodeChallenge derives the S256 challenge for verifier. It is deterministic
// and only ever contains base64url characters.
func CodeChallenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// HexRandom returns n random lowercase hex characters from crypto/rand.
func HexRandom(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	b := make([]byte, (n+1)/2)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b)[:n], nil
}
