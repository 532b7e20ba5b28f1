package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
)

// Identity is the account information carried in the id token.
type Identity struct {
	Subject   string
	Name      string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// signingAlgs are the asymmetric algorithms an id token may be issued with.
// Shared-secret algorithms are not accepted.
var signingAlgs = []string{
	oidc.RS256, oidc.RS384, oidc.RS512,
	oidc.ES256, oidc.ES384, oidc.ES512,
	oidc.PS256, oidc.PS384, oidc.PS512,
	oidc.EdDSA,
}

// ParseIdentity decodes the id token claims. The audience must contain
// clientID; the signature is not checked because the token was received
// directly from the token endpoint over TLS and is only used for display.
func ParseIdentity(ctx context.Context, clientID, rawIDToken string) (*Identity, error) {
	if rawIDToken == "" {
		return nil, fmt.Errorf("no id_token available")
	}

	verifier := oidc.NewVerifier("", nil, &oidc.Config{
		ClientID:                   clientID,
		SupportedSigningAlgs:       signingAlgs,
		SkipIssuerCheck:            true,
		SkipExpiryCheck:            true,
		InsecureSkipSignatureCheck: true,
	})

	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to parse id_token: %w", err)
	}

	var claims struct {
		Name              string `json:"name"`
		PreferredUsername string `json:"preferred_username"`
		Email             string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}

	name := claims.Name
	if name == "" {
		name = claims.PreferredUsername
	}

	return &Identity{
		Subject:   idToken.Subject,
		Name:      name,
		Email:     claims.Email,
		IssuedAt:  idToken.IssuedAt,
		ExpiresAt: idToken.Expiry,
	}, nil
}
