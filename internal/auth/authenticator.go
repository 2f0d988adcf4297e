package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"courier/internal/types"
)

// Claims is what a token validator extracts from a verified credential.
// Role may be empty when the issuer does not carry one.
type Claims struct {
	Subject string
	Role    string
}

type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (Claims, error)
}

// IdentityStore resolves the authoritative role of a user.
type IdentityStore interface {
	RoleOf(ctx context.Context, userID types.ID) (Role, error)
}

// Authenticator validates a token and resolves the caller's role. When an
// identity store is configured it wins over any role claim in the token.
type Authenticator struct {
	tokens     TokenValidator
	identities IdentityStore
}

func NewAuthenticator(tokens TokenValidator, identities IdentityStore) *Authenticator {
	return &Authenticator{tokens: tokens, identities: identities}
}

func (a *Authenticator) Authenticate(ctx context.Context, token string) (Principal, error) {
	claims, err := a.tokens.ValidateToken(ctx, token)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if claims.Subject == "" {
		return Principal{}, fmt.Errorf("%w: token has no subject", ErrInvalidCredential)
	}
	p := Principal{UserID: types.ID(claims.Subject)}

	if a.identities != nil {
		role, err := a.identities.RoleOf(ctx, p.UserID)
		if errors.Is(err, ErrUnknownIdentity) {
			return Principal{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
		}
		if err != nil {
			return Principal{}, err
		}
		p.Role = role
		return p, nil
	}

	role, ok := ParseRole(claims.Role)
	if !ok {
		return Principal{}, fmt.Errorf("%w: unknown role %q", ErrInvalidCredential, claims.Role)
	}
	p.Role = role
	return p, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(header string) string {
	parts := strings.Fields(header)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}

// TokenFromRequest looks for a credential in the query string (token, access
// or jwt) and then in the Authorization header. Browsers cannot set headers on
// websocket handshakes, hence the query fallback.
func TokenFromRequest(r *http.Request) string {
	q := r.URL.Query()
	for _, key := range []string{"token", "access", "jwt"} {
		if v := strings.TrimSpace(q.Get(key)); v != "" {
			return v
		}
	}
	return BearerToken(r.Header.Get("Authorization"))
}
