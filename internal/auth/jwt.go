package auth

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

type jwtClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// JWTValidator verifies HS256 access tokens. The subject is taken from the
// user_id claim, falling back to sub.
type JWTValidator struct {
	secret []byte
	parser *jwt.Parser
}

func NewJWTValidator(secret []byte) *JWTValidator {
	return &JWTValidator{
		secret: secret,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

func (v *JWTValidator) ValidateToken(_ context.Context, token string) (Claims, error) {
	if len(v.secret) == 0 {
		return Claims{}, errors.New("jwt secret not configured")
	}
	claims := &jwtClaims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return Claims{}, err
	}
	if !parsed.Valid {
		return Claims{}, jwt.ErrSignatureInvalid
	}
	sub := claims.UserID
	if sub == "" {
		sub = claims.Subject
	}
	return Claims{Subject: sub, Role: claims.Role}, nil
}
