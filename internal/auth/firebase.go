package auth

import (
	"context"

	"courier/internal/infra"
)

// FirebaseValidator adapts a Firebase ID token verifier. The role comes from
// the "role" custom claim when present.
type FirebaseValidator struct {
	verifier infra.TokenVerifier
}

func NewFirebaseValidator(v infra.TokenVerifier) *FirebaseValidator {
	return &FirebaseValidator{verifier: v}
}

func (f *FirebaseValidator) ValidateToken(ctx context.Context, token string) (Claims, error) {
	t, err := f.verifier.VerifyIDToken(ctx, token)
	if err != nil {
		return Claims{}, err
	}
	role, _ := t.Claims["role"].(string)
	return Claims{Subject: t.UID, Role: role}, nil
}
