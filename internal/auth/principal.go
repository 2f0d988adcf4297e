// Package auth resolves bearer credentials into principals (identity + role).
package auth

import (
	"errors"

	"courier/internal/types"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
	RoleRider    Role = "rider"
	RoleAdmin    Role = "admin"
)

var (
	ErrInvalidCredential = errors.New("invalid credential")
	ErrUnknownIdentity   = errors.New("unknown identity")
)

// ParseRole maps a stored or claimed role name onto the closed role set.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleCustomer, RoleVendor, RoleRider, RoleAdmin:
		return Role(s), true
	default:
		return "", false
	}
}

type Principal struct {
	UserID types.ID
	Role   Role
}
