package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"courier/internal/types"
)

// Store reads roles from the users table owned by the identity service.
type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) RoleOf(ctx context.Context, userID types.ID) (Role, error) {
	var name string
	err := s.db.QueryRow(ctx, `SELECT role FROM users WHERE id = $1 AND is_active`, string(userID)).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrUnknownIdentity
	}
	if err != nil {
		return "", err
	}
	role, ok := ParseRole(name)
	if !ok {
		return "", fmt.Errorf("%w: user %s has role %q", ErrUnknownIdentity, userID, name)
	}
	return role, nil
}
