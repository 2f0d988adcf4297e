// README: Rider service resolves the caller's rider profile and updates it.
package rider

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"courier/internal/modules/location"
	"courier/internal/types"
)

var (
	ErrNotFound   = errors.New("rider not found")
	ErrBadRequest = errors.New("bad request")
)

type Store interface {
	// GetOrCreate returns the profile of userID, creating a pending offline
	// one on first use.
	GetOrCreate(ctx context.Context, userID types.ID) (*Profile, error)
	SetOnline(ctx context.Context, userID types.ID, online bool) (*Profile, error)
	SetLocation(ctx context.Context, userID types.ID, p types.Point) (*Profile, error)
}

type Service struct {
	store Store
	log   *zap.Logger
}

func NewService(store Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, log: log}
}

func (s *Service) GetOrCreate(ctx context.Context, userID types.ID) (*Profile, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrBadRequest)
	}
	return s.store.GetOrCreate(ctx, userID)
}

func (s *Service) SetOnline(ctx context.Context, userID types.ID, online bool) (*Profile, error) {
	p, err := s.store.SetOnline(ctx, userID, online)
	if err != nil {
		return nil, err
	}
	s.log.Info("rider availability changed", zap.String("user_id", userID.String()), zap.Bool("online", online))
	return p, nil
}

func (s *Service) UpdateLocation(ctx context.Context, userID types.ID, p types.Point) (*Profile, error) {
	if !location.ValidPoint(p.Lat, p.Lng) {
		return nil, fmt.Errorf("%w: coordinates out of range", ErrBadRequest)
	}
	return s.store.SetLocation(ctx, userID, p)
}
