// README: Last known rider positions kept in a Redis GEO set.
package location

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"courier/internal/types"
)

const positionsKey = "courier:rider_positions"

var ErrNoPosition = errors.New("no known position")

type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

func (s *Store) SetPosition(ctx context.Context, riderUserID types.ID, p types.Point) error {
	return s.redis.GeoAdd(ctx, positionsKey, &redis.GeoLocation{
		Name:      riderUserID.String(),
		Longitude: p.Lng,
		Latitude:  p.Lat,
	}).Err()
}

func (s *Store) Position(ctx context.Context, riderUserID types.ID) (types.Point, error) {
	pos, err := s.redis.GeoPos(ctx, positionsKey, riderUserID.String()).Result()
	if err != nil {
		return types.Point{}, err
	}
	if len(pos) == 0 || pos[0] == nil {
		return types.Point{}, ErrNoPosition
	}
	return types.Point{Lat: pos[0].Latitude, Lng: pos[0].Longitude}, nil
}
