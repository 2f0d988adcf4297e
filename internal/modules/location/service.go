// README: Location service relays rider pings to the order's realtime group.
package location

import (
	"context"

	"go.uber.org/zap"

	"courier/internal/types"
)

type Publisher interface {
	PublishLocation(ctx context.Context, orderID, riderID types.ID, lat, lng float64)
}

// PositionStore remembers the last relayed position per rider.
type PositionStore interface {
	SetPosition(ctx context.Context, riderUserID types.ID, p types.Point) error
}

type Service struct {
	pub       Publisher
	positions PositionStore
	log       *zap.Logger
}

// NewService builds the relay; positions may be nil when Redis is not configured.
func NewService(pub Publisher, positions PositionStore, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{pub: pub, positions: positions, log: log}
}

// Relay publishes an accepted ping stamped with the sender's user id.
func (s *Service) Relay(ctx context.Context, riderUserID types.ID, p Ping) {
	s.pub.PublishLocation(ctx, p.OrderID, riderUserID, p.Lat, p.Lng)
	if s.positions == nil {
		return
	}
	if err := s.positions.SetPosition(ctx, riderUserID, types.Point{Lat: p.Lat, Lng: p.Lng}); err != nil {
		s.log.Warn("store rider position", zap.String("user_id", riderUserID.String()), zap.Error(err))
	}
}
