// README: Matching service selects the nearest eligible rider for an order.
package matching

import (
	"context"

	"go.uber.org/zap"

	"courier/internal/modules/location"
	"courier/internal/types"
)

// RiderPool yields the riders that may be considered for assignment. The order
// module passes its open unit of work so the read happens inside the same
// transaction as the order insert.
type RiderPool interface {
	EligibleRiders(ctx context.Context) ([]Rider, error)
}

type Service struct {
	log *zap.Logger
}

func NewService(log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{log: log}
}

// Assign picks the nearest eligible rider to origin. ok is false when the pool
// has no eligible rider; that is not an error.
func (s *Service) Assign(ctx context.Context, pool RiderPool, origin types.Point) (Candidate, bool, error) {
	riders, err := pool.EligibleRiders(ctx)
	if err != nil {
		return Candidate{}, false, err
	}
	c, ok := Nearest(origin, riders)
	if !ok {
		s.log.Debug("no eligible rider", zap.Int("pool", len(riders)))
		return Candidate{}, false, nil
	}
	s.log.Debug("rider selected",
		zap.String("rider_id", string(c.Rider.ID)),
		zap.Float64("distance_km", c.DistanceKm),
	)
	return c, true, nil
}

// Nearest filters riders down to eligible ones and returns the closest to
// origin. Equal distances keep the first rider encountered.
func Nearest(origin types.Point, riders []Rider) (Candidate, bool) {
	var best Candidate
	found := false
	for _, r := range riders {
		if !r.Eligible() {
			continue
		}
		d := location.HaversineKm(origin.Lat, origin.Lng, r.Location.Lat, r.Location.Lng)
		if !found || d < best.DistanceKm {
			best = Candidate{Rider: r, DistanceKm: d}
			found = true
		}
	}
	return best, found
}
