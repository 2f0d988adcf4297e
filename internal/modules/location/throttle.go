// README: Per-connection cooldown for location pings.
package location

import (
	"time"

	"golang.org/x/time/rate"
)

const DefaultInterval = time.Second

// Throttle admits at most one ping per interval. It is owned by a single
// connection.
type Throttle struct {
	lim *rate.Limiter
}

func NewThrottle(interval time.Duration) *Throttle {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Throttle{lim: rate.NewLimiter(rate.Every(interval), 1)}
}

// AllowAt consumes the token if one is available at now.
func (t *Throttle) AllowAt(now time.Time) bool {
	return t.lim.AllowN(now, 1)
}
