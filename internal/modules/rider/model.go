// README: Rider profile as managed by the rider themselves.
package rider

import (
	"courier/internal/modules/matching"
	"courier/internal/types"
)

type Profile struct {
	ID           types.ID              `json:"id"`
	UserID       types.ID              `json:"user_id"`
	Online       bool                  `json:"is_online"`
	Verification matching.Verification `json:"kyc_status"`
	Location     *types.Point          `json:"current_location,omitempty"`
}

// Dispatch is the projection the assignment engine works with.
func (p Profile) Dispatch() matching.Rider {
	return matching.Rider{
		ID:           p.ID,
		UserID:       p.UserID,
		Online:       p.Online,
		Verification: p.Verification,
		Location:     p.Location,
	}
}
