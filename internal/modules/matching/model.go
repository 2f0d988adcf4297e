// README: Dispatch-relevant rider projection and assignment candidates.
package matching

import "courier/internal/types"

type Verification string

const (
	VerificationPending  Verification = "pending"
	VerificationApproved Verification = "approved"
	VerificationRejected Verification = "rejected"
)

// Rider is the slice of a rider profile the assignment engine reads.
// Location is nil unless both coordinates are known.
type Rider struct {
	ID           types.ID
	UserID       types.ID
	Online       bool
	Verification Verification
	Location     *types.Point
}

// Eligible reports whether the rider can be offered an order.
func (r Rider) Eligible() bool {
	return r.Online && r.Verification == VerificationApproved && r.Location != nil
}

type Candidate struct {
	Rider      Rider
	DistanceKm float64
}
