// README: Access records describe who may observe an order in realtime.
package access

import (
	"errors"

	"courier/internal/auth"
	"courier/internal/types"
)

var ErrNotFound = errors.New("order not found")

// Record names the three identities tied to an order. RiderOwnerID is nil
// until a rider is assigned.
type Record struct {
	CustomerID    types.ID  `json:"customer_id"`
	VendorOwnerID types.ID  `json:"vendor_owner_id"`
	RiderOwnerID  *types.ID `json:"rider_owner_id,omitempty"`
}

// Cacheable reports whether the record is complete enough to be cached.
func (r Record) Cacheable() bool {
	return r.VendorOwnerID != ""
}

// Allows matches the principal against the slot of its own role only.
func (r Record) Allows(p auth.Principal) bool {
	if p.UserID == "" {
		return false
	}
	switch p.Role {
	case auth.RoleCustomer:
		return r.CustomerID == p.UserID
	case auth.RoleVendor:
		return r.VendorOwnerID != "" && r.VendorOwnerID == p.UserID
	case auth.RoleRider:
		return r.RiderOwnerID != nil && *r.RiderOwnerID == p.UserID
	case auth.RoleAdmin:
		return false
	default:
		return false
	}
}
