// README: Shared value objects used across modules (ids, coordinates, money).
package types

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ID is an opaque identifier. Orders use random UUIDs; users, riders and vendors
// carry whatever identity the collaborating stores hand out.
type ID string

func NewID() ID {
	return ID(uuid.NewString())
}

func (id ID) String() string { return string(id) }

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Money is a fixed-point amount at currency scale.
type Money = decimal.Decimal

// MoneyScale is the number of fractional digits persisted for amounts.
const MoneyScale = 2
