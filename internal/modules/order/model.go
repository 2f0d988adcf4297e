// README: Order aggregate, status flow and audit events.
package order

import (
	"time"

	"github.com/shopspring/decimal"

	"courier/internal/types"
)

type Status string

const (
	StatusNone      Status = "none"
	StatusPlaced    Status = "placed"
	StatusAccepted  Status = "accepted"
	StatusReady     Status = "ready"
	StatusPicked    Status = "picked"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// ParseStatus accepts only states an order can actually be in.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPlaced, StatusAccepted, StatusReady, StatusPicked, StatusDelivered, StatusCancelled:
		return Status(s), true
	default:
		return "", false
	}
}

type PaymentMethod string

const (
	PaymentCOD    PaymentMethod = "cod"
	PaymentOnline PaymentMethod = "online"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// Actor types recorded on order_state_events.
const (
	ActorCustomer = "customer"
	ActorVendor   = "vendor"
	ActorRider    = "rider"
	ActorSystem   = "system"
)

// Event names published to an order's realtime group.
const (
	EventPlaced    = "order_placed"
	EventAccepted  = "order_accepted"
	EventReady     = "order_ready"
	EventPicked    = "order_picked"
	EventDelivered = "order_delivered"
	EventCancelled = "order_cancelled"
	EventRejected  = "order_rejected"
)

type Order struct {
	ID                types.ID
	CustomerID        types.ID
	VendorID          types.ID
	RiderID           *types.ID
	DeliveryAddressID *types.ID
	Status            Status
	StatusVersion     int
	TotalAmount       types.Money
	PaymentMethod     PaymentMethod
	PaymentStatus     PaymentStatus
	Lines             []Line
	CreatedAt         time.Time
	UpdatedAt         time.Time

	// Loaded with the order, never written through it.
	VendorOwnerID types.ID
	RiderUserID   *types.ID
}

type Line struct {
	ProductID types.ID
	Quantity  int
	Price     types.Money
}

// Subtotal is the line's contribution to the order total.
func (l Line) Subtotal() types.Money {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Event struct {
	ID         int64
	OrderID    types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    *types.ID
	CreatedAt  time.Time
}

// Vendor is the dispatch view of a shop.
type Vendor struct {
	ID       types.ID
	OwnerID  types.ID
	Location types.Point
	Open     bool
}

// Product is the catalog row locked while stock is reserved.
type Product struct {
	ID       types.ID
	VendorID types.ID
	Price    types.Money
	Stock    int
	Active   bool
}

type Earnings struct {
	DeliveredOrders int         `json:"delivered_orders"`
	TotalDelivered  types.Money `json:"total_delivered_amount"`
}

// AllowedTransitions represents the order state flow (diagram) as code.
var AllowedTransitions = map[Status][]Status{
	StatusNone:     {StatusPlaced},
	StatusPlaced:   {StatusAccepted, StatusReady, StatusCancelled},
	StatusAccepted: {StatusReady, StatusPicked, StatusCancelled},
	StatusReady:    {StatusPicked, StatusCancelled},
	StatusPicked:   {StatusDelivered},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// ActiveStatuses are the states in which a rider is working the order.
var ActiveStatuses = []Status{StatusAccepted, StatusReady, StatusPicked}
