// README: Wire representations of orders.
package handlers

import (
	"time"

	"courier/internal/modules/order"
	"courier/internal/types"
)

type orderLineResponse struct {
	ProductID types.ID `json:"product_id"`
	Quantity  int      `json:"quantity"`
	Price     string   `json:"price"`
}

type orderResponse struct {
	ID                types.ID            `json:"id"`
	CustomerID        types.ID            `json:"customer_id"`
	VendorID          types.ID            `json:"vendor_id"`
	RiderID           *types.ID           `json:"rider_id"`
	DeliveryAddressID *types.ID           `json:"delivery_address_id"`
	Status            order.Status        `json:"status"`
	TotalAmount       string              `json:"total_amount"`
	PaymentMethod     order.PaymentMethod `json:"payment_method"`
	PaymentStatus     order.PaymentStatus `json:"payment_status"`
	Lines             []orderLineResponse `json:"items"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// Amounts are rendered at currency scale so clients never see float noise.
func toOrderResponse(o *order.Order) orderResponse {
	lines := make([]orderLineResponse, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, orderLineResponse{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Price:     l.Price.StringFixed(types.MoneyScale),
		})
	}
	return orderResponse{
		ID:                o.ID,
		CustomerID:        o.CustomerID,
		VendorID:          o.VendorID,
		RiderID:           o.RiderID,
		DeliveryAddressID: o.DeliveryAddressID,
		Status:            o.Status,
		TotalAmount:       o.TotalAmount.StringFixed(types.MoneyScale),
		PaymentMethod:     o.PaymentMethod,
		PaymentStatus:     o.PaymentStatus,
		Lines:             lines,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

func toOrderList(orders []order.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, toOrderResponse(&orders[i]))
	}
	return out
}
