// README: Rider handlers (delivery lifecycle, earnings, availability).
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"courier/internal/http/middleware"
	"courier/internal/modules/order"
	"courier/internal/modules/rider"
	"courier/internal/types"
)

type RiderOrders interface {
	Accept(ctx context.Context, cmd order.RiderCommand) (*order.Order, error)
	MarkPicked(ctx context.Context, cmd order.RiderCommand) (*order.Order, error)
	MarkDelivered(ctx context.Context, cmd order.RiderCommand) (*order.Order, error)
	ActiveForRider(ctx context.Context, riderID types.ID) (*order.Order, error)
	Earnings(ctx context.Context, riderID types.ID) (order.Earnings, error)
}

type RiderProfiles interface {
	GetOrCreate(ctx context.Context, userID types.ID) (*rider.Profile, error)
	SetOnline(ctx context.Context, userID types.ID, online bool) (*rider.Profile, error)
	UpdateLocation(ctx context.Context, userID types.ID, p types.Point) (*rider.Profile, error)
}

type RiderHandler struct {
	orders RiderOrders
	riders RiderProfiles
}

func NewRiderHandler(orders RiderOrders, riders RiderProfiles) *RiderHandler {
	return &RiderHandler{orders: orders, riders: riders}
}

// profile resolves the caller's rider row, creating it on first use.
func (h *RiderHandler) profile(c *gin.Context) (*rider.Profile, bool) {
	p, err := h.riders.GetOrCreate(c.Request.Context(), middleware.CallerUID(c))
	if err != nil {
		writeRiderError(c, err)
		return nil, false
	}
	return p, true
}

func (h *RiderHandler) Me(c *gin.Context) {
	p, ok := h.profile(c)
	if !ok {
		return
	}
	writeJSON(c, http.StatusOK, p)
}

type onlineReq struct {
	Online *bool `json:"is_online"`
}

func (h *RiderHandler) SetOnline(c *gin.Context) {
	var req onlineReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Online == nil {
		writeError(c, http.StatusBadRequest, "is_online is required")
		return
	}
	p, err := h.riders.SetOnline(c.Request.Context(), middleware.CallerUID(c), *req.Online)
	if err != nil {
		writeRiderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

type locationReq struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

func (h *RiderHandler) UpdateLocation(c *gin.Context) {
	var req locationReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Lat == nil || req.Lng == nil {
		writeError(c, http.StatusBadRequest, "lat and lng are required")
		return
	}
	p, err := h.riders.UpdateLocation(c.Request.Context(), middleware.CallerUID(c), types.Point{Lat: *req.Lat, Lng: *req.Lng})
	if err != nil {
		writeRiderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

func (h *RiderHandler) Active(c *gin.Context) {
	p, ok := h.profile(c)
	if !ok {
		return
	}
	o, err := h.orders.ActiveForRider(c.Request.Context(), p.ID)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toOrderResponse(o))
}

func (h *RiderHandler) Earnings(c *gin.Context) {
	p, ok := h.profile(c)
	if !ok {
		return
	}
	e, err := h.orders.Earnings(c.Request.Context(), p.ID)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"delivered_orders": e.DeliveredOrders,
		"total_delivered":  e.TotalDelivered.StringFixed(types.MoneyScale),
	})
}

func (h *RiderHandler) Accept(c *gin.Context) {
	h.transition(c, h.orders.Accept)
}

func (h *RiderHandler) Picked(c *gin.Context) {
	h.transition(c, h.orders.MarkPicked)
}

func (h *RiderHandler) Delivered(c *gin.Context) {
	h.transition(c, h.orders.MarkDelivered)
}

func (h *RiderHandler) transition(c *gin.Context, fn func(context.Context, order.RiderCommand) (*order.Order, error)) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	p, ok := h.profile(c)
	if !ok {
		return
	}
	o, err := fn(c.Request.Context(), order.RiderCommand{OrderID: id, RiderID: p.ID, RiderUserID: p.UserID})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toOrderResponse(o))
}
