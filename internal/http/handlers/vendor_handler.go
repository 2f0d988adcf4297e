// README: Vendor handlers (incoming orders and kitchen-side transitions).
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"courier/internal/http/middleware"
	"courier/internal/modules/order"
	"courier/internal/types"
)

type VendorOrders interface {
	GetForVendor(ctx context.Context, ownerID, id types.ID) (*order.Order, error)
	ListForVendor(ctx context.Context, ownerID types.ID, status *order.Status) ([]order.Order, error)
	VendorAccept(ctx context.Context, cmd order.VendorCommand) (*order.Order, error)
	MarkReady(ctx context.Context, cmd order.VendorCommand) (*order.Order, error)
	Cancel(ctx context.Context, cmd order.VendorCommand) (*order.Order, error)
	Reject(ctx context.Context, cmd order.VendorCommand) (*order.Order, error)
}

type VendorHandler struct {
	orders VendorOrders
}

func NewVendorHandler(orders VendorOrders) *VendorHandler {
	return &VendorHandler{orders: orders}
}

func (h *VendorHandler) List(c *gin.Context) {
	var filter *order.Status
	if raw := c.Query("status"); raw != "" {
		st, ok := order.ParseStatus(raw)
		if !ok {
			writeError(c, http.StatusBadRequest, "unknown status")
			return
		}
		filter = &st
	}
	orders, err := h.orders.ListForVendor(c.Request.Context(), middleware.CallerUID(c), filter)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toOrderList(orders))
}

func (h *VendorHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	o, err := h.orders.GetForVendor(c.Request.Context(), middleware.CallerUID(c), id)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toOrderResponse(o))
}

func (h *VendorHandler) Accept(c *gin.Context) { h.transition(c, h.orders.VendorAccept) }
func (h *VendorHandler) Ready(c *gin.Context)  { h.transition(c, h.orders.MarkReady) }
func (h *VendorHandler) Cancel(c *gin.Context) { h.transition(c, h.orders.Cancel) }
func (h *VendorHandler) Reject(c *gin.Context) { h.transition(c, h.orders.Reject) }

func (h *VendorHandler) transition(c *gin.Context, fn func(context.Context, order.VendorCommand) (*order.Order, error)) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	o, err := fn(c.Request.Context(), order.VendorCommand{OrderID: id, OwnerID: middleware.CallerUID(c)})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toOrderResponse(o))
}
