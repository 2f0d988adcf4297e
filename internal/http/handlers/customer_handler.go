// README: Customer handlers (place and read own orders).
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"courier/internal/http/middleware"
	"courier/internal/modules/order"
	"courier/internal/types"
)

type CustomerOrders interface {
	Create(ctx context.Context, cmd order.CreateCommand) (*order.Order, error)
	GetForCustomer(ctx context.Context, customerID, id types.ID) (*order.Order, error)
	ListForCustomer(ctx context.Context, customerID types.ID) ([]order.Order, error)
}

type CustomerHandler struct {
	orders CustomerOrders
}

func NewCustomerHandler(orders CustomerOrders) *CustomerHandler {
	return &CustomerHandler{orders: orders}
}

type createOrderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type createOrderReq struct {
	VendorID          string            `json:"vendor_id"`
	DeliveryAddressID *string           `json:"delivery_address_id"`
	PaymentMethod     string            `json:"payment_method"`
	Items             []createOrderItem `json:"items"`
}

func (h *CustomerHandler) Create(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid body")
		return
	}
	cmd := order.CreateCommand{
		CustomerID:    middleware.CallerUID(c),
		VendorID:      types.ID(req.VendorID),
		PaymentMethod: order.PaymentMethod(req.PaymentMethod),
	}
	if req.DeliveryAddressID != nil {
		id := types.ID(*req.DeliveryAddressID)
		cmd.AddressID = &id
	}
	for _, it := range req.Items {
		cmd.Lines = append(cmd.Lines, order.LineInput{ProductID: types.ID(it.ProductID), Quantity: it.Quantity})
	}

	o, err := h.orders.Create(c.Request.Context(), cmd)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, toOrderResponse(o))
}

func (h *CustomerHandler) List(c *gin.Context) {
	orders, err := h.orders.ListForCustomer(c.Request.Context(), middleware.CallerUID(c))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toOrderList(orders))
}

func (h *CustomerHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	o, err := h.orders.GetForCustomer(c.Request.Context(), middleware.CallerUID(c), id)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toOrderResponse(o))
}
