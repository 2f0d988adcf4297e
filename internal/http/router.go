// README: HTTP router registration.
package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"courier/internal/auth"
	"courier/internal/http/handlers"
	"courier/internal/http/middleware"
)

type RouterDeps struct {
	Authenticator middleware.Authenticator
	Customer      *handlers.CustomerHandler
	Rider         *handlers.RiderHandler
	Vendor        *handlers.VendorHandler
	Health        *handlers.HealthHandler
	// Realtime mounts the websocket endpoints; optional.
	Realtime    interface{ Register(gin.IRoutes) }
	CORSOrigins []string
	Log         *zap.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logging(deps.Log),
		middleware.Recovery(deps.Log),
		middleware.CORS(deps.CORSOrigins),
	)

	r.GET("/health", deps.Health.Live)
	r.GET("/ready", deps.Health.Ready)

	api := r.Group("/api", middleware.Auth(deps.Authenticator))

	customer := api.Group("/customer", middleware.RequireRole(auth.RoleCustomer))
	customer.POST("/orders", deps.Customer.Create)
	customer.GET("/orders", deps.Customer.List)
	customer.GET("/orders/:id", deps.Customer.Get)

	rider := api.Group("/rider", middleware.RequireRole(auth.RoleRider))
	rider.GET("/me", deps.Rider.Me)
	rider.PUT("/online", deps.Rider.SetOnline)
	rider.PUT("/location", deps.Rider.UpdateLocation)
	rider.GET("/earnings", deps.Rider.Earnings)
	rider.GET("/orders/active", deps.Rider.Active)
	rider.POST("/orders/:id/accept", deps.Rider.Accept)
	rider.POST("/orders/:id/picked", deps.Rider.Picked)
	rider.POST("/orders/:id/delivered", deps.Rider.Delivered)

	vendor := api.Group("/vendor", middleware.RequireRole(auth.RoleVendor))
	vendor.GET("/orders", deps.Vendor.List)
	vendor.GET("/orders/:id", deps.Vendor.Get)
	vendor.POST("/orders/:id/accept", deps.Vendor.Accept)
	vendor.POST("/orders/:id/ready", deps.Vendor.Ready)
	vendor.POST("/orders/:id/reject", deps.Vendor.Reject)
	vendor.POST("/orders/:id/cancel", deps.Vendor.Cancel)

	if deps.Realtime != nil {
		deps.Realtime.Register(r)
	}
	return r
}
