// Package handler exposes the HTTP surface: payment-intent creation,
// payment verification, order lookup and status management, and the
// read-only product catalog.
package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/niranji/storefront-api/internal/domain/checkout"
	"github.com/niranji/storefront-api/internal/domain/order"
	"github.com/niranji/storefront-api/internal/domain/product"
	"github.com/niranji/storefront-api/internal/gateway"
)

// Finalizer runs the payment-verification and order-finalization workflow.
type Finalizer interface {
	FinalizeOrder(ctx context.Context, req checkout.Request) (*order.Order, error)
}

// Handler holds the route handlers and their domain dependencies.
type Handler struct {
	checkout Finalizer
	orders   order.Repository
	products product.Repository
	gateway  gateway.Client
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	checkoutSvc Finalizer,
	orders order.Repository,
	products product.Repository,
	gw gateway.Client,
) *Handler {
	return &Handler{
		checkout: checkoutSvc,
		orders:   orders,
		products: products,
		gateway:  gw,
	}
}

// RegisterRoutes mounts all API routes under /api.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")

	api.POST("/payment", h.CreatePayment)
	api.POST("/payment/verify", h.VerifyPayment)

	api.GET("/order/user/:userId", h.GetOrdersByUser)
	api.GET("/order/email/:email", h.GetOrdersByEmail)
	api.PATCH("/order/:orderId/status", h.UpdateOrderStatus)

	api.GET("/products", h.ListProducts)
	api.GET("/products/:id", h.GetProduct)
}
