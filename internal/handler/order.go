package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/niranji/storefront-api/internal/domain/order"
)

// GetOrdersByUser returns a user's orders, newest first.
func (h *Handler) GetOrdersByUser(c *gin.Context) {
	userID := c.Param("userId")
	ctx := c.Request.Context()

	orders, err := h.orders.FindByUser(ctx, userID)
	if err != nil {
		zctx.From(ctx).Error("Order lookup failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch orders."})
		return
	}
	if len(orders) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": "No orders found for this user."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "orders": toOrderResponses(orders)})
}

// GetOrdersByEmail returns orders whose shipping or billing email matches,
// newest first.
func (h *Handler) GetOrdersByEmail(c *gin.Context) {
	email := c.Param("email")
	ctx := c.Request.Context()

	orders, err := h.orders.FindByEmail(ctx, email)
	if err != nil {
		zctx.From(ctx).Error("Order lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch orders."})
		return
	}
	if len(orders) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": "No orders found for this user."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "orders": toOrderResponses(orders)})
}

// UpdateOrderStatus transitions an order through its lifecycle. Values
// outside the fixed enumeration are rejected and the order left untouched;
// Delivered and Cancelled orders refuse any further transition.
func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	orderID := c.Param("orderId")

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body"})
		return
	}

	status, err := order.ParseStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid status."})
		return
	}

	ctx := c.Request.Context()
	updated, err := h.orders.UpdateStatus(ctx, orderID, status)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"message": "Order not found."})
		case errors.Is(err, order.ErrInvalidStatus):
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid status."})
		case errors.Is(err, order.ErrTerminalStatus):
			c.JSON(http.StatusConflict, gin.H{"message": "Order status can no longer be changed."})
		default:
			zctx.From(ctx).Error("Status update failed", zap.String("order_id", orderID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to update order status."})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "order": toOrderResponse(updated)})
}
