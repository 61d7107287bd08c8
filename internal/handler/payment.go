package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/niranji/storefront-api/internal/domain/checkout"
)

// CreatePayment opens a payment intent with the gateway for the given
// amount (currency minor units) and returns the gateway-side identifiers.
func (h *Handler) CreatePayment(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be greater than 0"})
		return
	}

	ctx := c.Request.Context()
	intent, err := h.gateway.CreateIntent(ctx, req.Amount)
	if err != nil {
		zctx.From(ctx).Error("Gateway order creation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create order"})
		return
	}

	c.JSON(http.StatusOK, createPaymentResponse{
		ID:      intent.ID,
		Amount:  intent.Amount,
		OrderID: intent.ID,
	})
}

// VerifyPayment authenticates a payment confirmation and finalizes the
// order. The caller only ever sees success with the new order id, or a
// failure implying no order was recorded.
func (h *Handler) VerifyPayment(c *gin.Context) {
	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	o, err := h.checkout.FinalizeOrder(ctx, checkout.Request{
		PaymentID:      req.PaymentID,
		GatewayOrderID: req.GatewayOrderID,
		Signature:      req.Signature,
		UserID:         req.UserID,
		Email:          req.Email,
		Shipping:       req.Shipping,
		Billing:        req.Billing,
		Cart:           req.Cart,
		Total:          req.Total,
	})
	if err != nil {
		var invalid *checkout.InvalidInputError
		switch {
		case errors.As(err, &invalid):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": invalid.Error()})
		case errors.Is(err, checkout.ErrSignatureMismatch):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Payment verification failed"})
		default:
			zctx.From(ctx).Error("Order finalization failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to save order"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "orderId": o.OrderID})
}
