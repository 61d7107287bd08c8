package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/niranji/storefront-api/internal/domain/order"
	"github.com/niranji/storefront-api/internal/domain/product"
)

type createPaymentRequest struct {
	Amount int64 `json:"amount"`
}

type createPaymentResponse struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
	// OrderID is the gateway's own order identifier, distinct from the
	// internal id minted at verification time.
	OrderID string `json:"orderId"`
}

type verifyPaymentRequest struct {
	PaymentID      string           `json:"paymentId"`
	GatewayOrderID string           `json:"gatewayOrderId"`
	Signature      string           `json:"signature"`
	UserID         string           `json:"userId"`
	Email          string           `json:"email"`
	Shipping       order.Address    `json:"shipping"`
	Billing        order.Address    `json:"billing"`
	Cart           []order.CartLine `json:"cart"`
	Total          decimal.Decimal  `json:"total"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type orderResponse struct {
	OrderID        string           `json:"orderId"`
	PaymentID      string           `json:"paymentId"`
	GatewayOrderID string           `json:"gatewayOrderId,omitempty"`
	UserID         string           `json:"userId"`
	Email          string           `json:"email"`
	Shipping       order.Address    `json:"shipping"`
	Billing        order.Address    `json:"billing"`
	Cart           []order.CartLine `json:"cart"`
	Total          float64          `json:"total"`
	Status         string           `json:"status"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

func toOrderResponse(o *order.Order) orderResponse {
	return orderResponse{
		OrderID:        o.OrderID,
		PaymentID:      o.PaymentID,
		GatewayOrderID: o.GatewayOrderID,
		UserID:         o.UserID,
		Email:          o.Email,
		Shipping:       o.Shipping,
		Billing:        o.Billing,
		Cart:           o.Cart,
		Total:          o.Total.InexactFloat64(),
		Status:         string(o.Status),
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

func toOrderResponses(orders []order.Order) []orderResponse {
	out := make([]orderResponse, len(orders))
	for i := range orders {
		out[i] = toOrderResponse(&orders[i])
	}
	return out
}

type sizeTierResponse struct {
	Size  string  `json:"size"`
	Price float64 `json:"price"`
}

type productResponse struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Description  string             `json:"description,omitempty"`
	Category     string             `json:"category,omitempty"`
	Images       []string           `json:"images"`
	PricePerSize []sizeTierResponse `json:"pricePerSize"`
}

func toProductResponse(p *product.Product) productResponse {
	tiers := make([]sizeTierResponse, len(p.PricePerSize))
	for i, t := range p.PricePerSize {
		tiers[i] = sizeTierResponse{Size: t.Size, Price: t.Price.InexactFloat64()}
	}
	return productResponse{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		Category:     p.Category,
		Images:       p.Images,
		PricePerSize: tiers,
	}
}
