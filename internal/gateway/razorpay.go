// Package gateway wraps the payment gateway's order-creation surface. Fund
// capture and everything behind it belongs to the gateway; this package
// only opens payment intents and reports their gateway-side identifiers.
package gateway

import (
	"context"

	"github.com/go-faster/errors"
	razorpay "github.com/razorpay/razorpay-go"
)

// PaymentIntent is a gateway-side payment awaiting capture. ID is the
// gateway's own order identifier, distinct from the internal order id
// minted at verification time.
type PaymentIntent struct {
	ID       string
	Amount   int64
	Currency string
}

// Client opens payment intents with the gateway.
type Client interface {
	CreateIntent(ctx context.Context, amount int64) (*PaymentIntent, error)
}

var _ Client = (*RazorpayClient)(nil)

// RazorpayClient implements Client against the Razorpay Orders API.
type RazorpayClient struct {
	client   *razorpay.Client
	currency string
}

// NewRazorpayClient creates a gateway client with the given API credentials.
func NewRazorpayClient(keyID, keySecret, currency string) *RazorpayClient {
	return &RazorpayClient{
		client:   razorpay.NewClient(keyID, keySecret),
		currency: currency,
	}
}

// CreateIntent opens a payment intent for the given amount in currency
// minor units (paise).
func (c *RazorpayClient) CreateIntent(_ context.Context, amount int64) (*PaymentIntent, error) {
	data := map[string]interface{}{
		"amount":   amount,
		"currency": c.currency,
	}
	resp, err := c.client.Order.Create(data, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create gateway order")
	}

	id, ok := resp["id"].(string)
	if !ok || id == "" {
		return nil, errors.New("gateway response missing order id")
	}

	return &PaymentIntent{
		ID:       id,
		Amount:   amount,
		Currency: c.currency,
	}, nil
}
