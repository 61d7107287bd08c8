package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

func init() {
	// Monetary values render as JSON numbers, matching the storefront
	// client contract, instead of shopspring's default quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// Sentinel errors surfaced by Repository implementations.
var (
	// ErrNotFound is returned when no order matches the given identifier.
	ErrNotFound = errors.New("order not found")
	// ErrDuplicateOrderID is returned when a create collides on the
	// human-readable order id. The caller regenerates the id and retries.
	ErrDuplicateOrderID = errors.New("duplicate order id")
	// ErrDuplicatePayment is returned when a create collides on the payment
	// id, i.e. the payment was already finalized into an order.
	ErrDuplicatePayment = errors.New("payment already finalized")
)

// SizeTier is a named size variant with its unit price.
type SizeTier struct {
	Size  string          `json:"size"`
	Price decimal.Decimal `json:"price"`
}

// CartLine is a snapshot of one purchasable item taken at checkout time.
// It is a copy of catalog data, not a live reference: later catalog edits
// never alter a placed order.
type CartLine struct {
	ProductID    string   `json:"productId"`
	Name         string   `json:"name"`
	SelectedSize SizeTier `json:"selectedSize"`
	Quantity     int      `json:"quantity"`
	Image        string   `json:"image,omitempty"`
}

// LineTotal returns quantity times unit price.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.SelectedSize.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Address holds postal and contact details for shipping or billing.
// Fields are presence-validated only; blanks render blank downstream.
type Address struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
}

// Order is the durable record of a paid checkout. OrderID is the unique
// human-readable identifier shown to the customer; PaymentID is the
// gateway's payment reference and doubles as the idempotency key.
type Order struct {
	ID             string
	OrderID        string
	PaymentID      string
	GatewayOrderID string
	UserID         string
	Email          string
	Shipping       Address
	Billing        Address
	Cart           []CartLine
	Total          decimal.Decimal
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CartTotal returns the sum of all line totals.
func (o *Order) CartTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range o.Cart {
		sum = sum.Add(l.LineTotal())
	}
	return sum
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create persists a new order atomically: either the full document is
	// recorded or nothing is. Collisions on OrderID and PaymentID surface
	// as ErrDuplicateOrderID and ErrDuplicatePayment respectively.
	Create(ctx context.Context, o *Order) error
	// UpdateStatus transitions an order to the given status and returns the
	// updated record. It fails with ErrNotFound when no order carries the
	// id and ErrTerminalStatus when the order is Delivered or Cancelled.
	UpdateStatus(ctx context.Context, orderID string, status Status) (*Order, error)
	// FindByOrderID returns the order with the given human-readable id.
	FindByOrderID(ctx context.Context, orderID string) (*Order, error)
	// FindByPaymentID returns the order finalized from the given payment,
	// or ErrNotFound.
	FindByPaymentID(ctx context.Context, paymentID string) (*Order, error)
	// FindByUser returns all orders owned by the user, newest first.
	FindByUser(ctx context.Context, userID string) ([]Order, error)
	// FindByEmail returns all orders whose shipping or billing email
	// matches, newest first.
	FindByEmail(ctx context.Context, email string) ([]Order, error)
}
