// Package checkout implements the payment-verification and
// order-finalization workflow: authenticate a gateway payment confirmation,
// convert the cart snapshot into a durable order, and dispatch best-effort
// notifications. An order must exist for every genuine payment; everything
// after persistence is allowed to fail without undoing that.
package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/niranji/storefront-api/internal/domain/order"
)

// ErrSignatureMismatch is returned when the claimed signature does not
// authenticate the payment confirmation. Nothing is persisted and nothing
// is notified.
var ErrSignatureMismatch = errors.New("payment verification failed")

// InvalidInputError indicates a malformed or missing required field,
// rejected before any cryptographic or storage work.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Verifier authenticates a payment confirmation payload.
type Verifier interface {
	Verify(gatewayOrderID, paymentID, claimed string) bool
}

// Role selects the notification rendering for a recipient.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleOperator Role = "operator"
)

// Notifier dispatches a role-specific notification for a finalized order.
// Implementations must not panic past their boundary; any failure is
// reported as an error and treated as best-effort by the caller.
type Notifier interface {
	Notify(ctx context.Context, role Role, o *order.Order) error
}

// Request is the payment-confirmation payload submitted by the client after
// the gateway reports a captured payment.
type Request struct {
	PaymentID      string
	GatewayOrderID string
	Signature      string
	UserID         string
	Email          string
	Shipping       order.Address
	Billing        order.Address
	Cart           []order.CartLine
	Total          decimal.Decimal
}

const (
	// maxIDAttempts bounds order-id regeneration on same-day collisions.
	maxIDAttempts = 5

	seenPaymentsCapacity = 1_000_000
	seenPaymentsFPR      = 0.01
)

// Service is the checkout orchestrator.
type Service struct {
	verifier Verifier
	idgen    *order.IDGenerator
	orders   order.Repository
	notifier Notifier

	notifyTimeout time.Duration

	// seenPayments is a fast path over already-finalized payment ids so
	// replayed webhooks usually skip straight to the existing-order lookup.
	// False positives only cost one extra query; the unique index on
	// payment_id is the authority.
	seenPayments *bloom.BloomFilter
}

// NewService creates a checkout Service with the required collaborators.
func NewService(
	verifier Verifier,
	idgen *order.IDGenerator,
	orders order.Repository,
	notifier Notifier,
	notifyTimeout time.Duration,
) *Service {
	return &Service{
		verifier:      verifier,
		idgen:         idgen,
		orders:        orders,
		notifier:      notifier,
		notifyTimeout: notifyTimeout,
		seenPayments:  bloom.NewWithEstimates(seenPaymentsCapacity, seenPaymentsFPR),
	}
}

// FinalizeOrder validates the payload, authenticates the signature, and
// converts the cart snapshot into a durable order in status Paid. Customer
// and operator notifications are then attempted concurrently; their failure
// is logged and does not affect the outcome. Replaying an already-finalized
// payment returns the existing order without creating a second one.
func (s *Service) FinalizeOrder(ctx context.Context, req Request) (*order.Order, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	lg := zctx.From(ctx)

	if !s.verifier.Verify(req.GatewayOrderID, req.PaymentID, req.Signature) {
		// Potential tamper attempt: a syntactically complete payload whose
		// signature does not authenticate.
		lg.Warn("Payment signature mismatch",
			zap.String("gateway_order_id", req.GatewayOrderID),
			zap.String("payment_id", req.PaymentID),
		)
		return nil, ErrSignatureMismatch
	}

	// Idempotency fast path: a replayed webhook maps back to its order.
	if s.seenPayments.TestString(req.PaymentID) {
		existing, err := s.orders.FindByPaymentID(ctx, req.PaymentID)
		if err == nil {
			lg.Info("Payment already finalized, returning existing order",
				zap.String("payment_id", req.PaymentID),
				zap.String("order_id", existing.OrderID),
			)
			return existing, nil
		}
		if !errors.Is(err, order.ErrNotFound) {
			return nil, errors.Wrap(err, "lookup payment")
		}
		// Bloom false positive; proceed to create.
	}

	// Total is trusted (the gateway already captured the charged amount)
	// but recomputed so drift is observable.
	if sum := sumCart(req.Cart); !sum.Equal(req.Total) {
		lg.Warn("Client total differs from cart sum",
			zap.String("payment_id", req.PaymentID),
			zap.String("client_total", req.Total.String()),
			zap.String("cart_sum", sum.String()),
		)
	}

	o := &order.Order{
		OrderID:        s.idgen.Generate(),
		PaymentID:      req.PaymentID,
		GatewayOrderID: req.GatewayOrderID,
		UserID:         req.UserID,
		Email:          req.Email,
		Shipping:       req.Shipping,
		Billing:        req.Billing,
		Cart:           req.Cart,
		Total:          req.Total,
		Status:         order.StatusPaid,
	}

	replayed, err := s.create(ctx, o, req.PaymentID)
	if err != nil {
		return nil, err
	}
	s.seenPayments.AddString(req.PaymentID)
	if replayed {
		// Lost a race with a concurrent replay of the same webhook; the
		// winner already notified.
		lg.Info("Payment already finalized, returning existing order",
			zap.String("payment_id", req.PaymentID),
			zap.String("order_id", o.OrderID),
		)
		return o, nil
	}

	lg.Info("Order finalized",
		zap.String("order_id", o.OrderID),
		zap.String("payment_id", o.PaymentID),
		zap.String("total", o.Total.String()),
	)

	s.dispatchNotifications(ctx, o)
	return o, nil
}

// create persists the order, regenerating the order id on collision and
// resolving payment-id races to the already-existing order. It reports
// whether the payment turned out to be already finalized.
func (s *Service) create(ctx context.Context, o *order.Order, paymentID string) (replayed bool, err error) {
	for attempt := 0; ; attempt++ {
		err := s.orders.Create(ctx, o)
		switch {
		case err == nil:
			return false, nil
		case errors.Is(err, order.ErrDuplicatePayment):
			existing, ferr := s.orders.FindByPaymentID(ctx, paymentID)
			if ferr != nil {
				return false, errors.Wrap(ferr, "lookup existing order")
			}
			*o = *existing
			return true, nil
		case errors.Is(err, order.ErrDuplicateOrderID):
			if attempt+1 >= maxIDAttempts {
				return false, errors.Wrapf(err, "create order after %d attempts", maxIDAttempts)
			}
			o.OrderID = s.idgen.Generate()
		default:
			return false, errors.Wrap(err, "create order")
		}
	}
}

// dispatchNotifications attempts the customer and operator notifications
// concurrently. Both are always attempted; each failure is logged per role
// and swallowed. A hung transport cannot block the response past
// notifyTimeout.
func (s *Service) dispatchNotifications(ctx context.Context, o *order.Order) {
	lg := zctx.From(ctx)

	var g errgroup.Group
	for _, role := range []Role{RoleCustomer, RoleOperator} {
		g.Go(func() error {
			nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
			defer cancel()

			if err := s.notifier.Notify(nctx, role, o); err != nil {
				lg.Error("Order notification failed",
					zap.String("order_id", o.OrderID),
					zap.String("role", string(role)),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func validate(req Request) error {
	// The owning-user id is checked first, before any cryptographic work.
	// The upstream auth service issues 24-char hex object ids; only the
	// format is checked here; existence is the auth service's problem.
	if !validUserID(req.UserID) {
		return &InvalidInputError{Field: "userId", Reason: "must be a 24-character hex identifier"}
	}
	if req.PaymentID == "" {
		return &InvalidInputError{Field: "paymentId", Reason: "required"}
	}
	if req.GatewayOrderID == "" {
		return &InvalidInputError{Field: "gatewayOrderId", Reason: "required"}
	}
	if req.Signature == "" {
		return &InvalidInputError{Field: "signature", Reason: "required"}
	}
	if req.Email == "" {
		return &InvalidInputError{Field: "email", Reason: "required"}
	}
	if len(req.Cart) == 0 {
		return &InvalidInputError{Field: "cart", Reason: "must not be empty"}
	}
	for _, line := range req.Cart {
		if line.Quantity <= 0 {
			return &InvalidInputError{Field: "cart", Reason: fmt.Sprintf("quantity must be greater than 0 for product %s", line.ProductID)}
		}
		if line.SelectedSize.Price.IsNegative() {
			return &InvalidInputError{Field: "cart", Reason: fmt.Sprintf("price must not be negative for product %s", line.ProductID)}
		}
	}
	if req.Total.IsNegative() {
		return &InvalidInputError{Field: "total", Reason: "must not be negative"}
	}
	return nil
}

func validUserID(id string) bool {
	if len(id) != 24 {
		return false
	}
	for i := range len(id) {
		c := id[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func sumCart(cart []order.CartLine) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range cart {
		sum = sum.Add(l.LineTotal())
	}
	return sum
}
