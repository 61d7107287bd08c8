package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/niranji/storefront-api/internal/domain/order"
)

const (
	uniqueViolation = "23505"

	orderIDConstraint   = "orders_order_id_key"
	paymentIDConstraint = "orders_payment_id_key"
)

const orderColumns = `id, order_id, payment_id, gateway_order_id, user_id, email,
	shipping, billing, cart, total, status, created_at, updated_at`

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order in a single INSERT. Addresses and cart lines
// are serialized to JSON for the JSONB columns. Unique violations map to
// the two sentinel errors so the caller can tell a colliding order id from
// a replayed payment.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}

	shipping, err := json.Marshal(o.Shipping)
	if err != nil {
		return errors.Wrap(err, "marshal shipping")
	}
	billing, err := json.Marshal(o.Billing)
	if err != nil {
		return errors.Wrap(err, "marshal billing")
	}
	cart, err := json.Marshal(o.Cart)
	if err != nil {
		return errors.Wrap(err, "marshal cart")
	}

	row := r.pool.QueryRow(ctx, `INSERT INTO orders
		(id, order_id, payment_id, gateway_order_id, user_id, email, shipping, billing, cart, total, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`,
		o.ID, o.OrderID, o.PaymentID, o.GatewayOrderID, o.UserID, o.Email,
		shipping, billing, cart, o.Total, string(o.Status),
	)
	if err := row.Scan(&o.CreatedAt, &o.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			switch pgErr.ConstraintName {
			case orderIDConstraint:
				return errors.Wrapf(order.ErrDuplicateOrderID, "%q", o.OrderID)
			case paymentIDConstraint:
				return errors.Wrapf(order.ErrDuplicatePayment, "%q", o.PaymentID)
			}
		}
		return errors.Wrapf(err, "create order %q", o.OrderID)
	}

	return nil
}

// UpdateStatus transitions the order to the given status and returns the
// updated record. The status is validated against the fixed enumeration
// before touching the database, and the UPDATE itself refuses to touch
// terminal orders so a Delivered or Cancelled order is never resurrected,
// even under concurrent writers.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, status order.Status) (*order.Order, error) {
	if _, err := order.ParseStatus(string(status)); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `UPDATE orders
		SET status = $2, updated_at = now()
		WHERE order_id = $1 AND status NOT IN ('Delivered', 'Cancelled')
		RETURNING `+orderColumns,
		orderID, string(status),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "update order %q status", orderID)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrapf(err, "update order %q status", orderID)
		}
		// The guard swallows both missing and terminal orders; tell them
		// apart so the caller can report the right failure.
		existing, ferr := r.FindByOrderID(ctx, orderID)
		switch {
		case errors.Is(ferr, order.ErrNotFound):
			return nil, errors.Wrapf(order.ErrNotFound, "%q", orderID)
		case ferr != nil:
			return nil, errors.Wrapf(ferr, "update order %q status", orderID)
		case existing.Status.Terminal():
			return nil, errors.Wrapf(order.ErrTerminalStatus, "%q is %s", orderID, existing.Status)
		}
		return nil, errors.Errorf("update order %q status: lost update race", orderID)
	}
	return &o, nil
}

// FindByOrderID returns the order with the given human-readable id.
func (r *OrderRepository) FindByOrderID(ctx context.Context, orderID string) (*order.Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_id = $1`, orderID)
}

// FindByPaymentID returns the order finalized from the given payment.
func (r *OrderRepository) FindByPaymentID(ctx context.Context, paymentID string) (*order.Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_id = $1`, paymentID)
}

// FindByUser returns all orders owned by the user, newest first.
func (r *OrderRepository) FindByUser(ctx context.Context, userID string) ([]order.Order, error) {
	return r.findMany(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
}

// FindByEmail returns all orders whose shipping or billing email matches,
// newest first.
func (r *OrderRepository) FindByEmail(ctx context.Context, email string) ([]order.Order, error) {
	return r.findMany(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE shipping ->> 'email' = $1 OR billing ->> 'email' = $1
		ORDER BY created_at DESC`, email)
}

func (r *OrderRepository) findOne(ctx context.Context, sql string, arg any) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, errors.Wrap(err, "query order")
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrap(err, "query order")
	}
	return &o, nil
}

func (r *OrderRepository) findMany(ctx context.Context, sql string, arg any) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, errors.Wrap(err, "query orders")
	}

	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, errors.Wrap(err, "collect orders")
	}
	return orders, nil
}

// scanOrder maps one row in orderColumns order to a domain Order.
func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o        order.Order
		shipping []byte
		billing  []byte
		cart     []byte
		status   string
	)
	if err := row.Scan(
		&o.ID, &o.OrderID, &o.PaymentID, &o.GatewayOrderID, &o.UserID, &o.Email,
		&shipping, &billing, &cart, &o.Total, &status, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return order.Order{}, err
	}

	if err := json.Unmarshal(shipping, &o.Shipping); err != nil {
		return order.Order{}, errors.Wrap(err, "unmarshal shipping")
	}
	if err := json.Unmarshal(billing, &o.Billing); err != nil {
		return order.Order{}, errors.Wrap(err, "unmarshal billing")
	}
	if err := json.Unmarshal(cart, &o.Cart); err != nil {
		return order.Order{}, errors.Wrap(err, "unmarshal cart")
	}
	o.Status = order.Status(status)

	return o, nil
}
