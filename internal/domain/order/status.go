package order

import "github.com/go-faster/errors"

// Status enumerates the order lifecycle. Orders created through checkout
// start at StatusPaid; StatusPending exists for orders entered through
// other channels (manual/offline). StatusDelivered and StatusCancelled are
// terminal.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusPaid      Status = "Paid"
	StatusShipped   Status = "Shipped"
	StatusDelivered Status = "Delivered"
	StatusCancelled Status = "Cancelled"
)

// ErrInvalidStatus is returned when a status value is outside the fixed
// enumeration.
var ErrInvalidStatus = errors.New("invalid order status")

// ErrTerminalStatus is returned when a transition is attempted on an order
// already in a terminal status. Delivered and Cancelled orders are never
// resurrected.
var ErrTerminalStatus = errors.New("order status is terminal")

// ParseStatus validates a raw status value against the enumeration.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusPaid, StatusShipped, StatusDelivered, StatusCancelled:
		return Status(s), nil
	}
	return "", errors.Wrapf(ErrInvalidStatus, "%q", s)
}

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}
