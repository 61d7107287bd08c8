package product

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/niranji/storefront-api/internal/domain/order"
)

// ErrNotFound is returned when a product does not exist in the catalog.
var ErrNotFound = errors.New("product not found")

// Product is a catalog entry. Size variants carry their own prices; cart
// lines snapshot one SizeTier at checkout time.
type Product struct {
	ID           string
	Name         string
	Description  string
	Category     string
	Images       []string
	PricePerSize []order.SizeTier
}

// Repository defines read access to the product catalog. Catalog mutation
// is owned by a separate admin surface.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
}
