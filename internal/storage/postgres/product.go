package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/niranji/storefront-api/internal/domain/order"
	"github.com/niranji/storefront-api/internal/domain/product"
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products from the catalog ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description, category, images, price_per_size
		FROM products ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}

	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, errors.Wrap(err, "collect products")
	}
	return products, nil
}

// GetByID returns a single product by its identifier, or product.ErrNotFound.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description, category, images, price_per_size
		FROM products WHERE id = $1`, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %q", id)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	return &p, nil
}

// UpsertProduct inserts or replaces a catalog entry. Used by the seed tool.
func (r *ProductRepository) UpsertProduct(ctx context.Context, p product.Product) error {
	images, err := json.Marshal(p.Images)
	if err != nil {
		return errors.Wrap(err, "marshal images")
	}
	tiers, err := json.Marshal(p.PricePerSize)
	if err != nil {
		return errors.Wrap(err, "marshal price tiers")
	}

	_, err = r.pool.Exec(ctx, `INSERT INTO products (id, name, description, category, images, price_per_size)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			images = EXCLUDED.images,
			price_per_size = EXCLUDED.price_per_size`,
		p.ID, p.Name, p.Description, p.Category, images, tiers,
	)
	if err != nil {
		return errors.Wrapf(err, "upsert product %q", p.ID)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p      product.Product
		images []byte
		tiers  []byte
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &images, &tiers); err != nil {
		return product.Product{}, err
	}

	if err := json.Unmarshal(images, &p.Images); err != nil {
		return product.Product{}, errors.Wrap(err, "unmarshal images")
	}
	var sizes []order.SizeTier
	if err := json.Unmarshal(tiers, &sizes); err != nil {
		return product.Product{}, errors.Wrap(err, "unmarshal price tiers")
	}
	p.PricePerSize = sizes

	return p, nil
}
