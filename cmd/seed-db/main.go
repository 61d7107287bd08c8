// Command seed-db loads the product catalog from a JSON file into the
// database. It is idempotent: existing products are updated in place.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/shopspring/decimal"

	"github.com/niranji/storefront-api/internal/domain/order"
	"github.com/niranji/storefront-api/internal/domain/product"
	"github.com/niranji/storefront-api/internal/storage/postgres"
)

type sizeTierJSON struct {
	Size  string          `json:"size"`
	Price decimal.Decimal `json:"price"`
}

type productJSON struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Category     string         `json:"category"`
	Images       []string       `json:"images"`
	PricePerSize []sizeTierJSON `json:"pricePerSize"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile); err != nil {
		slog.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, databaseURL, productsFile string) error {
	data, err := os.ReadFile(productsFile)
	if err != nil {
		return err
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return err
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return err
	}

	repo := postgres.NewProductRepository(pool)
	for _, p := range products {
		tiers := make([]order.SizeTier, len(p.PricePerSize))
		for i, t := range p.PricePerSize {
			tiers[i] = order.SizeTier{Size: t.Size, Price: t.Price}
		}
		err := repo.UpsertProduct(ctx, product.Product{
			ID:           p.ID,
			Name:         p.Name,
			Description:  p.Description,
			Category:     p.Category,
			Images:       p.Images,
			PricePerSize: tiers,
		})
		if err != nil {
			return err
		}
		slog.Info("seeded product", "id", p.ID)
	}

	slog.Info("done", "products", len(products))
	return nil
}
