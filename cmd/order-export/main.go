// Command order-export streams order records into gzip-compressed JSON
// Lines archives, one file per lifecycle status, for offline analytics and
// archival. Files are written concurrently, one goroutine per status.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/niranji/storefront-api/internal/domain/order"
	"github.com/niranji/storefront-api/internal/storage/postgres"
)

var statuses = []order.Status{
	order.StatusPending,
	order.StatusPaid,
	order.StatusShipped,
	order.StatusDelivered,
	order.StatusCancelled,
}

func main() {
	var (
		databaseURL string
		outDir      string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&outDir, "out-dir", "export", "directory for the archive files")
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

	if err := run(ctx, databaseURL, outDir); err != nil {
		slog.Error("export failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, databaseURL, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	counts := make([]int, len(statuses))

	for i, status := range statuses {
		g.Go(func() error {
			n, err := exportStatus(ctx, pool, status, outDir)
			if err != nil {
				return fmt.Errorf("export %s: %w", status, err)
			}
			counts[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	total := 0
	for i, status := range statuses {
		slog.Info("exported", "status", string(status), "orders", counts[i])
		total += counts[i]
	}
	slog.Info("done", "orders", total, "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// exportStatus streams all orders in a status into one gzipped JSONL file
// and returns the number of records written.
func exportStatus(ctx context.Context, pool *pgxpool.Pool, status order.Status, outDir string) (int, error) {
	path := filepath.Join(outDir, fmt.Sprintf("orders-%s.jsonl.gz", status))
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	gz := pgzip.NewWriter(f)
	buf := bufio.NewWriterSize(gz, 1<<20)

	rows, err := pool.Query(ctx, `SELECT order_id, payment_id, gateway_order_id, user_id, email,
			total, status, jsonb_array_length(cart), created_at
		FROM orders WHERE status = $1 ORDER BY created_at`, string(status))
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var (
		e jx.Encoder
		n int
	)
	for rows.Next() {
		var (
			orderID, paymentID, gatewayOrderID, userID, email, st string
			total                                                 decimal.Decimal
			lines                                                 int
			createdAt                                             time.Time
		)
		if err := rows.Scan(&orderID, &paymentID, &gatewayOrderID, &userID, &email,
			&total, &st, &lines, &createdAt); err != nil {
			return n, err
		}

		e.Reset()
		e.ObjStart()
		e.FieldStart("orderId")
		e.Str(orderID)
		e.FieldStart("paymentId")
		e.Str(paymentID)
		e.FieldStart("gatewayOrderId")
		e.Str(gatewayOrderID)
		e.FieldStart("userId")
		e.Str(userID)
		e.FieldStart("email")
		e.Str(email)
		e.FieldStart("total")
		e.Num(jx.Num(total.String()))
		e.FieldStart("status")
		e.Str(st)
		e.FieldStart("lines")
		e.Int(lines)
		e.FieldStart("createdAt")
		e.Str(createdAt.UTC().Format(time.RFC3339))
		e.ObjEnd()

		if _, err := buf.Write(e.Bytes()); err != nil {
			return n, err
		}
		if err := buf.WriteByte('\n'); err != nil {
			return n, err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, err
	}

	if err := buf.Flush(); err != nil {
		return n, err
	}
	if err := gz.Close(); err != nil {
		return n, err
	}
	return n, f.Close()
}
