// Command order-export writes persisted orders to a gzip-compressed CSV
// file for back-office reconciliation.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	"github.com/eubiosis/checkout/internal/domain/order"
	"github.com/eubiosis/checkout/internal/storage/postgres"
)

func main() {
	var (
		out         string
		status      string
		databaseURL string
	)

	flag.StringVar(&out, "out", "orders.csv.gz", "output file")
	flag.StringVar(&status, "status", "", "only export orders with this status (pending, processing, completed, cancelled)")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	st, err := parseStatus(status)
	if err != nil {
		slog.Error("invalid status", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, out, st); err != nil {
		slog.Error("order export failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func parseStatus(s string) (order.Status, error) {
	switch st := order.Status(s); st {
	case "", order.StatusPending, order.StatusProcessing, order.StatusCompleted, order.StatusCancelled:
		return st, nil
	default:
		return "", errors.Errorf("unknown status %q", s)
	}
}

func run(ctx context.Context, databaseURL, out string, status order.Status) error {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	f, err := os.Create(out)
	if err != nil {
		return errors.Wrapf(err, "create %s", out)
	}

	repo := postgres.NewOrderRepository(pool)
	n, err := export(ctx, f, func(ctx context.Context, fn func(*order.Order) error) error {
		return repo.Stream(ctx, status, fn)
	})
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = errors.Wrapf(closeErr, "close %s", out)
	}
	if err != nil {
		_ = os.Remove(out)
		return err
	}

	slog.Info("order export completed",
		slog.String("file", out),
		slog.String("status", string(status)),
		slog.Int("orders", n),
	)
	return nil
}
