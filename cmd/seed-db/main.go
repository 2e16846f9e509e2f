// Command seed-db loads the catalog of businesses and products into the database.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-checkout/db"
	"github.com/xenking/kart-checkout/internal/catalog"
	"github.com/xenking/kart-checkout/internal/repository"
)

func main() {
	var (
		databaseURL string
		catalogFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "", "path to a catalog JSON file (default: embedded seed catalog)")
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

	if err := run(ctx, databaseURL, catalogFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile string) error {
	data := db.Catalog
	if catalogFile != "" {
		slog.Info("reading catalog file", slog.String("path", catalogFile))

		var err error
		if data, err = os.ReadFile(catalogFile); err != nil {
			return errors.Wrap(err, "read catalog file")
		}
	}

	c, err := catalog.Decode(data)
	if err != nil {
		return err
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	w := repository.NewCatalogWriter(pool)

	for _, b := range c.Businesses {
		if err := w.UpsertBusiness(ctx, b); err != nil {
			return err
		}
		slog.Info("upserted business",
			slog.String("id", b.ID),
			slog.String("name", b.Name),
			slog.Bool("located", b.Located),
		)
	}

	slog.Info("upserting products", slog.Int("count", len(c.Products)))

	if err := w.UpsertProducts(ctx, c.Products); err != nil {
		return errors.Wrap(err, "upsert products")
	}

	return nil
}
