// Command catalog-ingest imports gzip-compressed JSON-lines product exports.
//
// Exports are given oldest first. A product id found in more than one export
// is taken from the newest export that contains it; older records for that
// id are skipped.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-checkout/internal/repository"
)

func main() {
	var (
		databaseURL string
		expected    uint
		batchSize   int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&expected, "expected", 10_000_000, "expected number of products per export, sizes the bloom filters")
	flag.IntVar(&batchSize, "batch-size", 1000, "products per upsert transaction")
	flag.Usage = func() {
		_, _ = os.Stderr.WriteString("usage: catalog-ingest [flags] export1.jsonl.gz [export2.jsonl.gz ...]\n")
		flag.PrintDefaults()
	}
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

	if err := run(ctx, databaseURL, flag.Args(), expected, batchSize); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, databaseURL string, files []string, expected uint, batchSize int) error {
	if len(files) == 0 {
		return errors.New("no export files given")
	}
	if len(files) > maxFiles {
		return errors.Errorf("at most %d export files are supported, got %d", maxFiles, len(files))
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	ing := &ingester{
		capacity:  expected,
		fpr:       bloomFPR,
		batchSize: batchSize,
		writer:    repository.NewCatalogWriter(pool),
	}
	return ing.ingest(ctx, files)
}
