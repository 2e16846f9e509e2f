package main

import (
	"bufio"
	"context"
	"log/slog"
	"math/bits"
	"os"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-checkout/internal/catalog"
	"github.com/xenking/kart-checkout/internal/domain/product"
)

const (
	bloomFPR      = 0.001
	maxFiles      = 64
	progressEvery = 1_000_000
	maxLineBytes  = 1 << 20
)

type productWriter interface {
	UpsertProducts(ctx context.Context, products []product.Product) error
}

type ingester struct {
	capacity  uint
	fpr       float64
	batchSize int
	writer    productWriter
}

// ingest runs the three passes: bloom filters per export, exact detection of
// ids shared between exports, then the upsert of every record its export owns.
func (ing *ingester) ingest(ctx context.Context, files []string) error {
	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, err := ing.buildBloomFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: finding products shared between exports")

	owners, err := findOwners(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "find shared products")
	}

	slog.Info("shared products found", slog.Int("count", len(owners)))

	var written, skipped int
	for i, f := range files {
		w, s, err := ing.writeFile(ctx, i, f, owners)
		if err != nil {
			return errors.Wrapf(err, "write file %d", i+1)
		}
		written += w
		skipped += s
	}

	slog.Info("pass 3 complete",
		slog.Int("written", written),
		slog.Int("skipped", skipped),
	)
	return nil
}

// buildBloomFilters creates one bloom filter of product ids per file, concurrently.
func (ing *ingester) buildBloomFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(ing.capacity, ing.fpr)
			var count uint64

			if err := streamGzFile(ctx, path, func(line []byte) error {
				id, err := recordID(line)
				if err != nil {
					return err
				}
				filter.AddString(id)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.Int("file", i+1), slog.Uint64("products", count))
				}
				return nil
			}); err != nil {
				return errors.Wrapf(err, "build filter for file %d", i+1)
			}

			slog.Info("pass 1 complete", slog.Int("file", i+1), slog.Uint64("total_products", count))
			filters[i] = filter
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// findOwners re-streams each file and checks ids against the other files'
// bloom filters. Bloom hits are only candidates: an id is shared once the
// merged bitmask shows it was seen in two or more files. The result maps each
// shared id to the index of the newest file containing it.
func findOwners(ctx context.Context, files []string, filters []*bloom.BloomFilter) (map[string]int, error) {
	results := make([]map[string]uint64, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			candidates := make(map[string]uint64)
			fileBit := uint64(1) << uint(i)

			if err := streamGzFile(ctx, path, func(line []byte) error {
				id, err := recordID(line)
				if err != nil {
					return err
				}
				for j, f := range filters {
					if j != i && f.TestString(id) {
						candidates[id] |= fileBit
						break
					}
				}
				return nil
			}); err != nil {
				return errors.Wrapf(err, "scan file %d for candidates", i+1)
			}

			slog.Info("pass 2 complete", slog.Int("file", i+1), slog.Int("candidates", len(candidates)))
			results[i] = candidates
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return mergeOwners(results), nil
}

func mergeOwners(results []map[string]uint64) map[string]int {
	merged := make(map[string]uint64)
	for _, r := range results {
		for id, mask := range r {
			merged[id] |= mask
		}
	}

	owners := make(map[string]int)
	for id, mask := range merged {
		if bits.OnesCount64(mask) >= 2 {
			owners[id] = bits.Len64(mask) - 1
		}
	}
	return owners
}

// writeFile upserts the records of file idx in batches, skipping shared ids
// owned by a newer file.
func (ing *ingester) writeFile(ctx context.Context, idx int, path string, owners map[string]int) (written, skipped int, err error) {
	batch := make([]product.Product, 0, ing.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := ing.writer.UpsertProducts(ctx, batch); err != nil {
			return err
		}
		written += len(batch)
		batch = batch[:0]
		return nil
	}

	err = streamGzFile(ctx, path, func(line []byte) error {
		p, err := catalog.DecodeProduct(jx.DecodeBytes(line))
		if err != nil {
			return err
		}
		if owner, shared := owners[p.ID]; shared && owner != idx {
			skipped++
			return nil
		}
		batch = append(batch, p)
		if len(batch) >= ing.batchSize {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	if err != nil {
		return written, skipped, err
	}

	slog.Info("pass 3 progress",
		slog.Int("file", idx+1),
		slog.Int("written", written),
		slog.Int("skipped", skipped),
	)
	return written, skipped, nil
}

// recordID extracts the product id of a JSON-lines record without decoding
// the rest of it.
func recordID(line []byte) (string, error) {
	var id string
	err := jx.DecodeBytes(line).ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "id" {
			return d.Skip()
		}
		v, err := d.Str()
		id = v
		return err
	})
	if err != nil {
		return "", errors.Wrap(err, "decode record")
	}
	if id == "" {
		return "", errors.New("record without id")
	}
	return id, nil
}

// streamGzFile opens a gzip-compressed file and calls fn for each non-empty line.
func streamGzFile(ctx context.Context, path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	var n int
	for scanner.Scan() {
		n++
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return errors.Wrapf(err, "%s:%d", path, n)
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
