package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-checkout/internal/domain/business"
	"github.com/xenking/kart-checkout/internal/domain/product"
)

const (
	upsertBusinessSQL = `INSERT INTO businesses
		(id, name, activity, country, city, post_code, street, building, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			activity = EXCLUDED.activity,
			country = EXCLUDED.country,
			city = EXCLUDED.city,
			post_code = EXCLUDED.post_code,
			street = EXCLUDED.street,
			building = EXCLUDED.building,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			updated_at = NOW()`

	upsertProductSQL = `INSERT INTO products
		(id, business_id, name, price, discount, category, images)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			business_id = EXCLUDED.business_id,
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			discount = EXCLUDED.discount,
			category = EXCLUDED.category,
			images = EXCLUDED.images,
			updated_at = NOW()`
)

// CatalogWriter loads businesses and products into the catalog tables.
type CatalogWriter struct {
	pool *pgxpool.Pool
}

// NewCatalogWriter returns a CatalogWriter that uses the given pool.
func NewCatalogWriter(pool *pgxpool.Pool) *CatalogWriter {
	return &CatalogWriter{pool: pool}
}

// UpsertBusiness inserts or replaces a business.
func (w *CatalogWriter) UpsertBusiness(ctx context.Context, b business.Business) error {
	var lat, lon *float64
	if b.Located {
		lat, lon = &b.Location.Coords.Latitude, &b.Location.Coords.Longitude
	}
	l := b.Location
	if _, err := w.pool.Exec(ctx, upsertBusinessSQL,
		b.ID, b.Name, b.Activity, l.Country, l.City, l.PostCode, l.Street, l.Building, lat, lon,
	); err != nil {
		return errors.Wrapf(err, "upsert business %s", b.ID)
	}
	return nil
}

// UpsertProducts writes products in a single transaction. The owning
// businesses must already exist.
func (w *CatalogWriter) UpsertProducts(ctx context.Context, products []product.Product) error {
	if len(products) == 0 {
		return nil
	}

	return pgx.BeginFunc(ctx, w.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, p := range products {
			images := p.Images
			if images == nil {
				images = []string{}
			}
			batch.Queue(upsertProductSQL,
				p.ID, p.Business.ID, p.Name, p.Price, int32(p.Discount), p.Category, images,
			)
		}

		res := tx.SendBatch(ctx, batch)
		for _, p := range products {
			if _, err := res.Exec(); err != nil {
				_ = res.Close()
				return errors.Wrapf(err, "upsert product %s", p.ID)
			}
		}
		return res.Close()
	})
}
