package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-checkout/internal/domain/business"
	"github.com/xenking/kart-checkout/internal/domain/geo"
)

const locateBusinessesSQL = `SELECT id, latitude, longitude
	FROM businesses
	WHERE id = ANY($1) AND latitude IS NOT NULL AND longitude IS NOT NULL`

var _ business.Locator = (*BusinessRepository)(nil)

// BusinessRepository resolves business locations from PostgreSQL.
type BusinessRepository struct {
	pool *pgxpool.Pool
}

// NewBusinessRepository returns a BusinessRepository that uses the given pool.
func NewBusinessRepository(pool *pgxpool.Pool) *BusinessRepository {
	return &BusinessRepository{pool: pool}
}

// Locations implements business.Locator.
func (r *BusinessRepository) Locations(ctx context.Context, ids []string) (map[string]geo.Coordinates, error) {
	out := make(map[string]geo.Coordinates, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.pool.Query(ctx, locateBusinessesSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "locate businesses")
	}

	var (
		id    string
		point geo.Coordinates
	)
	_, err = pgx.ForEachRow(rows, []any{&id, &point.Latitude, &point.Longitude}, func() error {
		out[id] = point
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan business locations")
	}
	return out, nil
}
