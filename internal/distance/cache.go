package distance

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/xenking/kart-checkout/internal/domain/delivery"
	"github.com/xenking/kart-checkout/internal/domain/geo"
)

const cacheNamespace = "kart:distance"

var _ delivery.DistanceMatrix = (*Cache)(nil)

// Cache keeps found routes in Redis. Redis failures are logged and the
// lookup falls through to the wrapped matrix. Missing routes are never
// cached since they are usually transient.
type Cache struct {
	next   delivery.DistanceMatrix
	client redis.UniversalClient
	ttl    time.Duration
}

// NewCache wraps next with a Redis backed cache.
func NewCache(next delivery.DistanceMatrix, client redis.UniversalClient, ttl time.Duration) *Cache {
	return &Cache{next: next, client: client, ttl: ttl}
}

// Distances implements delivery.DistanceMatrix.
func (c *Cache) Distances(ctx context.Context, origin geo.Coordinates, destinations []geo.Coordinates) ([]delivery.Route, error) {
	if len(destinations) == 0 {
		return nil, nil
	}
	lg := zctx.From(ctx)

	keys := make([]string, len(destinations))
	for i, d := range destinations {
		keys[i] = cacheKey(origin, d)
	}

	cached, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		lg.Warn("Distance cache read failed", zap.Error(err))
		cached = nil
	}

	out := make([]delivery.Route, len(destinations))
	var missing []int
	for i := range destinations {
		if i < len(cached) {
			if s, ok := cached[i].(string); ok {
				if m, err := strconv.ParseFloat(s, 64); err == nil {
					out[i] = delivery.Route{Meters: m, Found: true}
					continue
				}
			}
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	lookup := make([]geo.Coordinates, len(missing))
	for j, i := range missing {
		lookup[j] = destinations[i]
	}
	routes, err := c.next.Distances(ctx, origin, lookup)
	if err != nil {
		return nil, err
	}

	pipe := c.client.Pipeline()
	writes := 0
	for j, i := range missing {
		if j >= len(routes) {
			break
		}
		out[i] = routes[j]
		if routes[j].Found {
			pipe.Set(ctx, keys[i], strconv.FormatFloat(routes[j].Meters, 'f', 1, 64), c.ttl)
			writes++
		}
	}
	if writes > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			lg.Warn("Distance cache write failed", zap.Error(err))
		}
	}

	return out, nil
}

// cacheKey identifies an origin/destination pair. Coordinates are rounded to
// five decimals, roughly one metre.
func cacheKey(origin, dest geo.Coordinates) string {
	return cacheNamespace + ":" + formatKeyPoint(origin) + ":" + formatKeyPoint(dest)
}

func formatKeyPoint(c geo.Coordinates) string {
	return strconv.FormatFloat(c.Latitude, 'f', 5, 64) + "," + strconv.FormatFloat(c.Longitude, 'f', 5, 64)
}
