// Package distance implements delivery.DistanceMatrix on top of a routing
// engine, a great-circle approximation and a Redis cache.
package distance

import (
	"context"
	"math"

	"github.com/xenking/kart-checkout/internal/domain/delivery"
	"github.com/xenking/kart-checkout/internal/domain/geo"
)

const earthRadius = 6371008.8 // metres, IUGG mean radius

var _ delivery.DistanceMatrix = Haversine{}

// Haversine estimates distances as great-circle arcs. It is used when no
// routing engine is configured and never reports a missing route.
type Haversine struct{}

// Distances implements delivery.DistanceMatrix.
func (Haversine) Distances(ctx context.Context, origin geo.Coordinates, destinations []geo.Coordinates) ([]delivery.Route, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]delivery.Route, len(destinations))
	for i, d := range destinations {
		out[i] = delivery.Route{Meters: GreatCircle(origin, d), Found: true}
	}
	return out, nil
}

// GreatCircle returns the great-circle distance between a and b in metres.
func GreatCircle(a, b geo.Coordinates) float64 {
	lat1 := radians(a.Latitude)
	lat2 := radians(b.Latitude)
	dLat := lat2 - lat1
	dLon := radians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadius * math.Asin(math.Min(1, math.Sqrt(h)))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
