package delivery

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/kart-checkout/internal/domain/business"
	"github.com/xenking/kart-checkout/internal/domain/geo"
	"github.com/xenking/kart-checkout/internal/domain/product"
)

// Route is a single cell of a distance matrix lookup.
type Route struct {
	Meters float64
	// Found is false when the routing engine has no route to the destination.
	Found bool
}

// DistanceMatrix computes travel distances from one origin to many
// destinations. The returned slice is aligned with destinations.
type DistanceMatrix interface {
	Distances(ctx context.Context, origin geo.Coordinates, destinations []geo.Coordinates) ([]Route, error)
}

// CalculatedDelivery is the delivery part of a checkout quote.
type CalculatedDelivery struct {
	// Location is nil until the client supplies a delivery address.
	Location         *geo.Location
	Price            int64
	ActiveDate       int64
	ActiveDateFormat string
	Deliveries       []string
	// Distances are the pickup distances the price was computed from.
	Distances []float64
}

// Request is the input of a delivery calculation.
type Request struct {
	Products []product.Product
	Location *geo.LocationInput
	Date     *time.Time
}

// CalculatorConfig holds non-dependency configuration for the Calculator.
type CalculatorConfig struct {
	Tariff Tariff
	// LookupTimeout bounds the business location and distance lookups.
	// Zero means the lookups are only bounded by the caller's context.
	LookupTimeout time.Duration
	MeterProvider metric.MeterProvider
}

// Calculator quotes deliveries. Failures of the location and distance
// collaborators never fail a quote: the affected destinations are dropped
// from the distance list and the price is computed from what is left.
type Calculator struct {
	businesses business.Locator
	matrix     DistanceMatrix
	tariff     Tariff
	timeout    time.Duration
	failures   metric.Int64Counter
	now        func() time.Time
}

// NewCalculator creates a Calculator.
func NewCalculator(businesses business.Locator, matrix DistanceMatrix, cfg CalculatorConfig) (*Calculator, error) {
	mp := cfg.MeterProvider
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	failures, err := mp.Meter("github.com/xenking/kart-checkout/internal/domain/delivery").Int64Counter(
		"delivery.distance.failures",
		metric.WithDescription("Distance lookups that were dropped from a delivery quote"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create failures counter")
	}

	tariff := cfg.Tariff
	if tariff == (Tariff{}) {
		tariff = DefaultTariff
	}

	return &Calculator{
		businesses: businesses,
		matrix:     matrix,
		tariff:     tariff,
		timeout:    cfg.LookupTimeout,
		failures:   failures,
		now:        time.Now,
	}, nil
}

// Calculate produces a delivery quote. It only returns an error when ctx is
// cancelled while the distance lookup is pending.
func (c *Calculator) Calculate(ctx context.Context, req Request) (*CalculatedDelivery, error) {
	loc := geo.Resolve(req.Location)

	var distances []float64
	if loc != nil {
		d, err := c.distances(ctx, loc.Coords, businessIDs(req.Products))
		if err != nil {
			return nil, err
		}
		distances = d
	}

	schedule := Plan(c.now(), req.Date)

	return &CalculatedDelivery{
		Location:         loc,
		Price:            c.tariff.Price(distances),
		ActiveDate:       schedule.ActiveMillis(),
		ActiveDateFormat: schedule.Label,
		Deliveries:       schedule.Offered,
		Distances:        distances,
	}, nil
}

func (c *Calculator) distances(ctx context.Context, origin geo.Coordinates, ids []string) ([]float64, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	lookupCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	lg := zctx.From(ctx)

	locations, err := c.businesses.Locations(lookupCtx, ids)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Wrap(ctxErr, "lookup business locations")
		}
		lg.Warn("Business location lookup failed, quoting without distances", zap.Error(err))
		c.failures.Add(ctx, int64(len(ids)), metric.WithAttributes(attribute.String("reason", "locator")))
		return nil, nil
	}

	dest := make([]geo.Coordinates, 0, len(ids))
	for _, id := range ids {
		coords, ok := locations[id]
		if !ok {
			lg.Warn("Business has no location", zap.String("business_id", id))
			c.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "no_location")))
			continue
		}
		dest = append(dest, coords)
	}
	if len(dest) == 0 {
		return nil, nil
	}

	routes, err := c.matrix.Distances(lookupCtx, origin, dest)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Wrap(ctxErr, "lookup distances")
		}
		lg.Warn("Distance lookup failed, quoting without distances", zap.Error(err))
		c.failures.Add(ctx, int64(len(dest)), metric.WithAttributes(attribute.String("reason", "matrix")))
		return nil, nil
	}

	out := make([]float64, 0, len(routes))
	for i, r := range routes {
		if i >= len(dest) {
			break
		}
		if !r.Found {
			lg.Warn("No route to business", zap.Stringer("destination", dest[i]))
			c.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "no_route")))
			continue
		}
		out = append(out, r.Meters)
	}
	return out, nil
}

// businessIDs returns the distinct owning business ids in first-seen order.
func businessIDs(products []product.Product) []string {
	seen := make(map[string]struct{}, len(products))
	ids := make([]string, 0, len(products))
	for _, p := range products {
		if _, ok := seen[p.Business.ID]; ok {
			continue
		}
		seen[p.Business.ID] = struct{}{}
		ids = append(ids, p.Business.ID)
	}
	return ids
}
