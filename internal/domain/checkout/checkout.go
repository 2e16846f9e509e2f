package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/kart-checkout/internal/domain/delivery"
	"github.com/xenking/kart-checkout/internal/domain/geo"
	"github.com/xenking/kart-checkout/internal/domain/product"
	"github.com/xenking/kart-checkout/internal/domain/purchase"
)

// ErrEmptyPurchases is returned when a checkout contains no purchases.
var ErrEmptyPurchases = errors.New("purchases required")

// ProductNotFoundError indicates a purchase references an unknown product.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// Request holds the input of a checkout calculation.
type Request struct {
	Purchases    []purchase.Item
	Location     *geo.LocationInput
	DeliveryDate *time.Time
}

// Quote is a priced, itemized checkout that has not been committed.
type Quote struct {
	Delivery  *delivery.CalculatedDelivery
	Purchases *purchase.Groups
	// Subtotal is the sum of discounted purchase prices.
	Subtotal decimal.Decimal
	// Total is Subtotal plus the delivery price.
	Total decimal.Decimal
}

// Deliveries calculates the delivery part of a quote.
type Deliveries interface {
	Calculate(ctx context.Context, req delivery.Request) (*delivery.CalculatedDelivery, error)
}

// Service encapsulates checkout calculation.
type Service struct {
	products   product.Repository
	deliveries Deliveries
	tracer     trace.Tracer
}

// NewService creates a checkout Service.
func NewService(
	products product.Repository,
	deliveries Deliveries,
	tp trace.TracerProvider,
) *Service {
	return &Service{
		products:   products,
		deliveries: deliveries,
		tracer:     tp.Tracer("github.com/xenking/kart-checkout/internal/domain/checkout"),
	}
}

// Calculate fetches the referenced products in a single batch, prices and
// groups the purchases, and quotes the delivery.
func (s *Service) Calculate(ctx context.Context, req Request) (_ *Quote, rerr error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Calculate",
		trace.WithAttributes(attribute.Int("checkout.purchases", len(req.Purchases))),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	if len(req.Purchases) == 0 {
		return nil, ErrEmptyPurchases
	}

	ids := make([]string, 0, len(req.Purchases))
	seen := make(map[string]struct{}, len(req.Purchases))
	for _, item := range req.Purchases {
		if _, ok := seen[item.ID]; ok {
			continue
		}
		seen[item.ID] = struct{}{}
		ids = append(ids, item.ID)
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}

	productMap := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		productMap[p.ID] = p
	}

	// One product per purchase, in request order.
	products := make([]product.Product, 0, len(req.Purchases))
	for _, item := range req.Purchases {
		p, ok := productMap[item.ID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ID}
		}
		products = append(products, p)
	}

	groups, err := purchase.Aggregate(products, req.Purchases)
	if err != nil {
		return nil, errors.Wrap(err, "aggregate purchases")
	}

	d, err := s.deliveries.Calculate(ctx, delivery.Request{
		Products: products,
		Location: req.Location,
		Date:     req.DeliveryDate,
	})
	if err != nil {
		return nil, errors.Wrap(err, "calculate delivery")
	}

	subtotal := groups.Subtotal().Round(2)
	span.SetAttributes(
		attribute.Int("checkout.businesses", groups.Len()),
		attribute.Int64("checkout.delivery_price", d.Price),
	)

	return &Quote{
		Delivery:  d,
		Purchases: groups,
		Subtotal:  subtotal,
		Total:     subtotal.Add(decimal.NewFromInt(d.Price)),
	}, nil
}
