package delivery

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-checkout/internal/domain/geo"
	"github.com/xenking/kart-checkout/internal/domain/product"
)

// --- Mock implementations ---

type mockLocator struct {
	locations map[string]geo.Coordinates
	err       error
	calls     [][]string
	block     bool
}

func (m *mockLocator) Locations(ctx context.Context, ids []string) (map[string]geo.Coordinates, error) {
	m.calls = append(m.calls, ids)
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.locations, m.err
}

type mockMatrix struct {
	routes       []Route
	err          error
	destinations []geo.Coordinates
	calls        int
}

func (m *mockMatrix) Distances(_ context.Context, _ geo.Coordinates, dest []geo.Coordinates) ([]Route, error) {
	m.calls++
	m.destinations = dest
	return m.routes, m.err
}

// --- Helpers ---

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestCalculator(t *testing.T, loc *mockLocator, mx *mockMatrix) *Calculator {
	t.Helper()
	c, err := NewCalculator(loc, mx, CalculatorConfig{LookupTimeout: time.Second})
	require.NoError(t, err)
	c.now = func() time.Time { return fixedNow }
	return c
}

func productOf(id, businessID string) product.Product {
	return product.Product{ID: id, Business: product.Business{ID: businessID}}
}

var deliveryPoint = &geo.LocationInput{
	Country: "KZ",
	City:    "Almaty",
	Street:  "Abay Ave",
	Coords:  geo.Coordinates{Latitude: 43.2389, Longitude: 76.8897},
}

// --- Tests ---

func TestCalculate_NoLocation(t *testing.T) {
	loc := &mockLocator{}
	mx := &mockMatrix{}
	c := newTestCalculator(t, loc, mx)

	got, err := c.Calculate(context.Background(), Request{
		Products: []product.Product{productOf("p1", "b1")},
	})

	require.NoError(t, err)
	assert.Nil(t, got.Location)
	assert.Empty(t, got.Distances)
	assert.Equal(t, int64(20), got.Price)
	assert.Equal(t, "17 June", got.ActiveDateFormat)
	assert.Equal(t, time.Date(2025, 6, 17, 0, 0, 0, 0, time.UTC).UnixMilli(), got.ActiveDate)
	assert.Len(t, got.Deliveries, 7)
	assert.Empty(t, loc.calls, "no lookup without a delivery location")
	assert.Zero(t, mx.calls)
}

func TestCalculate_WithDistances(t *testing.T) {
	loc := &mockLocator{locations: map[string]geo.Coordinates{
		"b1": {Latitude: 43.25, Longitude: 76.9},
		"b2": {Latitude: 43.22, Longitude: 76.85},
	}}
	mx := &mockMatrix{routes: []Route{
		{Meters: 10000, Found: true},
		{Meters: 10000, Found: true},
	}}
	c := newTestCalculator(t, loc, mx)

	got, err := c.Calculate(context.Background(), Request{
		Products: []product.Product{
			productOf("p1", "b1"),
			productOf("p2", "b2"),
			productOf("p3", "b1"),
		},
		Location: deliveryPoint,
	})

	require.NoError(t, err)
	require.NotNil(t, got.Location)
	assert.Equal(t, "Almaty", got.Location.City)
	require.Len(t, loc.calls, 1)
	assert.Equal(t, []string{"b1", "b2"}, loc.calls[0], "distinct businesses in first-seen order")
	assert.Equal(t, []geo.Coordinates{
		{Latitude: 43.25, Longitude: 76.9},
		{Latitude: 43.22, Longitude: 76.85},
	}, mx.destinations)
	assert.Equal(t, []float64{10000, 10000}, got.Distances)
	assert.Equal(t, int64(40), got.Price)
}

func TestCalculate_PartialRouteFailureExcludesDestination(t *testing.T) {
	loc := &mockLocator{locations: map[string]geo.Coordinates{
		"b1": {Latitude: 1, Longitude: 1},
		"b2": {Latitude: 2, Longitude: 2},
		"b3": {Latitude: 3, Longitude: 3},
	}}
	mx := &mockMatrix{routes: []Route{
		{Meters: 30000, Found: true},
		{Found: false},
		{Meters: 12000, Found: true},
	}}
	c := newTestCalculator(t, loc, mx)

	got, err := c.Calculate(context.Background(), Request{
		Products: []product.Product{productOf("p1", "b1"), productOf("p2", "b2"), productOf("p3", "b3")},
		Location: deliveryPoint,
	})

	require.NoError(t, err)
	assert.Equal(t, []float64{30000, 12000}, got.Distances)
	// 10 + 2*5 + 42 km.
	assert.Equal(t, int64(62), got.Price)
}

func TestCalculate_UnknownBusinessLocationExcluded(t *testing.T) {
	loc := &mockLocator{locations: map[string]geo.Coordinates{
		"b2": {Latitude: 2, Longitude: 2},
	}}
	mx := &mockMatrix{routes: []Route{{Meters: 25000, Found: true}}}
	c := newTestCalculator(t, loc, mx)

	got, err := c.Calculate(context.Background(), Request{
		Products: []product.Product{productOf("p1", "b1"), productOf("p2", "b2")},
		Location: deliveryPoint,
	})

	require.NoError(t, err)
	assert.Equal(t, []geo.Coordinates{{Latitude: 2, Longitude: 2}}, mx.destinations)
	assert.Equal(t, []float64{25000}, got.Distances)
	assert.Equal(t, int64(40), got.Price)
}

func TestCalculate_MatrixErrorDegradesToEmpty(t *testing.T) {
	loc := &mockLocator{locations: map[string]geo.Coordinates{"b1": {Latitude: 1, Longitude: 1}}}
	mx := &mockMatrix{err: errors.New("routing engine unavailable")}
	c := newTestCalculator(t, loc, mx)

	got, err := c.Calculate(context.Background(), Request{
		Products: []product.Product{productOf("p1", "b1")},
		Location: deliveryPoint,
	})

	require.NoError(t, err)
	require.NotNil(t, got.Location)
	assert.Empty(t, got.Distances)
	assert.Equal(t, int64(20), got.Price)
}

func TestCalculate_LocatorErrorDegradesToEmpty(t *testing.T) {
	loc := &mockLocator{err: errors.New("db down")}
	mx := &mockMatrix{}
	c := newTestCalculator(t, loc, mx)

	got, err := c.Calculate(context.Background(), Request{
		Products: []product.Product{productOf("p1", "b1")},
		Location: deliveryPoint,
	})

	require.NoError(t, err)
	assert.Empty(t, got.Distances)
	assert.Equal(t, int64(20), got.Price)
	assert.Zero(t, mx.calls)
}

func TestCalculate_LookupTimeoutDegrades(t *testing.T) {
	loc := &mockLocator{block: true}
	c, err := NewCalculator(loc, &mockMatrix{}, CalculatorConfig{LookupTimeout: 10 * time.Millisecond})
	require.NoError(t, err)
	c.now = func() time.Time { return fixedNow }

	got, err := c.Calculate(context.Background(), Request{
		Products: []product.Product{productOf("p1", "b1")},
		Location: deliveryPoint,
	})

	require.NoError(t, err)
	assert.Empty(t, got.Distances)
	assert.Equal(t, int64(20), got.Price)
}

func TestCalculate_CallerCancellationAborts(t *testing.T) {
	loc := &mockLocator{block: true}
	c := newTestCalculator(t, loc, &mockMatrix{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	got, err := c.Calculate(ctx, Request{
		Products: []product.Product{productOf("p1", "b1")},
		Location: deliveryPoint,
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, got)
}

func TestCalculate_RequestedDate(t *testing.T) {
	c := newTestCalculator(t, &mockLocator{}, &mockMatrix{})
	date := time.Date(2025, 6, 20, 15, 0, 0, 0, time.UTC)

	got, err := c.Calculate(context.Background(), Request{Date: &date})

	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC).UnixMilli(), got.ActiveDate)
	assert.Equal(t, "20 June", got.ActiveDateFormat)
	assert.Equal(t, "2025-06-17", got.Deliveries[0])
}

func TestNewCalculator_DefaultTariff(t *testing.T) {
	c, err := NewCalculator(&mockLocator{}, &mockMatrix{}, CalculatorConfig{})
	require.NoError(t, err)
	assert.Equal(t, DefaultTariff, c.tariff)
}
