package distance

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/kart-checkout/internal/domain/delivery"
	"github.com/xenking/kart-checkout/internal/domain/geo"
)

var _ delivery.DistanceMatrix = (*Router)(nil)

// RouterConfig configures the routing engine client.
type RouterConfig struct {
	// BaseURL of an OSRM compatible routing engine, e.g. http://osrm:5000.
	BaseURL string
	// Profile is the routing profile, "driving" when empty.
	Profile string
	// Timeout bounds a single table request. Zero disables the client timeout.
	Timeout time.Duration

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Router queries the table service of an OSRM compatible routing engine for
// one-to-many road distances.
type Router struct {
	base    *url.URL
	profile string
	client  *http.Client
}

// NewRouter creates a Router.
func NewRouter(cfg RouterConfig) (*Router, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse routing engine url")
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.Errorf("routing engine url %q must be absolute", cfg.BaseURL)
	}

	profile := cfg.Profile
	if profile == "" {
		profile = "driving"
	}

	var opts []otelhttp.Option
	if cfg.TracerProvider != nil {
		opts = append(opts, otelhttp.WithTracerProvider(cfg.TracerProvider))
	}
	if cfg.MeterProvider != nil {
		opts = append(opts, otelhttp.WithMeterProvider(cfg.MeterProvider))
	}

	return &Router{
		base:    base,
		profile: profile,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport, opts...),
		},
	}, nil
}

// Distances implements delivery.DistanceMatrix. Destinations the engine
// cannot route to are reported with Found set to false.
func (r *Router) Distances(ctx context.Context, origin geo.Coordinates, destinations []geo.Coordinates) ([]delivery.Route, error) {
	if len(destinations) == 0 {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.tableURL(origin, destinations), http.NoBody)
	if err != nil {
		return nil, errors.Wrap(err, "create table request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "table request")
	}
	defer func() { _ = resp.Body.Close() }()

	table, err := decodeTable(jx.Decode(resp.Body, 4096))
	if err != nil {
		return nil, errors.Wrapf(err, "decode table response (status %d)", resp.StatusCode)
	}
	if table.code != "Ok" {
		return nil, errors.Errorf("routing engine: %s: %s", table.code, table.message)
	}
	if len(table.row) != len(destinations) {
		return nil, errors.Errorf("routing engine returned %d distances for %d destinations",
			len(table.row), len(destinations))
	}

	return table.row, nil
}

// tableURL builds /table/v1/{profile}/{origin};{dest...}?sources=0&destinations=1;..;n.
// OSRM expects longitude first.
func (r *Router) tableURL(origin geo.Coordinates, destinations []geo.Coordinates) string {
	points := make([]string, 0, len(destinations)+1)
	points = append(points, formatPoint(origin))
	dst := make([]string, len(destinations))
	for i, d := range destinations {
		points = append(points, formatPoint(d))
		dst[i] = strconv.Itoa(i + 1)
	}

	u := *r.base
	u.Path = strings.TrimRight(u.Path, "/") + "/table/v1/" + r.profile + "/" + strings.Join(points, ";")
	u.RawQuery = "sources=0&destinations=" + strings.Join(dst, ";") + "&annotations=distance"
	return u.String()
}

func formatPoint(c geo.Coordinates) string {
	return strconv.FormatFloat(c.Longitude, 'f', 6, 64) + "," + strconv.FormatFloat(c.Latitude, 'f', 6, 64)
}

type tableResponse struct {
	code    string
	message string
	row     []delivery.Route
}

func decodeTable(d *jx.Decoder) (tableResponse, error) {
	var (
		out    tableResponse
		gotRow bool
	)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "code":
			v, err := d.Str()
			out.code = v
			return err
		case "message":
			v, err := d.Str()
			out.message = v
			return err
		case "distances":
			return d.Arr(func(d *jx.Decoder) error {
				// Only one source is requested.
				if gotRow {
					return d.Skip()
				}
				gotRow = true
				return d.Arr(func(d *jx.Decoder) error {
					if d.Next() == jx.Null {
						out.row = append(out.row, delivery.Route{})
						return d.Null()
					}
					v, err := d.Float64()
					if err != nil {
						return err
					}
					out.row = append(out.row, delivery.Route{Meters: v, Found: true})
					return nil
				})
			})
		default:
			return d.Skip()
		}
	})
	return out, err
}
