// Package app wires the checkout service together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/xenking/kart-checkout/internal/distance"
	"github.com/xenking/kart-checkout/internal/domain/checkout"
	"github.com/xenking/kart-checkout/internal/domain/delivery"
	"github.com/xenking/kart-checkout/internal/handler"
	"github.com/xenking/kart-checkout/internal/repository"
	"github.com/xenking/kart-checkout/pkg/health"
	"github.com/xenking/kart-checkout/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New(lg.Named("health"))
	healthSvc.AddReadiness(health.Check{Name: "postgres", Timeout: 5 * time.Second, Func: health.PingCheck(pool)})
	healthSvc.AddLiveness(health.Check{Name: "goroutines", Func: health.GoroutineCountCheck(10000)})
	healthSvc.AddLiveness(health.Check{Name: "gc", Func: health.GCMaxPauseCheck(time.Second)})

	matrix, err := newDistanceMatrix(lg, m, cfg)
	if err != nil {
		return errors.Wrap(err, "create distance matrix")
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return errors.Wrap(err, "parse redis url")
		}
		rdb := redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()

		matrix = distance.NewCache(matrix, rdb, cfg.Distance.CacheTTL)
		healthSvc.AddReadiness(health.Check{Name: "redis", Timeout: 2 * time.Second, Func: health.RedisCheck(rdb)})
		lg.Info("Distance cache enabled", zap.Duration("ttl", cfg.Distance.CacheTTL))
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	productRepo := repository.NewProductRepository(pool)
	businessRepo := repository.NewBusinessRepository(pool)

	// Domain services.
	calculator, err := delivery.NewCalculator(businessRepo, matrix, delivery.CalculatorConfig{
		Tariff:        cfg.Delivery.Tariff(),
		LookupTimeout: cfg.Distance.Timeout,
		MeterProvider: m.MeterProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create delivery calculator")
	}
	checkoutSvc := checkout.NewService(productRepo, calculator, m.TracerProvider())

	h := handler.New(handler.Config{ImageBaseURL: cfg.ImageBaseURL}, productRepo, checkoutSvc)

	// Route-aware middleware runs inside the router.
	router := chi.NewRouter()
	router.Use(
		httpmiddleware.Instrument("kart-api", m.TracerProvider(), m.MeterProvider()),
		httpmiddleware.LogRequests(),
	)
	router.NotFound(handler.NotFound)
	router.MethodNotAllowed(handler.MethodNotAllowed)
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)
	router.Route("/api", h.Routes)

	throttler := httpmiddleware.NewThrottler(httpmiddleware.ThrottleConfig{
		Max:    cfg.RateLimit.Max,
		Window: cfg.RateLimit.Window,
	})
	go throttler.Run(ctx)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				Origins:          cfg.CORS.Origins,
				Headers:          []string{"Content-Type", "X-Request-ID"},
				ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			throttler.Middleware(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// newDistanceMatrix returns the routing engine client when one is
// configured and great-circle distances otherwise.
func newDistanceMatrix(lg *zap.Logger, m *app.Telemetry, cfg *Config) (delivery.DistanceMatrix, error) {
	if cfg.Distance.RoutingURL == "" {
		lg.Info("No routing engine configured, using great-circle distances")
		return distance.Haversine{}, nil
	}

	router, err := distance.NewRouter(distance.RouterConfig{
		BaseURL:        cfg.Distance.RoutingURL,
		Profile:        cfg.Distance.Profile,
		Timeout:        cfg.Distance.Timeout,
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
	})
	if err != nil {
		return nil, err
	}
	lg.Info("Using routing engine",
		zap.String("url", cfg.Distance.RoutingURL),
		zap.String("profile", cfg.Distance.Profile),
	)
	return router, nil
}
