package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/kart-checkout/internal/domain/delivery"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (KART_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (KART_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL     string `usage:"Redis URL for the distance cache, disabled when empty (KART_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	ImageBaseURL string `default:"" usage:"Base URL for relative product image paths" flag:"image-base-url"`
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
	Delivery     DeliveryConfig
	Distance     DistanceConfig
}

// RateLimitConfig controls per-client request throttling.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window, 0 disables throttling"`
	Window time.Duration `default:"1m"  usage:"Throttling window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// DeliveryConfig is the delivery tariff.
type DeliveryConfig struct {
	Base       int64 `default:"10" usage:"Base delivery price"`
	PerPartner int64 `default:"5"  usage:"Price per business in the cart"`
	PerKm      int64 `default:"1"  usage:"Price per started kilometre"`
	Minimum    int64 `default:"20" usage:"Minimum delivery price"`
}

// Tariff converts the configuration into a delivery.Tariff.
func (c DeliveryConfig) Tariff() delivery.Tariff {
	return delivery.Tariff{
		Base:       c.Base,
		PerPartner: c.PerPartner,
		PerKm:      c.PerKm,
		Minimum:    c.Minimum,
	}
}

// DistanceConfig controls distance lookups.
type DistanceConfig struct {
	RoutingURL string        `default:"" usage:"OSRM compatible routing engine URL, great-circle distances when empty" flag:"routing-url"`
	Profile    string        `default:"driving" usage:"Routing profile"`
	Timeout    time.Duration `default:"2s" usage:"Upper bound for location and distance lookups of one quote"`
	CacheTTL   time.Duration `default:"24h" usage:"Lifetime of cached distances"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// flags, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "KART",
		Files:     []string{"config.yaml", "/etc/kart/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables that
// use standard names like DATABASE_URL and PORT.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.RedisURL == "" {
		c.RedisURL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set KART_DATABASE_URL or DATABASE_URL")
	}
	d := c.Delivery
	if d.Base < 0 || d.PerPartner < 0 || d.PerKm < 0 || d.Minimum < 0 {
		return errors.Errorf("delivery tariff must not be negative: %+v", d)
	}
	if c.Distance.Timeout <= 0 {
		return errors.New("distance timeout must be positive")
	}
	if c.RateLimit.Max > 0 && c.RateLimit.Window <= 0 {
		return errors.New("rate limit window must be positive")
	}
	return nil
}
