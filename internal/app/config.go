package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const minSecretLen = 16

// Config holds the complete application configuration, loadable from
// environment variables (STORE_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (STORE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	InMemory    bool   `default:"false" usage:"Keep all data in process memory with a demo catalog instead of PostgreSQL" flag:"in-memory"`
	Auth        AuthConfig
	Events      EventsConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// AuthConfig controls bearer token verification.
type AuthConfig struct {
	Secret string        `usage:"HMAC secret for signing bearer tokens, at least 16 bytes" flag:"auth-secret"`
	Issuer string        `default:"kart-store" usage:"Token issuer" flag:"auth-issuer"`
	TTL    time.Duration `default:"24h" usage:"Lifetime of issued tokens" flag:"auth-ttl"`
}

// EventsConfig controls order event publishing.
type EventsConfig struct {
	AMQPURL  string `usage:"AMQP broker URL; events are discarded when empty" flag:"amqp-url"`
	Exchange string `default:"store.orders" usage:"Topic exchange for order events" flag:"amqp-exchange"`
}

// RateLimitConfig controls the per-client token bucket rate limiter.
type RateLimitConfig struct {
	RPS   float64 `default:"10" usage:"Sustained requests per second per client" flag:"rate-limit-rps"`
	Burst int     `default:"20" usage:"Requests a client may burst after being idle" flag:"rate-limit-burst"`
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

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STORE",
		Files:     []string{"config.yaml", "/etc/store/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports missing or inconsistent settings.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" && !c.InMemory {
		return errors.New("database URL is required: set STORE_DATABASE_URL or DATABASE_URL, or STORE_IN_MEMORY=true")
	}
	if len(c.Auth.Secret) < minSecretLen {
		return errors.Errorf("auth secret must be at least %d bytes: set STORE_AUTH_SECRET", minSecretLen)
	}
	if c.Auth.TTL <= 0 {
		return errors.New("auth TTL must be positive")
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		return errors.New("rate limit RPS and burst must be positive")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's STORE_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
