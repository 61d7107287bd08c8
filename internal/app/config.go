package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (NIRANJI_ prefix), flags, or YAML config files.
// Secrets (gateway key, SMTP credentials) are opaque values and must never
// be logged.
type Config struct {
	Addr          string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL   string `usage:"PostgreSQL connection URL (NIRANJI_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	OrderIDPrefix string `default:"NIRANJI" usage:"Brand prefix for customer-facing order ids" flag:"order-id-prefix"`
	Gateway       GatewayConfig
	SMTP          SMTPConfig
	Notify        NotifyConfig
	RateLimit     RateLimitConfig
	CORS          CORSConfig
	Graceful      GracefulConfig
}

// GatewayConfig holds the payment gateway credentials. KeySecret signs
// payment confirmations and is the secret the verifier checks against.
type GatewayConfig struct {
	KeyID     string `usage:"Payment gateway API key id" flag:"gateway-key-id"`
	KeySecret string `usage:"Payment gateway API key secret (signs payment confirmations)" flag:"gateway-key-secret"`
	Currency  string `default:"INR" usage:"Currency for gateway payment intents"`
}

// SMTPConfig holds the outbound mail transport settings.
type SMTPConfig struct {
	Host     string `usage:"SMTP server host"`
	Port     int    `default:"587" usage:"SMTP server port"`
	Username string `usage:"SMTP username"`
	Password string `usage:"SMTP password"`
	From     string `usage:"Sender address for outgoing mail"`
}

// NotifyConfig controls order notification dispatch.
type NotifyConfig struct {
	OperatorEmail string        `usage:"Address receiving the operator copy of every order" flag:"operator-email"`
	SupportEmail  string        `usage:"Support contact rendered into customer mail" flag:"support-email"`
	Timeout       time.Duration `default:"10s" usage:"Per-recipient notification dispatch timeout"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
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

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "NIRANJI",
		Files:     []string{"config.yaml", "/etc/niranji/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	switch {
	case cfg.DatabaseURL == "":
		return nil, errors.New("database URL is required: set NIRANJI_DATABASE_URL or DATABASE_URL")
	case cfg.Gateway.KeySecret == "":
		return nil, errors.New("gateway key secret is required: set NIRANJI_GATEWAY_KEY_SECRET")
	case cfg.SMTP.Host == "":
		return nil, errors.New("SMTP host is required: set NIRANJI_SMTP_HOST")
	case cfg.Notify.OperatorEmail == "":
		return nil, errors.New("operator email is required: set NIRANJI_NOTIFY_OPERATOR_EMAIL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables
// (Railway, Render, etc.) that use standard names like DATABASE_URL and
// PORT to the application's NIRANJI_-prefixed configuration.
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
