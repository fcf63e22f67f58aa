package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP     HTTPConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Session  SessionConfig
	Escrow   EscrowConfig
	Mail     MailConfig
	Log      LogConfig
	Worker   WorkerConfig
}

// HTTPConfig governs the HTTP server.
type HTTPConfig struct {
	Port            string        `env:"PORT,default=8080"`
	WebDir          string        `env:"WEB_DIR"`
	AuthRateLimit   float64       `env:"AUTH_RATE_LIMIT,default=20"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

// DatabaseConfig describes the Postgres connection. DATABASE_URL wins over
// the individual DB_* variables when both are present.
type DatabaseConfig struct {
	URL          string `env:"DATABASE_URL"`
	User         string `env:"DB_USER,default=postgres"`
	Password     string `env:"DB_PASSWORD"`
	Host         string `env:"DB_HOST,default=localhost"`
	Port         string `env:"DB_PORT,default=5432"`
	Name         string `env:"DB_NAME,default=chatpay"`
	MaxConns     int    `env:"DB_MAX_CONNS,default=10"`
	EnsureSchema bool   `env:"DB_ENSURE_SCHEMA,default=true"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Host     string `env:"REDIS_HOST"`
	Port     string `env:"REDIS_PORT,default=6379"`
	Password string `env:"REDIS_PASSWORD"`
	RunLocal bool   `env:"RUN_LOCAL,default=false"`
}

type SessionConfig struct {
	Secret      string        `env:"JWT_SECRET"`
	TTL         time.Duration `env:"SESSION_TTL,default=24h"`
	CookieName  string        `env:"SESSION_COOKIE,default=chatpay_session"`
	IdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT,default=2h"`
	// ResolveTimeout bounds a single identity lookup round.
	ResolveTimeout time.Duration `env:"IDENTITY_RESOLVE_TIMEOUT,default=10s"`
}

// EscrowConfig holds the on-chain escrow parameters. Fee is a decimal TON
// amount added on top of every escrow transfer.
type EscrowConfig struct {
	FactoryAddress string        `env:"ESCROW_FACTORY_ADDRESS,default=kQCQkWNWU91_i2W3zwxheZn5ya_gg1Nv7J5lZeVxCOtLNs8V"`
	Fee            string        `env:"ESCROW_FEE_TON,default=0.2"`
	ValidFor       time.Duration `env:"ESCROW_VALID_FOR,default=5m"`
	PersistRetries int           `env:"ESCROW_PERSIST_RETRIES,default=10"`
}

type MailConfig struct {
	Provider    string `env:"MAIL_PROVIDER"`
	Host        string `env:"SMTP_HOST"`
	Port        string `env:"SMTP_PORT,default=465"`
	Username    string `env:"SMTP_USERNAME"`
	Password    string `env:"SMTP_PASSWORD"`
	From        string `env:"SMTP_FROM"`
	ReplyTo     string `env:"MAIL_REPLY_TO"`
	AlertTo     string `env:"ALERT_EMAIL"`
	PlunkAPIKey string `env:"PLUNK_API_KEY"`
	PlunkURL    string `env:"PLUNK_API_URL,default=https://api.useplunk.com/v1/send"`
	AppURL      string `env:"APP_URL,default=http://localhost:3000"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL,default=info"`
	Format string `env:"LOG_FORMAT,default=json"` // text|json
}

type WorkerConfig struct {
	Inline      bool `env:"WORKER_INLINE,default=false"`
	Concurrency int  `env:"WORKER_CONCURRENCY,default=5"`
}

// Load reads .env (when present) and the process environment, applying defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values that have no safe default.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Session.Secret) == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.Session.TTL)
	}
	fee, err := c.Escrow.FeeTON()
	if err != nil {
		return err
	}
	if fee.IsNegative() {
		return fmt.Errorf("ESCROW_FEE_TON must not be negative, got %s", c.Escrow.Fee)
	}
	if c.Escrow.ValidFor <= 0 {
		return fmt.Errorf("ESCROW_VALID_FOR must be positive, got %s", c.Escrow.ValidFor)
	}
	if c.Escrow.FactoryAddress == "" {
		return errors.New("ESCROW_FACTORY_ADDRESS must be set")
	}
	return nil
}

// FeeTON parses the configured flat fee.
func (e EscrowConfig) FeeTON() (decimal.Decimal, error) {
	fee, err := decimal.NewFromString(strings.TrimSpace(e.Fee))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid ESCROW_FEE_TON %q: %w", e.Fee, err)
	}
	return fee, nil
}

// DSN returns the connection string for pgx.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", d.User, d.Password, d.Host, d.Port, d.Name)
}

// Address resolves the Redis endpoint: REDIS_ADDR, then REDIS_HOST:REDIS_PORT,
// then the docker-compose service name (or loopback when RUN_LOCAL is set).
func (r RedisConfig) Address() string {
	if r.Addr != "" {
		return r.Addr
	}
	if r.Host != "" {
		port := r.Port
		if port == "" {
			port = "6379"
		}
		return r.Host + ":" + port
	}
	if r.RunLocal {
		return "127.0.0.1:6379"
	}
	return "redis:6379"
}
