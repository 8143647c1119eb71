// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"instantransfer/pkg/db"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// MaxAmountScale is the fractional precision of the NUMERIC(20,4) amount columns.
const MaxAmountScale = 4

var currencyCodePattern = regexp.MustCompile(`^[A-Z]{3}$`)

// AppConfig holds all application-wide configurations.
type AppConfig struct {
	ServerPort  string
	LogLevel    string
	StoreDriver string
	DB          db.Config
	AutoMigrate bool
	Auth        AuthConfig
	Ledger      LedgerConfig
	Rates       RatesConfig
	Redis       RedisConfig
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// LedgerConfig tunes the ledger engine.
type LedgerConfig struct {
	MaxAttempts     int
	RetryBackoff    time.Duration
	AmountScale     int32
	DefaultCurrency string
}

// RatesConfig points at the exchange rate provider.
type RatesConfig struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	CacheTTL time.Duration
	StaleTTL time.Duration

	// RefreshInterval > 0 runs the catalog refresher inside the API process.
	RefreshInterval time.Duration
}

// RedisConfig configures the rate cache. An empty Addr disables caching.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoadConfig loads configuration from environment variables, after reading a
// .env file when one exists. Malformed values are reported together.
func LoadConfig() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, relying on environment variables")
	}

	var p envParser
	cfg := &AppConfig{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		DB: db.Config{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     p.int("DB_PORT", 5432),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			DBName:   getEnv("DB_NAME", "walletdb"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		AutoMigrate: p.bool("DB_AUTO_MIGRATE", false),
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
			TokenTTL:  p.duration("JWT_TOKEN_TTL", 24*time.Hour),
		},
		Ledger: LedgerConfig{
			MaxAttempts:     p.int("LEDGER_MAX_ATTEMPTS", 3),
			RetryBackoff:    p.duration("LEDGER_RETRY_BACKOFF", 5*time.Millisecond),
			AmountScale:     int32(p.int("LEDGER_AMOUNT_SCALE", 2)),
			DefaultCurrency: strings.ToUpper(getEnv("DEFAULT_CURRENCY", "USD")),
		},
		Rates: RatesConfig{
			BaseURL:  strings.TrimRight(getEnv("EXCHANGE_RATE_API_URL", "https://v6.exchangerate-api.com/v6"), "/"),
			APIKey:   os.Getenv("EXCHANGE_RATE_API_KEY"),
			Timeout:  p.duration("EXCHANGE_RATE_TIMEOUT", 5*time.Second),
			CacheTTL: p.duration("RATE_CACHE_TTL", time.Minute),
			StaleTTL: p.duration("RATE_CACHE_STALE_TTL", 10*time.Minute),

			RefreshInterval: p.duration("RATE_REFRESH_INTERVAL", 0),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       p.int("REDIS_DB", 0),
		},
	}

	if err := errors.Join(p.errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	var errs []error
	if c.StoreDriver != StoreDriverPostgres && c.StoreDriver != StoreDriverMemory {
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMemory, c.StoreDriver))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Ledger.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("LEDGER_MAX_ATTEMPTS must be at least 1, got %d", c.Ledger.MaxAttempts))
	}
	if c.Ledger.AmountScale < 0 || c.Ledger.AmountScale > MaxAmountScale {
		errs = append(errs, fmt.Errorf("LEDGER_AMOUNT_SCALE must be between 0 and %d, got %d", MaxAmountScale, c.Ledger.AmountScale))
	}
	if !currencyCodePattern.MatchString(c.Ledger.DefaultCurrency) {
		errs = append(errs, fmt.Errorf("DEFAULT_CURRENCY must be a 3-letter code, got %q", c.Ledger.DefaultCurrency))
	}
	return errors.Join(errs...)
}

// Helper to get env with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

// envParser reads typed variables and remembers every malformed one.
type envParser struct {
	errs []error
}

func (p *envParser) int(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return v
}

func (p *envParser) bool(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return v
}

func (p *envParser) duration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return v
}
