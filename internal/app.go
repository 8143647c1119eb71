// internal/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	router "instantransfer/internal/api"
	"instantransfer/internal/api/handler"
	"instantransfer/internal/auth"
	"instantransfer/internal/config"
	"instantransfer/internal/metrics"
	"instantransfer/internal/rates"
	"instantransfer/internal/repository"
	"instantransfer/internal/repository/memory"
	"instantransfer/internal/repository/postgres"
	"instantransfer/internal/service"
	"instantransfer/internal/util"
	"instantransfer/pkg/db"
)

// Application holds all the initialized components of the application.
type Application struct {
	Config *config.AppConfig
	Logger *slog.Logger
	DB     *sqlx.DB      // nil with the memory driver
	Redis  *redis.Client // nil when rate caching is off

	Store      repository.Store
	RateClient rates.Client
	Registry   *prometheus.Registry

	// Services
	Ledger        *service.LedgerEngine
	WalletService service.WalletService
	RateRefresher *service.RateRefresher
	Authenticator *auth.Authenticator

	// HTTP API
	HTTPHandler http.Handler
}

// NewApplication creates a new Application instance.
func NewApplication() *Application {
	return &Application{Logger: slog.Default()}
}

// Initialize initializes all application components.
func (app *Application) Initialize(ctx context.Context) error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	app.Config = cfg

	// 2. Initialize Logger
	util.InitLogger(cfg.LogLevel)
	app.Logger = util.GetLogger()
	app.Logger.Info("Application configuration loaded successfully.", "store_driver", cfg.StoreDriver)

	// 3. Storage
	if err := app.initStore(ctx); err != nil {
		return err
	}

	// 4. Exchange rates
	app.initRates(ctx)

	// 5. Metrics
	app.Registry = prometheus.NewRegistry()
	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewPrometheus(app.Registry)

	// 6. Initialize Services
	app.Ledger = service.NewLedgerEngine(app.Store, app.Store, app.RateClient, service.LedgerConfig{
		MaxAttempts:     cfg.Ledger.MaxAttempts,
		RetryBackoff:    cfg.Ledger.RetryBackoff,
		AmountScale:     cfg.Ledger.AmountScale,
		DefaultCurrency: cfg.Ledger.DefaultCurrency,
	}, recorder, app.Logger)
	app.WalletService = service.NewWalletService(app.Store, app.Store)
	app.RateRefresher = service.NewRateRefresher(app.RateClient, app.Store, app.Logger)
	app.Authenticator = auth.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	app.Logger.Info("Services initialized.")

	// 7. Initialize HTTP Handlers and Router
	walletHandler := handler.NewWalletHandler(app.Ledger, app.WalletService, app.Logger)
	app.HTTPHandler = router.NewRouter(walletHandler, app.Authenticator, app.Registry, app.Logger)
	app.Logger.Info("HTTP router and handlers initialized.")

	return nil
}

func (app *Application) initStore(ctx context.Context) error {
	if app.Config.StoreDriver == config.StoreDriverMemory {
		app.Store = memory.NewStore()
		app.Logger.Warn("Using in-memory ledger store; balances are lost on restart.")
		return nil
	}

	database, err := db.NewPostgresDB(app.Config.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = database
	app.Logger.Info("Database connection established.")

	if app.Config.AutoMigrate {
		if err := db.Migrate(ctx, app.DB); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
		app.Logger.Info("Database schema applied.")
	}

	// Pass the concrete db.BeginTx, db.CommitTx, db.RollbackTx functions from pkg/db
	app.Store = postgres.NewStore(app.DB, app.DB, db.BeginTx, db.CommitTx, db.RollbackTx)
	return nil
}

func (app *Application) initRates(ctx context.Context) {
	cfg := app.Config
	upstream := rates.NewHTTPClient(cfg.Rates.BaseURL, cfg.Rates.APIKey, cfg.Rates.Timeout, app.Logger)
	if cfg.Rates.APIKey == "" {
		app.Logger.Warn("EXCHANGE_RATE_API_KEY is not set; currency conversion will fail.")
	}
	if cfg.Redis.Addr == "" {
		app.RateClient = upstream
		return
	}

	app.Redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := app.Redis.Ping(pingCtx).Err(); err != nil {
		// The cache falls through to the provider on Redis errors.
		app.Logger.Warn("Redis is not reachable, rate cache degraded", "addr", cfg.Redis.Addr, "error", err)
	}
	app.RateClient = rates.NewCachedClient(upstream, app.Redis, cfg.Rates.CacheTTL, cfg.Rates.StaleTTL, app.Logger)
	app.Logger.Info("Rate cache enabled.", "addr", cfg.Redis.Addr, "ttl", cfg.Rates.CacheTTL)
}

// Shutdown gracefully shuts down application resources.
func (app *Application) Shutdown(ctx context.Context) error {
	app.Logger.Info("Shutting down application...")
	var errs []error
	if app.Redis != nil {
		if err := app.Redis.Close(); err != nil {
			app.Logger.Error("Failed to close Redis client", "error", err)
			errs = append(errs, fmt.Errorf("failed to close redis client: %w", err))
		}
	}
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			app.Logger.Error("Failed to close database connection", "error", err)
			errs = append(errs, fmt.Errorf("failed to close database connection: %w", err))
		} else {
			app.Logger.Info("Database connection closed.")
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	app.Logger.Info("Application shut down gracefully.")
	return nil
}
