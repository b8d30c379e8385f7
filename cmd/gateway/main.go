// Dropship Gateway - integration core between a storefront and a
// dropshipping provider: stock, shipping quotes and cart origin grouping.
// Designed for Cloud Run deployment; state lives in Postgres and Redis when configured.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"dropship-gateway/internal/catalog"
	"dropship-gateway/internal/config"
	"dropship-gateway/internal/dropship"
	"dropship-gateway/internal/handler"
	"dropship-gateway/internal/middleware"
	"dropship-gateway/internal/model"
	"dropship-gateway/internal/provider"
	"dropship-gateway/internal/shipping"
	"dropship-gateway/internal/throttle"
	"dropship-gateway/internal/token"
	"dropship-gateway/internal/transport"
)

// cachePurgeInterval is how often the in-memory quote cache drops expired entries.
const cachePurgeInterval = 10 * time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := initLogger(cfg)
	slog.SetDefault(logger)

	creds, err := cfg.Provider.Credentials()
	if err != nil {
		return fmt.Errorf("reading provider credentials: %w", err)
	}

	logger.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.String("provider_endpoint", cfg.Provider.Endpoint()),
		slog.String("tier", string(creds.Tier)),
		slog.Bool("credentials_usable", creds.Usable()),
		slog.Bool("chrome_tls", cfg.Provider.ChromeTLS),
	)

	tokenStore, catalogStore, closeDB, err := openStores(ctx, cfg, creds, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	quoteCache, closeCache, err := openCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	// Provider stack: one gate shared by the auth and API executors.
	gate := throttle.New(throttle.SystemClock{})
	httpClient := transport.NewHTTPClient(cfg.Provider.ChromeTLS, provider.RequestTimeout)

	authExec, err := provider.NewExecutor(provider.ExecutorConfig{
		BaseURL:    cfg.Provider.Endpoint(),
		HTTPClient: httpClient,
		Gate:       gate,
		Tier:       creds.Tier,
		Logger:     logger.With(slog.String("component", "provider_auth")),
	})
	if err != nil {
		return fmt.Errorf("creating auth executor: %w", err)
	}
	lifecycle := token.NewLifecycle(tokenStore, provider.NewAuthAPI(authExec), logger)

	apiExec, err := provider.NewExecutor(provider.ExecutorConfig{
		BaseURL:    cfg.Provider.Endpoint(),
		HTTPClient: httpClient,
		Gate:       gate,
		Tokens:     lifecycle,
		Logger:     logger.With(slog.String("component", "provider")),
	})
	if err != nil {
		return fmt.Errorf("creating provider executor: %w", err)
	}

	service := dropship.New(dropship.Config{
		Provider: provider.NewClient(apiExec),
		Tokens:   lifecycle,
		Catalog:  catalogStore,
		Cache:    quoteCache,
		QuoteTTL: cfg.QuoteCacheTTL,
		Logger:   logger,
	})

	h := handler.New(service, logger)

	// Setup routes
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	// Apply middleware chain: recovery → request id → logging → rate limit → handler
	// Recovery must be outermost to catch panics from logging middleware
	httpHandler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logging(logger),
		middleware.RateLimit(cfg.InboundRPS, max(1, int(cfg.InboundRPS*2))),
	)(mux)

	// Create HTTP server with timeouts. Writes allow for a throttled provider
	// call plus one rate-limit backoff.
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Channel for server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("addr", server.Addr),
		)
		serverErr <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErr:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		logger.Info("shutdown signal received")

		// Give outstanding requests time to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			// Force close if graceful shutdown fails
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// openStores returns Postgres-backed token and catalog stores when DATABASE_URL
// is set, in-memory ones otherwise. Configured credentials are seeded into the
// database so the token lifecycle reads a single source.
func openStores(ctx context.Context, cfg *config.Config, creds model.Credentials, logger *slog.Logger) (token.Store, catalog.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, tokens and catalog are kept in memory")
		return token.NewMemoryStore(creds), catalog.NewMemoryStore(), func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("connecting to database: %w", err)
	}

	tokens := token.NewPostgresStore(db)
	products := catalog.NewPostgresStore(db)
	if err := tokens.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("migrating token store: %w", err)
	}
	if err := products.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("migrating catalog store: %w", err)
	}
	if err := tokens.SeedCredentials(ctx, creds); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("seeding provider credentials: %w", err)
	}

	logger.Info("postgres stores ready")
	return tokens, products, func() { db.Close() }, nil
}

// openCache returns the shared Redis quote cache when REDIS_URL is set.
// Otherwise an in-memory cache is purged in the background until ctx ends.
func openCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (shipping.Cache, func(), error) {
	if cfg.RedisURL != "" {
		cache, err := shipping.NewRedisCacheFromURL(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("redis quote cache ready")
		return cache, func() { cache.Close() }, nil
	}

	cache := shipping.NewMemoryCache(time.Now)
	go func() {
		ticker := time.NewTicker(cachePurgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := cache.Purge(); n > 0 {
					logger.Debug("purged expired quotes", slog.Int("count", n))
				}
			}
		}
	}()
	return cache, func() {}, nil
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for GCP Cloud Logging compatibility.
// Development uses text format for readability.
func initLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		// Add source location in debug mode
		AddSource: level == slog.LevelDebug,
	}

	if cfg.Environment == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
