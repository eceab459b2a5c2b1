package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"eventapi/config"
	"eventapi/db"
	"eventapi/middlewares"
	"eventapi/models"
	"eventapi/routes"
	"eventapi/utils"
)

func runServer(ctx context.Context, addr string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("invalid address %q, want host:port: %w", addr, err)
		}
		cfg.Server.Addr = addr
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	logger := config.NewLogger(cfg.Logging)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()
	logger.Info().Str("driver", cfg.Store.Driver).Msg("store ready")

	opts := routes.Options{CacheTTL: cfg.Redis.CacheTTL, WriteQuota: cfg.RateLimit.WritesPerDay}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
		}
		opts.Redis = rdb
		opts.Invalidator = utils.NewCacheInvalidator(rdb)
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("redis cache enabled")
	}
	if cfg.RateLimit.RPS > 0 {
		opts.Limiter = middlewares.NewRateLimiter(ctx, middlewares.LimiterConfig{
			RPS:     cfg.RateLimit.RPS,
			Burst:   cfg.RateLimit.Burst,
			IdleTTL: cfg.RateLimit.IdleTTL,
		})
	}
	reg := middlewares.NewRegistry()
	opts.Gatherer = reg

	gin.SetMode(gin.ReleaseMode)
	server := gin.New()
	server.Use(
		gin.Recovery(),
		middlewares.RequestID(logger),
		middlewares.RequestLogging(logger),
		middlewares.NewHTTPMetrics(reg).Middleware(),
	)
	routes.RegisterRoutes(server, store, opts)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// openStore builds the repository for the configured driver. The returned
// func releases the underlying connection.
func openStore(ctx context.Context, cfg config.StoreConfig) (models.EventRepository, func(), error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		sqldb, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return models.NewSQLEventRepository(sqldb, models.DialectSQLite), func() { _ = sqldb.Close() }, nil

	case config.DriverPostgres:
		sqldb, err := db.OpenPostgres(cfg.DatabaseURL, cfg.MaxConnections, cfg.MaxIdle)
		if err != nil {
			return nil, nil, err
		}
		return models.NewSQLEventRepository(sqldb, models.DialectPostgres), func() { _ = sqldb.Close() }, nil

	case config.DriverMongo:
		client, err := db.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		col := client.Database(cfg.MongoDatabase).Collection("events")
		if err := models.EnsureMongoIndexes(ctx, col); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, fmt.Errorf("mongo indexes: %w", err)
		}
		return models.NewMongoEventRepository(col), func() { _ = client.Disconnect(context.Background()) }, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}
