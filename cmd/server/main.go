package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vibecreator-backend/internal/api"
	"vibecreator-backend/internal/config"
	"vibecreator-backend/internal/dify"
	"vibecreator-backend/internal/handlers"
	"vibecreator-backend/internal/logging"
	"vibecreator-backend/internal/services"
	"vibecreator-backend/internal/store"
	"vibecreator-backend/internal/store/postgres"
	"vibecreator-backend/internal/store/redisstore"
	"vibecreator-backend/internal/store/sqlite"
	"vibecreator-backend/internal/tokens"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// 1. Load Configuration
	cfg, note, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.IsProduction())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting VibeCreator backend...", zap.String("env", cfg.Environment))
	if note != "" {
		logger.Info(note)
	}

	// 2. Open the style store
	storeCtx, storeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	styleStore, closeStore, err := openStore(storeCtx, cfg, logger)
	storeCancel()
	if err != nil {
		logger.Fatal("Unable to open style store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer closeStore()
	logger.Info("Style store ready.", zap.String("driver", cfg.StoreDriver))

	// 3. Initialize Dependencies (Gateway, Services, Handlers)
	// No client timeout: chat streams run as long as the gateway keeps sending.
	// Workflow runs are bounded by DIFY_TIMEOUT inside the analysis service.
	gateway := dify.NewClient(&http.Client{}, cfg.Gateway.User, logger)

	var counter services.TokenCounter
	if c, err := tokens.NewCounter(cfg.TokenEncoding); err != nil {
		logger.Warn("Token counting disabled", zap.Error(err))
	} else {
		counter = c
	}

	analysisService := services.NewAnalysisService(gateway, cfg.Gateway.AnalysisEndpoint(), styleStore, cfg.Gateway.Timeout, logger)
	styleService := services.NewStyleService(styleStore, logger)
	relayService := services.NewRelayService(gateway, cfg.Gateway.ChatEndpoint(), counter, logger)
	if err := relayService.CheckConfigured(); err != nil {
		logger.Warn("Chat relay is not configured; /chat will fail until it is", zap.Error(err))
	}

	chatHandler := handlers.NewChatHandler(relayService, logger)
	styleHandler := handlers.NewStyleHandler(styleService, analysisService, logger)

	// 4. Setup Router & Inject Dependencies
	router := api.NewRouter(api.RouterDependencies{
		ChatHandler:  chatHandler,
		StyleHandler: styleHandler,
		Logger:       logger,
		Config:       cfg,
	})

	// 5. Configure and Start HTTP Server
	server := &http.Server{
		Addr:        ":" + cfg.HTTPPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// WriteTimeout stays 0: it would cut off long chat streams.
		IdleTimeout: 120 * time.Second,
	}

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("Server listening", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Could not listen", zap.String("port", cfg.HTTPPort), zap.Error(err))
		}
	}()

	<-stopChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server graceful shutdown failed", zap.Error(err))
		return
	}
	logger.Info("Server shutdown complete.")
}

// openStore connects the configured style store backend. The returned func
// releases it.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.StyleStore, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("create connection pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping database: %w", err)
		}
		pg := postgres.NewPostgresStore(pool, logger)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return pg, pool.Close, nil

	case config.StoreDriverSQLite:
		lite, err := sqlite.Open(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return lite, func() { _ = lite.Close() }, nil

	case config.StoreDriverRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return redisstore.NewRedisStore(rdb, logger), func() { _ = rdb.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
