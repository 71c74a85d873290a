package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/pagecraft/subsync/internal/api"
	"github.com/pagecraft/subsync/internal/config"
	"github.com/pagecraft/subsync/internal/domain"
	"github.com/pagecraft/subsync/internal/engine"
	"github.com/pagecraft/subsync/internal/observe"
	"github.com/pagecraft/subsync/internal/provider"
	"github.com/pagecraft/subsync/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Local development convenience; production sets real env vars.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()
	logger.Info("connected to PostgreSQL")

	if err := pgStore.RunMigrations(ctx, "migrations"); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations applied")

	redisClient, err := store.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	logger.Info("connected to Redis")

	router := api.NewRouter(api.RouterConfig{
		Reconciler: engine.NewReconciler(pgStore, cfg.FreePlanID, logger),
		Deduper:    store.NewDeduper(redisClient, cfg.DedupeTTL, logger),
		Observer:   observe.NewLogObserver(logger),
		Adapters: []provider.Adapter{
			provider.NewLemonSqueezy(cfg.LemonSqueezyPlans),
			provider.NewRazorpay(cfg.RazorpayPlans),
		},
		Secrets: map[domain.Provider]string{
			domain.ProviderLemonSqueezy: cfg.LemonSqueezySecret,
			domain.ProviderRazorpay:     cfg.RazorpaySecret,
		},
		BuildBackendURL: cfg.BuildBackendURL,
		Logger:          logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
