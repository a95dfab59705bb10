package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/sourcing-hub/marketplace/internal/app"
	"github.com/sourcing-hub/marketplace/internal/manufacturers"
	"github.com/sourcing-hub/marketplace/internal/observability"
	"github.com/sourcing-hub/marketplace/internal/platform/cache"
	"github.com/sourcing-hub/marketplace/internal/products"
	"github.com/sourcing-hub/marketplace/internal/projects"
	"github.com/sourcing-hub/marketplace/internal/refdata"
	"github.com/sourcing-hub/marketplace/internal/shared"
	"github.com/sourcing-hub/marketplace/internal/upstream"
	"github.com/sourcing-hub/marketplace/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	metrics := observability.NewMetrics()

	normalizer, err := cfg.Normalizer()
	if err != nil {
		logger.Error("load field aliases", slog.Any("error", err))
		os.Exit(1)
	}
	sorter := cfg.Sorter()

	client, err := upstream.NewClient(upstream.Config{
		BaseURL:          cfg.UpstreamBaseURL,
		Timeout:          cfg.UpstreamTimeout,
		AuthBypassRoutes: cfg.UpstreamAuthBypassRoutes,
		Logger:           logger,
		Metrics:          metrics,
	})
	if err != nil {
		logger.Error("init upstream client", slog.Any("error", err))
		os.Exit(1)
	}

	// Without Redis the filter options stay in process and jobs are disabled.
	var redisClient *redis.Client
	if rc, err := cache.New(ctx, cfg.RedisAddr); err != nil {
		logger.Warn("redis unavailable, running without shared cache", slog.Any("error", err))
	} else {
		redisClient = rc
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	optionsCache := refdata.NewCache(redisClient, client, cfg.RefdataTTL, logger)
	if err := optionsCache.ListenForInvalidation(ctx, cfg.RefdataDebounce); err != nil {
		logger.Warn("refdata listener", slog.Any("error", err))
	}

	manufacturerService := manufacturers.NewService(manufacturers.Config{
		Upstream:   client,
		Options:    optionsCache,
		Normalizer: normalizer,
		Sorter:     sorter,
		FetchLimit: cfg.ListingFetchLimit,
		PageSize:   cfg.ListingPageSize,
		Metrics:    metrics,
		Logger:     logger,
	})
	projectService := projects.NewService(client, normalizer, sorter, metrics, logger)
	if redisClient != nil {
		projectService.WithKeyStore(shared.NewIdempotencyStore(redisClient, shared.DefaultIdempotencyTTL))
	}
	productService := products.NewService(client, normalizer, sorter, metrics, logger)

	var jobHandler *jobs.Handler
	if redisClient != nil {
		inspector := asynq.NewInspector(cache.QueueOpts(cfg.RedisAddr))
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobClient, err := jobs.NewClient(cache.QueueOpts(cfg.RedisAddr))
		if err != nil {
			logger.Error("init job client", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, jobClient, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		ManufacturersHandler: manufacturers.NewHandler(logger, manufacturerService),
		ProjectsHandler:      projects.NewHandler(logger, projectService),
		ProductsHandler:      products.NewHandler(logger, productService),
		JobsHandler:          jobHandler,
		Metrics:              metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("upstream", cfg.UpstreamBaseURL))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
