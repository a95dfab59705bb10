package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/sourcing-hub/marketplace/internal/app"
	jobmetrics "github.com/sourcing-hub/marketplace/internal/jobs"
	"github.com/sourcing-hub/marketplace/internal/platform/cache"
	"github.com/sourcing-hub/marketplace/internal/refdata"
	"github.com/sourcing-hub/marketplace/internal/upstream"
	"github.com/sourcing-hub/marketplace/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	client, err := upstream.NewClient(upstream.Config{
		BaseURL: cfg.UpstreamBaseURL,
		Timeout: cfg.UpstreamTimeout,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("init upstream client", slog.Any("error", err))
		os.Exit(1)
	}

	optionsCache := refdata.NewCache(redisClient, client, cfg.RefdataTTL, logger)
	refreshJob := jobs.NewRefdataRefreshJob(optionsCache, logger, jobmetrics.NewMetrics(nil))

	refreshTask, err := jobs.NewRefdataRefreshTask("cron")
	if err != nil {
		logger.Error("build refresh task", slog.Any("error", err))
		os.Exit(1)
	}

	var cron []jobs.CronRegistration
	if cfg.RefdataRefreshCron != "" {
		cron = append(cron, jobs.CronRegistration{
			Spec:    cfg.RefdataRefreshCron,
			Task:    refreshTask,
			Options: []asynq.Option{asynq.Queue(jobs.QueueDefault)},
		})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: cache.QueueOpts(cfg.RedisAddr),
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskRefdataRefresh, Handler: refreshJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
