package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sourcing-hub/marketplace/cmd/marketplacectl/cli"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := &cli.Options{
		UpstreamURL: os.Getenv("UPSTREAM_BASE_URL"),
		Token:       os.Getenv("MARKETPLACE_TOKEN"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		Logger:      slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
	}
	if err := cli.NewRootCommand(opts).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
