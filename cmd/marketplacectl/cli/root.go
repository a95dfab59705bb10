// Package cli implements the marketplacectl commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/sourcing-hub/marketplace/internal/manufacturers"
	"github.com/sourcing-hub/marketplace/internal/platform/cache"
	"github.com/sourcing-hub/marketplace/internal/refdata"
	"github.com/sourcing-hub/marketplace/internal/upstream"
)

// Options holds the global flags.
type Options struct {
	UpstreamURL string
	Token       string
	RedisAddr   string
	JSON        bool
	Logger      *slog.Logger

	// NewJobs opens the job queue. Defaults to NewJobsCLI.
	NewJobs func(redisAddr string) (JobsAPI, error)
}

// NewRootCommand builds the command tree. Flag defaults come from opts.
func NewRootCommand(opts *Options) *cobra.Command {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.NewJobs == nil {
		opts.NewJobs = func(addr string) (JobsAPI, error) { return NewJobsCLI(addr) }
	}
	root := &cobra.Command{
		Use:           "marketplacectl",
		Short:         "Operate the sourcing marketplace listing service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.UpstreamURL, "upstream", opts.UpstreamURL, "upstream API base URL")
	flags.StringVar(&opts.Token, "token", opts.Token, "bearer token forwarded upstream")
	flags.StringVar(&opts.RedisAddr, "redis", opts.RedisAddr, "redis address for the shared cache and job queue")
	flags.BoolVar(&opts.JSON, "json", false, "print JSON instead of a table")

	root.AddCommand(newManufacturersCommand(opts))
	root.AddCommand(newOptionsCommand(opts))
	root.AddCommand(newJobsCommand(opts))
	return root
}

// env is the per-invocation wiring built from Options.
type env struct {
	client  *upstream.Client
	redis   *redis.Client
	service *manufacturers.Service
}

func (e *env) Close() {
	if e.redis != nil {
		_ = e.redis.Close()
	}
}

func (o *Options) context(cmd *cobra.Command) context.Context {
	return upstream.WithToken(cmd.Context(), o.Token)
}

// open wires the directory service. Redis is optional; without it filter
// options are fetched straight from upstream.
func (o *Options) open(ctx context.Context) (*env, error) {
	client, err := upstream.NewClient(upstream.Config{BaseURL: o.UpstreamURL, Logger: o.Logger})
	if err != nil {
		return nil, err
	}
	e := &env{client: client}
	if o.RedisAddr != "" {
		rc, err := cache.New(ctx, o.RedisAddr)
		if err != nil {
			o.Logger.Warn("redis unavailable", slog.Any("error", err))
		} else {
			e.redis = rc
		}
	}
	e.service = manufacturers.NewService(manufacturers.Config{
		Upstream: client,
		Options:  refdata.NewCache(e.redis, client, 0, o.Logger),
		Logger:   o.Logger,
	})
	return e, nil
}

func (o *Options) printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
