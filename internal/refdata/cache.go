package refdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/sourcing-hub/marketplace/internal/listing"
)

const (
	versionKey = "refdata:version"
	optionsKey = "refdata:filter_options"

	// BumpChannel carries the new version after a refresh.
	BumpChannel = "refdata.bump"

	defaultTTL      = 10 * time.Minute
	defaultDebounce = 500 * time.Millisecond
	loadTimeout     = 30 * time.Second
)

// ErrNoSource is returned when the cache has nothing to load from.
var ErrNoSource = errors.New("refdata: source required")

// Source loads filter options from the upstream API.
type Source interface {
	FilterOptions(ctx context.Context) (map[string][]string, error)
}

// Cache keeps filter options in process and in Redis under a versioned key.
// A nil Redis client keeps the in-process copy only.
type Cache struct {
	client *redis.Client
	source Source
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	group singleflight.Group

	mu      sync.RWMutex
	current *Options
}

// NewCache builds a cache. ttl bounds both the Redis entry and the in-process
// copy.
func NewCache(client *redis.Client, source Source, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{client: client, source: source, ttl: ttl, logger: logger, now: time.Now}
}

// Get returns the current options, loading them when the in-process copy is
// missing or expired.
func (c *Cache) Get(ctx context.Context) (Options, error) {
	if opts, ok := c.fresh(); ok {
		return opts, nil
	}
	return c.shared(ctx, "get", func(ctx context.Context) (Options, error) {
		if opts, ok := c.fresh(); ok {
			return opts, nil
		}
		return c.load(ctx)
	})
}

// Refresh reloads options from the source, stores them under a new version
// and notifies other instances.
func (c *Cache) Refresh(ctx context.Context) (Options, error) {
	return c.shared(ctx, "refresh", func(ctx context.Context) (Options, error) {
		opts, err := c.fetch(ctx)
		if err != nil {
			return Options{}, err
		}
		if c.client != nil {
			ver, err := c.client.Incr(ctx, versionKey).Result()
			if err != nil {
				return Options{}, fmt.Errorf("refdata: bump version: %w", err)
			}
			if err := c.store(ctx, ver, opts); err != nil {
				return Options{}, err
			}
			if err := c.client.Publish(ctx, BumpChannel, strconv.FormatInt(ver, 10)).Err(); err != nil {
				c.logger.Warn("refdata publish failed", slog.Any("error", err))
			}
		}
		c.set(opts)
		return opts, nil
	})
}

// shared runs fn once for all concurrent callers of key. fn gets a context
// detached from the caller that started it; each caller stops waiting when
// its own ctx is done.
func (c *Cache) shared(ctx context.Context, key string, fn func(context.Context) (Options, error)) (Options, error) {
	ch := c.group.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return fn(loadCtx)
	})
	select {
	case <-ctx.Done():
		return Options{}, fmt.Errorf("refdata: %s: %w", key, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return Options{}, res.Err
		}
		return res.Val.(Options).clone(), nil
	}
}

// FetchedAt reports when the in-process copy was loaded, zero when empty.
func (c *Cache) FetchedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return time.Time{}
	}
	return c.current.FetchedAt
}

// Invalidate drops the in-process copy.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
}

// ListenForInvalidation subscribes to version bumps published by Refresh.
// Bursts of notifications within debounce collapse into one reload. The
// listener stops when ctx is done.
func (c *Cache) ListenForInvalidation(ctx context.Context, debounce time.Duration) error {
	if c.client == nil {
		return nil
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	pubsub := c.client.Subscribe(ctx, BumpChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("refdata: subscribe: %w", err)
	}

	reload := listing.NewDebouncer(debounce, func(version string) {
		c.Invalidate()
		if _, err := c.Get(ctx); err != nil && ctx.Err() == nil {
			c.logger.Warn("refdata reload failed", slog.String("version", version), slog.Any("error", err))
			return
		}
		c.logger.Debug("refdata reloaded", slog.String("version", version))
	})

	go func() {
		defer func() { _ = pubsub.Close() }()
		defer reload.Stop()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				reload.Push(msg.Payload)
			}
		}
	}()
	return nil
}

func (c *Cache) fresh() (Options, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil || c.now().Sub(c.current.FetchedAt) >= c.ttl {
		return Options{}, false
	}
	return c.current.clone(), true
}

func (c *Cache) set(opts Options) {
	c.mu.Lock()
	c.current = &opts
	c.mu.Unlock()
}

// load reads the versioned Redis entry, falling back to the source. Redis
// failures degrade to a direct source load.
func (c *Cache) load(ctx context.Context) (Options, error) {
	if c.client == nil {
		opts, err := c.fetch(ctx)
		if err != nil {
			return Options{}, err
		}
		c.set(opts)
		return opts, nil
	}

	ver, err := c.version(ctx)
	if err != nil {
		c.logger.Warn("refdata version lookup failed", slog.Any("error", err))
	} else {
		payload, err := c.client.Get(ctx, entryKey(ver)).Bytes()
		switch {
		case err == nil:
			var opts Options
			if err := json.Unmarshal(payload, &opts); err == nil && c.now().Sub(opts.FetchedAt) < c.ttl {
				c.set(opts)
				return opts, nil
			}
		case !errors.Is(err, redis.Nil):
			c.logger.Warn("refdata cache read failed", slog.Any("error", err))
		}
	}

	opts, err := c.fetch(ctx)
	if err != nil {
		return Options{}, err
	}
	if ver > 0 {
		if err := c.store(ctx, ver, opts); err != nil {
			c.logger.Warn("refdata cache write failed", slog.Any("error", err))
		}
	}
	c.set(opts)
	return opts, nil
}

func (c *Cache) fetch(ctx context.Context) (Options, error) {
	if c.source == nil {
		return Options{}, ErrNoSource
	}
	raw, err := c.source.FilterOptions(ctx)
	if err != nil {
		return Options{}, fmt.Errorf("refdata: fetch filter options: %w", err)
	}
	return FromUpstream(raw, c.now().UTC()), nil
}

func (c *Cache) store(ctx context.Context, ver int64, opts Options) error {
	raw, err := json.Marshal(opts)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, entryKey(ver), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("refdata: store: %w", err)
	}
	return nil
}

// version returns the current version, initialising it when missing.
func (c *Cache) version(ctx context.Context) (int64, error) {
	ver, err := c.client.Get(ctx, versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, versionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, versionKey).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

func entryKey(ver int64) string {
	return optionsKey + ":" + strconv.FormatInt(ver, 10)
}
