// Package manufacturers serves the manufacturer directory: the shaped list,
// detail, comparison and filter options.
package manufacturers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/sourcing-hub/marketplace/internal/listing"
	"github.com/sourcing-hub/marketplace/internal/observability"
	"github.com/sourcing-hub/marketplace/internal/platform/httpx"
	"github.com/sourcing-hub/marketplace/internal/refdata"
	"github.com/sourcing-hub/marketplace/internal/upstream"
)

// MaxCompare is the number of manufacturers shown side by side.
const MaxCompare = 4

// DefaultFetchLimit is the list size requested from upstream.
const DefaultFetchLimit = 1000

// fetchTimeout bounds a shared upstream fetch once it no longer follows any
// single caller's context.
const fetchTimeout = 30 * time.Second

// Upstream is the subset of the API client the directory uses.
type Upstream interface {
	ListManufacturers(ctx context.Context, limit int) ([]upstream.RawRecord, int, error)
	GetManufacturer(ctx context.Context, id string) (upstream.RawRecord, error)
	Favorites(ctx context.Context) ([]string, error)
}

// OptionsCache provides the directory filter options.
type OptionsCache interface {
	Get(ctx context.Context) (refdata.Options, error)
	Refresh(ctx context.Context) (refdata.Options, error)
}

// Config wires a Service.
type Config struct {
	Upstream   Upstream
	Options    OptionsCache
	Normalizer *listing.Normalizer
	Sorter     listing.Sorter
	FetchLimit int
	PageSize   int
	Metrics    *observability.Metrics
	Logger     *slog.Logger
}

// Service shapes the manufacturer directory.
type Service struct {
	upstream   Upstream
	options    OptionsCache
	normalizer *listing.Normalizer
	shaper     listing.Shaper
	fetchLimit int
	pageSize   int
	metrics    *observability.Metrics
	logger     *slog.Logger
	now        func() time.Time

	fetches singleflight.Group
}

// NewService builds a Service.
func NewService(cfg Config) *Service {
	normalizer := cfg.Normalizer
	if normalizer == nil {
		normalizer = listing.DefaultNormalizer()
	}
	limit := cfg.FetchLimit
	if limit <= 0 {
		limit = DefaultFetchLimit
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = listing.DefaultPageSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		upstream:   cfg.Upstream,
		options:    cfg.Options,
		normalizer: normalizer,
		shaper:     listing.Shaper{Sorter: cfg.Sorter},
		fetchLimit: limit,
		pageSize:   pageSize,
		metrics:    cfg.Metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// PageSize is the default page size for directory listings.
func (s *Service) PageSize() int {
	return s.pageSize
}

// Directory is a shaped page of the directory, optionally with the filter
// options shown beside it.
type Directory struct {
	listing.Response
	Options *refdata.Options `json:"filter_options,omitempty"`
}

// List fetches the directory and shapes it under c. The favorites set is
// fetched only for a favorites-only view; options are loaded when
// withOptions is set and fall back to values derived from the list.
func (s *Service) List(ctx context.Context, c listing.Criteria, withOptions bool) (Directory, error) {
	var (
		records   []listing.Record
		favorites listing.IDSet
		options   *refdata.Options
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = s.records(gctx)
		return err
	})
	if c.FavoritesOnly {
		g.Go(func() error {
			ids, err := s.upstream.Favorites(gctx)
			if err != nil {
				return fmt.Errorf("manufacturers: favorites: %w", err)
			}
			favorites = listing.NewIDSet(toIDs(ids)...)
			return nil
		})
	}
	if withOptions && s.options != nil {
		g.Go(func() error {
			opts, err := s.options.Get(gctx)
			if err != nil {
				s.logger.Warn("filter options unavailable, deriving from list", slog.Any("error", err))
				return nil
			}
			options = &opts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Directory{}, err
	}

	if withOptions && options == nil {
		derived := refdata.DeriveOptions(records, s.now().UTC())
		options = &derived
	}
	s.metrics.ObserveShape(string(listing.EntityManufacturer), len(records))
	res := s.shaper.Shape(records, c, listing.References{Favorites: favorites})
	return Directory{Response: listing.NewResponse(res), Options: options}, nil
}

// Get returns one normalized manufacturer.
func (s *Service) Get(ctx context.Context, id string) (listing.Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return listing.Record{}, fmt.Errorf("manufacturers: %w", httpx.FieldErrors{"id": "is required"})
	}
	raw, err := s.upstream.GetManufacturer(ctx, id)
	if err != nil {
		return listing.Record{}, fmt.Errorf("manufacturers: get %s: %w", id, err)
	}
	rec := s.normalizer.Normalize(listing.EntityManufacturer, raw)
	if rec.ID == "" {
		rec.ID = listing.ID(id)
	}
	return rec, nil
}

// Compare returns up to MaxCompare manufacturers in the requested order.
// Duplicate ids are collapsed.
func (s *Service) Compare(ctx context.Context, ids []string) ([]listing.Record, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	switch {
	case len(unique) == 0:
		return nil, fmt.Errorf("manufacturers: compare: %w", httpx.FieldErrors{"ids": "at least one id is required"})
	case len(unique) > MaxCompare:
		return nil, fmt.Errorf("manufacturers: compare: %w", httpx.FieldErrors{"ids": fmt.Sprintf("at most %d ids can be compared", MaxCompare)})
	}

	out := make([]listing.Record, len(unique))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range unique {
		g.Go(func() error {
			rec, err := s.Get(gctx, id)
			if err != nil {
				return err
			}
			out[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Options returns the cached filter options, deriving them from the list when
// the cache cannot load.
func (s *Service) Options(ctx context.Context) (refdata.Options, error) {
	if s.options != nil {
		opts, err := s.options.Get(ctx)
		if err == nil {
			return opts, nil
		}
		s.logger.Warn("filter options unavailable, deriving from list", slog.Any("error", err))
	}
	records, err := s.records(ctx)
	if err != nil {
		return refdata.Options{}, err
	}
	return refdata.DeriveOptions(records, s.now().UTC()), nil
}

// RefreshOptions forces a reload of the filter options.
func (s *Service) RefreshOptions(ctx context.Context) (refdata.Options, error) {
	if s.options == nil {
		return refdata.Options{}, errors.New("manufacturers: options cache not configured")
	}
	opts, err := s.options.Refresh(ctx)
	if err != nil {
		return refdata.Options{}, fmt.Errorf("manufacturers: refresh options: %w", err)
	}
	return opts, nil
}

// records fetches and normalizes the full list. Concurrent fetches for the
// same caller share one upstream request. The shared request runs detached
// from the caller that started it, so a caller leaving early only abandons
// its own wait.
func (s *Service) records(ctx context.Context) ([]listing.Record, error) {
	ch := s.fetches.DoChan(fetchKey(ctx), func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		raws, _, err := s.upstream.ListManufacturers(fetchCtx, s.fetchLimit)
		if err != nil {
			return nil, fmt.Errorf("manufacturers: list: %w", err)
		}
		return s.normalizer.NormalizeAll(listing.EntityManufacturer, raws), nil
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("manufacturers: list: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]listing.Record), nil
	}
}

// fetchKey scopes coalescing to the caller's token.
func fetchKey(ctx context.Context) string {
	return "list:" + upstream.CallerKey(ctx)
}

func toIDs(values []string) []listing.ID {
	out := make([]listing.ID, 0, len(values))
	for _, v := range values {
		out = append(out, listing.ID(v))
	}
	return out
}
