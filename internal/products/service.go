// Package products serves the supplier's product catalog.
package products

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sourcing-hub/marketplace/internal/listing"
	"github.com/sourcing-hub/marketplace/internal/observability"
	"github.com/sourcing-hub/marketplace/internal/platform/httpx"
	"github.com/sourcing-hub/marketplace/internal/upstream"
)

// Upstream is the subset of the API client used for the catalog.
type Upstream interface {
	ListProducts(ctx context.Context) ([]upstream.RawRecord, int, error)
	CreateProduct(ctx context.Context, payload any) (upstream.RawRecord, error)
	UpdateProduct(ctx context.Context, id string, payload any) (upstream.RawRecord, error)
	DeleteProduct(ctx context.Context, id string) error
}

// Input is a product as submitted by the catalog form.
type Input struct {
	Name                 string   `json:"name" validate:"required,min=2,max=120"`
	Description          string   `json:"description,omitempty" validate:"max=2000"`
	Category             string   `json:"category" validate:"required,max=80"`
	Origin               string   `json:"origin,omitempty" validate:"max=80"`
	MinimumOrderQuantity string   `json:"minimumOrderQuantity,omitempty" validate:"omitempty,volume"`
	Certifications       []string `json:"certifications,omitempty" validate:"max=20,dive,required,max=80"`
	Allergens            []string `json:"allergens,omitempty" validate:"max=30,dive,required,max=80"`
	Status               string   `json:"status,omitempty" validate:"omitempty,oneof=draft published archived"`
}

func (in Input) trim() Input {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	in.Origin = strings.TrimSpace(in.Origin)
	in.MinimumOrderQuantity = strings.TrimSpace(in.MinimumOrderQuantity)
	if in.Status == "" {
		in.Status = "draft"
	}
	return in
}

// Service shapes the catalog and validates catalog writes.
type Service struct {
	upstream   Upstream
	normalizer *listing.Normalizer
	shaper     listing.Shaper
	validate   *validator.Validate
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewService builds a Service.
func NewService(up Upstream, normalizer *listing.Normalizer, sorter listing.Sorter, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if normalizer == nil {
		normalizer = listing.DefaultNormalizer()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		upstream:   up,
		normalizer: normalizer,
		shaper:     listing.Shaper{Sorter: sorter},
		validate:   httpx.MustValidator(),
		metrics:    metrics,
		logger:     logger,
	}
}

// List returns the catalog shaped under c.
func (s *Service) List(ctx context.Context, c listing.Criteria) (listing.Response, error) {
	raws, _, err := s.upstream.ListProducts(ctx)
	if err != nil {
		return listing.Response{}, fmt.Errorf("products: list: %w", err)
	}
	records := s.normalizer.NormalizeAll(listing.EntityProduct, raws)
	s.metrics.ObserveShape(string(listing.EntityProduct), len(records))
	return listing.NewResponse(s.shaper.Shape(records, c, listing.References{})), nil
}

// Create validates and stores a product.
func (s *Service) Create(ctx context.Context, in Input) (listing.Record, error) {
	in = in.trim()
	if err := httpx.ValidateStruct(s.validate, in); err != nil {
		return listing.Record{}, fmt.Errorf("products: create: %w", err)
	}
	raw, err := s.upstream.CreateProduct(ctx, in)
	if err != nil {
		return listing.Record{}, fmt.Errorf("products: create: %w", err)
	}
	return s.normalizer.Normalize(listing.EntityProduct, raw), nil
}

// Update validates and replaces a product.
func (s *Service) Update(ctx context.Context, id string, in Input) (listing.Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return listing.Record{}, fmt.Errorf("products: update: %w", httpx.FieldErrors{"id": "is required"})
	}
	in = in.trim()
	if err := httpx.ValidateStruct(s.validate, in); err != nil {
		return listing.Record{}, fmt.Errorf("products: update %s: %w", id, err)
	}
	raw, err := s.upstream.UpdateProduct(ctx, id, in)
	if err != nil {
		return listing.Record{}, fmt.Errorf("products: update %s: %w", id, err)
	}
	rec := s.normalizer.Normalize(listing.EntityProduct, raw)
	if rec.ID == "" {
		rec.ID = listing.ID(id)
	}
	return rec, nil
}

// Delete removes a product.
func (s *Service) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("products: delete: %w", httpx.FieldErrors{"id": "is required"})
	}
	if err := s.upstream.DeleteProduct(ctx, id); err != nil {
		return fmt.Errorf("products: delete %s: %w", id, err)
	}
	s.logger.Info("product deleted", slog.String("product_id", id))
	return nil
}
