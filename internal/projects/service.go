package projects

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

// Upstream is the subset of the API client used for projects.
type Upstream interface {
	ListProjects(ctx context.Context) ([]upstream.RawRecord, int, error)
	CreateProject(ctx context.Context, payload any, idempotencyKey string) (upstream.RawRecord, error)
	ProjectManufacturers(ctx context.Context, projectID string) ([]upstream.RawRecord, error)
}

// KeyStore remembers idempotency keys already submitted.
type KeyStore interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

const keyModule = "projects"

// Service shapes project and match listings.
type Service struct {
	upstream   Upstream
	keys       KeyStore
	normalizer *listing.Normalizer
	shaper     listing.Shaper
	validate   *validator.Validate
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewService builds a Service. A nil normalizer uses the embedded aliases.
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
		validate:   newValidator(),
		metrics:    metrics,
		logger:     logger,
	}
}

// WithKeyStore rejects repeated creations carrying the same idempotency key.
func (s *Service) WithKeyStore(keys KeyStore) *Service {
	s.keys = keys
	return s
}

// List returns the caller's projects shaped under c.
func (s *Service) List(ctx context.Context, c listing.Criteria) (listing.Response, error) {
	raws, _, err := s.upstream.ListProjects(ctx)
	if err != nil {
		return listing.Response{}, fmt.Errorf("projects: list: %w", err)
	}
	records := s.normalizer.NormalizeAll(listing.EntityProject, raws)
	s.metrics.ObserveShape(string(listing.EntityProject), len(records))
	return listing.NewResponse(s.shaper.Shape(records, c, listing.References{})), nil
}

// Create validates and submits a wizard request, then loads the best matches
// for the new project. A failed match lookup does not fail the creation.
func (s *Service) Create(ctx context.Context, req CreateRequest, idempotencyKey string) (Created, error) {
	req = req.Trim()
	if err := httpx.ValidateStruct(s.validate, req); err != nil {
		return Created{}, fmt.Errorf("projects: create: %w", err)
	}
	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if s.keys != nil && idempotencyKey != "" {
		if err := s.keys.CheckAndInsert(ctx, idempotencyKey, keyModule); err != nil {
			return Created{}, fmt.Errorf("projects: create: %w", err)
		}
	}
	raw, err := s.upstream.CreateProject(ctx, req, idempotencyKey)
	if err != nil {
		if s.keys != nil && idempotencyKey != "" {
			if delErr := s.keys.Delete(ctx, idempotencyKey, keyModule); delErr != nil {
				s.logger.Warn("release idempotency key", slog.Any("error", delErr))
			}
		}
		return Created{}, fmt.Errorf("projects: create: %w", err)
	}
	project := s.normalizer.Normalize(listing.EntityProject, raw)
	out := Created{Project: project, Matches: []listing.Record{}}
	if project.ID == "" {
		s.logger.Warn("created project has no id, skipping matches")
		return out, nil
	}

	c := listing.NewCriteria(listing.SortMatch)
	c.PageSize = TopMatches
	matches, err := s.Matches(ctx, string(project.ID), c)
	if err != nil {
		s.logger.Warn("load matches for new project", slog.String("project_id", string(project.ID)), slog.Any("error", err))
		out.MatchError = &listing.FetchError{
			Message:   httpx.MessageFor(err, "Failed to load matches"),
			Retryable: upstream.IsRetryable(err),
		}
		return out, nil
	}
	out.Matches = matches.Items
	return out, nil
}

// Matches returns the manufacturers matched to a project, shaped under c.
func (s *Service) Matches(ctx context.Context, projectID string, c listing.Criteria) (listing.Response, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return listing.Response{}, fmt.Errorf("projects: matches: %w", httpx.FieldErrors{"id": "is required"})
	}
	raws, err := s.upstream.ProjectManufacturers(ctx, projectID)
	if err != nil {
		return listing.Response{}, fmt.Errorf("projects: matches %s: %w", projectID, err)
	}
	records := s.normalizer.NormalizeAll(listing.EntityMatch, raws)
	s.metrics.ObserveShape(string(listing.EntityMatch), len(records))
	return listing.NewResponse(s.shaper.Shape(records, c, listing.References{})), nil
}
