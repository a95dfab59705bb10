package projects

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sourcing-hub/marketplace/internal/listing"
	"github.com/sourcing-hub/marketplace/internal/platform/httpx"
	"github.com/sourcing-hub/marketplace/internal/upstream"
)

// Handler exposes project endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers project routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}/matches", h.matches)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	c := listing.ParseQuery(r.URL.Query(), listing.SortCreated)
	resp, err := h.service.List(r.Context(), c)
	if err != nil {
		h.logger.Warn("list projects", slog.Any("error", err))
		h.fetchFailed(w, c, "Failed to load projects", err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request body must be a project object")
		return
	}
	created, err := h.service.Create(r.Context(), req, r.Header.Get("Idempotency-Key"))
	if err != nil {
		if httpx.StatusFor(err) >= http.StatusInternalServerError {
			h.logger.Error("create project", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) matches(w http.ResponseWriter, r *http.Request) {
	c := listing.ParseQuery(r.URL.Query(), listing.SortMatch)
	resp, err := h.service.Matches(r.Context(), chi.URLParam(r, "id"), c)
	if err != nil {
		h.logger.Warn("list project matches", slog.Any("error", err))
		h.fetchFailed(w, c, "Failed to load matches", err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) fetchFailed(w http.ResponseWriter, c listing.Criteria, message string, err error) {
	resp := listing.FailedResponse(c, httpx.MessageFor(err, message), upstream.IsRetryable(err))
	httpx.JSON(w, httpx.FetchStatus(err), resp)
}
