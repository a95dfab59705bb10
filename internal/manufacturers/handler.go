package manufacturers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sourcing-hub/marketplace/internal/listing"
	"github.com/sourcing-hub/marketplace/internal/platform/httpx"
	"github.com/sourcing-hub/marketplace/internal/upstream"
)

// Handler exposes the directory endpoints.
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

// MountRoutes registers directory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/compare", h.compare)
	r.Get("/filter-options", h.options)
	r.Post("/filter-options/refresh", h.refreshOptions)
	r.Get("/{id}", h.show)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	c := listing.ParseQuery(r.URL.Query(), listing.SortName)
	if r.URL.Query().Get("page_size") == "" {
		c.PageSize = h.service.PageSize()
	}
	dir, err := h.service.List(r.Context(), c, httpx.QueryBool(r, "options"))
	if err != nil {
		h.logger.Warn("list manufacturers", slog.Any("error", err))
		resp := listing.FailedResponse(c, httpx.MessageFor(err, "Failed to load manufacturers"), upstream.IsRetryable(err))
		httpx.JSON(w, httpx.FetchStatus(err), resp)
		return
	}
	httpx.JSON(w, http.StatusOK, dir)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, "show manufacturer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) compare(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.Compare(r.Context(), httpx.QueryList(r, "ids"))
	if err != nil {
		h.respondError(w, "compare manufacturers", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": records})
}

func (h *Handler) options(w http.ResponseWriter, r *http.Request) {
	opts, err := h.service.Options(r.Context())
	if err != nil {
		h.respondError(w, "filter options", err)
		return
	}
	httpx.JSON(w, http.StatusOK, opts)
}

func (h *Handler) refreshOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.service.RefreshOptions(r.Context())
	if err != nil {
		h.respondError(w, "refresh filter options", err)
		return
	}
	httpx.JSON(w, http.StatusOK, opts)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
