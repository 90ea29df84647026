package assets

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gridops/gridops/internal/platform/httpx"
	"github.com/gridops/gridops/internal/rbac"
	"github.com/gridops/gridops/internal/shared"
)

// Handler manages asset endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: mw}
}

// MountRoutes registers asset routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.PermViewInfrastructure))
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.PermExportData))
		r.Get("/export", h.handleExport)
	})
}

type assetResponse struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Kind        Kind        `json:"kind"`
	Location    string      `json:"location"`
	Address     string      `json:"address"`
	Criticality int16       `json:"criticality"`
	Status      AssetStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func toResponse(asset Asset) assetResponse {
	return assetResponse(asset)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter := h.parseFilter(r)
	rows, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, "list assets", err)
		return
	}
	items := make([]assetResponse, 0, len(rows))
	for _, asset := range rows {
		items = append(items, toResponse(asset))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"pagination": shared.NewPagination(filter.Page, filter.PerPage, total),
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	asset, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get asset", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(asset))
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.ExportCSV(r.Context(), h.parseFilter(r))
	if err != nil {
		h.respondError(w, "export assets", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="assets.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) parseFilter(r *http.Request) ListFilter {
	filter := ListFilter{
		Kind:   Kind(r.URL.Query().Get("kind")),
		Status: AssetStatus(r.URL.Query().Get("status")),
	}
	filter.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	filter.PerPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))
	return filter
}

func (h *Handler) respondError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrValidation):
		httpx.RespondError(w, httpx.ErrValidation)
	default:
		h.logger.Error(msg, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
