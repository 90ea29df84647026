package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gridops/gridops/internal/platform/httpx"
	"github.com/gridops/gridops/internal/rbac"
)

// Handler exposes account management endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	rbac     rbac.Middleware
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: mw, validate: validator.New()}
}

// MountRoutes registers user routes. Everything here is MANAGE_USERS gated.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.PermManageUsers))
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}/role", h.handleSetRole)
		r.Put("/{id}/grants", h.handleSetGrants)
		r.Put("/{id}/active", h.handleSetActive)
	})
}

type userResponse struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Grants    []string  `json:"grants"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toResponse(user User) userResponse {
	grants := user.Grants
	if grants == nil {
		grants = []string{}
	}
	return userResponse{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		Grants:    grants,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.respondError(w, "list users", err)
		return
	}
	items := make([]userResponse, 0, len(list))
	for _, user := range list {
		items = append(items, toResponse(user))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paramID(w, r)
	if !ok {
		return
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(user))
}

type setRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

func (h *Handler) handleSetRole(w http.ResponseWriter, r *http.Request) {
	var req setRoleRequest
	actor, id, ok := h.decodeMutation(w, r, &req)
	if !ok {
		return
	}
	if err := h.service.SetRole(r.Context(), actor, id, req.Role); err != nil {
		h.respondError(w, "set user role", err)
		return
	}
	h.respondUser(w, r, id)
}

type setGrantsRequest struct {
	Grants []string `json:"grants" validate:"required,max=16"`
}

func (h *Handler) handleSetGrants(w http.ResponseWriter, r *http.Request) {
	var req setGrantsRequest
	actor, id, ok := h.decodeMutation(w, r, &req)
	if !ok {
		return
	}
	if err := h.service.SetGrants(r.Context(), actor, id, req.Grants); err != nil {
		h.respondError(w, "set user grants", err)
		return
	}
	h.respondUser(w, r, id)
}

type setActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

func (h *Handler) handleSetActive(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	actor, id, ok := h.decodeMutation(w, r, &req)
	if !ok {
		return
	}
	if err := h.service.SetActive(r.Context(), actor, id, *req.Active); err != nil {
		h.respondError(w, "set user active", err)
		return
	}
	h.respondUser(w, r, id)
}

func (h *Handler) decodeMutation(w http.ResponseWriter, r *http.Request, req any) (rbac.Actor, int64, bool) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return rbac.Actor{}, 0, false
	}
	id, ok := h.paramID(w, r)
	if !ok {
		return rbac.Actor{}, 0, false
	}
	if err := httpx.DecodeJSON(r, req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return rbac.Actor{}, 0, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return rbac.Actor{}, 0, false
	}
	return actor, id, true
}

func (h *Handler) respondUser(w http.ResponseWriter, r *http.Request, id int64) {
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "reload user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(user))
}

func (h *Handler) paramID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, httpx.ErrValidation)
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(msg, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
