package modification

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/gridops/gridops/internal/platform/httpx"
	"github.com/gridops/gridops/internal/rbac"
	"github.com/gridops/gridops/internal/shared"
)

// Handler manages modification workflow endpoints.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	rbac        rbac.Middleware
	idempotency *shared.IdempotencyStore
	validate    *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw rbac.Middleware, idem *shared.IdempotencyStore) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:      logger,
		service:     service,
		rbac:        mw,
		idempotency: idem,
		validate:    validator.New(),
	}
}

// MountRoutes registers workflow routes. Propose and the read endpoints carry
// a static permission gate; the transition endpoints are gated contextually
// by the coordinator because cancel and submit depend on who proposed.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.PermViewInfrastructure))
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.PermProposeModification))
		r.Post("/", h.handlePropose)
	})
	r.Post("/{id}/submit", h.transitionHandler(h.service.Submit))
	r.Post("/{id}/approve", h.transitionHandler(h.service.Approve))
	r.Post("/{id}/reject", h.transitionHandler(h.service.Reject))
	r.Post("/{id}/cancel", h.transitionHandler(h.service.Cancel))
	r.Post("/{id}/apply", h.transitionHandler(h.service.Apply))
}

type proposeRequest struct {
	AssetID int64           `json:"asset_id" validate:"required"`
	Title   string          `json:"title" validate:"required,min=3,max=140"`
	Payload json.RawMessage `json:"payload" validate:"required"`
	Comment string          `json:"comment" validate:"max=500"`
}

type transitionRequest struct {
	Comment string `json:"comment" validate:"max=500"`
}

type modificationResponse struct {
	ID         uuid.UUID       `json:"id"`
	AssetID    int64           `json:"asset_id"`
	Title      string          `json:"title"`
	Payload    json.RawMessage `json:"payload"`
	ProposerID int64           `json:"proposer_id"`
	Status     Status          `json:"status"`
	History    []historyItem   `json:"history"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type historyItem struct {
	ActorID   int64     `json:"actor_id"`
	ActorName string    `json:"actor_name,omitempty"`
	Action    string    `json:"action"`
	Comment   string    `json:"comment,omitempty"`
	At        time.Time `json:"at"`
}

func toResponse(mod Modification) modificationResponse {
	history := make([]historyItem, 0, len(mod.History))
	for _, entry := range mod.History {
		history = append(history, historyItem(entry))
	}
	return modificationResponse{
		ID:         mod.ID,
		AssetID:    mod.AssetID,
		Title:      mod.Title,
		Payload:    mod.Payload,
		ProposerID: mod.ProposerID,
		Status:     mod.Status,
		History:    history,
		CreatedAt:  mod.CreatedAt,
		UpdatedAt:  mod.UpdatedAt,
	}
}

func (h *Handler) handlePropose(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}

	var req proposeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	if key := r.Header.Get("Idempotency-Key"); key != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(r.Context(), key, "modification"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.RespondError(w, httpx.ErrDuplicate)
				return
			}
			h.respondError(w, "propose idempotency", err)
			return
		}
	}

	mod, err := h.service.Propose(r.Context(), actor, ProposeInput{
		AssetID: req.AssetID,
		Title:   req.Title,
		Payload: req.Payload,
		Comment: req.Comment,
	})
	if err != nil {
		h.respondError(w, "propose modification", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(mod))
}

func (h *Handler) transitionHandler(op func(ctx context.Context, actor rbac.Actor, id uuid.UUID, comment string) (Modification, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := rbac.ActorFromContext(r.Context())
		if !ok {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httpx.RespondError(w, httpx.ErrValidation)
			return
		}

		var req transitionRequest
		if r.ContentLength > 0 {
			if err := httpx.DecodeJSON(r, &req); err != nil {
				httpx.RespondError(w, httpx.ErrValidation)
				return
			}
			if err := h.validate.Struct(req); err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
				return
			}
		}

		mod, err := op(r.Context(), actor, id, req.Comment)
		if err != nil {
			h.respondError(w, "transition modification", err)
			return
		}
		httpx.JSON(w, http.StatusOK, toResponse(mod))
	}
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	mod, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.respondError(w, "get modification", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(mod))
}

type listResponse struct {
	Items      []modificationResponse `json:"items"`
	Pagination shared.Pagination      `json:"pagination"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}

	filter := ListFilter{Status: Status(r.URL.Query().Get("status"))}
	if raw := r.URL.Query().Get("asset_id"); raw != "" {
		filter.AssetID, _ = strconv.ParseInt(raw, 10, 64)
	}
	if raw := r.URL.Query().Get("proposer_id"); raw != "" {
		filter.ProposerID, _ = strconv.ParseInt(raw, 10, 64)
	}
	filter.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	filter.PerPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))

	mods, total, err := h.service.List(r.Context(), actor, filter)
	if err != nil {
		h.respondError(w, "list modifications", err)
		return
	}
	items := make([]modificationResponse, 0, len(mods))
	for _, mod := range mods {
		items = append(items, toResponse(mod))
	}
	httpx.JSON(w, http.StatusOK, listResponse{
		Items:      items,
		Pagination: shared.NewPagination(filter.Page, filter.PerPage, total),
	})
}

func (h *Handler) respondError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrIllegalTransition):
		httpx.Problem(w, http.StatusConflict, "Illegal Transition", "transition not valid from the current status")
	case errors.Is(err, ErrUnauthorized):
		httpx.RespondError(w, httpx.ErrForbidden)
	case errors.Is(err, ErrValidation):
		httpx.RespondError(w, httpx.ErrValidation)
	case errors.Is(err, ErrPersistence):
		h.logger.Error(msg, slog.Any("error", err))
		httpx.RespondError(w, httpx.ErrUpstream)
	default:
		h.logger.Error(msg, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
