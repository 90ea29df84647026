package rbac

import (
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/gridops/gridops/internal/platform/httpx"
)

// Handler exposes the read-only authorization query surface.
type Handler struct {
	logger *slog.Logger
}

// NewHandler constructs the permissions handler.
func NewHandler(logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger}
}

// MountRoutes registers permission query endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/roles", h.handleRoles)
	r.Get("/me", h.handleMe)
}

type rolePermissionsResponse struct {
	Role        Role         `json:"role"`
	Permissions []Permission `json:"permissions"`
}

func (h *Handler) handleRoles(w http.ResponseWriter, r *http.Request) {
	out := make([]rolePermissionsResponse, 0, len(AllRoles()))
	for _, role := range AllRoles() {
		out = append(out, rolePermissionsResponse{Role: role, Permissions: PermissionsFor(role)})
	}
	httpx.JSON(w, http.StatusOK, out)
}

type meResponse struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Role        Role         `json:"role"`
	Permissions []Permission `json:"permissions"`
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	effective := EffectivePermissions(actor)
	perms := make([]Permission, 0, len(effective))
	for p := range effective {
		perms = append(perms, p)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i] < perms[j] })
	httpx.JSON(w, http.StatusOK, meResponse{
		ID:          actor.ID,
		Name:        actor.Name,
		Role:        actor.Role,
		Permissions: perms,
	})
}
