package users

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gridops/gridops/internal/rbac"
	"github.com/gridops/gridops/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (User, error)
	List(ctx context.Context) ([]User, error)
	SetRole(ctx context.Context, id int64, role string) error
	SetGrants(ctx context.Context, id int64, grants []string) error
	SetActive(ctx context.Context, id int64, active bool) error
}

// Invalidator drops cached actors after a role or grant change.
type Invalidator interface {
	Invalidate(ctx context.Context, userID int64)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates account management.
type Service struct {
	repo     RepositoryPort
	resolver Invalidator
	audit    AuditPort
	logger   *slog.Logger
}

// NewService constructs the user service.
func NewService(repo RepositoryPort, resolver Invalidator, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, resolver: resolver, audit: audit, logger: logger}
}

// Get returns one user.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.Get(ctx, id)
}

// List returns every account.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// SetRole assigns a new role to a user.
func (s *Service) SetRole(ctx context.Context, actor rbac.Actor, userID int64, role string) error {
	parsed, err := rbac.ParseRole(role)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.repo.SetRole(ctx, userID, string(parsed)); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	s.recordAudit(ctx, actor, "USER_SET_ROLE", userID, map[string]any{"role": string(parsed)})
	return nil
}

// SetGrants replaces a user's explicit permission grants.
func (s *Service) SetGrants(ctx context.Context, actor rbac.Actor, userID int64, grants []string) error {
	normalized := make([]string, 0, len(grants))
	for _, raw := range grants {
		perm, err := rbac.ParsePermission(raw)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		normalized = append(normalized, string(perm))
	}
	if err := s.repo.SetGrants(ctx, userID, normalized); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	s.recordAudit(ctx, actor, "USER_SET_GRANTS", userID, map[string]any{"grants": normalized})
	return nil
}

// SetActive enables or disables an account.
func (s *Service) SetActive(ctx context.Context, actor rbac.Actor, userID int64, active bool) error {
	if err := s.repo.SetActive(ctx, userID, active); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	s.recordAudit(ctx, actor, "USER_SET_ACTIVE", userID, map[string]any{"active": active})
	return nil
}

func (s *Service) invalidate(ctx context.Context, userID int64) {
	if s.resolver != nil {
		s.resolver.Invalidate(ctx, userID)
	}
}

func (s *Service) recordAudit(ctx context.Context, actor rbac.Actor, action string, userID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "user",
		EntityID: fmt.Sprintf("%d", userID),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("record user audit", slog.Any("error", err))
	}
}
