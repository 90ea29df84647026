package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/gridops/gridops/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (Asset, error)
	List(ctx context.Context, filter ListFilter) ([]Asset, int, error)
	Update(ctx context.Context, asset Asset) error
	Create(ctx context.Context, asset Asset) (int64, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ListFilter narrows listings.
type ListFilter struct {
	Kind    Kind
	Status  AssetStatus
	Page    int
	PerPage int
}

// Service orchestrates asset reads and change application.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	logger   *slog.Logger
	validate *validator.Validate
}

// NewService constructs the asset service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, validate: validator.New()}
}

// Get returns one asset.
func (s *Service) Get(ctx context.Context, id int64) (Asset, error) {
	return s.repo.Get(ctx, id)
}

// List returns assets matching the filter plus the total count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Asset, int, error) {
	if filter.PerPage <= 0 || filter.PerPage > 100 {
		filter.PerPage = 20
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	return s.repo.List(ctx, filter)
}

// ChangePayload is the patch format carried by a modification. Every field is
// optional; absent fields leave the asset untouched.
type ChangePayload struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=140"`
	Location    *string `json:"location" validate:"omitempty,max=140"`
	Address     *string `json:"address" validate:"omitempty,max=64"`
	Criticality *int16  `json:"criticality" validate:"omitempty,min=1,max=5"`
	Status      *string `json:"status" validate:"omitempty,oneof=ACTIVE MAINTENANCE DECOMMISSIONED"`
}

// ApplyChange materialises an approved modification payload against the
// asset. Invoked by the workflow coordinator on apply; the payload format is
// this package's contract, opaque to the workflow itself.
func (s *Service) ApplyChange(ctx context.Context, assetID int64, payload json.RawMessage) error {
	var change ChangePayload
	if err := json.Unmarshal(payload, &change); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.validate.Struct(change); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	asset, err := s.repo.Get(ctx, assetID)
	if err != nil {
		return err
	}
	if change.Name != nil {
		asset.Name = strings.TrimSpace(*change.Name)
	}
	if change.Location != nil {
		asset.Location = strings.TrimSpace(*change.Location)
	}
	if change.Address != nil {
		asset.Address = strings.TrimSpace(*change.Address)
	}
	if change.Criticality != nil {
		asset.Criticality = *change.Criticality
	}
	if change.Status != nil {
		asset.Status = AssetStatus(*change.Status)
	}
	if err := s.repo.Update(ctx, asset); err != nil {
		return err
	}

	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  0,
			Action:   "ASSET_CHANGE_APPLIED",
			Entity:   "asset",
			EntityID: fmt.Sprintf("%d", assetID),
			Meta:     map[string]any{"payload": json.RawMessage(payload)},
		}); err != nil {
			s.logger.Warn("record asset audit", slog.Any("error", err))
		}
	}
	return nil
}
