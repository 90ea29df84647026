package modification

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gridops/gridops/internal/rbac"
	"github.com/gridops/gridops/internal/shared"
)

// RepositoryPort describes the persistence operations used by Service.
type RepositoryPort interface {
	Create(ctx context.Context, mod Modification) error
	Get(ctx context.Context, id uuid.UUID) (Modification, error)
	List(ctx context.Context, filter ListFilter) ([]Modification, int, error)
	// AppendTransition atomically moves the modification from one status to
	// another and appends the history entry. It must fail without side
	// effects when the stored status no longer equals from.
	AppendTransition(ctx context.Context, id uuid.UUID, from, to Status, at time.Time, entry HistoryEntry) error
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// TransitionObserver receives metrics for attempted transitions.
type TransitionObserver interface {
	RecordTransition(event, outcome string)
}

// ListFilter narrows List results.
type ListFilter struct {
	Status     Status
	AssetID    int64
	ProposerID int64
	Page       int
	PerPage    int
}

// Service is the workflow coordinator. It exclusively owns the authoritative
// status of every modification: all mutations pass through it, serialized per
// identifier, so concurrent transitions on one modification have exactly one
// winner while distinct modifications proceed in parallel.
type Service struct {
	repo     RepositoryPort
	locks    *shared.KeyedMutex
	notifier Notifier
	applier  Applier
	audit    AuditPort
	metrics  TransitionObserver
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the coordinator.
func NewService(repo RepositoryPort, notifier Notifier, applier Applier, audit AuditPort, metrics TransitionObserver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		locks:    shared.NewKeyedMutex(),
		notifier: notifier,
		applier:  applier,
		audit:    audit,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// ProposeInput describes a new modification proposal.
type ProposeInput struct {
	AssetID int64
	Title   string
	Payload json.RawMessage
	Comment string
}

// Propose creates a modification in PROPOSED for an authorized actor.
func (s *Service) Propose(ctx context.Context, actor rbac.Actor, input ProposeInput) (Modification, error) {
	if decision := rbac.Authorize(actor, rbac.ActionPropose, rbac.ResourceContext{}); !decision.Allowed {
		return Modification{}, ErrUnauthorized
	}
	input.Title = strings.TrimSpace(input.Title)
	if input.AssetID == 0 || input.Title == "" || len(input.Payload) == 0 {
		return Modification{}, ErrValidation
	}

	now := s.now().UTC()
	mod := Modification{
		ID:         uuid.New(),
		AssetID:    input.AssetID,
		Title:      input.Title,
		Payload:    input.Payload,
		ProposerID: actor.ID,
		Status:     StatusProposed,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(ctx, mod); err != nil {
		s.observe("propose", "persistence_failure")
		return Modification{}, errors.Join(ErrPersistence, err)
	}

	s.observe("propose", "ok")
	s.emit(ctx, WorkflowEvent{
		ModificationID: mod.ID,
		To:             StatusProposed,
		ActorID:        actor.ID,
		ProposerID:     mod.ProposerID,
		Title:          mod.Title,
		At:             now,
	})
	s.recordAudit(ctx, actor, "MOD_PROPOSE", mod.ID, map[string]any{"asset_id": mod.AssetID, "title": mod.Title})
	return mod, nil
}

// Submit moves a PROPOSED modification to PENDING review.
func (s *Service) Submit(ctx context.Context, actor rbac.Actor, id uuid.UUID, comment string) (Modification, error) {
	return s.transition(ctx, actor, id, EventSubmit, rbac.ActionSubmit, comment)
}

// Approve moves a PENDING modification to APPROVED. The proposer may never
// approve their own change.
func (s *Service) Approve(ctx context.Context, actor rbac.Actor, id uuid.UUID, comment string) (Modification, error) {
	return s.transition(ctx, actor, id, EventApprove, rbac.ActionApprove, comment)
}

// Reject moves a PENDING modification to REJECTED.
func (s *Service) Reject(ctx context.Context, actor rbac.Actor, id uuid.UUID, comment string) (Modification, error) {
	return s.transition(ctx, actor, id, EventReject, rbac.ActionReject, comment)
}

// Cancel withdraws a PROPOSED or PENDING modification.
func (s *Service) Cancel(ctx context.Context, actor rbac.Actor, id uuid.UUID, comment string) (Modification, error) {
	return s.transition(ctx, actor, id, EventCancel, rbac.ActionCancel, comment)
}

// Apply materialises an APPROVED modification against its asset.
func (s *Service) Apply(ctx context.Context, actor rbac.Actor, id uuid.UUID, comment string) (Modification, error) {
	return s.transition(ctx, actor, id, EventApply, rbac.ActionApply, comment)
}

// Get returns one modification with its full decision history.
func (s *Service) Get(ctx context.Context, actor rbac.Actor, id uuid.UUID) (Modification, error) {
	if decision := rbac.Authorize(actor, rbac.ActionView, rbac.ResourceContext{}); !decision.Allowed {
		return Modification{}, ErrUnauthorized
	}
	return s.repo.Get(ctx, id)
}

// List returns modifications matching the filter plus the total count.
func (s *Service) List(ctx context.Context, actor rbac.Actor, filter ListFilter) ([]Modification, int, error) {
	if decision := rbac.Authorize(actor, rbac.ActionView, rbac.ResourceContext{}); !decision.Allowed {
		return nil, 0, ErrUnauthorized
	}
	if filter.PerPage <= 0 || filter.PerPage > 100 {
		filter.PerPage = 20
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	return s.repo.List(ctx, filter)
}

// transition runs one workflow step end to end: serialize on the identifier,
// load, authorize, resolve the legal edge, persist status + history in one
// unit, then emit the workflow event. Any failure before the persistence
// acknowledgement leaves the entity exactly as it was.
func (s *Service) transition(ctx context.Context, actor rbac.Actor, id uuid.UUID, event Event, action rbac.Action, comment string) (Modification, error) {
	unlock := s.locks.Lock(id.String())
	defer unlock()

	mod, err := s.repo.Get(ctx, id)
	if err != nil {
		return Modification{}, err
	}

	decision := rbac.Authorize(actor, action, rbac.ResourceContext{
		ProposerID: mod.ProposerID,
		Draft:      mod.Status == StatusProposed,
	})
	if !decision.Allowed {
		switch decision.Reason {
		case rbac.DenySeparationOfDuties:
			s.observe(string(event), "separation_of_duties")
			return Modification{}, ErrIllegalTransition
		case rbac.DenyProposerOnly:
			s.observe(string(event), "proposer_only")
			return Modification{}, ErrIllegalTransition
		default:
			s.observe(string(event), "unauthorized")
			return Modification{}, ErrUnauthorized
		}
	}

	next, err := Next(mod.Status, event)
	if err != nil {
		s.observe(string(event), "illegal_transition")
		return Modification{}, err
	}

	if event == EventApply && s.applier != nil {
		if err := s.applier.ApplyChange(ctx, mod.AssetID, mod.Payload); err != nil {
			s.observe(string(event), "apply_failure")
			return Modification{}, errors.Join(ErrPersistence, err)
		}
	}

	now := s.now().UTC()
	entry := HistoryEntry{
		ActorID:   actor.ID,
		ActorName: actor.Name,
		Action:    string(event),
		Comment:   strings.TrimSpace(comment),
		At:        now,
	}
	if err := s.repo.AppendTransition(ctx, id, mod.Status, next, now, entry); err != nil {
		if errors.Is(err, ErrIllegalTransition) || errors.Is(err, ErrNotFound) {
			s.observe(string(event), "illegal_transition")
			return Modification{}, err
		}
		s.observe(string(event), "persistence_failure")
		return Modification{}, errors.Join(ErrPersistence, err)
	}

	from := mod.Status
	mod.Status = next
	mod.UpdatedAt = now
	mod.History = append(mod.History, entry)

	s.observe(string(event), "ok")
	s.emit(ctx, WorkflowEvent{
		ModificationID: mod.ID,
		From:           from,
		To:             next,
		ActorID:        actor.ID,
		ProposerID:     mod.ProposerID,
		Title:          mod.Title,
		At:             now,
	})
	s.recordAudit(ctx, actor, "MOD_"+strings.ToUpper(string(event)), mod.ID, map[string]any{
		"from": string(from),
		"to":   string(next),
	})
	return mod, nil
}

// emit hands the event to the dispatcher. The transition is already durable
// at this point, so an enqueue failure is logged rather than surfaced.
func (s *Service) emit(ctx context.Context, event WorkflowEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Emit(ctx, event); err != nil {
		s.logger.Warn("emit workflow event",
			slog.String("modification_id", event.ModificationID.String()),
			slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, actor rbac.Actor, action string, id uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "modification",
		EntityID: id.String(),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("record audit", slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) observe(event, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordTransition(event, outcome)
}
