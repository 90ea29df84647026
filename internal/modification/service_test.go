package modification

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/gridops/gridops/internal/rbac"
)

type memoryRepo struct {
	mu       sync.Mutex
	mods     map[uuid.UUID]Modification
	failSave bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{mods: make(map[uuid.UUID]Modification)}
}

func (r *memoryRepo) Create(ctx context.Context, mod Modification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSave {
		return errors.New("disk full")
	}
	r.mods[mod.ID] = mod
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, id uuid.UUID) (Modification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mod, ok := r.mods[id]
	if !ok {
		return Modification{}, ErrNotFound
	}
	mod.History = append([]HistoryEntry(nil), mod.History...)
	return mod, nil
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Modification, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Modification
	for _, mod := range r.mods {
		if filter.Status != "" && mod.Status != filter.Status {
			continue
		}
		out = append(out, mod)
	}
	return out, len(out), nil
}

func (r *memoryRepo) AppendTransition(ctx context.Context, id uuid.UUID, from, to Status, at time.Time, entry HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSave {
		return errors.New("disk full")
	}
	mod, ok := r.mods[id]
	if !ok {
		return ErrNotFound
	}
	if mod.Status != from {
		return ErrIllegalTransition
	}
	mod.Status = to
	mod.UpdatedAt = at
	mod.History = append(mod.History, entry)
	r.mods[id] = mod
	return nil
}

type stubNotifier struct {
	mu     sync.Mutex
	events []WorkflowEvent
}

func (n *stubNotifier) Emit(ctx context.Context, event WorkflowEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *stubNotifier) all() []WorkflowEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]WorkflowEvent(nil), n.events...)
}

type stubApplier struct {
	mu      sync.Mutex
	applied []int64
	fail    bool
}

func (a *stubApplier) ApplyChange(ctx context.Context, assetID int64, payload json.RawMessage) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail {
		return errors.New("asset gone")
	}
	a.applied = append(a.applied, assetID)
	return nil
}

var (
	technician = rbac.Actor{ID: 100, Name: "Dana", Role: rbac.RoleTechnician}
	manager    = rbac.Actor{ID: 200, Name: "Priya", Role: rbac.RoleNetworkManager}
	second     = rbac.Actor{ID: 300, Name: "Mateo", Role: rbac.RoleNetworkManager}
	admin      = rbac.Actor{ID: 1, Name: "Root", Role: rbac.RoleAdmin}
	viewer     = rbac.Actor{ID: 400, Name: "Sam", Role: rbac.RoleViewer}
)

func newTestService(repo *memoryRepo) (*Service, *stubNotifier, *stubApplier) {
	notifier := &stubNotifier{}
	applier := &stubApplier{}
	svc := NewService(repo, notifier, applier, nil, nil, nil)
	return svc, notifier, applier
}

func propose(t *testing.T, svc *Service) Modification {
	t.Helper()
	mod, err := svc.Propose(context.Background(), technician, ProposeInput{
		AssetID: 42,
		Title:   "Replace PLC firmware",
		Payload: json.RawMessage(`{"firmware":"2.4.1"}`),
	})
	require.NoError(t, err)
	return mod
}

func TestViewerCannotPropose(t *testing.T) {
	svc, _, _ := newTestService(newMemoryRepo())
	_, err := svc.Propose(context.Background(), viewer, ProposeInput{
		AssetID: 42,
		Title:   "Replace PLC firmware",
		Payload: json.RawMessage(`{}`),
	})
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestProposeAndSubmit(t *testing.T) {
	repo := newMemoryRepo()
	svc, notifier, _ := newTestService(repo)
	ctx := context.Background()

	mod := propose(t, svc)
	require.Equal(t, StatusProposed, mod.Status)
	require.Equal(t, technician.ID, mod.ProposerID)

	mod, err := svc.Submit(ctx, technician, mod.ID, "ready for review")
	require.NoError(t, err)
	require.Equal(t, StatusPending, mod.Status)
	require.Len(t, mod.History, 1)
	require.Equal(t, "submit", mod.History[0].Action)

	events := notifier.all()
	require.Len(t, events, 2)
	require.Equal(t, StatusProposed, events[0].To)
	require.Equal(t, StatusPending, events[1].To)
	require.Equal(t, StatusProposed, events[1].From)
}

func TestProposerCannotApproveOwnModification(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	mod := propose(t, svc)
	_, err := svc.Submit(ctx, technician, mod.ID, "")
	require.NoError(t, err)

	// Grant the proposer edit rights; separation of duties must still hold.
	editor := technician
	editor.Grants = []rbac.Permission{rbac.PermEditInfrastructure}
	_, err = svc.Approve(ctx, editor, mod.ID, "")
	require.ErrorIs(t, err, ErrIllegalTransition)

	stored, err := repo.Get(ctx, mod.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, stored.Status)
	require.Len(t, stored.History, 1)
}

func TestApproveApplyLifecycle(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, applier := newTestService(repo)
	ctx := context.Background()

	mod := propose(t, svc)
	_, err := svc.Submit(ctx, technician, mod.ID, "")
	require.NoError(t, err)

	mod, err = svc.Approve(ctx, manager, mod.ID, "looks safe")
	require.NoError(t, err)
	require.Equal(t, StatusApproved, mod.Status)

	mod, err = svc.Apply(ctx, manager, mod.ID, "")
	require.NoError(t, err)
	require.Equal(t, StatusApplied, mod.Status)
	require.Len(t, mod.History, 3)
	require.Equal(t, []int64{42}, applier.applied)

	// Terminal: nothing moves an applied modification.
	_, err = svc.Cancel(ctx, admin, mod.ID, "")
	require.ErrorIs(t, err, ErrIllegalTransition)

	stored, err := repo.Get(ctx, mod.ID)
	require.NoError(t, err)
	require.Len(t, stored.History, 3)
}

func TestRejectIsTerminal(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	mod := propose(t, svc)
	_, err := svc.Submit(ctx, technician, mod.ID, "")
	require.NoError(t, err)

	mod, err = svc.Reject(ctx, manager, mod.ID, "change window closed")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, mod.Status)

	_, err = svc.Approve(ctx, second, mod.ID, "")
	require.ErrorIs(t, err, ErrIllegalTransition)
	_, err = svc.Submit(ctx, technician, mod.ID, "")
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestCancelRules(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	// Proposer cancels their own proposal.
	mod := propose(t, svc)
	mod, err := svc.Cancel(ctx, technician, mod.ID, "wrong asset")
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, mod.Status)

	// Managers without the override cannot cancel someone else's.
	mod = propose(t, svc)
	_, err = svc.Submit(ctx, technician, mod.ID, "")
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, manager, mod.ID, "")
	require.ErrorIs(t, err, ErrUnauthorized)

	// Admin override works on a pending modification.
	mod, err = svc.Cancel(ctx, admin, mod.ID, "superseded")
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, mod.Status)
}

func TestAdminCannotCancelUnsubmittedDraft(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	// Still PROPOSED: only the proposer may withdraw it.
	mod := propose(t, svc)
	_, err := svc.Cancel(ctx, admin, mod.ID, "cleanup")
	require.ErrorIs(t, err, ErrIllegalTransition)

	stored, err := repo.Get(ctx, mod.ID)
	require.NoError(t, err)
	require.Equal(t, StatusProposed, stored.Status)
	require.Empty(t, stored.History)

	// After submission the override applies.
	_, err = svc.Submit(ctx, technician, mod.ID, "")
	require.NoError(t, err)
	stored, err = svc.Cancel(ctx, admin, mod.ID, "cleanup")
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, stored.Status)
}

func TestSeparationOfDutiesNeverInHistory(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	mod := propose(t, svc)
	_, _ = svc.Submit(ctx, technician, mod.ID, "")
	editor := technician
	editor.Grants = []rbac.Permission{rbac.PermEditInfrastructure}
	_, _ = svc.Approve(ctx, editor, mod.ID, "")
	_, _ = svc.Approve(ctx, manager, mod.ID, "")
	_, _ = svc.Apply(ctx, second, mod.ID, "")

	stored, err := repo.Get(ctx, mod.ID)
	require.NoError(t, err)
	for _, entry := range stored.History {
		if entry.Action == "approve" || entry.Action == "apply" {
			require.NotEqual(t, stored.ProposerID, entry.ActorID)
		}
	}
}

func TestConcurrentApproveRejectExactlyOneWinner(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	mod := propose(t, svc)
	_, err := svc.Submit(ctx, technician, mod.ID, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, results[0] = svc.Approve(ctx, manager, mod.ID, "")
	}()
	go func() {
		defer wg.Done()
		_, results[1] = svc.Reject(ctx, second, mod.ID, "")
	}()
	wg.Wait()

	var wins, losses int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrIllegalTransition):
			losses++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, wins)
	require.Equal(t, 1, losses)

	stored, err := repo.Get(ctx, mod.ID)
	require.NoError(t, err)
	require.Contains(t, []Status{StatusApproved, StatusRejected}, stored.Status)
	require.Len(t, stored.History, 2)
}

func TestPersistenceFailureLeavesEntityUntouched(t *testing.T) {
	repo := newMemoryRepo()
	svc, notifier, _ := newTestService(repo)
	ctx := context.Background()

	mod := propose(t, svc)
	repo.failSave = true
	_, err := svc.Submit(ctx, technician, mod.ID, "")
	require.ErrorIs(t, err, ErrPersistence)

	repo.failSave = false
	stored, err := repo.Get(ctx, mod.ID)
	require.NoError(t, err)
	require.Equal(t, StatusProposed, stored.Status)
	require.Empty(t, stored.History)

	// Only the proposal event was emitted; the failed transition emitted none.
	require.Len(t, notifier.all(), 1)
}

func TestApplierFailureBlocksTransition(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, applier := newTestService(repo)
	ctx := context.Background()

	mod := propose(t, svc)
	_, err := svc.Submit(ctx, technician, mod.ID, "")
	require.NoError(t, err)
	_, err = svc.Approve(ctx, manager, mod.ID, "")
	require.NoError(t, err)

	applier.fail = true
	_, err = svc.Apply(ctx, manager, mod.ID, "")
	require.ErrorIs(t, err, ErrPersistence)

	stored, err := repo.Get(ctx, mod.ID)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, stored.Status)
	require.Len(t, stored.History, 2)
}

func TestGetUnknownModification(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)

	_, err := svc.Get(context.Background(), viewer, uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}
