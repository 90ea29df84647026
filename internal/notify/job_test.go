package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/gridops/gridops/internal/modification"
	"github.com/gridops/gridops/jobs"
)

type memoryStore struct {
	notifications []Notification
	reviewers     []Recipient
	users         map[int64]Recipient
	stale         []StalePendingItem
}

func (s *memoryStore) Insert(ctx context.Context, n Notification) error {
	s.notifications = append(s.notifications, n)
	return nil
}

func (s *memoryStore) Reviewers(ctx context.Context) ([]Recipient, error) {
	return s.reviewers, nil
}

func (s *memoryStore) UserByID(ctx context.Context, id int64) (Recipient, error) {
	rec, ok := s.users[id]
	if !ok {
		return Recipient{}, ErrNotFound
	}
	return rec, nil
}

func (s *memoryStore) StalePending(ctx context.Context, cutoff time.Time) ([]StalePendingItem, error) {
	return s.stale, nil
}

type stubEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (e *stubEnqueuer) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.tasks = append(e.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func eventTask(t *testing.T, event modification.WorkflowEvent) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	return asynq.NewTask(jobs.TaskTypeWorkflowEvent, data)
}

func TestWorkflowEventSubmitNotifiesReviewers(t *testing.T) {
	store := &memoryStore{reviewers: []Recipient{
		{ID: 2, Email: "manager@grid.test", Name: "Manager"},
		{ID: 3, Email: "admin@grid.test", Name: "Admin"},
	}}
	enqueuer := &stubEnqueuer{}
	job := NewWorkflowEventJob(store, enqueuer, nil, nil)

	event := modification.WorkflowEvent{
		ModificationID: uuid.New(),
		From:           modification.StatusProposed,
		To:             modification.StatusPending,
		ActorID:        1,
		ProposerID:     1,
		Title:          "Replace switch fabric",
	}
	require.NoError(t, job.Handle(context.Background(), eventTask(t, event)))

	require.Len(t, store.notifications, 2)
	for _, n := range store.notifications {
		require.Equal(t, KindReviewRequested, n.Kind)
		require.Equal(t, event.ModificationID, n.ModificationID)
	}
	// One mail task per reviewer.
	require.Len(t, enqueuer.tasks, 2)
	require.Equal(t, jobs.TaskTypeSendEmail, enqueuer.tasks[0].Type())
}

func TestWorkflowEventDecisionNotifiesProposer(t *testing.T) {
	store := &memoryStore{users: map[int64]Recipient{
		1: {ID: 1, Email: "tech@grid.test", Name: "Technician"},
	}}
	job := NewWorkflowEventJob(store, &stubEnqueuer{}, nil, nil)

	event := modification.WorkflowEvent{
		ModificationID: uuid.New(),
		From:           modification.StatusPending,
		To:             modification.StatusRejected,
		ActorID:        2,
		ProposerID:     1,
		Title:          "Replace switch fabric",
	}
	require.NoError(t, job.Handle(context.Background(), eventTask(t, event)))

	require.Len(t, store.notifications, 1)
	require.Equal(t, KindDecision, store.notifications[0].Kind)
	require.Equal(t, int64(1), store.notifications[0].UserID)
}

func TestWorkflowEventSkipsActor(t *testing.T) {
	// A proposer cancelling their own change should not be notified about it.
	store := &memoryStore{users: map[int64]Recipient{
		1: {ID: 1, Email: "tech@grid.test", Name: "Technician"},
	}}
	job := NewWorkflowEventJob(store, &stubEnqueuer{}, nil, nil)

	event := modification.WorkflowEvent{
		ModificationID: uuid.New(),
		From:           modification.StatusProposed,
		To:             modification.StatusCancelled,
		ActorID:        1,
		ProposerID:     1,
		Title:          "Replace switch fabric",
	}
	require.NoError(t, job.Handle(context.Background(), eventTask(t, event)))
	require.Empty(t, store.notifications)
}

func TestWorkflowEventBadPayloadSkipsRetry(t *testing.T) {
	job := NewWorkflowEventJob(&memoryStore{}, &stubEnqueuer{}, nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(jobs.TaskTypeWorkflowEvent, []byte("{bad")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestReminderSweep(t *testing.T) {
	modID := uuid.New()
	store := &memoryStore{
		reviewers: []Recipient{
			{ID: 2, Email: "manager@grid.test", Name: "Manager"},
			{ID: 5, Email: "proposing-manager@grid.test", Name: "Proposing Manager"},
		},
		stale: []StalePendingItem{
			{ID: modID, Title: "Firmware rollout", ProposerID: 5, UpdatedAt: time.Now().Add(-48 * time.Hour)},
		},
	}
	job := NewReminderJob(store, nil, nil, 24*time.Hour)

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(jobs.TaskTypePendingReminder, nil)))

	// The proposer does not remind themself.
	require.Len(t, store.notifications, 1)
	require.Equal(t, KindReminder, store.notifications[0].Kind)
	require.Equal(t, int64(2), store.notifications[0].UserID)
	require.Equal(t, modID, store.notifications[0].ModificationID)
}

func TestReminderSweepNoStale(t *testing.T) {
	store := &memoryStore{reviewers: []Recipient{{ID: 2, Email: "m@grid.test"}}}
	job := NewReminderJob(store, nil, nil, time.Hour)
	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(jobs.TaskTypePendingReminder, nil)))
	require.Empty(t, store.notifications)
}

type recordingMailer struct {
	sent []jobs.SendEmailPayload
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, jobs.SendEmailPayload{To: to, Subject: subject, Body: body})
	return nil
}

func TestMailJobDelivers(t *testing.T) {
	mailer := &recordingMailer{}
	job := NewMailJob(mailer, nil, nil)

	task, err := jobs.NewSendEmailTask(jobs.SendEmailPayload{To: "ops@grid.test", Subject: "hello", Body: "body"})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, mailer.sent, 1)
	require.Equal(t, "ops@grid.test", mailer.sent[0].To)
}

func TestMailJobWithoutMailer(t *testing.T) {
	job := NewMailJob(nil, nil, nil)
	task, err := jobs.NewSendEmailTask(jobs.SendEmailPayload{To: "ops@grid.test"})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
}
