package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/gridops/gridops/internal/jobs"
	"github.com/gridops/gridops/internal/modification"
	"github.com/gridops/gridops/jobs"
)

// Job names used for metrics labels.
const (
	JobWorkflowEvent   = "notify_workflow_event"
	JobPendingReminder = "notify_pending_reminder"
	JobSendMail        = "mail_send"
)

// StorePort describes the persistence operations the jobs need.
type StorePort interface {
	Insert(ctx context.Context, n Notification) error
	Reviewers(ctx context.Context) ([]Recipient, error)
	UserByID(ctx context.Context, id int64) (Recipient, error)
	StalePending(ctx context.Context, cutoff time.Time) ([]StalePendingItem, error)
}

// WorkflowEventJob turns a workflow transition into inbox entries and mail.
type WorkflowEventJob struct {
	store    StorePort
	enqueuer Enqueuer
	metrics  *jobmetrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewWorkflowEventJob constructs the fan-out handler.
func NewWorkflowEventJob(store StorePort, enqueuer Enqueuer, metrics *jobmetrics.Metrics, logger *slog.Logger) *WorkflowEventJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkflowEventJob{
		store:    store,
		enqueuer: enqueuer,
		metrics:  metrics,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Handle processes one workflow event task.
func (j *WorkflowEventJob) Handle(ctx context.Context, t *asynq.Task) error {
	var event modification.WorkflowEvent
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics.Track(JobWorkflowEvent)
	var resultErr error
	defer func() { resultErr = tracker.End(resultErr) }()

	recipients, kind, subject, body, err := j.fanOut(ctx, event)
	if err != nil {
		resultErr = err
		return resultErr
	}

	for _, rec := range recipients {
		// The actor already knows what they did.
		if rec.ID == event.ActorID {
			continue
		}
		n := Notification{
			UserID:         rec.ID,
			Kind:           kind,
			Title:          subject,
			Body:           body,
			ModificationID: event.ModificationID,
			CreatedAt:      j.now(),
		}
		if err := j.store.Insert(ctx, n); err != nil {
			resultErr = err
			return resultErr
		}
		j.sendMail(ctx, rec, subject, body)
	}
	return nil
}

func (j *WorkflowEventJob) fanOut(ctx context.Context, event modification.WorkflowEvent) ([]Recipient, string, string, string, error) {
	switch event.To {
	case modification.StatusPending:
		reviewers, err := j.store.Reviewers(ctx)
		if err != nil {
			return nil, "", "", "", err
		}
		subject := fmt.Sprintf("Review requested: %s", event.Title)
		body := fmt.Sprintf("Change %q (%s) is waiting for review.", event.Title, event.ModificationID)
		return reviewers, KindReviewRequested, subject, body, nil

	case modification.StatusApproved, modification.StatusRejected, modification.StatusCancelled:
		proposer, err := j.store.UserByID(ctx, event.ProposerID)
		if err != nil {
			// Proposer deactivated since proposing; nothing to deliver.
			j.logger.Warn("workflow event proposer lookup", slog.Any("error", err))
			return nil, KindDecision, "", "", nil
		}
		subject := fmt.Sprintf("Change %s: %s", statusVerb(event.To), event.Title)
		body := fmt.Sprintf("Change %q (%s) moved from %s to %s.", event.Title, event.ModificationID, event.From, event.To)
		return []Recipient{proposer}, KindDecision, subject, body, nil

	case modification.StatusApplied:
		proposer, err := j.store.UserByID(ctx, event.ProposerID)
		if err != nil {
			j.logger.Warn("workflow event proposer lookup", slog.Any("error", err))
			return nil, KindApplied, "", "", nil
		}
		subject := fmt.Sprintf("Change applied: %s", event.Title)
		body := fmt.Sprintf("Change %q (%s) has been applied to the infrastructure.", event.Title, event.ModificationID)
		return []Recipient{proposer}, KindApplied, subject, body, nil
	}
	// Initial proposal and anything unrecognised fans out to nobody.
	return nil, "", "", "", nil
}

func (j *WorkflowEventJob) sendMail(ctx context.Context, rec Recipient, subject, body string) {
	if j.enqueuer == nil || rec.Email == "" {
		return
	}
	task, err := jobs.NewSendEmailTask(jobs.SendEmailPayload{To: rec.Email, Subject: subject, Body: body})
	if err != nil {
		j.logger.Warn("build mail task", slog.Any("error", err))
		return
	}
	if _, err := j.enqueuer.Enqueue(ctx, task, asynq.MaxRetry(3)); err != nil {
		j.logger.Warn("enqueue mail", slog.String("to", rec.Email), slog.Any("error", err))
	}
}

func statusVerb(status modification.Status) string {
	switch status {
	case modification.StatusApproved:
		return "approved"
	case modification.StatusRejected:
		return "rejected"
	case modification.StatusCancelled:
		return "cancelled"
	case modification.StatusApplied:
		return "applied"
	default:
		return string(status)
	}
}

// MailJob delivers queued emails through the configured mailer.
type MailJob struct {
	mailer  Mailer
	metrics *jobmetrics.Metrics
	logger  *slog.Logger
}

// NewMailJob constructs the mail delivery handler.
func NewMailJob(mailer Mailer, metrics *jobmetrics.Metrics, logger *slog.Logger) *MailJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &MailJob{mailer: mailer, metrics: metrics, logger: logger}
}

// Handle processes one send-email task.
func (j *MailJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload jobs.SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if j.mailer == nil {
		j.logger.Info("mail delivery disabled", slog.String("to", payload.To))
		return nil
	}
	if err := j.mailer.Send(ctx, payload.To, payload.Subject, payload.Body); err != nil {
		j.metrics.AddMail("failure")
		return err
	}
	j.metrics.AddMail("success")
	return nil
}

// ReminderJob sweeps for modifications stuck in pending review and nudges
// every reviewer with a digest.
type ReminderJob struct {
	store   StorePort
	metrics *jobmetrics.Metrics
	logger  *slog.Logger
	maxAge  time.Duration
	now     func() time.Time
}

// NewReminderJob constructs the reminder sweep. maxAge controls how long a
// change may sit in pending before reminders start.
func NewReminderJob(store StorePort, metrics *jobmetrics.Metrics, logger *slog.Logger, maxAge time.Duration) *ReminderJob {
	if logger == nil {
		logger = slog.Default()
	}
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &ReminderJob{
		store:   store,
		metrics: metrics,
		logger:  logger,
		maxAge:  maxAge,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes one reminder sweep.
func (j *ReminderJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("reminder: handler not configured")
	}
	tracker := j.metrics.Track(JobPendingReminder)
	var resultErr error
	defer func() { resultErr = tracker.End(resultErr) }()

	cutoff := j.now().Add(-j.maxAge)
	stale, err := j.store.StalePending(ctx, cutoff)
	if err != nil {
		resultErr = err
		return resultErr
	}
	if len(stale) == 0 {
		return nil
	}

	reviewers, err := j.store.Reviewers(ctx)
	if err != nil {
		resultErr = err
		return resultErr
	}

	for _, item := range stale {
		for _, rec := range reviewers {
			if rec.ID == item.ProposerID {
				continue
			}
			n := Notification{
				UserID:         rec.ID,
				Kind:           KindReminder,
				Title:          fmt.Sprintf("Still pending: %s", item.Title),
				Body:           fmt.Sprintf("Change %q (%s) has been waiting for review since %s.", item.Title, item.ID, item.UpdatedAt.Format(time.RFC3339)),
				ModificationID: item.ID,
				CreatedAt:      j.now(),
			}
			if err := j.store.Insert(ctx, n); err != nil {
				resultErr = err
				return resultErr
			}
		}
	}

	j.metrics.AddReminders(len(stale))
	j.logger.Info("pending reminders emitted", slog.Int("stale", len(stale)), slog.Int("reviewers", len(reviewers)))
	return nil
}
