package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/gridops/gridops/internal/modification"
	"github.com/gridops/gridops/jobs"
)

// Enqueuer submits prepared tasks to the queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher hands workflow events to the background queue. It implements
// the coordinator's notifier boundary; delivery and retry live on the worker.
type Dispatcher struct {
	enqueuer Enqueuer
	logger   *slog.Logger
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(enqueuer Enqueuer, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{enqueuer: enqueuer, logger: logger}
}

// Emit enqueues the workflow event for asynchronous fan-out.
func (d *Dispatcher) Emit(ctx context.Context, event modification.WorkflowEvent) error {
	task, err := jobs.NewTask(jobs.TaskTypeWorkflowEvent, event)
	if err != nil {
		return fmt.Errorf("notify: build task: %w", err)
	}
	if _, err := d.enqueuer.Enqueue(ctx, task, asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("notify: enqueue: %w", err)
	}
	d.logger.Debug("workflow event enqueued",
		slog.String("modification_id", event.ModificationID.String()),
		slog.String("to", string(event.To)))
	return nil
}
