package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/scry-decks/internal/events"
)

// Submitter accepts tasks for background execution. *TaskRunner satisfies it.
type Submitter interface {
	Submit(ctx context.Context, task Task) error
}

// ReconciliationEventHandler turns usage reconciliation events into
// ReconciliationTasks. When the runner cannot take the task, the anomaly
// is recorded inline so it is never lost to a full queue.
type ReconciliationEventHandler struct {
	runner   Submitter
	recorder AnomalyRecorder
	logger   *slog.Logger
}

var _ events.EventHandler = (*ReconciliationEventHandler)(nil)

// NewReconciliationEventHandler creates a handler that submits to runner.
func NewReconciliationEventHandler(
	runner Submitter,
	recorder AnomalyRecorder,
	logger *slog.Logger,
) *ReconciliationEventHandler {
	return &ReconciliationEventHandler{
		runner:   runner,
		recorder: recorder,
		logger:   logger.With("component", "reconciliation_event_handler"),
	}
}

// HandleEvent processes usage reconciliation events and ignores the rest.
func (h *ReconciliationEventHandler) HandleEvent(ctx context.Context, event *events.Event) error {
	if event.Type != events.TypeUsageReconciliation {
		h.logger.DebugContext(ctx, "ignoring event with unsupported type",
			"event_type", event.Type,
			"event_id", event.ID)
		return nil
	}

	var payload events.ReconciliationPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		h.logger.ErrorContext(ctx, "failed to unmarshal payload", "error", err, "event_id", event.ID)
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	t, err := NewReconciliationTask(payload, h.recorder)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	err = h.runner.Submit(ctx, t)
	if err == nil {
		h.logger.InfoContext(ctx, "reconciliation task submitted",
			"task_id", t.ID(),
			"event_id", event.ID,
			"user_id", payload.UserID)
		return nil
	}
	if !errors.Is(err, ErrQueueFull) && !errors.Is(err, ErrQueueClosed) {
		return fmt.Errorf("failed to submit task: %w", err)
	}

	h.logger.WarnContext(ctx, "task runner unavailable, recording anomaly inline",
		"event_id", event.ID,
		"reason", err)
	if execErr := t.Execute(context.WithoutCancel(ctx)); execErr != nil {
		return execErr
	}
	return nil
}
