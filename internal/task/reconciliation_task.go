package task

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/domain"
	"github.com/phrazzld/scry-decks/internal/events"
	"github.com/sethvargo/go-retry"
)

// AnomalyRecorder persists usage anomalies. store.ProfileStore satisfies it.
type AnomalyRecorder interface {
	FlagReconciliation(ctx context.Context, anomaly *domain.UsageAnomaly) error
}

// ReconciliationTask writes one usage anomaly, retrying transient failures.
type ReconciliationTask struct {
	id         uuid.UUID
	payload    events.ReconciliationPayload
	recorder   AnomalyRecorder
	maxRetries uint64
	baseDelay  time.Duration
}

var _ Task = (*ReconciliationTask)(nil)

// NewReconciliationTask creates a task that records p through recorder.
func NewReconciliationTask(p events.ReconciliationPayload, recorder AnomalyRecorder) (*ReconciliationTask, error) {
	if recorder == nil {
		return nil, fmt.Errorf("anomaly recorder cannot be nil")
	}
	if p.UserID == uuid.Nil {
		return nil, fmt.Errorf("reconciliation payload requires a user ID")
	}
	return &ReconciliationTask{
		id:         uuid.New(),
		payload:    p,
		recorder:   recorder,
		maxRetries: 3,
		baseDelay:  200 * time.Millisecond,
	}, nil
}

// WithRetry overrides the retry policy.
func (t *ReconciliationTask) WithRetry(maxRetries uint64, baseDelay time.Duration) *ReconciliationTask {
	t.maxRetries = maxRetries
	t.baseDelay = baseDelay
	return t
}

// ID returns the task's unique identifier.
func (t *ReconciliationTask) ID() uuid.UUID { return t.id }

// Type returns TaskTypeUsageReconciliation.
func (t *ReconciliationTask) Type() string { return TaskTypeUsageReconciliation }

// Execute records the anomaly. Every failure is retried until the retry
// budget or ctx runs out.
func (t *ReconciliationTask) Execute(ctx context.Context) error {
	anomaly := &domain.UsageAnomaly{
		ID:        t.id,
		UserID:    t.payload.UserID,
		Cost:      t.payload.Cost,
		Reason:    t.payload.Reason,
		Detail:    t.payload.Detail,
		CreatedAt: t.payload.OccurredAt,
	}

	b := retry.WithMaxRetries(t.maxRetries, retry.NewExponential(t.baseDelay))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		if err := t.recorder.FlagReconciliation(ctx, anomaly); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record usage anomaly for user %s: %w", t.payload.UserID, err)
	}
	return nil
}
