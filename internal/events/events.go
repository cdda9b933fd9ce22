package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event types published inside the service.
const (
	// TypeUsageReconciliation is emitted when a delivered deck could not be charged.
	TypeUsageReconciliation = "usage.reconciliation"
)

// Event is a typed notification with a JSON payload. Producers publish
// events without knowing which components react to them.
type Event struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type selects which handlers receive the event
	Type string `json:"type"`

	// Payload contains the type-specific data serialized as JSON
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// NewEvent creates an Event with a fresh ID and the payload encoded as JSON.
func NewEvent(eventType string, payload any) (*Event, error) {
	if eventType == "" {
		return nil, fmt.Errorf("event type cannot be empty")
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}

	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   payloadBytes,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// UnmarshalPayload decodes the event payload into v.
func (e *Event) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// ReconciliationPayload describes a generation that succeeded but whose
// debit failed. The user received the deck; the charge is owed.
type ReconciliationPayload struct {
	UserID     uuid.UUID `json:"user_id"`
	Cost       int       `json:"cost"`
	Reason     string    `json:"reason"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewReconciliationEvent wraps p in an Event of TypeUsageReconciliation.
func NewReconciliationEvent(p ReconciliationPayload) (*Event, error) {
	if p.UserID == uuid.Nil {
		return nil, fmt.Errorf("reconciliation event requires a user ID")
	}
	if p.OccurredAt.IsZero() {
		p.OccurredAt = time.Now().UTC()
	}
	return NewEvent(TypeUsageReconciliation, p)
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	HandleEvent(ctx context.Context, event *Event) error
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(ctx context.Context, event *Event) error

// HandleEvent calls f.
func (f EventHandlerFunc) HandleEvent(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
type EventEmitter interface {
	// EmitEvent publishes the given event to the handlers registered for its type.
	EmitEvent(ctx context.Context, event *Event) error
}
