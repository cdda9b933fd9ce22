package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

type registration struct {
	handler EventHandler
	types   map[string]struct{}
}

func (r registration) accepts(eventType string) bool {
	if len(r.types) == 0 {
		return true
	}
	_, ok := r.types[eventType]
	return ok
}

// InMemoryEventEmitter dispatches events synchronously to handlers
// registered in the same process.
type InMemoryEventEmitter struct {
	handlers []registration
	mu       sync.RWMutex
	logger   *slog.Logger
}

var _ EventEmitter = (*InMemoryEventEmitter)(nil)

// NewInMemoryEventEmitter creates a new instance of InMemoryEventEmitter.
func NewInMemoryEventEmitter(logger *slog.Logger) *InMemoryEventEmitter {
	return &InMemoryEventEmitter{
		logger: logger.With("component", "event_emitter"),
	}
}

// RegisterHandler adds a handler for the given event types. With no types
// the handler receives every event.
func (e *InMemoryEventEmitter) RegisterHandler(handler EventHandler, types ...string) {
	reg := registration{handler: handler}
	if len(types) > 0 {
		reg.types = make(map[string]struct{}, len(types))
		for _, t := range types {
			reg.types[t] = struct{}{}
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, reg)
	e.logger.Debug("registered event handler", "handler_count", len(e.handlers), "types", types)
}

// EmitEvent delivers event to every matching handler. A failing handler does
// not stop delivery to the rest; the first error is returned.
// An event nobody handles is logged and dropped.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	e.mu.RLock()
	matched := make([]EventHandler, 0, len(e.handlers))
	for _, reg := range e.handlers {
		if reg.accepts(event.Type) {
			matched = append(matched, reg.handler)
		}
	}
	e.mu.RUnlock()

	if len(matched) == 0 {
		e.logger.WarnContext(ctx, "no handlers registered for event",
			"event_id", event.ID,
			"event_type", event.Type)
		return nil
	}

	var firstErr error
	for i, handler := range matched {
		if err := handler.HandleEvent(ctx, event); err != nil {
			e.logger.ErrorContext(ctx, "handler failed to process event",
				"error", err,
				"handler_index", i,
				"event_id", event.ID,
				"event_type", event.Type)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
