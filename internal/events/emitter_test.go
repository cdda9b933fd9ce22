package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingHandler remembers the events it receives.
type recordingHandler struct {
	mu     sync.Mutex
	events []*Event
	err    error
}

func (h *recordingHandler) HandleEvent(_ context.Context, event *Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return h.err
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func TestInMemoryEventEmitter(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	newEvent := func(t *testing.T, eventType string) *Event {
		t.Helper()
		event, err := NewEvent(eventType, map[string]string{"k": "v"})
		require.NoError(t, err)
		return event
	}

	t.Run("no handlers", func(t *testing.T) {
		t.Parallel()
		emitter := NewInMemoryEventEmitter(logger)
		assert.NoError(t, emitter.EmitEvent(context.Background(), newEvent(t, "a")))
	})

	t.Run("nil event", func(t *testing.T) {
		t.Parallel()
		emitter := NewInMemoryEventEmitter(logger)
		assert.Error(t, emitter.EmitEvent(context.Background(), nil))
	})

	t.Run("delivers to every matching handler", func(t *testing.T) {
		t.Parallel()
		emitter := NewInMemoryEventEmitter(logger)
		all := &recordingHandler{}
		onlyA := &recordingHandler{}
		onlyB := &recordingHandler{}
		emitter.RegisterHandler(all)
		emitter.RegisterHandler(onlyA, "a")
		emitter.RegisterHandler(onlyB, "b")

		event := newEvent(t, "a")
		require.NoError(t, emitter.EmitEvent(context.Background(), event))

		assert.Equal(t, 1, all.count())
		assert.Equal(t, 1, onlyA.count())
		assert.Zero(t, onlyB.count())
		assert.Same(t, event, onlyA.events[0])
	})

	t.Run("failing handler does not stop delivery", func(t *testing.T) {
		t.Parallel()
		emitter := NewInMemoryEventEmitter(logger)
		first := &recordingHandler{err: errors.New("first failed")}
		second := &recordingHandler{err: errors.New("second failed")}
		third := &recordingHandler{}
		emitter.RegisterHandler(first)
		emitter.RegisterHandler(second)
		emitter.RegisterHandler(third)

		err := emitter.EmitEvent(context.Background(), newEvent(t, "a"))
		assert.EqualError(t, err, "first failed")
		assert.Equal(t, 1, third.count())
	})

	t.Run("handler func", func(t *testing.T) {
		t.Parallel()
		emitter := NewInMemoryEventEmitter(logger)
		var got string
		emitter.RegisterHandler(EventHandlerFunc(func(_ context.Context, e *Event) error {
			got = e.Type
			return nil
		}), TypeUsageReconciliation)

		require.NoError(t, emitter.EmitEvent(context.Background(), newEvent(t, TypeUsageReconciliation)))
		assert.Equal(t, TypeUsageReconciliation, got)
	})
}
