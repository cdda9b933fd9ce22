package events

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	t.Parallel()

	type payload struct {
		Action string `json:"action"`
	}

	event, err := NewEvent("test.event", payload{Action: "ping"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, "test.event", event.Type)
	assert.JSONEq(t, `{"action":"ping"}`, string(event.Payload))
	assert.WithinDuration(t, time.Now(), event.CreatedAt, 2*time.Second)

	var decoded payload
	require.NoError(t, event.UnmarshalPayload(&decoded))
	assert.Equal(t, "ping", decoded.Action)

	_, err = NewEvent("", payload{})
	assert.Error(t, err)

	_, err = NewEvent("bad.payload", make(chan int))
	assert.Error(t, err)
}

func TestNewReconciliationEvent(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	event, err := NewReconciliationEvent(ReconciliationPayload{
		UserID: userID,
		Cost:   10,
		Reason: "debit_failed",
		Detail: "connection reset",
	})
	require.NoError(t, err)
	assert.Equal(t, TypeUsageReconciliation, event.Type)

	var p ReconciliationPayload
	require.NoError(t, event.UnmarshalPayload(&p))
	assert.Equal(t, userID, p.UserID)
	assert.Equal(t, 10, p.Cost)
	assert.Equal(t, "debit_failed", p.Reason)
	assert.False(t, p.OccurredAt.IsZero())

	_, err = NewReconciliationEvent(ReconciliationPayload{Cost: 10})
	assert.Error(t, err)
}
