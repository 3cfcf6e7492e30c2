package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/quizbid/go/internal/models"
)

func TestNewEventAndParsePayload(t *testing.T) {
	event, err := NewEvent(EventTypeHistory, HistoryPayload{
		CurrentBid: 150,
		Entries:    []models.BidRecord{{BidderID: "alice", Amount: 150}},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, event.ID)
	assert.False(t, event.Timestamp.IsZero())

	parsed, err := ParseEventPayload(event)
	require.NoError(t, err)

	payload, ok := parsed.(HistoryPayload)
	require.True(t, ok)
	assert.Equal(t, 150, payload.CurrentBid)
	assert.Equal(t, "alice", payload.Entries[0].BidderID)
}

func TestParseEventPayloadInvalid(t *testing.T) {
	event, err := NewEvent(EventTypeInvalid, InvalidPayload{Type: "below-minimum", Message: "bid must be higher than 150"})
	require.NoError(t, err)

	parsed, err := ParseEventPayload(event)
	require.NoError(t, err)

	payload, ok := parsed.(InvalidPayload)
	require.True(t, ok)
	assert.Equal(t, "below-minimum", payload.Type)
}

func TestParseEventPayloadUnknownType(t *testing.T) {
	event := &Event{Type: EventType("mystery"), Data: []byte(`{}`)}

	parsed, err := ParseEventPayload(event)

	assert.NoError(t, err)
	assert.Nil(t, parsed)
}
