package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/quizbid/go/internal/models"
)

// Event is the wire envelope for every message exchanged with an observer.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// EventType represents the type of auction event.
type EventType string

const (
	// Client -> server
	EventTypeBid EventType = "bid"

	// Server -> client
	EventTypeWelcome EventType = "welcome"
	EventTypeMinimum EventType = "minimum"
	EventTypeHistory EventType = "history"
	EventTypeInvalid EventType = "invalid"
	EventTypeAlert   EventType = "alert"
)

// BidPayload is a bid attempt submitted by a client.
type BidPayload struct {
	QuestionID string `json:"question_id"`
	Amount     int    `json:"amount"`
}

// WelcomePayload greets a freshly joined observer with the round name.
type WelcomePayload struct {
	Name string `json:"name"`
}

// MinimumPayload carries the floor bid, sent on replay and whenever the floor
// changes.
type MinimumPayload struct {
	FloorBid int `json:"floor_bid"`
}

// HistoryPayload carries the current bid and the full accepted-bid history of
// the active question.
type HistoryPayload struct {
	CurrentBid int                `json:"current_bid"`
	Entries    []models.BidRecord `json:"entries"`
}

// InvalidPayload is a private rejection sent only to the submitting bidder.
type InvalidPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// AlertPayload is a private acknowledgment sent only to the submitting bidder.
type AlertPayload struct {
	Message string `json:"message"`
}

// NewEvent wraps a payload in a wire envelope.
func NewEvent(eventType EventType, payload interface{}) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}, nil
}

// ParseEventPayload parses event data into the appropriate payload struct.
func ParseEventPayload(event *Event) (interface{}, error) {
	switch event.Type {
	case EventTypeBid:
		var payload BidPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeWelcome:
		var payload WelcomePayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeMinimum:
		var payload MinimumPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeHistory:
		var payload HistoryPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeInvalid:
		var payload InvalidPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeAlert:
		var payload AlertPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, nil // Unknown event type
	}
}
