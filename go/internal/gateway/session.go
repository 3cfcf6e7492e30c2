package gateway

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizbid/go/internal/auction"
	"github.com/mcdev12/quizbid/go/internal/models"
)

// BidSink is what the session layer needs from the bid coordinator.
type BidSink interface {
	PlaceBid(ctx context.Context, bid models.Bid) auction.Decision
}

// handleClientMessage processes messages received from the client. The
// session layer holds no auction state of its own: it translates inbound bid
// events into coordinator calls and decisions into private replies. Accepted
// bids reach everyone through the store's commit broadcast, so only the
// acknowledgment is private.
func (c *Connection) handleClientMessage(message []byte) {
	var event Event
	if err := json.Unmarshal(message, &event); err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", c.ID).
			Msg("discarding malformed client message")
		return
	}

	switch event.Type {
	case EventTypeBid:
		var payload BidPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			log.Warn().
				Err(err).
				Str("connection_id", c.ID).
				Msg("discarding malformed bid payload")
			c.enqueue(EventTypeInvalid, InvalidPayload{Type: "malformed", Message: "could not parse bid"})
			return
		}
		c.handleBid(payload)

	default:
		log.Debug().
			Str("connection_id", c.ID).
			Str("event_type", string(event.Type)).
			Msg("ignoring unsupported client event")
	}
}

func (c *Connection) handleBid(payload BidPayload) {
	bid := models.Bid{
		QuestionID: payload.QuestionID,
		BidderID:   c.BidderID,
		Amount:     payload.Amount,
	}

	decision := c.bids.PlaceBid(context.Background(), bid)
	if !decision.Accepted {
		log.Info().
			Str("connection_id", c.ID).
			Str("bidder_id", c.BidderID).
			Str("question_id", bid.QuestionID).
			Int("amount", bid.Amount).
			Str("reason", string(decision.Reason)).
			Msg("bid rejected")
		c.enqueue(EventTypeInvalid, InvalidPayload{Type: string(decision.Reason), Message: decision.Message})
		return
	}

	c.enqueue(EventTypeAlert, AlertPayload{Message: "bid placed"})
}
