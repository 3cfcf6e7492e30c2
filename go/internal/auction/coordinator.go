package auction

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizbid/go/internal/allocation"
	"github.com/mcdev12/quizbid/go/internal/models"
)

// allocateTimeout bounds the fire-and-forget allocation call, which outlives
// the bid that triggered it.
const allocateTimeout = 30 * time.Second

// Allocator marks a question as allocated in the remote system.
type Allocator interface {
	Allocate(ctx context.Context, questionID string) error
}

// Coordinator serializes every mutating operation on the auction: bid
// admission, question transitions, and round re-initialization all run one at
// a time, in arrival order. A bid's validation and the mutation it leads to
// are indivisible under the coordinator lock, so no bid is ever judged
// against a current bid that another in-flight bid is about to replace.
type Coordinator struct {
	mu        sync.Mutex
	store     *Store
	allocator Allocator
}

// NewCoordinator creates a coordinator over the given store.
func NewCoordinator(store *Store, allocator Allocator) *Coordinator {
	return &Coordinator{
		store:     store,
		allocator: allocator,
	}
}

// Run consumes round configs from the source channel until the context is
// cancelled or the channel closes. Every received config replaces the active
// round wholesale.
func (c *Coordinator) Run(ctx context.Context, rounds <-chan models.RoundConfig) error {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("coordinator shutting down")
			return ctx.Err()
		case cfg, ok := <-rounds:
			if !ok {
				log.Info().Msg("round source closed, coordinator stopping")
				return nil
			}
			c.ApplyRound(cfg)
		}
	}
}

// ApplyRound re-initializes the auction from a freshly pushed round config:
// the active question becomes the round's first question, the current bid
// drops to the floor, and the history is cleared, all in one commit. A round
// without questions de-initializes the store and all bids are rejected until
// the next push.
func (c *Coordinator) ApplyRound(cfg models.RoundConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store.Apply(func(st *State) bool {
		st.Round = cfg
		st.History = nil
		st.CurrentBid = cfg.FloorBid
		if len(cfg.Questions) == 0 {
			st.Initialized = false
			st.ActiveQuestionID = ""
			return true
		}
		st.Initialized = true
		st.ActiveQuestionID = cfg.Questions[0].ID
		return true
	})

	log.Info().
		Str("round", cfg.Name).
		Int("floor_bid", cfg.FloorBid).
		Bool("service_enabled", cfg.ServiceEnabled).
		Int("questions", len(cfg.Questions)).
		Msg("round config applied")
}

// PlaceBid validates and, if admitted, applies a single bid. A bid that
// targets a valid question other than the active one first triggers the
// atomic local transition (reset to the floor, empty history), which commits
// and broadcasts on its own, then kicks off the remote allocation of the new
// question in the background, and only then is the bid judged against the
// fresh state. Rejections never mutate state.
func (c *Coordinator) PlaceBid(ctx context.Context, bid models.Bid) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.store.Snapshot()
	if !snap.Initialized {
		log.Warn().
			Str("bidder_id", bid.BidderID).
			Str("question_id", bid.QuestionID).
			Msg("bid received before first round config, rejecting")
		return Reject(ReasonServiceDisabled, "auction is not ready yet")
	}

	decision := Validate(snap, bid)
	switch decision.Reason {
	case ReasonServiceDisabled, ReasonUnknownQuestion, ReasonQuestionAllocated:
		return decision
	}

	if bid.QuestionID != snap.ActiveQuestionID {
		snap = c.transition(bid.QuestionID)
		go c.allocate(bid.QuestionID)

		// The pre-transition decision was computed against the stale
		// question; judge the bid again on the fresh snapshot.
		decision = Validate(snap, bid)
	}

	if !decision.Accepted {
		return decision
	}

	c.store.Apply(func(st *State) bool {
		st.CurrentBid = bid.Amount
		st.History = append(st.History, models.BidRecord{BidderID: bid.BidderID, Amount: bid.Amount})
		return true
	})

	log.Info().
		Str("bidder_id", bid.BidderID).
		Str("question_id", bid.QuestionID).
		Int("amount", bid.Amount).
		Msg("bid accepted")
	return decision
}

// transition performs the atomic local reset to a new active question. The
// reset commits (and broadcasts) before the triggering bid is re-evaluated
// and before the remote allocation is attempted.
func (c *Coordinator) transition(questionID string) Snapshot {
	snap, _ := c.store.Apply(func(st *State) bool {
		st.ActiveQuestionID = questionID
		st.CurrentBid = st.Round.FloorBid
		st.History = nil
		return true
	})

	log.Info().
		Str("question_id", questionID).
		Int("floor_bid", snap.FloorBid).
		Msg("switched to new question")
	return snap
}

// allocate runs the remote allocation call outside the serialized mutation
// path. Its outcome never blocks or reverses local state: success shows up as
// the question's allocated flag in a later round push, and a conflict means
// another transition got there first, which is a benign race.
func (c *Coordinator) allocate(questionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), allocateTimeout)
	defer cancel()

	err := c.allocator.Allocate(ctx, questionID)
	switch {
	case err == nil:
		log.Info().Str("question_id", questionID).Msg("question allocated")
	case errors.Is(err, allocation.ErrAlreadyAllocated):
		log.Warn().Str("question_id", questionID).Msg("question already allocated remotely")
	default:
		log.Error().Err(err).Str("question_id", questionID).Msg("failed to allocate question")
	}
}
