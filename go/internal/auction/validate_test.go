package auction

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mcdev12/quizbid/go/internal/models"
)

func testSnapshot() Snapshot {
	return Snapshot{
		Initialized:    true,
		RoundName:      "round-1",
		FloorBid:       100,
		ServiceEnabled: true,
		Questions: []models.Question{
			{ID: "q1"},
			{ID: "q2", Allocated: true},
		},
		ActiveQuestionID: "q1",
		CurrentBid:       100,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*Snapshot)
		bid        models.Bid
		accepted   bool
		reason     RejectReason
	}{
		{
			name:     "accepts a higher bid in the right denomination",
			bid:      models.Bid{QuestionID: "q1", BidderID: "alice", Amount: 150},
			accepted: true,
		},
		{
			name:   "rejects when service is disabled",
			mutate: func(s *Snapshot) { s.ServiceEnabled = false },
			bid:    models.Bid{QuestionID: "q1", Amount: 150},
			reason: ReasonServiceDisabled,
		},
		{
			name:   "rejects a question outside the round",
			bid:    models.Bid{QuestionID: "q9", Amount: 150},
			reason: ReasonUnknownQuestion,
		},
		{
			name:   "rejects an allocated question",
			bid:    models.Bid{QuestionID: "q2", Amount: 150},
			reason: ReasonQuestionAllocated,
		},
		{
			name:   "rejects a bid equal to the current bid",
			bid:    models.Bid{QuestionID: "q1", Amount: 100},
			reason: ReasonBelowMinimum,
		},
		{
			name:   "rejects a bid below the current bid",
			bid:    models.Bid{QuestionID: "q1", Amount: 90},
			reason: ReasonBelowMinimum,
		},
		{
			name:   "rejects a bid that is not a multiple of the denomination unit",
			bid:    models.Bid{QuestionID: "q1", Amount: 152},
			reason: ReasonBadDenomination,
		},
		{
			name:   "service-disabled wins over unknown question",
			mutate: func(s *Snapshot) { s.ServiceEnabled = false },
			bid:    models.Bid{QuestionID: "q9", Amount: 150},
			reason: ReasonServiceDisabled,
		},
		{
			name:   "below-minimum wins over bad denomination",
			bid:    models.Bid{QuestionID: "q1", Amount: 97},
			reason: ReasonBelowMinimum,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := testSnapshot()
			if tt.mutate != nil {
				tt.mutate(&snap)
			}

			decision := Validate(snap, tt.bid)
			assert.Equal(t, tt.accepted, decision.Accepted)
			assert.Equal(t, tt.reason, decision.Reason)
			if !tt.accepted {
				assert.NotEmpty(t, decision.Message)
			}
		})
	}
}

func TestValidateHasNoSideEffects(t *testing.T) {
	snap := testSnapshot()
	before := testSnapshot()

	Validate(snap, models.Bid{QuestionID: "q1", BidderID: "alice", Amount: 150})

	assert.Equal(t, before, snap)
}

func TestValidateDenominationIndependentOfAmount(t *testing.T) {
	// The denomination rule only cares about divisibility, never about how
	// high the bid is.
	snap := testSnapshot()

	for _, amount := range []int{101, 152, 1003} {
		decision := Validate(snap, models.Bid{QuestionID: "q1", Amount: amount})
		assert.Equal(t, ReasonBadDenomination, decision.Reason, "amount %d", amount)
	}
	for _, amount := range []int{105, 150, 1000} {
		decision := Validate(snap, models.Bid{QuestionID: "q1", Amount: amount})
		assert.True(t, decision.Accepted, "amount %d", amount)
	}
}
