package auction

import (
	"fmt"

	"github.com/mcdev12/quizbid/go/internal/models"
)

// DenominationUnit is the multiple every accepted bid amount must satisfy.
const DenominationUnit = 5

// RejectReason identifies why a bid was not admitted.
type RejectReason string

const (
	ReasonServiceDisabled   RejectReason = "service-disabled"
	ReasonUnknownQuestion   RejectReason = "unknown-question"
	ReasonQuestionAllocated RejectReason = "question-allocated"
	ReasonBelowMinimum      RejectReason = "below-minimum"
	ReasonBadDenomination   RejectReason = "bad-denomination"
)

// Decision is the outcome of validating a single bid.
type Decision struct {
	Accepted bool
	Reason   RejectReason
	Message  string
}

// Accept returns an accepting decision.
func Accept() Decision {
	return Decision{Accepted: true}
}

// Reject returns a rejecting decision with a bidder-facing message.
func Reject(reason RejectReason, message string) Decision {
	return Decision{Reason: reason, Message: message}
}

// Validate judges a bid against a snapshot of the auction state. It is a pure
// function with no side effects. Rules are evaluated in order and the first
// match wins; the ordering determines which rejection a bidder sees when
// several rules would apply. A bid equal to the current bid is too small even
// when it also breaks the denomination rule.
func Validate(snap Snapshot, bid models.Bid) Decision {
	if !snap.ServiceEnabled {
		return Reject(ReasonServiceDisabled, "bidding is currently closed")
	}

	q, ok := findQuestion(snap.Questions, bid.QuestionID)
	if !ok {
		return Reject(ReasonUnknownQuestion, fmt.Sprintf("question %q is not part of this round", bid.QuestionID))
	}
	if q.Allocated {
		return Reject(ReasonQuestionAllocated, fmt.Sprintf("question %q has already been allocated", bid.QuestionID))
	}

	if bid.Amount <= snap.CurrentBid {
		return Reject(ReasonBelowMinimum, fmt.Sprintf("bid must be higher than %d", snap.CurrentBid))
	}
	if bid.Amount%DenominationUnit != 0 {
		return Reject(ReasonBadDenomination, fmt.Sprintf("bid must be a multiple of %d", DenominationUnit))
	}

	return Accept()
}

func findQuestion(questions []models.Question, id string) (models.Question, bool) {
	for _, q := range questions {
		if q.ID == id {
			return q, true
		}
	}
	return models.Question{}, false
}
