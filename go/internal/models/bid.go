package models

// Bid is an inbound bid attempt from a connected bidder.
type Bid struct {
	QuestionID string `json:"question_id"`
	BidderID   string `json:"bidder_id"`
	Amount     int    `json:"amount"`
}

// BidRecord is an accepted bid. Records are immutable once appended and are
// ordered by processing order, not wall-clock time.
type BidRecord struct {
	BidderID string `json:"bidder_id"`
	Amount   int    `json:"amount"`
}
