package auction

import (
	"sync"

	"github.com/mcdev12/quizbid/go/internal/models"
)

// State is the mutable auction state. It is only ever touched inside
// Store.Apply; nothing outside the store holds a reference to it.
type State struct {
	Initialized      bool
	Round            models.RoundConfig
	ActiveQuestionID string
	CurrentBid       int
	History          []models.BidRecord
}

// Snapshot is an immutable copy of the auction state. Seq increases by one
// per committed mutation and is used by the broadcaster to keep observers in
// commit order.
type Snapshot struct {
	Seq              uint64
	Initialized      bool
	RoundName        string
	FloorBid         int
	ServiceEnabled   bool
	Questions        []models.Question
	ActiveQuestionID string
	CurrentBid       int
	History          []models.BidRecord
}

// Store is the single in-memory source of truth for the auction. All reads go
// through Snapshot and all writes through Apply; there is no raw field access.
type Store struct {
	mu     sync.Mutex
	seq    uint64
	state  State
	notify func(Snapshot)
}

// NewStore returns an uninitialized store. The store stays in the
// uninitialized state until the first round config is applied.
func NewStore() *Store {
	return &Store{}
}

// OnCommit registers the hook invoked with the resulting snapshot after every
// committed mutation. The hook runs under the store lock so notifications are
// delivered in commit order; it must not block (enqueue and return).
func (s *Store) OnCommit(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notify = fn
}

// Snapshot returns an immutable copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Apply runs a check-and-mutate step under the store lock. fn mutates the
// state in place and reports whether its changes should commit; fn must leave
// the state untouched when it returns false. On commit the store bumps the
// sequence number and hands the resulting snapshot to the OnCommit hook,
// exactly once. No other mutation interleaves with fn.
func (s *Store) Apply(fn func(st *State) bool) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !fn(&s.state) {
		return s.snapshotLocked(), false
	}

	s.seq++
	snap := s.snapshotLocked()
	if s.notify != nil {
		s.notify(snap)
	}
	return snap, true
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Seq:              s.seq,
		Initialized:      s.state.Initialized,
		RoundName:        s.state.Round.Name,
		FloorBid:         s.state.Round.FloorBid,
		ServiceEnabled:   s.state.Round.ServiceEnabled,
		ActiveQuestionID: s.state.ActiveQuestionID,
		CurrentBid:       s.state.CurrentBid,
	}
	if len(s.state.Round.Questions) > 0 {
		snap.Questions = make([]models.Question, len(s.state.Round.Questions))
		copy(snap.Questions, s.state.Round.Questions)
	}
	if len(s.state.History) > 0 {
		snap.History = make([]models.BidRecord, len(s.state.History))
		copy(snap.History, s.state.History)
	}
	return snap
}
