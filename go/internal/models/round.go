package models

// Question is a single auctionable item within a round. Allocated flips true
// once the remote allocation service has committed the question; the remote
// system is the authority for that flag, reflected back through round pushes.
type Question struct {
	ID        string `json:"id"`
	Allocated bool   `json:"allocated"`
}

// RoundConfig is the full configuration pushed by the round source. It is
// replaced wholesale on every push, never patched in place.
type RoundConfig struct {
	Name           string     `json:"name"`
	FloorBid       int        `json:"floor_bid"`
	ServiceEnabled bool       `json:"service_enabled"`
	Questions      []Question `json:"questions"`
}
