package roundcfg

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mcdev12/quizbid/go/internal/models"
)

// Source is a long-lived subscription yielding full round config snapshots.
// Every emitted value replaces the previous one wholesale; sources never emit
// partial updates.
type Source interface {
	// Start blocks until the context is cancelled or the source fails.
	Start(ctx context.Context) error
	// Rounds is the channel of pushed configs.
	Rounds() <-chan models.RoundConfig
}

// Decode parses a pushed round config payload.
func Decode(data []byte) (models.RoundConfig, error) {
	var cfg models.RoundConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return models.RoundConfig{}, fmt.Errorf("failed to parse round config: %w", err)
	}
	if cfg.Name == "" {
		return models.RoundConfig{}, fmt.Errorf("round config has no name")
	}
	return cfg, nil
}
