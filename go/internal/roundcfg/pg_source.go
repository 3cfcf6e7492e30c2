package roundcfg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/sqlc-dev/pqtype"

	"github.com/mcdev12/quizbid/go/internal/models"
)

const fetchActiveRound = `
SELECT name, floor_bid, service_enabled, questions
FROM auction_rounds
WHERE active
ORDER BY updated_at DESC
LIMIT 1
`

// PGConfig holds configuration for the Postgres round source.
type PGConfig struct {
	DatabaseURL      string        // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel    string        // Channel name to LISTEN on
	FallbackInterval time.Duration // How often to poll for missed notifications
	PingInterval     time.Duration
}

// DefaultPGConfig returns default Postgres round source configuration.
func DefaultPGConfig() PGConfig {
	return PGConfig{
		DatabaseURL:      "",
		NotifyChannel:    "auction_round_changed",
		FallbackInterval: 30 * time.Second,
		PingInterval:     90 * time.Second,
	}
}

// PGSource watches the round store in Postgres. Changes arrive through
// LISTEN/NOTIFY (see schema.sql for the trigger) with a fallback poll for
// notifications lost across reconnects. Identical consecutive configs are
// swallowed: re-emitting an unchanged round would wipe live bid history.
type PGSource struct {
	db       *sql.DB
	listener *pq.Listener
	cfg      PGConfig
	rounds   chan models.RoundConfig
	last     *models.RoundConfig
}

// NewPGSource starts listening on the notify channel.
func NewPGSource(db *sql.DB, cfg PGConfig) (*PGSource, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("round listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Msg("listening for round config notifications")

	return &PGSource{
		db:       db,
		listener: l,
		cfg:      cfg,
		rounds:   make(chan models.RoundConfig, 16),
	}, nil
}

// Rounds returns the channel of pushed round configs.
func (s *PGSource) Rounds() <-chan models.RoundConfig {
	return s.rounds
}

// Start loads the current round, then emits a fresh config on every
// notification until the context is cancelled.
func (s *PGSource) Start(ctx context.Context) error {
	log.Info().
		Str("channel", s.cfg.NotifyChannel).
		Dur("ping_interval", s.cfg.PingInterval).
		Dur("fallback_interval", s.cfg.FallbackInterval).
		Msg("round source started")

	// Initial load so the auction comes up without waiting for a change
	if err := s.refresh(ctx); err != nil {
		log.Error().Err(err).Msg("failed to load initial round config")
	}

	pingTicker := time.NewTicker(s.cfg.PingInterval)
	fallbackTicker := time.NewTicker(s.cfg.FallbackInterval)
	defer pingTicker.Stop()
	defer fallbackTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("round source shutting down")
			return s.listener.Close()
		case note := <-s.listener.Notify:
			if note == nil {
				// nil notification means the connection was lost and
				// re-established; refresh in case we missed a change
				if err := s.refresh(ctx); err != nil {
					log.Error().Err(err).Msg("failed to refresh round config after reconnect")
				}
				continue
			}
			if err := s.refresh(ctx); err != nil {
				log.Error().Err(err).Str("payload", note.Extra).Msg("failed to refresh round config")
			}
		case <-fallbackTicker.C:
			if err := s.refresh(ctx); err != nil {
				log.Error().Err(err).Msg("failed to poll round config")
			}
		case <-pingTicker.C:
			if err := s.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping round listener")
			}
		}
	}
}

// refresh fetches the active round and emits it when it differs from the
// previously emitted one.
func (s *PGSource) refresh(ctx context.Context) error {
	cfg, err := s.fetchRound(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn().Msg("no active round configured")
			return nil
		}
		return err
	}

	if s.last != nil && reflect.DeepEqual(*s.last, cfg) {
		return nil
	}

	select {
	case s.rounds <- cfg:
		s.last = &cfg
		log.Info().Str("round", cfg.Name).Msg("round config changed")
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// fetchRound reads the active round row.
func (s *PGSource) fetchRound(ctx context.Context) (models.RoundConfig, error) {
	var (
		cfg       models.RoundConfig
		questions pqtype.NullRawMessage
	)

	row := s.db.QueryRowContext(ctx, fetchActiveRound)
	if err := row.Scan(&cfg.Name, &cfg.FloorBid, &cfg.ServiceEnabled, &questions); err != nil {
		return models.RoundConfig{}, fmt.Errorf("failed to fetch active round: %w", err)
	}

	if questions.Valid {
		if err := json.Unmarshal(questions.RawMessage, &cfg.Questions); err != nil {
			return models.RoundConfig{}, fmt.Errorf("failed to parse round questions: %w", err)
		}
	}
	return cfg, nil
}
