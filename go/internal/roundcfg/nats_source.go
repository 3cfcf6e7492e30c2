package roundcfg

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizbid/go/internal/models"
)

// NATSConfig holds configuration for the JetStream round source
type NATSConfig struct {
	URL           string
	StreamName    string
	ConsumerName  string
	SubjectFilter string        // e.g., "auction.rounds.>"
	MaxDeliver    int           // Max delivery attempts
	AckWait       time.Duration // How long to wait for ack
	MaxAckPending int           // Max messages pending ack
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns default JetStream round source configuration
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		StreamName:    "AUCTION_ROUNDS",
		ConsumerName:  "auction-coordinator",
		SubjectFilter: "auction.rounds.>",
		MaxDeliver:    5,
		AckWait:       30 * time.Second,
		MaxAckPending: 100,
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// NATSSource subscribes to round config pushes over JetStream. The consumer
// uses DeliverLastPerSubjectPolicy: a restarting coordinator only ever wants
// the newest config, never a replay of stale ones.
type NATSSource struct {
	nc       *nats.Conn
	js       jetstream.JetStream
	consumer jetstream.Consumer
	config   NATSConfig
	rounds   chan models.RoundConfig
}

// NewNATSSource connects to NATS and sets up the durable consumer.
func NewNATSSource(config NATSConfig) (*NATSSource, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	s := &NATSSource{
		nc:     nc,
		js:     js,
		config: config,
		rounds: make(chan models.RoundConfig, 16),
	}

	if err := s.ensureConsumer(context.Background()); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure consumer: %w", err)
	}

	return s, nil
}

// Rounds returns the channel of pushed round configs.
func (s *NATSSource) Rounds() <-chan models.RoundConfig {
	return s.rounds
}

// ensureConsumer creates or gets the JetStream consumer
func (s *NATSSource) ensureConsumer(ctx context.Context) error {
	stream, err := s.js.Stream(ctx, s.config.StreamName)
	if err != nil {
		return fmt.Errorf("get stream: %w", err)
	}

	consumerConfig := jetstream.ConsumerConfig{
		Name:          s.config.ConsumerName,
		Durable:       s.config.ConsumerName,
		Description:   "Auction coordinator round config consumer",
		FilterSubject: s.config.SubjectFilter,
		DeliverPolicy: jetstream.DeliverLastPerSubjectPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    s.config.MaxDeliver,
		AckWait:       s.config.AckWait,
		MaxAckPending: s.config.MaxAckPending,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
	}

	consumer, err := stream.Consumer(ctx, s.config.ConsumerName)
	if err != nil {
		consumer, err = stream.CreateConsumer(ctx, consumerConfig)
		if err != nil {
			return fmt.Errorf("create consumer: %w", err)
		}
		log.Info().
			Str("consumer", s.config.ConsumerName).
			Str("stream", s.config.StreamName).
			Msg("created JetStream consumer")
	} else {
		log.Info().
			Str("consumer", s.config.ConsumerName).
			Str("stream", s.config.StreamName).
			Msg("using existing JetStream consumer")
	}

	s.consumer = consumer
	return nil
}

// Start begins consuming round config pushes until the context is cancelled.
func (s *NATSSource) Start(ctx context.Context) error {
	log.Info().
		Str("consumer", s.config.ConsumerName).
		Str("stream", s.config.StreamName).
		Msg("starting round config consumer")

	messageCh := make(chan jetstream.Msg, 16)

	consumeCtx, err := s.consumer.Consume(func(msg jetstream.Msg) {
		select {
		case messageCh <- msg:
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("round config consumer shutting down")
			s.nc.Close()
			return nil
		case msg := <-messageCh:
			cfg, err := Decode(msg.Data())
			if err != nil {
				// A malformed config never gets better on redelivery
				log.Error().
					Err(err).
					Str("subject", msg.Subject()).
					Msg("terminating undecodable round config message")
				msg.Term()
				continue
			}

			select {
			case s.rounds <- cfg:
				msg.Ack()
				log.Info().
					Str("round", cfg.Name).
					Str("subject", msg.Subject()).
					Msg("round config received")
			case <-ctx.Done():
				msg.Nak()
			}
		}
	}
}
