package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/quizbid/go/internal/dbconfig"
	"github.com/mcdev12/quizbid/go/internal/models"
)

// roundFile mirrors the YAML round definition
type roundFile struct {
	Name           string `yaml:"name"`
	FloorBid       int    `yaml:"floor_bid"`
	ServiceEnabled bool   `yaml:"service_enabled"`
	Questions      []struct {
		ID        string `yaml:"id"`
		Allocated bool   `yaml:"allocated"`
	} `yaml:"questions"`
}

func main() {
	file := flag.String("file", "round.yaml", "path to the round definition")
	mode := flag.String("mode", "postgres", "where to publish the round: postgres or nats")
	natsURL := flag.String("nats-url", nats.DefaultURL, "NATS server URL (nats mode)")
	subject := flag.String("subject", "auction.rounds.current", "JetStream subject (nats mode)")
	flag.Parse()

	// 1) Load the YAML round definition
	data, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read round file: %v\n", err)
		os.Exit(1)
	}
	var rf roundFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal round file: %v\n", err)
		os.Exit(1)
	}

	cfg := models.RoundConfig{
		Name:           rf.Name,
		FloorBid:       rf.FloorBid,
		ServiceEnabled: rf.ServiceEnabled,
	}
	for _, q := range rf.Questions {
		cfg.Questions = append(cfg.Questions, models.Question{ID: q.ID, Allocated: q.Allocated})
	}

	switch *mode {
	case "postgres":
		if err := publishToPostgres(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "publish to postgres: %v\n", err)
			os.Exit(1)
		}
	case "nats":
		if err := publishToNATS(cfg, *natsURL, *subject); err != nil {
			fmt.Fprintf(os.Stderr, "publish to nats: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", *mode)
		os.Exit(1)
	}

	fmt.Printf("Round %q published: floor %d, %d questions, enabled=%v\n",
		cfg.Name, cfg.FloorBid, len(cfg.Questions), cfg.ServiceEnabled)
}

// publishToPostgres upserts the round as the single active row; the
// auction_round_changed trigger notifies the running coordinator.
func publishToPostgres(cfg models.RoundConfig) error {
	dbCfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(context.Background(), dbCfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer pool.Close()

	questions, err := json.Marshal(cfg.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}

	_, err = pool.Exec(context.Background(), `
        UPDATE auction_rounds SET active = FALSE WHERE active AND name <> $1
    `, cfg.Name)
	if err != nil {
		return fmt.Errorf("deactivate previous rounds: %w", err)
	}

	_, err = pool.Exec(context.Background(), `
        INSERT INTO auction_rounds (name, floor_bid, service_enabled, questions, active, updated_at)
        VALUES ($1, $2, $3, $4, TRUE, now())
        ON CONFLICT (name) DO UPDATE SET
          floor_bid = EXCLUDED.floor_bid,
          service_enabled = EXCLUDED.service_enabled,
          questions = EXCLUDED.questions,
          active = TRUE,
          updated_at = now()
    `, cfg.Name, cfg.FloorBid, cfg.ServiceEnabled, questions)
	if err != nil {
		return fmt.Errorf("upsert round: %w", err)
	}
	return nil
}

// publishToNATS publishes the round config to the AUCTION_ROUNDS stream.
func publishToNATS(cfg models.RoundConfig, url, subject string) error {
	nc, err := nats.Connect(url)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}

	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal round config: %w", err)
	}

	if _, err := js.Publish(context.Background(), subject, payload); err != nil {
		return fmt.Errorf("publish round config: %w", err)
	}
	return nil
}
