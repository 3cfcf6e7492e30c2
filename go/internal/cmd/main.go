package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg := loadConfig()
	if cfg.AllocationToken == "" {
		log.Fatal().Msg("ALLOCATION_TOKEN environment variable is required")
	}

	log.Info().
		Str("port", cfg.Port).
		Str("round_source", cfg.RoundSource).
		Str("allocation_url", cfg.AllocationURL).
		Msg("starting auction coordinator")

	services, err := setupServices(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up services")
	}
	if services.DB != nil {
		defer services.DB.Close()
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start broadcast fan-out
	go services.Hub.Start(ctx)

	// Start round config subscription
	go func() {
		if err := services.Source.Start(ctx); err != nil && ctx.Err() == nil {
			log.Fatal().Err(err).Msg("round source failed")
		}
	}()

	// Start the coordinator consuming round pushes
	go func() {
		if err := services.Coordinator.Run(ctx, services.Source.Rounds()); err != nil && ctx.Err() == nil {
			log.Fatal().Err(err).Msg("coordinator failed")
		}
	}()

	// Start HTTP server
	server := setupServer(cfg, services)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	// Stop broadcast loop and subscriptions
	cancel()

	// Give services time to clean up
	time.Sleep(1 * time.Second)

	log.Info().Msg("auction coordinator shutdown complete")
}
