package main

import (
	"database/sql"
	"fmt"

	"github.com/mcdev12/quizbid/go/internal/allocation"
	"github.com/mcdev12/quizbid/go/internal/auction"
	"github.com/mcdev12/quizbid/go/internal/dbconfig"
	"github.com/mcdev12/quizbid/go/internal/gateway"
	"github.com/mcdev12/quizbid/go/internal/roundcfg"
)

type Services struct {
	Store       *auction.Store
	Coordinator *auction.Coordinator
	Hub         *gateway.ConnectionManager
	WSHandler   *gateway.WebSocketHandler
	Source      roundcfg.Source
	DB          *sql.DB // nil unless the postgres round source is in use
}

func setupServices(cfg Config) (*Services, error) {
	// Wire up: store → broadcaster hook, coordinator → store + allocator,
	// session layer → coordinator
	store := auction.NewStore()
	hub := gateway.NewConnectionManager(gateway.DefaultConnectionConfig(), store.Snapshot)
	store.OnCommit(hub.BroadcastSnapshot)

	allocCfg := allocation.DefaultConfig()
	allocCfg.BaseURL = cfg.AllocationURL
	allocCfg.Token = cfg.AllocationToken
	allocator := allocation.NewClient(allocCfg)

	coordinator := auction.NewCoordinator(store, allocator)
	wsHandler := gateway.NewWebSocketHandler(hub, coordinator)

	services := &Services{
		Store:       store,
		Coordinator: coordinator,
		Hub:         hub,
		WSHandler:   wsHandler,
	}

	switch cfg.RoundSource {
	case "postgres":
		dbCfg := dbconfig.NewConfigFromEnv()
		db, err := setupDatabase(dbCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to set up round store database: %w", err)
		}
		pgCfg := roundcfg.DefaultPGConfig()
		pgCfg.DatabaseURL = dbCfg.DSN()
		source, err := roundcfg.NewPGSource(db, pgCfg)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create postgres round source: %w", err)
		}
		services.DB = db
		services.Source = source

	case "nats":
		natsCfg := roundcfg.DefaultNATSConfig()
		natsCfg.URL = cfg.NATSURL
		source, err := roundcfg.NewNATSSource(natsCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create NATS round source: %w", err)
		}
		services.Source = source

	default:
		return nil, fmt.Errorf("unknown round source %q", cfg.RoundSource)
	}

	return services, nil
}
