package main

import (
	"os"
	"strconv"
)

// Config holds process-level settings read from the environment.
type Config struct {
	Port            string
	RoundSource     string // "postgres" or "nats"
	NATSURL         string
	AllocationURL   string
	AllocationToken string
}

func loadConfig() Config {
	return Config{
		Port:            getEnv("PORT", "8080"),
		RoundSource:     getEnv("ROUND_SOURCE", "postgres"),
		NATSURL:         getEnv("NATS_URL", "nats://localhost:4222"),
		AllocationURL:   getEnv("ALLOCATION_URL", "http://localhost:9090"),
		AllocationToken: os.Getenv("ALLOCATION_TOKEN"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
