package config

import (
	"errors"
	"os"
)

type Config struct {
	Port        string
	DatabaseDSN string
	JWTSecret   string
	Env         string
}

// Load reads configuration from environment with sensible defaults.
// JWT_SECRET is the one variable without a default: tokens must never be
// signed with a guessable key, so startup fails when it is absent.
func Load() (Config, error) {
	cfg := Config{}
	cfg.Port = getEnv("PORT", "8080")
	cfg.DatabaseDSN = getEnv("DATABASE_DSN", "file:installments.db")
	cfg.Env = getEnv("APP_ENV", "development")
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return cfg, errors.New("JWT_SECRET is not set")
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
