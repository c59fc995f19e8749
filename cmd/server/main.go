package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/paytrace/installments/internal/config"
	"github.com/paytrace/installments/internal/db"
	"github.com/paytrace/installments/internal/server"
)

func main() {
	// .env is a dev convenience; absence is not an error.
	_ = godotenv.Load()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	conn, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		slog.Error("connect database", "error", err)
		os.Exit(1)
	}
	if err := db.Migrate(conn, cfg.DatabaseDSN); err != nil {
		slog.Error("migrate database", "error", err)
		os.Exit(1)
	}

	handler := server.New(conn, cfg)
	addr := ":" + cfg.Port
	slog.Info("listening", "addr", addr, "env", cfg.Env)
	if err := http.ListenAndServe(addr, handler); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
