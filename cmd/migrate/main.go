package main

import (
	"log/slog"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/tradepost-erp/tradepost/internal/app"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dir := "migrations"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	sqlDB, err := goose.OpenDBWithDriver("pgx", cfg.PGDSN)
	if err != nil {
		logger.Error("open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = sqlDB.Close() }()

	if err := goose.Up(sqlDB, dir); err != nil {
		logger.Error("migrations failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("migrations applied", slog.String("dir", dir))
}
