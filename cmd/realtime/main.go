package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/tritonJS826/ai-crm/internal/server"
	"github.com/tritonJS826/ai-crm/internal/storage/bunstore"
	"github.com/tritonJS826/ai-crm/pkg/config"
	"github.com/tritonJS826/ai-crm/pkg/logging"
)

func main() {
	logger := logging.New(logging.LevelInfo)
	slog.SetDefault(logger)

	cfg, err := config.Load(logger, "config")
	if err != nil {
		logger.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger = logging.New(logging.ParseLevel(cfg.LogLevel))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sqldb, err := sql.Open(sqliteshim.DriverName(), cfg.Database.DSN)
	if err != nil {
		logger.Error("Failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	db := bun.NewDB(sqldb, sqlitedialect.New())
	defer db.Close()

	participants := bunstore.NewParticipantStore(db)
	if err := participants.Init(ctx); err != nil {
		logger.Error("Failed to initialize participant store", slog.Any("error", err))
		os.Exit(1)
	}

	app := server.NewApp(logger, ctx, cfg, participants)
	if err := app.Run(); err != nil {
		logger.Error("Application run failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Application shut down successfully.")
}
