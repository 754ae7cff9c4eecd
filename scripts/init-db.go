package main

import (
	"context"
	"flag"

	"quote_manager/internal/config"
	"quote_manager/internal/database"
	"quote_manager/internal/migrations"
)

func main() {
	reset := flag.Bool("reset", false, "drop every table before migrating")
	flag.Parse()

	// Load configuration
	cfg := config.Load()
	logger := config.NewLogger(cfg.LogLevel)

	db, err := database.Initialize(database.Options{
		Driver:   cfg.DatabaseDriver,
		URL:      cfg.DatabaseURL,
		LogLevel: cfg.DatabaseLogLevel,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}

	if err := migrations.RunMigrations(context.Background(), db, *reset, logger); err != nil {
		logger.WithError(err).Fatal("database initialization failed")
	}
	logger.Info("database initialization completed")
}
