// Package main implements the entry point for the examgen API server, which
// orchestrates progressive batch generation of exam questions through an
// external LLM service.
package main

import (
	"context"
	"flag"
	"log"
	"os"
)

func main() {
	migrateCmd := flag.String("migrate", "", "run a migration command (up, down, status) and exit")
	flag.Parse()

	cfg, err := loadAppConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := setupAppLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}

	db, err := setupAppDatabase(cfg, logger)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if *migrateCmd != "" {
		if err := runMigrations(db, *migrateCmd, logger); err != nil {
			logger.Error("Migration failed", "command", *migrateCmd, "error", err)
			os.Exit(1)
		}
		if err := db.Close(); err != nil {
			logger.Error("Error closing database connection", "error", err)
		}
		return
	}

	// Always bring the schema up to date on normal startup.
	if err := runMigrations(db, "up", logger); err != nil {
		logger.Error("Failed to apply migrations", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	app, err := newApplication(ctx, cfg, logger, db)
	if err != nil {
		logger.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}
