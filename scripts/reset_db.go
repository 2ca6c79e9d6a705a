package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/adaptive-vault/aev/internal/logger"
	"github.com/adaptive-vault/aev/internal/state"
)

func main() {
	// Initialize logger
	logLevel := os.Getenv("AEV_LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logger.Initialize(logLevel)
	log.Info().Msg("Starting database reset script...")

	// Load environment variables from .env file
	err := godotenv.Load()
	if err != nil {
		log.Warn().Msg("Warning: .env file not found or error loading .env file. Relying on OS environment variables.")
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal().Msg("DATABASE_URL environment variable not set.")
	}

	if err := state.InitDB(databaseURL); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database connection")
	}
	defer state.CloseDB()

	log.Info().Msg("Connected to database. Attempting to drop all tables...")

	// Drop all tables - this is the "reset" part
	dropTablesQuery := `
		DROP TABLE IF EXISTS settlement_snapshots CASCADE;
		DROP TABLE IF EXISTS engine_parameters CASCADE;
		DROP TABLE IF EXISTS settlement_counter CASCADE;
	`

	_, err = state.DB.Exec(dropTablesQuery)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to drop tables")
	}
	log.Info().Msg("Successfully dropped all tables")

	// Recreate the schema
	log.Info().Msg("Recreating database schema...")
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to recreate database schema")
	}
	log.Info().Msg("Database schema successfully recreated")

	log.Info().Msg("Database reset complete!")
}
