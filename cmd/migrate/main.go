package main

import (
	"context"

	"paragon-backend/internal/config"
	"paragon-backend/internal/logger"
	"paragon-backend/internal/store"
)

// systemCategories mirrors the category vocabulary the receipt parser is
// prompted with, so parsed item categories resolve without per-user setup.
var systemCategories = []string{
	"Food",
	"Fast Food",
	"Snacks",
	"Transport",
	"Utilities",
	"Entertainment",
	"Health",
	"Alcohol",
	"Other",
}

func main() {
	cfg := config.Load()
	log := logger.New()

	db, err := store.Open(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	log.Info().Msg("Running schema migration")
	if err := db.AutoMigrate(); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}

	log.Info().Msg("Seeding system categories")
	if err := db.SeedSystemCategories(context.Background(), systemCategories); err != nil {
		log.Fatal().Err(err).Msg("Seeding failed")
	}

	log.Info().Msg("Migration complete")
}
