// Command seed generates a demo batch of users, recipes and reviews and
// either writes it as JSON or loads it through the bulk importer.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/pageza/recipeshare/backend/config"
	"github.com/pageza/recipeshare/backend/internal/database"
	"github.com/pageza/recipeshare/backend/internal/importer"
	"github.com/pageza/recipeshare/backend/internal/logging"
	"github.com/pageza/recipeshare/backend/internal/security"
)

const (
	defaultUsers   = 20
	defaultRecipes = 25
	defaultReviews = 80
)

func main() {
	users := flag.Int("users", defaultUsers, "number of users")
	recipes := flag.Int("recipes", defaultRecipes, "number of recipes")
	reviews := flag.Int("reviews", defaultReviews, "number of reviews")
	seed := flag.Uint64("seed", 1, "random seed")
	out := flag.String("out", "", "write the batch to this file instead of importing it")
	flag.Parse()

	if *users < 1 || *recipes < 1 || *reviews < 0 {
		logging.Error().Msg("need at least one user and one recipe")
		os.Exit(2)
	}
	batch := generate(*seed, *users, *recipes, *reviews, time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC))

	if *out != "" {
		data, err := json.MarshalIndent(batch, "", "  ")
		if err != nil {
			logging.Error().Err(err).Msg("failed to encode batch")
			os.Exit(1)
		}
		if err := os.WriteFile(*out, data, 0o644); err != nil {
			logging.Error().Err(err).Str("path", *out).Msg("failed to write batch")
			os.Exit(1)
		}
		logging.Info().Str("path", *out).Int("users", *users).Int("recipes", *recipes).Int("reviews", *reviews).Msg("batch written")
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Error().Err(err).Msg("failed to load configuration")
		os.Exit(1)
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	db, err := database.Open(cfg.Database)
	if err != nil {
		logging.Error().Err(err).Msg("failed to connect to database")
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		logging.Error().Err(err).Msg("migration failed")
		os.Exit(1)
	}
	hasher, err := security.NewPasswordHasher(cfg.Security.PasswordHasher)
	if err != nil {
		logging.Error().Err(err).Msg("invalid password hasher")
		os.Exit(1)
	}

	runner := database.NewRunner(db, cfg.Database.TxTimeout, cfg.Database.MaxRetries)
	im := importer.New(runner, cfg.Import, hasher, nil, nil)
	if _, err := im.Import(context.Background(), batch); err != nil {
		logging.Error().Err(err).Msg("seed import failed")
		os.Exit(1)
	}
}
