package database

import (
	"fmt"

	"github.com/pageza/recipeshare/backend/internal/logging"
	"github.com/pageza/recipeshare/backend/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates every table, index and check constraint the
// services rely on.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	logging.Info().Str("dialect", db.Dialector.Name()).Msg("schema is up to date")
	return nil
}
