package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/pageza/recipeshare/backend/internal/apperror"
	"github.com/pageza/recipeshare/backend/internal/database"
	"github.com/pageza/recipeshare/backend/internal/models"
	"gorm.io/gorm"
)

// RatingService keeps recipes.aggregated_rating and recipes.review_count in
// step with the reviews table.
type RatingService struct{}

// Refresh recomputes the aggregates of one recipe on tx. The caller must
// already hold the recipe row lock so concurrent refreshes serialize.
func (RatingService) Refresh(ctx context.Context, tx *gorm.DB, recipeID int64) error {
	const op = "rating.refresh"
	tx = tx.WithContext(ctx)

	var exists int64
	if err := tx.Model(&models.Recipe{}).Where("id = ?", recipeID).Count(&exists).Error; err != nil {
		return fmt.Errorf("failed to check recipe: %w", err)
	}
	if exists == 0 {
		return apperror.NotFound(op, "recipe %d not found", recipeID)
	}

	var agg struct {
		Count int64
		Total int64
	}
	if err := tx.Model(&models.Review{}).
		Select("COUNT(*) AS count, COALESCE(SUM(rating), 0) AS total").
		Where("recipe_id = ?", recipeID).
		Scan(&agg).Error; err != nil {
		return fmt.Errorf("failed to aggregate reviews: %w", err)
	}

	rating := RoundRating(agg.Total, agg.Count)

	if err := tx.Model(&models.Recipe{}).Where("id = ?", recipeID).
		Updates(map[string]interface{}{"aggregated_rating": rating, "review_count": agg.Count}).Error; err != nil {
		return fmt.Errorf("failed to store recipe aggregates: %w", err)
	}
	return nil
}

// RoundRating returns total/count rounded half-up to two decimals, or 0
// when count is zero. The rounding is done on integers so exact halves such
// as 41/40 round up; database.RoundedAverageSQL computes the same value.
func RoundRating(total, count int64) float64 {
	if count <= 0 {
		return 0
	}
	return float64((200*total+count)/(2*count)) / 100
}

// lockRecipe takes the recipe row lock and returns the row.
func lockRecipe(tx *gorm.DB, op string, recipeID int64) (*models.Recipe, error) {
	var recipe models.Recipe
	if err := database.ForUpdate(tx).Where("id = ?", recipeID).Take(&recipe).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound(op, "recipe %d not found", recipeID)
		}
		return nil, fmt.Errorf("failed to lock recipe: %w", err)
	}
	return &recipe, nil
}
