package testhelpers

import (
	"testing"
	"time"

	"github.com/pageza/recipeshare/backend/internal/models"
	"gorm.io/gorm"
)

// TestPassword is the stored plaintext password of every seeded user.
const TestPassword = "secret"

// SeedUser inserts a live user with TestPassword.
func SeedUser(t *testing.T, db *gorm.DB, id int64, name string) *models.User {
	t.Helper()
	user := &models.User{ID: id, Name: name, Gender: models.GenderFemale, Age: 30, Password: TestPassword}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to seed user %d: %v", id, err)
	}
	return user
}

// SeedRecipe inserts a recipe with the given calories (nil leaves them unset)
// and ingredient parts.
func SeedRecipe(t *testing.T, db *gorm.DB, id, authorID int64, name string, calories *float64, ingredients ...string) *models.Recipe {
	t.Helper()
	published := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(id) * time.Hour)
	recipe := &models.Recipe{
		ID:            id,
		AuthorID:      authorID,
		Name:          name,
		Category:      "Dinner",
		DatePublished: &published,
		Calories:      calories,
	}
	if err := db.Create(recipe).Error; err != nil {
		t.Fatalf("failed to seed recipe %d: %v", id, err)
	}
	for _, part := range ingredients {
		if err := db.Create(&models.RecipeIngredient{RecipeID: id, IngredientPart: part}).Error; err != nil {
			t.Fatalf("failed to seed ingredient %q: %v", part, err)
		}
	}
	return recipe
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// String returns a pointer to v.
func String(v string) *string {
	return &v
}
