package testhelpers

import (
	"testing"

	"github.com/pageza/recipeshare/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupSQLiteIsIsolated(t *testing.T) {
	first := SetupSQLite(t)
	SeedUser(t, first, 1, "alice")

	second := SetupSQLite(t)
	var count int64
	require.NoError(t, second.Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSeedRecipeStoresIngredients(t *testing.T) {
	db := SetupSQLite(t)
	SeedUser(t, db, 1, "alice")
	SeedRecipe(t, db, 10, 1, "Soup", Float(120), "salt", "water")

	var parts []string
	require.NoError(t, db.Model(&models.RecipeIngredient{}).Where("recipe_id = ?", 10).
		Order("ingredient_part").Pluck("ingredient_part", &parts).Error)
	assert.Equal(t, []string{"salt", "water"}, parts)
}
