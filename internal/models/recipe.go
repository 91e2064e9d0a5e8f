package models

import "time"

// Recipe is an authored recipe. AggregatedRating and ReviewCount are derived
// from the reviews table and written only by the rating aggregation path.
type Recipe struct {
	ID                  int64      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	AuthorID            int64      `gorm:"not null;index" json:"author_id"`
	Author              *User      `gorm:"foreignKey:AuthorID" json:"-"`
	Name                string     `gorm:"not null" json:"name"`
	Description         string     `gorm:"type:text" json:"description"`
	Category            string     `gorm:"index" json:"category"`
	CookTime            *string    `json:"cook_time"`
	PrepTime            *string    `json:"prep_time"`
	TotalTime           *string    `json:"total_time"`
	DatePublished       *time.Time `gorm:"index" json:"date_published"`
	AggregatedRating    float64    `gorm:"not null;default:0;check:chk_recipes_rating,aggregated_rating >= 0 AND aggregated_rating <= 5" json:"aggregated_rating"`
	ReviewCount         int64      `gorm:"not null;default:0;check:chk_recipes_review_count,review_count >= 0" json:"review_count"`
	Calories            *float64   `json:"calories"`
	FatContent          *float64   `json:"fat_content"`
	SaturatedFatContent *float64   `json:"saturated_fat_content"`
	CholesterolContent  *float64   `json:"cholesterol_content"`
	SodiumContent       *float64   `json:"sodium_content"`
	CarbohydrateContent *float64   `json:"carbohydrate_content"`
	FiberContent        *float64   `json:"fiber_content"`
	SugarContent        *float64   `json:"sugar_content"`
	ProteinContent      *float64   `json:"protein_content"`
	RecipeServings      *int       `json:"recipe_servings"`
	RecipeYield         *string    `json:"recipe_yield"`
}

func (Recipe) TableName() string {
	return "recipes"
}

// RecipeIngredient is one ingredient line of a recipe. The composite key
// rejects the same part twice within one recipe.
type RecipeIngredient struct {
	RecipeID       int64   `gorm:"primaryKey;autoIncrement:false" json:"recipe_id"`
	IngredientPart string  `gorm:"primaryKey" json:"ingredient_part"`
	Recipe         *Recipe `gorm:"foreignKey:RecipeID" json:"-"`
}

func (RecipeIngredient) TableName() string {
	return "recipe_ingredients"
}
