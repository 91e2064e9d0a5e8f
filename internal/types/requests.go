package types

import "time"

// RegisterUserRequest carries a new account. Birthday is yyyy-MM-dd.
type RegisterUserRequest struct {
	Name     string `json:"name" validate:"required"`
	Gender   string `json:"gender" validate:"required"`
	Birthday string `json:"birthday" validate:"required,datetime=2006-01-02"`
	Password string `json:"password" validate:"required"`
}

type UpdateProfileRequest struct {
	Gender *string `json:"gender,omitempty"`
	Age    *int    `json:"age,omitempty"`
}

// CreateRecipeRequest carries a new recipe. Times are ISO-8601 durations.
type CreateRecipeRequest struct {
	Name          string     `json:"name" validate:"required"`
	Description   string     `json:"description"`
	Category      string     `json:"category"`
	CookTime      *string    `json:"cook_time,omitempty"`
	PrepTime      *string    `json:"prep_time,omitempty"`
	DatePublished *time.Time `json:"date_published,omitempty"`
	Ingredients   []string   `json:"ingredients"`
	Nutrition
	RecipeServings *int    `json:"recipe_servings,omitempty"`
	RecipeYield    *string `json:"recipe_yield,omitempty"`
}

// Recipe search sort keys.
const (
	SortRatingDesc   = "rating_desc"
	SortDateDesc     = "date_desc"
	SortCaloriesAsc  = "calories_asc"
	SortLikesDesc    = "likes_desc"
	SortDefaultOrder = ""
)

// RecipeFilter narrows a recipe search. Empty fields do not filter.
type RecipeFilter struct {
	Keyword   string   `json:"keyword,omitempty"`
	Category  string   `json:"category,omitempty"`
	MinRating *float64 `json:"min_rating,omitempty"`
	Sort      string   `json:"sort,omitempty"`
}
