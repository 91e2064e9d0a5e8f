package types

import "time"

// AuthInfo identifies the acting user by password or by session token.
type AuthInfo struct {
	UserID   int64  `json:"user_id"`
	Password string `json:"password,omitempty"`
	Token    string `json:"token,omitempty"`
}

// UserRecord is the external form of a user, used both for reads and as a
// bulk import record. FollowerIDs and FollowingIDs are the user's edges.
type UserRecord struct {
	ID           int64   `json:"id" validate:"gt=0"`
	Name         string  `json:"name" validate:"required"`
	Gender       string  `json:"gender" validate:"oneof=Male Female"`
	Age          int     `json:"age" validate:"gt=0"`
	Followers    int64   `json:"followers"`
	Following    int64   `json:"following"`
	FollowerIDs  []int64 `json:"follower_ids"`
	FollowingIDs []int64 `json:"following_ids"`
	Password     string  `json:"password,omitempty"`
	IsDeleted    bool    `json:"is_deleted"`
}

// Nutrition groups the optional per-serving nutrition facts of a recipe.
type Nutrition struct {
	Calories            *float64 `json:"calories,omitempty"`
	FatContent          *float64 `json:"fat_content,omitempty"`
	SaturatedFatContent *float64 `json:"saturated_fat_content,omitempty"`
	CholesterolContent  *float64 `json:"cholesterol_content,omitempty"`
	SodiumContent       *float64 `json:"sodium_content,omitempty"`
	CarbohydrateContent *float64 `json:"carbohydrate_content,omitempty"`
	FiberContent        *float64 `json:"fiber_content,omitempty"`
	SugarContent        *float64 `json:"sugar_content,omitempty"`
	ProteinContent      *float64 `json:"protein_content,omitempty"`
}

// RecipeRecord is the external form of a recipe. AggregatedRating and
// ReviewCount are ignored on import and recomputed from reviews.
type RecipeRecord struct {
	ID               int64      `json:"id" validate:"gt=0"`
	Name             string     `json:"name" validate:"required"`
	AuthorID         int64      `json:"author_id" validate:"gt=0"`
	AuthorName       string     `json:"author_name,omitempty"`
	Description      string     `json:"description,omitempty"`
	Category         string     `json:"category,omitempty"`
	CookTime         *string    `json:"cook_time,omitempty"`
	PrepTime         *string    `json:"prep_time,omitempty"`
	TotalTime        *string    `json:"total_time,omitempty"`
	DatePublished    *time.Time `json:"date_published,omitempty"`
	AggregatedRating float64    `json:"aggregated_rating"`
	ReviewCount      int64      `json:"review_count"`
	Ingredients      []string   `json:"ingredients"`
	Nutrition
	RecipeServings *int    `json:"recipe_servings,omitempty"`
	RecipeYield    *string `json:"recipe_yield,omitempty"`
}

// ReviewRecord is the external form of a review. Likes lists the ids of the
// users who like it.
type ReviewRecord struct {
	ID            int64     `json:"id" validate:"gt=0"`
	RecipeID      int64     `json:"recipe_id" validate:"gt=0"`
	AuthorID      int64     `json:"author_id" validate:"gt=0"`
	AuthorName    string    `json:"author_name,omitempty"`
	Rating        int       `json:"rating" validate:"min=1,max=5"`
	Review        string    `json:"review"`
	DateSubmitted time.Time `json:"date_submitted" validate:"required"`
	DateModified  time.Time `json:"date_modified" validate:"required,gtefield=DateSubmitted"`
	Likes         []int64   `json:"likes"`
}

// Batch is one bulk import payload.
type Batch struct {
	Users   []UserRecord   `json:"users"`
	Recipes []RecipeRecord `json:"recipes"`
	Reviews []ReviewRecord `json:"reviews"`
}

// FeedItem is one entry of a user's feed.
type FeedItem struct {
	RecipeID         int64      `json:"recipe_id"`
	Name             string     `json:"name"`
	AuthorID         int64      `json:"author_id"`
	AuthorName       string     `json:"author_name"`
	DatePublished    *time.Time `json:"date_published"`
	AggregatedRating float64    `json:"aggregated_rating"`
	ReviewCount      int64      `json:"review_count"`
}

type FollowRatio struct {
	UserID    int64   `json:"user_id"`
	Name      string  `json:"name"`
	Followers int64   `json:"followers"`
	Following int64   `json:"following"`
	Ratio     float64 `json:"ratio"`
}

type CaloriePair struct {
	RecipeA    int64   `json:"recipe_a"`
	RecipeB    int64   `json:"recipe_b"`
	CaloriesA  float64 `json:"calories_a"`
	CaloriesB  float64 `json:"calories_b"`
	Difference float64 `json:"difference"`
}

type ComplexRecipe struct {
	RecipeID        int64  `json:"recipe_id"`
	Name            string `json:"name"`
	IngredientCount int64  `json:"ingredient_count"`
}
