package service

import (
	"context"

	"github.com/pageza/recipeshare/backend/internal/pagination"
	"github.com/pageza/recipeshare/backend/internal/types"
)

// IUserService defines account operations
type IUserService interface {
	Register(ctx context.Context, req *types.RegisterUserRequest) (int64, error)
	Login(ctx context.Context, auth types.AuthInfo) (int64, error)
	IssueToken(ctx context.Context, auth types.AuthInfo) (string, error)
	DeleteAccount(ctx context.Context, auth types.AuthInfo, userID int64) (bool, error)
	UpdateProfile(ctx context.Context, auth types.AuthInfo, req *types.UpdateProfileRequest) error
	GetUser(ctx context.Context, userID int64) (*types.UserRecord, error)
}

// ISocialService defines follow graph operations
type ISocialService interface {
	Follow(ctx context.Context, auth types.AuthInfo, targetID int64) (bool, error)
	Unfollow(ctx context.Context, auth types.AuthInfo, targetID int64) (bool, error)
	HighestFollowRatio(ctx context.Context) (*types.FollowRatio, error)
	Feed(ctx context.Context, auth types.AuthInfo, category string, page pagination.Request) (pagination.Result[types.FeedItem], error)
}

// IRecipeService defines recipe operations
type IRecipeService interface {
	CreateRecipe(ctx context.Context, auth types.AuthInfo, req *types.CreateRecipeRequest) (int64, error)
	DeleteRecipe(ctx context.Context, auth types.AuthInfo, recipeID int64) error
	UpdateTimes(ctx context.Context, auth types.AuthInfo, recipeID int64, cookTime, prepTime *string) error
	GetRecipe(ctx context.Context, recipeID int64) (*types.RecipeRecord, error)
	GetRecipeName(ctx context.Context, recipeID int64) (string, error)
	SearchRecipes(ctx context.Context, filter types.RecipeFilter, page pagination.Request) (pagination.Result[types.RecipeRecord], error)
	ClosestCaloriePair(ctx context.Context) (*types.CaloriePair, error)
	TopComplexRecipes(ctx context.Context, limit int) ([]types.ComplexRecipe, error)
}

// IReviewService defines review and like operations
type IReviewService interface {
	AddReview(ctx context.Context, auth types.AuthInfo, recipeID int64, rating int, body string) (int64, error)
	EditReview(ctx context.Context, auth types.AuthInfo, recipeID, reviewID int64, rating int, body string) error
	DeleteReview(ctx context.Context, auth types.AuthInfo, recipeID, reviewID int64) error
	LikeReview(ctx context.Context, auth types.AuthInfo, reviewID int64) (int64, error)
	UnlikeReview(ctx context.Context, auth types.AuthInfo, reviewID int64) (int64, error)
	ListByRecipe(ctx context.Context, recipeID int64, sort string, page pagination.Request) (pagination.Result[types.ReviewRecord], error)
}
