package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pageza/recipeshare/backend/internal/apperror"
	"github.com/pageza/recipeshare/backend/internal/database"
	"github.com/pageza/recipeshare/backend/internal/events"
	"github.com/pageza/recipeshare/backend/internal/idalloc"
	"github.com/pageza/recipeshare/backend/internal/models"
	"github.com/pageza/recipeshare/backend/internal/pagination"
	"github.com/pageza/recipeshare/backend/internal/security"
	"github.com/pageza/recipeshare/backend/internal/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReviewService handles reviews and review likes. Every review mutation
// refreshes the recipe aggregates in the same transaction.
type ReviewService struct {
	runner  *database.Runner
	auth    authenticator
	events  events.Publisher
	ratings RatingService
	now     func() time.Time
}

var _ IReviewService = (*ReviewService)(nil)

func NewReviewService(runner *database.Runner, hasher security.PasswordHasher, tokens *security.TokenIssuer, pub events.Publisher) *ReviewService {
	return &ReviewService{
		runner: runner,
		auth:   authenticator{hasher: hasher, tokens: tokens},
		events: pub,
		now:    time.Now,
	}
}

func checkRating(op string, rating int) error {
	if rating < models.MinRating || rating > models.MaxRating {
		return apperror.Validation(op, "rating must be within %d..%d, got %d", models.MinRating, models.MaxRating, rating)
	}
	return nil
}

// AddReview stores a review by the acting user and returns its id.
func (s *ReviewService) AddReview(ctx context.Context, auth types.AuthInfo, recipeID int64, rating int, body string) (int64, error) {
	const op = "review.add"
	if err := checkRating(op, rating); err != nil {
		return 0, err
	}

	var id int64
	err := s.runner.Transact(ctx, op, func(tx *gorm.DB) error {
		actor, err := s.auth.authenticate(tx, op, auth)
		if err != nil {
			return err
		}
		if _, err := lockRecipe(tx, op, recipeID); err != nil {
			return err
		}
		next, err := idalloc.Next(ctx, tx, "reviews")
		if err != nil {
			return err
		}

		now := s.now().UTC()
		review := &models.Review{
			ID:            next,
			RecipeID:      recipeID,
			AuthorID:      actor.ID,
			Rating:        rating,
			Body:          body,
			DateSubmitted: now,
			DateModified:  now,
		}
		if err := tx.Create(review).Error; err != nil {
			return fmt.Errorf("failed to create review: %w", err)
		}
		id = next
		return s.ratings.Refresh(ctx, tx, recipeID)
	})
	if err != nil {
		return 0, err
	}

	s.reviewChanged(ctx, "added", recipeID, id)
	return id, nil
}

// EditReview replaces the rating and text of the acting user's review.
func (s *ReviewService) EditReview(ctx context.Context, auth types.AuthInfo, recipeID, reviewID int64, rating int, body string) error {
	const op = "review.edit"
	if err := checkRating(op, rating); err != nil {
		return err
	}

	err := s.runner.Transact(ctx, op, func(tx *gorm.DB) error {
		review, err := s.ownReview(tx, op, auth, recipeID, reviewID)
		if err != nil {
			return err
		}

		modified := s.now().UTC()
		if modified.Before(review.DateSubmitted) {
			modified = review.DateSubmitted
		}
		if err := tx.Model(&models.Review{}).Where("id = ?", reviewID).
			Updates(map[string]interface{}{"rating": rating, "review": body, "date_modified": modified}).Error; err != nil {
			return fmt.Errorf("failed to update review: %w", err)
		}
		return s.ratings.Refresh(ctx, tx, recipeID)
	})
	if err != nil {
		return err
	}

	s.reviewChanged(ctx, "edited", recipeID, reviewID)
	return nil
}

// DeleteReview removes the acting user's review and its likes.
func (s *ReviewService) DeleteReview(ctx context.Context, auth types.AuthInfo, recipeID, reviewID int64) error {
	const op = "review.delete"
	err := s.runner.Transact(ctx, op, func(tx *gorm.DB) error {
		if _, err := s.ownReview(tx, op, auth, recipeID, reviewID); err != nil {
			return err
		}
		if err := tx.Where("review_id = ?", reviewID).Delete(&models.ReviewLike{}).Error; err != nil {
			return fmt.Errorf("failed to delete review likes: %w", err)
		}
		if err := tx.Where("id = ?", reviewID).Delete(&models.Review{}).Error; err != nil {
			return fmt.Errorf("failed to delete review: %w", err)
		}
		return s.ratings.Refresh(ctx, tx, recipeID)
	})
	if err != nil {
		return err
	}

	s.reviewChanged(ctx, "deleted", recipeID, reviewID)
	return nil
}

// ownReview authenticates, locks the recipe and loads a review of that
// recipe written by the actor.
func (s *ReviewService) ownReview(tx *gorm.DB, op string, auth types.AuthInfo, recipeID, reviewID int64) (*models.Review, error) {
	actor, err := s.auth.authenticate(tx, op, auth)
	if err != nil {
		return nil, err
	}
	if _, err := lockRecipe(tx, op, recipeID); err != nil {
		return nil, err
	}

	var review models.Review
	if err := tx.Where("id = ? AND recipe_id = ?", reviewID, recipeID).Take(&review).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound(op, "review %d not found on recipe %d", reviewID, recipeID)
		}
		return nil, fmt.Errorf("failed to load review: %w", err)
	}
	if review.AuthorID != actor.ID {
		return nil, apperror.Authorization(op, "user %d is not the author of review %d", actor.ID, reviewID)
	}
	return &review, nil
}

// LikeReview records that the acting user likes a review and returns the
// review's like count. Liking twice has no further effect.
func (s *ReviewService) LikeReview(ctx context.Context, auth types.AuthInfo, reviewID int64) (int64, error) {
	const op = "review.like"
	var count int64
	err := s.runner.Transact(ctx, op, func(tx *gorm.DB) error {
		actor, review, err := s.likeTarget(tx, op, auth, reviewID)
		if err != nil {
			return err
		}
		if review.AuthorID == actor.ID {
			return apperror.Authorization(op, "self-reference: user %d cannot like their own review", actor.ID)
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.ReviewLike{ReviewID: reviewID, UserID: actor.ID}).Error; err != nil {
			return fmt.Errorf("failed to like review: %w", err)
		}
		count, err = countLikes(tx, reviewID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// UnlikeReview removes the acting user's like, if any, and returns the
// review's like count.
func (s *ReviewService) UnlikeReview(ctx context.Context, auth types.AuthInfo, reviewID int64) (int64, error) {
	const op = "review.unlike"
	var count int64
	err := s.runner.Transact(ctx, op, func(tx *gorm.DB) error {
		actor, _, err := s.likeTarget(tx, op, auth, reviewID)
		if err != nil {
			return err
		}
		if err := tx.Where("review_id = ? AND user_id = ?", reviewID, actor.ID).
			Delete(&models.ReviewLike{}).Error; err != nil {
			return fmt.Errorf("failed to unlike review: %w", err)
		}
		count, err = countLikes(tx, reviewID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *ReviewService) likeTarget(tx *gorm.DB, op string, auth types.AuthInfo, reviewID int64) (*models.User, *models.Review, error) {
	actor, err := s.auth.authenticate(tx, op, auth)
	if err != nil {
		return nil, nil, err
	}
	var review models.Review
	if err := tx.Select("id", "author_id").Where("id = ?", reviewID).Take(&review).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperror.NotFound(op, "review %d not found", reviewID)
		}
		return nil, nil, fmt.Errorf("failed to load review: %w", err)
	}
	return actor, &review, nil
}

func countLikes(tx *gorm.DB, reviewID int64) (int64, error) {
	var n int64
	if err := tx.Model(&models.ReviewLike{}).Where("review_id = ?", reviewID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count likes: %w", err)
	}
	return n, nil
}

type reviewRow struct {
	ID            int64
	RecipeID      int64
	AuthorID      int64
	AuthorName    string
	Rating        int
	Review        string
	DateSubmitted time.Time
	DateModified  time.Time
}

var reviewSortOrders = map[string]string{
	types.SortDefaultOrder: "reviews.date_modified DESC, reviews.id ASC",
	types.SortDateDesc:     "reviews.date_modified DESC, reviews.id ASC",
	types.SortLikesDesc:    "(SELECT COUNT(*) FROM review_likes WHERE review_likes.review_id = reviews.id) DESC, reviews.id ASC",
}

// ListByRecipe pages through the reviews of a recipe written by live users.
func (s *ReviewService) ListByRecipe(ctx context.Context, recipeID int64, sort string, page pagination.Request) (pagination.Result[types.ReviewRecord], error) {
	const op = "review.list"
	empty := pagination.Result[types.ReviewRecord]{Page: page.Page, Size: page.Size, Items: []types.ReviewRecord{}}

	order, ok := reviewSortOrders[sort]
	if !ok {
		return empty, apperror.Validation(op, "unknown sort %q", sort)
	}
	if err := page.Validate(); err != nil {
		return empty, err
	}

	db := s.runner.DB().WithContext(ctx)
	var exists int64
	if err := db.Model(&models.Recipe{}).Where("id = ?", recipeID).Count(&exists).Error; err != nil {
		return empty, fmt.Errorf("failed to check recipe: %w", err)
	}
	if exists == 0 {
		return empty, apperror.NotFound(op, "recipe %d not found", recipeID)
	}

	base := db.Model(&models.Review{}).
		Joins("JOIN users ON users.id = reviews.author_id").
		Where("reviews.recipe_id = ? AND users.is_deleted = ?", recipeID, false)
	rows, err := pagination.Query[reviewRow](ctx, base, page, pagination.Window{
		Select: "reviews.id AS id, reviews.recipe_id AS recipe_id, reviews.author_id AS author_id, " +
			"users.name AS author_name, reviews.rating AS rating, reviews.review AS review, " +
			"reviews.date_submitted AS date_submitted, reviews.date_modified AS date_modified",
		Order: order,
	})
	if err != nil {
		return empty, err
	}
	res := pagination.Result[types.ReviewRecord]{Page: rows.Page, Size: rows.Size, Total: rows.Total, Items: make([]types.ReviewRecord, 0, len(rows.Items))}
	if len(rows.Items) == 0 {
		return res, nil
	}

	ids := make([]int64, len(rows.Items))
	for i, r := range rows.Items {
		ids[i] = r.ID
	}
	var likes []models.ReviewLike
	if err := db.Where("review_id IN ?", ids).Order("user_id").Find(&likes).Error; err != nil {
		return empty, fmt.Errorf("failed to load review likes: %w", err)
	}
	byReview := make(map[int64][]int64, len(ids))
	for _, l := range likes {
		byReview[l.ReviewID] = append(byReview[l.ReviewID], l.UserID)
	}
	for _, r := range rows.Items {
		likers := byReview[r.ID]
		if likers == nil {
			likers = []int64{}
		}
		res.Items = append(res.Items, types.ReviewRecord{
			ID:            r.ID,
			RecipeID:      r.RecipeID,
			AuthorID:      r.AuthorID,
			AuthorName:    r.AuthorName,
			Rating:        r.Rating,
			Review:        r.Review,
			DateSubmitted: r.DateSubmitted,
			DateModified:  r.DateModified,
			Likes:         likers,
		})
	}
	return res, nil
}

func (s *ReviewService) reviewChanged(ctx context.Context, action string, recipeID, reviewID int64) {
	publish(ctx, s.events, events.SubjectReviewChanged, map[string]interface{}{
		"action":    action,
		"recipe_id": recipeID,
		"review_id": reviewID,
	})
}
