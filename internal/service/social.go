package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/pageza/recipeshare/backend/internal/apperror"
	"github.com/pageza/recipeshare/backend/internal/database"
	"github.com/pageza/recipeshare/backend/internal/events"
	"github.com/pageza/recipeshare/backend/internal/models"
	"github.com/pageza/recipeshare/backend/internal/pagination"
	"github.com/pageza/recipeshare/backend/internal/security"
	"github.com/pageza/recipeshare/backend/internal/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SocialService maintains the follow graph and its denormalized counters.
type SocialService struct {
	runner *database.Runner
	auth   authenticator
	events events.Publisher
}

var _ ISocialService = (*SocialService)(nil)

func NewSocialService(runner *database.Runner, hasher security.PasswordHasher, tokens *security.TokenIssuer, pub events.Publisher) *SocialService {
	return &SocialService{
		runner: runner,
		auth:   authenticator{hasher: hasher, tokens: tokens},
		events: pub,
	}
}

func incrementExpr(col string) clause.Expr {
	return gorm.Expr(col + " + 1")
}

// decrementExpr never takes a counter below zero.
func decrementExpr(col string) clause.Expr {
	return gorm.Expr("CASE WHEN " + col + " > 0 THEN " + col + " - 1 ELSE 0 END")
}

// Follow toggles the edge actor -> target and returns whether the actor
// follows the target afterwards.
func (s *SocialService) Follow(ctx context.Context, auth types.AuthInfo, targetID int64) (bool, error) {
	return s.mutateEdge(ctx, "social.follow", auth, targetID, true)
}

// Unfollow removes the edge actor -> target if present. It always returns false.
func (s *SocialService) Unfollow(ctx context.Context, auth types.AuthInfo, targetID int64) (bool, error) {
	return s.mutateEdge(ctx, "social.unfollow", auth, targetID, false)
}

func (s *SocialService) mutateEdge(ctx context.Context, op string, auth types.AuthInfo, targetID int64, toggle bool) (bool, error) {
	var following, changed bool
	var actorID int64

	err := s.runner.Transact(ctx, op, func(tx *gorm.DB) error {
		following, changed = false, false

		actor, err := s.auth.authenticate(tx, op, auth)
		if err != nil {
			return err
		}
		actorID = actor.ID
		if actor.ID == targetID {
			return apperror.Authorization(op, "self-reference: user %d cannot follow themselves", actor.ID)
		}
		if err := lockLiveUsers(tx, op, actor.ID, targetID); err != nil {
			return err
		}

		edge := &models.UserFollow{FollowerID: actor.ID, FolloweeID: targetID}
		res := tx.Where("follower_id = ? AND followee_id = ?", actor.ID, targetID).Delete(&models.UserFollow{})
		if res.Error != nil {
			return fmt.Errorf("failed to remove follow edge: %w", res.Error)
		}
		if res.RowsAffected > 0 {
			changed = true
			return adjustFollowCounters(tx, actor.ID, targetID, false)
		}
		if !toggle {
			return nil
		}

		res = tx.Clauses(clause.OnConflict{DoNothing: true}).Create(edge)
		if res.Error != nil {
			return fmt.Errorf("failed to insert follow edge: %w", res.Error)
		}
		following = true
		if res.RowsAffected == 0 {
			// A concurrent call inserted the same edge and owns its counters.
			return nil
		}
		changed = true
		return adjustFollowCounters(tx, actor.ID, targetID, true)
	})
	if err != nil {
		return false, err
	}

	if changed {
		publish(ctx, s.events, events.SubjectFollowChanged, map[string]interface{}{
			"follower_id": actorID,
			"followee_id": targetID,
			"following":   following,
		})
	}
	return following, nil
}

// lockLiveUsers takes row locks on both users in id order and checks that
// both are live. The actor was authenticated on the same transaction.
func lockLiveUsers(tx *gorm.DB, op string, actorID, targetID int64) error {
	var rows []models.User
	if err := database.ForUpdate(tx).
		Select("id", "is_deleted").
		Where("id IN ?", []int64{actorID, targetID}).
		Order("id").
		Find(&rows).Error; err != nil {
		return fmt.Errorf("failed to lock users: %w", err)
	}

	for _, u := range rows {
		if u.ID == targetID {
			if u.IsDeleted {
				break
			}
			return nil
		}
	}
	return apperror.NotFound(op, "user %d not found", targetID)
}

func adjustFollowCounters(tx *gorm.DB, followerID, followeeID int64, inc bool) error {
	following, followers := decrementExpr("following"), decrementExpr("followers")
	if inc {
		following, followers = incrementExpr("following"), incrementExpr("followers")
	}
	if err := tx.Model(&models.User{}).Where("id = ?", followerID).Update("following", following).Error; err != nil {
		return fmt.Errorf("failed to update following counter: %w", err)
	}
	if err := tx.Model(&models.User{}).Where("id = ?", followeeID).Update("followers", followers).Error; err != nil {
		return fmt.Errorf("failed to update follower counter: %w", err)
	}
	return nil
}

// HighestFollowRatio returns the live user with at least one followee that
// maximizes followers/following, smallest id first on ties.
func (s *SocialService) HighestFollowRatio(ctx context.Context) (*types.FollowRatio, error) {
	var user models.User
	err := s.runner.DB().WithContext(ctx).
		Where("is_deleted = ? AND following > 0", false).
		Order("followers * 1.0 / following DESC, id ASC").
		Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("social.ratio", "no user follows anyone")
		}
		return nil, fmt.Errorf("failed to find highest follow ratio: %w", err)
	}

	return &types.FollowRatio{
		UserID:    user.ID,
		Name:      user.Name,
		Followers: user.Followers,
		Following: user.Following,
		Ratio:     float64(user.Followers) / float64(user.Following),
	}, nil
}

// Feed lists recipes by live authors the actor follows, newest first.
func (s *SocialService) Feed(ctx context.Context, auth types.AuthInfo, category string, page pagination.Request) (pagination.Result[types.FeedItem], error) {
	const op = "social.feed"
	if err := page.Validate(); err != nil {
		return pagination.Result[types.FeedItem]{Page: page.Page, Size: page.Size}, err
	}

	db := s.runner.DB().WithContext(ctx)
	actor, err := s.auth.authenticate(db, op, auth)
	if err != nil {
		return pagination.Result[types.FeedItem]{Page: page.Page, Size: page.Size}, err
	}

	base := db.Table("recipes").
		Joins("JOIN users ON users.id = recipes.author_id").
		Joins("JOIN user_follows ON user_follows.followee_id = recipes.author_id").
		Where("user_follows.follower_id = ? AND users.is_deleted = ?", actor.ID, false)
	if category != "" {
		base = base.Where("recipes.category = ?", category)
	}

	return pagination.Query[types.FeedItem](ctx, base, page, pagination.Window{
		Select: "recipes.id AS recipe_id, recipes.name AS name, recipes.author_id AS author_id, " +
			"users.name AS author_name, recipes.date_published AS date_published, " +
			"recipes.aggregated_rating AS aggregated_rating, recipes.review_count AS review_count",
		Order: "recipes.date_published DESC NULLS LAST, recipes.id ASC",
	})
}
