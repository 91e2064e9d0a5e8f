package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pageza/recipeshare/backend/internal/apperror"
	"github.com/pageza/recipeshare/backend/internal/database"
	"github.com/pageza/recipeshare/backend/internal/events"
	"github.com/pageza/recipeshare/backend/internal/idalloc"
	"github.com/pageza/recipeshare/backend/internal/models"
	"github.com/pageza/recipeshare/backend/internal/security"
	"github.com/pageza/recipeshare/backend/internal/types"
	"github.com/pageza/recipeshare/backend/internal/validation"
	"gorm.io/gorm"
)

// UserService handles registration, login and account lifecycle
type UserService struct {
	runner *database.Runner
	auth   authenticator
	events events.Publisher
	now    func() time.Time
}

// Ensure UserService implements IUserService
var _ IUserService = (*UserService)(nil)

// NewUserService creates a new UserService instance
func NewUserService(runner *database.Runner, hasher security.PasswordHasher, tokens *security.TokenIssuer, pub events.Publisher) *UserService {
	return &UserService{
		runner: runner,
		auth:   authenticator{hasher: hasher, tokens: tokens},
		events: pub,
		now:    time.Now,
	}
}

// Register creates an account and returns its id.
func (s *UserService) Register(ctx context.Context, req *types.RegisterUserRequest) (int64, error) {
	const op = "user.register"
	if req == nil {
		return 0, apperror.Validation(op, "request is required")
	}
	if err := validation.ValidateStruct(req); err != nil {
		return 0, apperror.Wrap(apperror.KindValidation, op, err, "invalid registration")
	}
	gender, err := normalizeGender(op, req.Gender)
	if err != nil {
		return 0, err
	}
	age, err := ageFromBirthday(req.Birthday, s.now())
	if err != nil {
		return 0, apperror.Validation(op, "%v", err)
	}
	stored, err := s.auth.hasher.Hash(req.Password)
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.runner.Transact(ctx, op, func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&models.User{}).Where("name = ?", req.Name).Count(&taken).Error; err != nil {
			return fmt.Errorf("failed to check user name: %w", err)
		}
		if taken > 0 {
			return apperror.Conflict(op, "user name %q is already taken", req.Name)
		}

		next, err := idalloc.Next(ctx, tx, "users")
		if err != nil {
			return err
		}
		user := &models.User{
			ID:       next,
			Name:     req.Name,
			Gender:   gender,
			Age:      age,
			Password: stored,
		}
		if err := tx.Create(user).Error; err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		id = next
		return nil
	})
	if err != nil {
		return 0, err
	}

	publish(ctx, s.events, events.SubjectUserRegistered, map[string]interface{}{"user_id": id, "name": req.Name})
	return id, nil
}

// Login checks the credentials and returns the user id.
func (s *UserService) Login(ctx context.Context, auth types.AuthInfo) (int64, error) {
	user, err := s.auth.authenticate(s.runner.DB().WithContext(ctx), "user.login", auth)
	if err != nil {
		return 0, err
	}
	return user.ID, nil
}

// IssueToken logs in and returns a signed session token.
func (s *UserService) IssueToken(ctx context.Context, auth types.AuthInfo) (string, error) {
	id, err := s.Login(ctx, auth)
	if err != nil {
		return "", err
	}
	if !s.auth.tokens.Enabled() {
		return "", apperror.Validation("user.token", "session tokens are not configured")
	}
	return s.auth.tokens.Issue(id)
}

// DeleteAccount soft-deletes the acting user. Every follow edge touching the
// user is removed and the counters on the other side of each edge are
// decremented in the same transaction.
func (s *UserService) DeleteAccount(ctx context.Context, auth types.AuthInfo, userID int64) (bool, error) {
	const op = "user.delete"
	deleted := false

	err := s.runner.Transact(ctx, op, func(tx *gorm.DB) error {
		actor, err := s.auth.authenticate(tx, op, auth)
		if err != nil {
			return err
		}
		if actor.ID != userID {
			return apperror.Authorization(op, "user %d may not delete user %d", actor.ID, userID)
		}

		res := tx.Model(&models.User{}).
			Where("id = ? AND is_deleted = ?", userID, false).
			Updates(map[string]interface{}{"is_deleted": true, "followers": 0, "following": 0})
		if res.Error != nil {
			return fmt.Errorf("failed to mark user deleted: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}

		if err := tx.Model(&models.User{}).
			Where("id IN (?)", tx.Model(&models.UserFollow{}).Select("follower_id").Where("followee_id = ?", userID)).
			Update("following", decrementExpr("following")).Error; err != nil {
			return fmt.Errorf("failed to update following counters: %w", err)
		}
		if err := tx.Model(&models.User{}).
			Where("id IN (?)", tx.Model(&models.UserFollow{}).Select("followee_id").Where("follower_id = ?", userID)).
			Update("followers", decrementExpr("followers")).Error; err != nil {
			return fmt.Errorf("failed to update follower counters: %w", err)
		}
		if err := tx.Where("follower_id = ? OR followee_id = ?", userID, userID).
			Delete(&models.UserFollow{}).Error; err != nil {
			return fmt.Errorf("failed to remove follow edges: %w", err)
		}

		deleted = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if deleted {
		publish(ctx, s.events, events.SubjectUserDeleted, map[string]interface{}{"user_id": userID})
	}
	return deleted, nil
}

// UpdateProfile changes the acting user's gender and/or age.
func (s *UserService) UpdateProfile(ctx context.Context, auth types.AuthInfo, req *types.UpdateProfileRequest) error {
	const op = "user.update_profile"
	if req == nil {
		return apperror.Validation(op, "request is required")
	}

	updates := map[string]interface{}{}
	if req.Gender != nil {
		gender, err := normalizeGender(op, *req.Gender)
		if err != nil {
			return err
		}
		updates["gender"] = gender
	}
	if req.Age != nil {
		if *req.Age <= 0 {
			return apperror.Validation(op, "age must be positive, got %d", *req.Age)
		}
		updates["age"] = *req.Age
	}
	if len(updates) == 0 {
		return nil
	}

	return s.runner.Transact(ctx, op, func(tx *gorm.DB) error {
		actor, err := s.auth.authenticate(tx, op, auth)
		if err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("id = ?", actor.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update profile: %w", err)
		}
		return nil
	})
}

// GetUser returns a live user with its follow edges.
func (s *UserService) GetUser(ctx context.Context, userID int64) (*types.UserRecord, error) {
	const op = "user.get"
	db := s.runner.DB().WithContext(ctx)

	var user models.User
	if err := db.Where("id = ? AND is_deleted = ?", userID, false).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound(op, "user %d not found", userID)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	rec := &types.UserRecord{
		ID:           user.ID,
		Name:         user.Name,
		Gender:       user.Gender,
		Age:          user.Age,
		Followers:    user.Followers,
		Following:    user.Following,
		FollowerIDs:  []int64{},
		FollowingIDs: []int64{},
	}
	if err := db.Model(&models.UserFollow{}).Where("followee_id = ?", userID).
		Order("follower_id").Pluck("follower_id", &rec.FollowerIDs).Error; err != nil {
		return nil, fmt.Errorf("failed to load followers: %w", err)
	}
	if err := db.Model(&models.UserFollow{}).Where("follower_id = ?", userID).
		Order("followee_id").Pluck("followee_id", &rec.FollowingIDs).Error; err != nil {
		return nil, fmt.Errorf("failed to load followees: %w", err)
	}
	return rec, nil
}

func normalizeGender(op, g string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(g)) {
	case "male":
		return models.GenderMale, nil
	case "female":
		return models.GenderFemale, nil
	default:
		return "", apperror.Validation(op, "gender must be Male or Female, got %q", g)
	}
}

// ageFromBirthday returns whole years elapsed between a yyyy-MM-dd birthday
// and now. The result must be positive.
func ageFromBirthday(birthday string, now time.Time) (int, error) {
	born, err := time.Parse("2006-01-02", birthday)
	if err != nil {
		return 0, fmt.Errorf("birthday must be yyyy-MM-dd: %w", err)
	}
	age := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		age--
	}
	if age <= 0 {
		return 0, fmt.Errorf("age derived from birthday %s must be positive", birthday)
	}
	return age, nil
}
