package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/pageza/recipeshare/backend/internal/apperror"
	"github.com/pageza/recipeshare/backend/internal/events"
	"github.com/pageza/recipeshare/backend/internal/logging"
	"github.com/pageza/recipeshare/backend/internal/models"
	"github.com/pageza/recipeshare/backend/internal/security"
	"github.com/pageza/recipeshare/backend/internal/types"
	"gorm.io/gorm"
)

// authenticator resolves AuthInfo to a live user row.
type authenticator struct {
	hasher security.PasswordHasher
	tokens *security.TokenIssuer
}

// authenticate runs on db, which is the caller's transaction for mutations.
// Unknown, soft-deleted and mismatching users all fail the same way.
func (a authenticator) authenticate(db *gorm.DB, op string, auth types.AuthInfo) (*models.User, error) {
	userID := auth.UserID
	viaToken := false

	if auth.Token != "" {
		id, err := a.tokens.Parse(auth.Token)
		if err != nil {
			return nil, apperror.Wrap(apperror.KindAuthentication, op, err, "invalid session token")
		}
		if userID != 0 && userID != id {
			return nil, apperror.Authentication(op, "session token does not belong to user %d", userID)
		}
		userID = id
		viaToken = true
	}

	if userID <= 0 {
		return nil, apperror.Authentication(op, "user id is required")
	}
	if !viaToken && auth.Password == "" {
		return nil, apperror.Authentication(op, "password is required")
	}

	var user models.User
	if err := db.Where("id = ? AND is_deleted = ?", userID, false).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.Authentication(op, "invalid credentials for user %d", userID)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if !viaToken {
		if err := a.hasher.Verify(user.Password, auth.Password); err != nil {
			return nil, apperror.Authentication(op, "invalid credentials for user %d", userID)
		}
	}
	return &user, nil
}

// publish emits a post-commit event. Delivery failures are logged only; the
// unit of work has already committed.
func publish(ctx context.Context, pub events.Publisher, subject string, data map[string]interface{}) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, subject, data); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("subject", subject).Msg("failed to publish event")
	}
}
