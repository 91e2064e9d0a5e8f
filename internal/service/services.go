package service

import (
	"github.com/pageza/recipeshare/backend/config"
	"github.com/pageza/recipeshare/backend/internal/database"
	"github.com/pageza/recipeshare/backend/internal/events"
	"github.com/pageza/recipeshare/backend/internal/security"
)

// Services bundles every service sharing one runner, password hasher,
// token issuer and event publisher.
type Services struct {
	Users   *UserService
	Social  *SocialService
	Recipes *RecipeService
	Reviews *ReviewService
	Ratings RatingService
}

// New wires the services from configuration. pub may be nil, in which case
// events are discarded.
func New(runner *database.Runner, cfg config.SecurityConfig, pub events.Publisher) (*Services, error) {
	hasher, err := security.NewPasswordHasher(cfg.PasswordHasher)
	if err != nil {
		return nil, err
	}
	tokens := security.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if pub == nil {
		pub = events.Noop{}
	}

	return &Services{
		Users:   NewUserService(runner, hasher, tokens, pub),
		Social:  NewSocialService(runner, hasher, tokens, pub),
		Recipes: NewRecipeService(runner, hasher, tokens, pub),
		Reviews: NewReviewService(runner, hasher, tokens, pub),
	}, nil
}
