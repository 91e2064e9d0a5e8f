// Package events publishes committed domain changes for downstream consumers.
// Events are emitted after the unit of work commits and never feed back into
// stored counters or aggregates.
package events

import (
	"context"
	"time"
)

// Subjects published under the configured stream.
const (
	SubjectUserRegistered = "recipes.user.registered"
	SubjectUserDeleted    = "recipes.user.deleted"
	SubjectFollowChanged  = "recipes.user.follow_changed"
	SubjectRecipeCreated  = "recipes.recipe.created"
	SubjectRecipeDeleted  = "recipes.recipe.deleted"
	SubjectReviewChanged  = "recipes.review.changed"
	SubjectImportFinished = "recipes.import.finished"
)

// Event is the JSON envelope of every message.
type Event struct {
	Subject    string                 `json:"subject"`
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data"`
}

type Publisher interface {
	Publish(ctx context.Context, subject string, data map[string]interface{}) error
}

// Noop discards events.
type Noop struct{}

func (Noop) Publish(context.Context, string, map[string]interface{}) error {
	return nil
}
