package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsIsMatchesKind(t *testing.T) {
	err := NotFound("recipe.get", "recipe %d not found", 7)

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.Equal(t, "recipe.get: recipe 7 not found", err.Error())
}

func TestKindOfWrapped(t *testing.T) {
	base := Authorization("recipe.delete", "user 2 is not the author")
	wrapped := fmt.Errorf("failed to delete recipe: %w", base)

	assert.Equal(t, KindAuthorization, KindOf(wrapped))
	assert.True(t, IsClassified(wrapped))
	assert.ErrorIs(t, wrapped, ErrAuthorization)
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
	assert.False(t, IsClassified(nil))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("unique violation")
	err := Wrap(KindConflict, "user.register", cause, "name already taken")

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "unique violation")
}
