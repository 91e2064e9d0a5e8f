package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/pageza/recipeshare/backend/config"
	"github.com/pageza/recipeshare/backend/internal/importer"
	"github.com/pageza/recipeshare/backend/internal/testhelpers"
	"github.com/pageza/recipeshare/backend/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// An imported aggregate and one recomputed by a review edit must agree,
// including averages that sit exactly on a half hundredth.
func TestImportedAggregateSurvivesUnchangedEdit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	at := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)

	batch := types.Batch{
		Users: []types.UserRecord{
			{ID: 1, Name: "alice", Gender: "Female", Age: 30, Password: testhelpers.TestPassword},
			{ID: 2, Name: "bob", Gender: "Male", Age: 35, Password: testhelpers.TestPassword},
		},
		Recipes: []types.RecipeRecord{{ID: 10, Name: "Soup", AuthorID: 1}},
	}
	// 39 ones and a single two: 41/40 = 1.025.
	for i := int64(1); i <= 40; i++ {
		rating := 1
		if i == 1 {
			rating = 2
		}
		batch.Reviews = append(batch.Reviews, types.ReviewRecord{
			ID: i, RecipeID: 10, AuthorID: 2, Rating: rating, Review: "ok",
			DateSubmitted: at, DateModified: at,
		})
	}

	im := importer.New(testhelpers.NewRunner(f.db), config.ImportConfig{BatchSize: 16, Timeout: time.Minute}, nil, nil, nil)
	_, err := im.Import(ctx, batch)
	require.NoError(t, err)

	imported := f.recipe(t, 10)
	assert.Equal(t, 1.03, imported.AggregatedRating)
	assert.Equal(t, int64(40), imported.ReviewCount)

	require.NoError(t, f.svc.Reviews.EditReview(ctx, as(2), 10, 1, 2, "ok"))

	edited := f.recipe(t, 10)
	assert.Equal(t, imported.AggregatedRating, edited.AggregatedRating)
	assert.Equal(t, imported.ReviewCount, edited.ReviewCount)
}
