package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pageza/recipeshare/backend/config"
	"github.com/pageza/recipeshare/backend/internal/database"
	"github.com/pageza/recipeshare/backend/internal/mocks"
	"github.com/pageza/recipeshare/backend/internal/models"
	"github.com/pageza/recipeshare/backend/internal/pagination"
	"github.com/pageza/recipeshare/backend/internal/service"
	"github.com/pageza/recipeshare/backend/internal/testhelpers"
	"github.com/pageza/recipeshare/backend/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupPostgres(t *testing.T) *fixture {
	t.Helper()
	db := testhelpers.SetupPostgres(t)
	pub := &mocks.RecordingPublisher{}
	svc, err := service.New(database.NewRunner(db, 30*time.Second, 25), config.SecurityConfig{
		JWTSecret:      "test-secret",
		TokenTTL:       time.Hour,
		PasswordHasher: "plaintext",
	}, pub)
	require.NoError(t, err)
	return &fixture{db: db, svc: svc, events: pub}
}

func TestPostgresConcurrentRegistrationsGetDistinctIDs(t *testing.T) {
	f := setupPostgres(t)
	ctx := context.Background()
	const n = 10

	var wg sync.WaitGroup
	ids := make(chan int64, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := f.svc.Users.Register(ctx, &types.RegisterUserRequest{
				Name:     fmt.Sprintf("cook%d", i),
				Gender:   "Female",
				Birthday: "1990-01-01",
				Password: testhelpers.TestPassword,
			})
			if err != nil {
				errs <- err
				return
			}
			ids <- id
		}(i)
	}
	wg.Wait()
	close(ids)
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	seen := map[int64]bool{}
	for id := range ids {
		assert.False(t, seen[id], "id %d handed out twice", id)
		seen[id] = true
	}
	for id := int64(1); id <= n; id++ {
		assert.True(t, seen[id], "id %d missing", id)
	}
}

func TestPostgresConcurrentReviewsKeepAggregatesExact(t *testing.T) {
	f := setupPostgres(t)
	ctx := context.Background()
	const reviewers = 8
	testhelpers.SeedUser(t, f.db, 1, "chef")
	for i := int64(2); i <= reviewers+1; i++ {
		testhelpers.SeedUser(t, f.db, i, fmt.Sprintf("critic%d", i))
	}
	testhelpers.SeedRecipe(t, f.db, 1, 1, "Stew", testhelpers.Float(300), "beef")

	var wg sync.WaitGroup
	errs := make(chan error, reviewers)
	for i := int64(2); i <= reviewers+1; i++ {
		wg.Add(1)
		go func(actor int64) {
			defer wg.Done()
			// Ratings alternate 5 and 2.
			rating := 5
			if actor%2 == 1 {
				rating = 2
			}
			if _, err := f.svc.Reviews.AddReview(ctx, as(actor), 1, rating, "tasted"); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	recipe := f.recipe(t, 1)
	assert.Equal(t, int64(reviewers), recipe.ReviewCount)
	assert.InDelta(t, 3.5, recipe.AggregatedRating, 1e-9)

	var ids []int64
	require.NoError(t, f.db.Model(&models.Review{}).Order("id").Pluck("id", &ids).Error)
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7, 8}, ids)
}

func TestPostgresConcurrentFollowsKeepCountersExact(t *testing.T) {
	f := setupPostgres(t)
	ctx := context.Background()
	const n = 6
	for i := int64(1); i <= n; i++ {
		testhelpers.SeedUser(t, f.db, i, fmt.Sprintf("user%d", i))
	}

	var wg sync.WaitGroup
	errs := make(chan error, n*n)
	for a := int64(1); a <= n; a++ {
		for b := int64(1); b <= n; b++ {
			if a == b {
				continue
			}
			wg.Add(1)
			go func(actor, target int64) {
				defer wg.Done()
				if _, err := f.svc.Social.Follow(ctx, as(actor), target); err != nil {
					errs <- err
				}
			}(a, b)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	for id := int64(1); id <= n; id++ {
		u := f.user(t, id)
		assert.Equal(t, int64(n-1), u.Followers)
		assert.Equal(t, int64(n-1), u.Following)
	}
	f.assertCountersMatchEdges(t)
}

func TestPostgresQueries(t *testing.T) {
	f := setupPostgres(t)
	ctx := context.Background()
	testhelpers.SeedUser(t, f.db, 1, "alice")
	testhelpers.SeedUser(t, f.db, 2, "bob")
	testhelpers.SeedRecipe(t, f.db, 1, 1, "Tomato Soup", testhelpers.Float(200), "tomato", "salt")
	testhelpers.SeedRecipe(t, f.db, 2, 1, "Pasta", testhelpers.Float(650), "pasta", "tomato", "basil")
	testhelpers.SeedRecipe(t, f.db, 3, 2, "Salad", testhelpers.Float(210), "lettuce")

	pair, err := f.svc.Recipes.ClosestCaloriePair(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pair.RecipeA)
	assert.Equal(t, int64(3), pair.RecipeB)

	res, err := f.svc.Recipes.SearchRecipes(ctx, types.RecipeFilter{Keyword: "SOUP"}, pagination.Request{Page: 1, Size: 10})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "Tomato Soup", res.Items[0].Name)

	top, err := f.svc.Recipes.TopComplexRecipes(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, int64(2), top[0].RecipeID)

	_, err = f.svc.Social.Follow(ctx, as(2), 1)
	require.NoError(t, err)
	feed, err := f.svc.Social.Feed(ctx, as(2), "", pagination.Request{Page: 1, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), feed.Total)
	require.Len(t, feed.Items, 2)
	assert.Equal(t, int64(2), feed.Items[0].RecipeID)
}
