package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/pageza/recipeshare/backend/internal/apperror"
	"github.com/pageza/recipeshare/backend/internal/pagination"
	"github.com/pageza/recipeshare/backend/internal/testhelpers"
	"github.com/pageza/recipeshare/backend/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSoup(t *testing.T, f *fixture) {
	t.Helper()
	testhelpers.SeedUser(t, f.db, 1, "alice")
	testhelpers.SeedUser(t, f.db, 2, "bob")
	testhelpers.SeedUser(t, f.db, 3, "carol")
	testhelpers.SeedRecipe(t, f.db, 10, 1, "Soup", nil)
}

func TestReviewsMaintainAggregates(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	seedSoup(t, f)

	_, err := f.svc.Reviews.AddReview(ctx, as(2), 10, 4, "tasty")
	require.NoError(t, err)
	second, err := f.svc.Reviews.AddReview(ctx, as(3), 10, 2, "bland")
	require.NoError(t, err)

	r := f.recipe(t, 10)
	assert.Equal(t, 3.0, r.AggregatedRating)
	assert.Equal(t, int64(2), r.ReviewCount)

	require.NoError(t, f.svc.Reviews.DeleteReview(ctx, as(3), 10, second))
	r = f.recipe(t, 10)
	assert.Equal(t, 4.0, r.AggregatedRating)
	assert.Equal(t, int64(1), r.ReviewCount)
}

func TestEditReviewRefreshesAggregates(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	seedSoup(t, f)

	id, err := f.svc.Reviews.AddReview(ctx, as(2), 10, 4, "tasty")
	require.NoError(t, err)
	_, err = f.svc.Reviews.AddReview(ctx, as(3), 10, 4, "fine")
	require.NoError(t, err)
	_, err = f.svc.Reviews.AddReview(ctx, as(1), 10, 5, "mine")
	require.NoError(t, err)
	assert.Equal(t, 4.33, f.recipe(t, 10).AggregatedRating)

	require.NoError(t, f.svc.Reviews.EditReview(ctx, as(2), 10, id, 1, "changed my mind"))
	r := f.recipe(t, 10)
	assert.Equal(t, 3.33, r.AggregatedRating)
	assert.Equal(t, int64(3), r.ReviewCount)

	page, err := f.svc.Reviews.ListByRecipe(ctx, 10, types.SortDateDesc, pagination.Request{Page: 1, Size: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, id, page.Items[0].ID)
	assert.Equal(t, "changed my mind", page.Items[0].Review)
	assert.False(t, page.Items[0].DateModified.Before(page.Items[0].DateSubmitted))
}

func TestReviewMutationErrors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	seedSoup(t, f)
	testhelpers.SeedRecipe(t, f.db, 11, 1, "Stew", nil)

	id, err := f.svc.Reviews.AddReview(ctx, as(2), 10, 4, "tasty")
	require.NoError(t, err)

	_, err = f.svc.Reviews.AddReview(ctx, as(2), 10, 6, "")
	assert.True(t, errors.Is(err, apperror.ErrValidation))
	_, err = f.svc.Reviews.AddReview(ctx, as(2), 99, 3, "")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	err = f.svc.Reviews.EditReview(ctx, as(3), 10, id, 1, "")
	assert.True(t, errors.Is(err, apperror.ErrAuthorization))
	err = f.svc.Reviews.EditReview(ctx, as(2), 11, id, 1, "")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
	err = f.svc.Reviews.EditReview(ctx, as(2), 10, id, 0, "")
	assert.True(t, errors.Is(err, apperror.ErrValidation))
	err = f.svc.Reviews.DeleteReview(ctx, as(3), 10, id)
	assert.True(t, errors.Is(err, apperror.ErrAuthorization))

	r := f.recipe(t, 10)
	assert.Equal(t, 4.0, r.AggregatedRating)
	assert.Equal(t, int64(1), r.ReviewCount)
}

func TestLikeReview(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	seedSoup(t, f)

	id, err := f.svc.Reviews.AddReview(ctx, as(2), 10, 4, "tasty")
	require.NoError(t, err)

	count, err := f.svc.Reviews.LikeReview(ctx, as(1), id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	count, err = f.svc.Reviews.LikeReview(ctx, as(1), id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	count, err = f.svc.Reviews.LikeReview(ctx, as(3), id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	_, err = f.svc.Reviews.LikeReview(ctx, as(2), id)
	assert.True(t, errors.Is(err, apperror.ErrAuthorization))
	assert.Contains(t, err.Error(), "self-reference")
	_, err = f.svc.Reviews.LikeReview(ctx, as(1), 999)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	count, err = f.svc.Reviews.UnlikeReview(ctx, as(1), id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	count, err = f.svc.Reviews.UnlikeReview(ctx, as(1), id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestListByRecipe(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	seedSoup(t, f)
	testhelpers.SeedUser(t, f.db, 4, "dave")

	first, err := f.svc.Reviews.AddReview(ctx, as(2), 10, 4, "first")
	require.NoError(t, err)
	second, err := f.svc.Reviews.AddReview(ctx, as(3), 10, 5, "second")
	require.NoError(t, err)
	hidden, err := f.svc.Reviews.AddReview(ctx, as(4), 10, 1, "hidden")
	require.NoError(t, err)
	for _, liker := range []int64{3, 1} {
		_, err := f.svc.Reviews.LikeReview(ctx, as(liker), first)
		require.NoError(t, err)
	}
	_, err = f.svc.Users.DeleteAccount(ctx, as(4), 4)
	require.NoError(t, err)

	page, err := f.svc.Reviews.ListByRecipe(ctx, 10, types.SortLikesDesc, pagination.Request{Page: 1, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, first, page.Items[0].ID)
	assert.Equal(t, []int64{1, 3}, page.Items[0].Likes)
	assert.Equal(t, "bob", page.Items[0].AuthorName)
	assert.Equal(t, second, page.Items[1].ID)
	assert.Equal(t, []int64{}, page.Items[1].Likes)
	for _, item := range page.Items {
		assert.NotEqual(t, hidden, item.ID)
	}

	// The deleted author's review still counts toward the aggregate.
	assert.Equal(t, int64(3), f.recipe(t, 10).ReviewCount)

	_, err = f.svc.Reviews.ListByRecipe(ctx, 99, "", pagination.Request{Page: 1, Size: 10})
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
	_, err = f.svc.Reviews.ListByRecipe(ctx, 10, "oldest", pagination.Request{Page: 1, Size: 10})
	assert.True(t, errors.Is(err, apperror.ErrValidation))
}
