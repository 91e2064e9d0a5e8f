package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/pageza/recipeshare/backend/internal/apperror"
	"github.com/pageza/recipeshare/backend/internal/events"
	"github.com/pageza/recipeshare/backend/internal/models"
	"github.com/pageza/recipeshare/backend/internal/testhelpers"
	"github.com/pageza/recipeshare/backend/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAllocatesNextID(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testhelpers.SeedUser(t, f.db, 7, "alice")

	id, err := f.svc.Users.Register(ctx, &types.RegisterUserRequest{
		Name:     "bob",
		Gender:   "male",
		Birthday: "1990-05-17",
		Password: "pw",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(8), id)

	u := f.user(t, 8)
	assert.Equal(t, models.GenderMale, u.Gender)
	assert.Greater(t, u.Age, 30)
	assert.Contains(t, f.events.Published(), events.SubjectUserRegistered)

	loggedIn, err := f.svc.Users.Login(ctx, types.AuthInfo{UserID: id, Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, id, loggedIn)
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	f := setup(t)
	testhelpers.SeedUser(t, f.db, 1, "alice")

	_, err := f.svc.Users.Register(context.Background(), &types.RegisterUserRequest{
		Name: "alice", Gender: "Female", Birthday: "1990-01-01", Password: "pw",
	})
	assert.True(t, errors.Is(err, apperror.ErrConflict))
}

func TestRegisterValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  *types.RegisterUserRequest
	}{
		{"nil request", nil},
		{"missing name", &types.RegisterUserRequest{Gender: "Male", Birthday: "1990-01-01", Password: "pw"}},
		{"unknown gender", &types.RegisterUserRequest{Name: "x", Gender: "other", Birthday: "1990-01-01", Password: "pw"}},
		{"bad birthday", &types.RegisterUserRequest{Name: "x", Gender: "Male", Birthday: "01/01/1990", Password: "pw"}},
		{"future birthday", &types.RegisterUserRequest{Name: "x", Gender: "Male", Birthday: "2999-01-01", Password: "pw"}},
		{"missing password", &types.RegisterUserRequest{Name: "x", Gender: "Male", Birthday: "1990-01-01"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Users.Register(ctx, tt.req)
			assert.True(t, errors.Is(err, apperror.ErrValidation), "got %v", err)
		})
	}
}

func TestLoginFailures(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testhelpers.SeedUser(t, f.db, 1, "alice")
	testhelpers.SeedUser(t, f.db, 2, "bob")
	require.NoError(t, f.db.Exec("UPDATE users SET is_deleted = ? WHERE id = ?", true, 2).Error)

	for _, auth := range []types.AuthInfo{
		{UserID: 1, Password: "wrong"},
		{UserID: 1},
		{UserID: 2, Password: testhelpers.TestPassword},
		{UserID: 3, Password: testhelpers.TestPassword},
		{Token: "not-a-token"},
	} {
		_, err := f.svc.Users.Login(ctx, auth)
		assert.True(t, errors.Is(err, apperror.ErrAuthentication), "auth %+v: %v", auth, err)
	}
}

func TestGetUserIncludesEdges(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testhelpers.SeedUser(t, f.db, 1, "alice")
	testhelpers.SeedUser(t, f.db, 2, "bob")
	testhelpers.SeedUser(t, f.db, 3, "carol")

	for _, edge := range [][2]int64{{1, 2}, {3, 1}, {2, 1}} {
		_, err := f.svc.Social.Follow(ctx, as(edge[0]), edge[1])
		require.NoError(t, err)
	}

	rec, err := f.svc.Users.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, rec.FollowerIDs)
	assert.Equal(t, []int64{2}, rec.FollowingIDs)
	assert.Equal(t, int64(2), rec.Followers)
	assert.Equal(t, int64(1), rec.Following)

	_, err = f.svc.Users.GetUser(ctx, 42)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestDeleteAccountFixesCounterparts(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testhelpers.SeedUser(t, f.db, 1, "alice")
	testhelpers.SeedUser(t, f.db, 2, "bob")
	testhelpers.SeedUser(t, f.db, 3, "carol")
	testhelpers.SeedRecipe(t, f.db, 10, 1, "Soup", nil)

	for _, edge := range [][2]int64{{1, 2}, {1, 3}, {2, 1}, {3, 2}} {
		_, err := f.svc.Social.Follow(ctx, as(edge[0]), edge[1])
		require.NoError(t, err)
	}

	_, err := f.svc.Users.DeleteAccount(ctx, as(2), 1)
	assert.True(t, errors.Is(err, apperror.ErrAuthorization))

	deleted, err := f.svc.Users.DeleteAccount(ctx, as(1), 1)
	require.NoError(t, err)
	assert.True(t, deleted)

	alice := f.user(t, 1)
	assert.True(t, alice.IsDeleted)
	assert.Zero(t, alice.Followers)
	assert.Zero(t, alice.Following)
	assert.Equal(t, int64(1), f.user(t, 2).Followers)
	assert.Zero(t, f.user(t, 2).Following)
	assert.Zero(t, f.user(t, 3).Followers)
	assert.Equal(t, int64(1), f.user(t, 3).Following)
	f.assertCountersMatchEdges(t)

	_, err = f.svc.Users.GetUser(ctx, 1)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
	_, err = f.svc.Users.Login(ctx, as(1))
	assert.True(t, errors.Is(err, apperror.ErrAuthentication))

	// Content of a deleted user stays addressable.
	rec, err := f.svc.Recipes.GetRecipe(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.AuthorName)
}

func TestUpdateProfile(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testhelpers.SeedUser(t, f.db, 1, "alice")

	gender, age := "male", 41
	require.NoError(t, f.svc.Users.UpdateProfile(ctx, as(1), &types.UpdateProfileRequest{Gender: &gender, Age: &age}))
	u := f.user(t, 1)
	assert.Equal(t, models.GenderMale, u.Gender)
	assert.Equal(t, 41, u.Age)

	bad := 0
	err := f.svc.Users.UpdateProfile(ctx, as(1), &types.UpdateProfileRequest{Age: &bad})
	assert.True(t, errors.Is(err, apperror.ErrValidation))
}
