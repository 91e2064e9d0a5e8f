package service_test

import (
	"testing"
	"time"

	"github.com/pageza/recipeshare/backend/config"
	"github.com/pageza/recipeshare/backend/internal/mocks"
	"github.com/pageza/recipeshare/backend/internal/models"
	"github.com/pageza/recipeshare/backend/internal/service"
	"github.com/pageza/recipeshare/backend/internal/testhelpers"
	"github.com/pageza/recipeshare/backend/internal/types"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db     *gorm.DB
	svc    *service.Services
	events *mocks.RecordingPublisher
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testhelpers.SetupSQLite(t)
	pub := &mocks.RecordingPublisher{}
	svc, err := service.New(testhelpers.NewRunner(db), config.SecurityConfig{
		JWTSecret:      "test-secret",
		TokenTTL:       time.Hour,
		PasswordHasher: "plaintext",
	}, pub)
	require.NoError(t, err)
	return &fixture{db: db, svc: svc, events: pub}
}

func as(id int64) types.AuthInfo {
	return types.AuthInfo{UserID: id, Password: testhelpers.TestPassword}
}

func (f *fixture) user(t *testing.T, id int64) models.User {
	t.Helper()
	var u models.User
	require.NoError(t, f.db.Where("id = ?", id).Take(&u).Error)
	return u
}

func (f *fixture) recipe(t *testing.T, id int64) models.Recipe {
	t.Helper()
	var r models.Recipe
	require.NoError(t, f.db.Where("id = ?", id).Take(&r).Error)
	return r
}

// assertCountersMatchEdges checks every user's counters against user_follows.
func (f *fixture) assertCountersMatchEdges(t *testing.T) {
	t.Helper()
	var users []models.User
	require.NoError(t, f.db.Find(&users).Error)
	for _, u := range users {
		var followers, following int64
		require.NoError(t, f.db.Model(&models.UserFollow{}).Where("followee_id = ?", u.ID).Count(&followers).Error)
		require.NoError(t, f.db.Model(&models.UserFollow{}).Where("follower_id = ?", u.ID).Count(&following).Error)
		require.Equal(t, followers, u.Followers, "followers of user %d", u.ID)
		require.Equal(t, following, u.Following, "following of user %d", u.ID)
	}
}
