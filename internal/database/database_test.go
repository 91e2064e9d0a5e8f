package database_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pageza/recipeshare/backend/config"
	"github.com/pageza/recipeshare/backend/internal/apperror"
	"github.com/pageza/recipeshare/backend/internal/database"
	"github.com/pageza/recipeshare/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openSQLite(t *testing.T) *gorm.DB {
	db, err := database.Open(config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    ":memory:?_foreign_keys=on",
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newUser(id int64, name string) *models.User {
	return &models.User{ID: id, Name: name, Gender: models.GenderMale, Age: 30, Password: "pw"}
}

func TestMigrateCreatesTables(t *testing.T) {
	db := openSQLite(t)

	for _, table := range []string{"users", "user_follows", "recipes", "recipe_ingredients", "reviews", "review_likes"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	assert.NoError(t, database.HealthCheck(context.Background(), db))
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{":memory:", ":memory:?_txlock=immediate"},
		{":memory:?_foreign_keys=on", ":memory:?_foreign_keys=on&_txlock=immediate"},
		{"file:r.db?_txlock=deferred", "file:r.db?_txlock=deferred"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, database.SQLiteDSN(tt.dsn), tt.dsn)
	}
}

func TestSQLiteFileConcurrentTransactions(t *testing.T) {
	db, err := database.Open(config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "tx.db") + "?_foreign_keys=on",
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	require.NoError(t, database.Migrate(db))
	require.NoError(t, db.Create(newUser(1, "alice")).Error)
	runner := database.NewRunner(db, 5*time.Second, 3)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- runner.Transact(context.Background(), "bump", func(tx *gorm.DB) error {
				var u models.User
				if err := tx.First(&u, 1).Error; err != nil {
					return err
				}
				return tx.Model(&u).Update("followers", u.Followers+1).Error
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	var u models.User
	require.NoError(t, db.First(&u, 1).Error)
	assert.Equal(t, int64(8), u.Followers)
}

func TestSchemaRejectsSelfFollow(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, db.Create(newUser(1, "a")).Error)

	err := db.Create(&models.UserFollow{FollowerID: 1, FolloweeID: 1}).Error
	assert.Error(t, err)
}

func TestTransactCommits(t *testing.T) {
	db := openSQLite(t)
	runner := database.NewRunner(db, time.Second, 3)

	err := runner.Transact(context.Background(), "test", func(tx *gorm.DB) error {
		return tx.Create(newUser(1, "alice")).Error
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestTransactRollsBackOnError(t *testing.T) {
	db := openSQLite(t)
	runner := database.NewRunner(db, time.Second, 3)
	boom := errors.New("boom")

	err := runner.Transact(context.Background(), "test", func(tx *gorm.DB) error {
		if err := tx.Create(newUser(1, "alice")).Error; err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestTransactRetriesDuplicateKey(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, db.Create(newUser(1, "taken")).Error)
	runner := database.NewRunner(db, time.Second, 3)

	attempts := 0
	err := runner.Transact(context.Background(), "test", func(tx *gorm.DB) error {
		attempts++
		id := int64(1)
		if attempts > 1 {
			id = 2
		}
		return tx.Create(newUser(id, "bob")).Error
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestTransactGivesUpWithConflict(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, db.Create(newUser(1, "taken")).Error)
	runner := database.NewRunner(db, time.Second, 2)

	attempts := 0
	err := runner.Transact(context.Background(), "test", func(tx *gorm.DB) error {
		attempts++
		return tx.Create(newUser(1, "bob")).Error
	})
	assert.ErrorIs(t, err, apperror.ErrConflict)
	assert.Equal(t, 3, attempts)
}

func TestTransactDoesNotRetryClassifiedErrors(t *testing.T) {
	db := openSQLite(t)
	runner := database.NewRunner(db, time.Second, 5)

	attempts := 0
	err := runner.Transact(context.Background(), "test", func(tx *gorm.DB) error {
		attempts++
		return apperror.Validation("test", "bad input")
	})
	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.Equal(t, 1, attempts)
}

func TestIsDuplicateKey(t *testing.T) {
	assert.False(t, database.IsDuplicateKey(nil))
	assert.True(t, database.IsDuplicateKey(gorm.ErrDuplicatedKey))
	assert.True(t, database.IsDuplicateKey(errors.New(`ERROR: duplicate key value violates unique constraint "users_pkey" (SQLSTATE 23505)`)))
	assert.False(t, database.IsDuplicateKey(errors.New("connection reset")))
}
