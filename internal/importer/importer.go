// Package importer loads bulk batches of users, recipes and reviews into the
// store in a single transaction.
package importer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pageza/recipeshare/backend/config"
	"github.com/pageza/recipeshare/backend/internal/apperror"
	"github.com/pageza/recipeshare/backend/internal/database"
	"github.com/pageza/recipeshare/backend/internal/events"
	"github.com/pageza/recipeshare/backend/internal/logging"
	"github.com/pageza/recipeshare/backend/internal/metrics"
	"github.com/pageza/recipeshare/backend/internal/models"
	"github.com/pageza/recipeshare/backend/internal/security"
	"github.com/pageza/recipeshare/backend/internal/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LockKey is the key of the cross-process import lock.
const LockKey = "recipeshare:import:lock"

// Locker serializes imports across processes. The returned function
// releases the lock.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(context.Context) error, error)
}

// Report summarizes one import run.
type Report struct {
	RunID          string        `json:"run_id"`
	Users          int           `json:"users"`
	Recipes        int           `json:"recipes"`
	Reviews        int           `json:"reviews"`
	Follows        int64         `json:"follows"`
	Likes          int64         `json:"likes"`
	Ingredients    int64         `json:"ingredients"`
	SkippedFollows int           `json:"skipped_follows"`
	SkippedLikes   int           `json:"skipped_likes"`
	Duration       time.Duration `json:"duration"`
}

type Importer struct {
	runner    *database.Runner
	hasher    security.PasswordHasher
	batchSize int
	locker    Locker
	events    events.Publisher
}

// New creates an importer. locker and pub may be nil.
func New(runner *database.Runner, cfg config.ImportConfig, hasher security.PasswordHasher, locker Locker, pub events.Publisher) *Importer {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}
	if cfg.Timeout > 0 {
		runner = runner.WithTimeout(cfg.Timeout)
	}
	if hasher == nil {
		hasher = security.PlaintextHasher{}
	}
	if pub == nil {
		pub = events.Noop{}
	}
	return &Importer{runner: runner, hasher: hasher, batchSize: batchSize, locker: locker, events: pub}
}

// Import validates the whole batch, then writes it in one transaction.
// Any invalid record aborts the run before anything is written.
func (im *Importer) Import(ctx context.Context, batch types.Batch) (*Report, error) {
	start := time.Now()
	report := &Report{RunID: uuid.New().String()}
	ctx = logging.ContextWithCorrelationID(ctx, report.RunID[:8])
	log := logging.Ctx(ctx)

	idx, err := validateBatch(batch)
	if err != nil {
		log.Warn().Err(err).Msg("import batch rejected")
		return nil, err
	}

	if im.locker != nil {
		release, err := im.locker.Acquire(ctx, LockKey)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := release(context.Background()); err != nil {
				log.Warn().Err(err).Msg("failed to release import lock")
			}
		}()
	}

	plan, err := im.plan(batch, idx)
	if err != nil {
		return nil, err
	}

	err = im.runner.Transact(ctx, op, func(tx *gorm.DB) error {
		if err := checkReferences(tx, batch, idx); err != nil {
			return err
		}
		follows, likes, ingredients, err := im.write(tx, plan)
		if err != nil {
			return err
		}
		report.Follows, report.Likes, report.Ingredients = follows, likes, ingredients
		return im.recount(tx, plan)
	})
	if err != nil {
		log.Error().Err(err).Msg("import failed")
		return nil, err
	}

	report.Users = len(plan.users)
	report.Recipes = len(plan.recipes)
	report.Reviews = len(plan.reviews)
	report.SkippedFollows = plan.skippedFollows
	report.SkippedLikes = plan.skippedLikes
	report.Duration = time.Since(start)

	log.Info().
		Str("run_id", report.RunID).
		Int("users", report.Users).
		Int("recipes", report.Recipes).
		Int("reviews", report.Reviews).
		Int64("follows", report.Follows).
		Int64("likes", report.Likes).
		Int("skipped_follows", report.SkippedFollows).
		Int("skipped_likes", report.SkippedLikes).
		Dur("duration", report.Duration).
		Msg("import finished")
	metrics.RecordImport(metrics.ImportCounts{
		Users:          report.Users,
		Recipes:        report.Recipes,
		Reviews:        report.Reviews,
		Follows:        report.Follows,
		Likes:          report.Likes,
		Ingredients:    report.Ingredients,
		SkippedFollows: report.SkippedFollows,
		SkippedLikes:   report.SkippedLikes,
	})

	if err := im.events.Publish(ctx, events.SubjectImportFinished, map[string]interface{}{
		"run_id":  report.RunID,
		"users":   report.Users,
		"recipes": report.Recipes,
		"reviews": report.Reviews,
	}); err != nil {
		log.Warn().Err(err).Msg("failed to publish import event")
	}
	return report, nil
}

// plan holds the rows derived from a validated batch.
type plan struct {
	users          []models.User
	follows        []models.UserFollow
	recipes        []models.Recipe
	ingredients    []models.RecipeIngredient
	reviews        []models.Review
	likes          []models.ReviewLike
	deletedUsers   []int64
	touchedUsers   []int64
	touchedRecipes []int64
	skippedFollows int
	skippedLikes   int

	// Cleartext password of each batch user, checked against stored hashes.
	passwords map[int64]string

	// Rows outside the batch whose derived columns the write invalidates.
	extraUsers   []int64
	extraRecipes []int64
}

func (im *Importer) plan(batch types.Batch, idx *index) (*plan, error) {
	p := &plan{passwords: make(map[int64]string, len(batch.Users))}

	for _, u := range batch.Users {
		p.passwords[u.ID] = u.Password
		stored, err := im.hasher.Hash(u.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password of user %d: %w", u.ID, err)
		}
		p.users = append(p.users, models.User{
			ID:        u.ID,
			Name:      u.Name,
			Gender:    u.Gender,
			Age:       u.Age,
			Password:  stored,
			IsDeleted: u.IsDeleted,
		})
		p.touchedUsers = append(p.touchedUsers, u.ID)
		if u.IsDeleted {
			p.deletedUsers = append(p.deletedUsers, u.ID)
		}
	}

	edges := map[models.UserFollow]struct{}{}
	addEdge := func(follower, followee int64) {
		if follower == followee {
			p.skippedFollows++
			return
		}
		from, okFrom := idx.users[follower]
		to, okTo := idx.users[followee]
		if !okFrom || !okTo || from.IsDeleted || to.IsDeleted {
			p.skippedFollows++
			return
		}
		edge := models.UserFollow{FollowerID: follower, FolloweeID: followee}
		if _, dup := edges[edge]; dup {
			return
		}
		edges[edge] = struct{}{}
		p.follows = append(p.follows, edge)
	}
	for _, u := range batch.Users {
		for _, id := range u.FollowerIDs {
			addEdge(id, u.ID)
		}
		for _, id := range u.FollowingIDs {
			addEdge(u.ID, id)
		}
	}

	touchedRecipes := map[int64]struct{}{}
	for _, r := range batch.Recipes {
		p.recipes = append(p.recipes, models.Recipe{
			ID:                  r.ID,
			AuthorID:            r.AuthorID,
			Name:                r.Name,
			Description:         r.Description,
			Category:            r.Category,
			CookTime:            r.CookTime,
			PrepTime:            r.PrepTime,
			TotalTime:           r.TotalTime,
			DatePublished:       r.DatePublished,
			Calories:            r.Calories,
			FatContent:          r.FatContent,
			SaturatedFatContent: r.SaturatedFatContent,
			CholesterolContent:  r.CholesterolContent,
			SodiumContent:       r.SodiumContent,
			CarbohydrateContent: r.CarbohydrateContent,
			FiberContent:        r.FiberContent,
			SugarContent:        r.SugarContent,
			ProteinContent:      r.ProteinContent,
			RecipeServings:      r.RecipeServings,
			RecipeYield:         r.RecipeYield,
		})
		parts := map[string]struct{}{}
		for _, part := range r.Ingredients {
			part = strings.TrimSpace(part)
			if _, dup := parts[part]; dup {
				continue
			}
			parts[part] = struct{}{}
			p.ingredients = append(p.ingredients, models.RecipeIngredient{RecipeID: r.ID, IngredientPart: part})
		}
		touchedRecipes[r.ID] = struct{}{}
	}

	likes := map[models.ReviewLike]struct{}{}
	for _, rv := range batch.Reviews {
		p.reviews = append(p.reviews, models.Review{
			ID:            rv.ID,
			RecipeID:      rv.RecipeID,
			AuthorID:      rv.AuthorID,
			Rating:        rv.Rating,
			Body:          rv.Review,
			DateSubmitted: rv.DateSubmitted,
			DateModified:  rv.DateModified,
		})
		touchedRecipes[rv.RecipeID] = struct{}{}

		for _, liker := range rv.Likes {
			if _, ok := idx.users[liker]; !ok || liker == rv.AuthorID {
				p.skippedLikes++
				continue
			}
			like := models.ReviewLike{ReviewID: rv.ID, UserID: liker}
			if _, dup := likes[like]; dup {
				continue
			}
			likes[like] = struct{}{}
			p.likes = append(p.likes, like)
		}
	}

	for id := range touchedRecipes {
		p.touchedRecipes = append(p.touchedRecipes, id)
	}
	return p, nil
}

// checkReferences resolves references to rows outside the batch and rejects
// batch names already held by other stored users.
func checkReferences(tx *gorm.DB, batch types.Batch, idx *index) error {
	if missing := idx.missingUsers(batch); len(missing) > 0 {
		var found []int64
		if err := tx.Model(&models.User{}).Where("id IN ?", missing).Pluck("id", &found).Error; err != nil {
			return fmt.Errorf("failed to resolve users: %w", err)
		}
		if id, ok := firstAbsent(missing, found); ok {
			return apperror.Import(op, "user %d is referenced but neither in the batch nor stored", id)
		}
	}

	if missing := idx.missingRecipes(batch); len(missing) > 0 {
		var found []int64
		if err := tx.Model(&models.Recipe{}).Where("id IN ?", missing).Pluck("id", &found).Error; err != nil {
			return fmt.Errorf("failed to resolve recipes: %w", err)
		}
		if id, ok := firstAbsent(missing, found); ok {
			return apperror.Import(op, "recipe %d is referenced but neither in the batch nor stored", id)
		}
	}

	if len(idx.names) > 0 {
		names := make([]string, 0, len(idx.names))
		ids := make([]int64, 0, len(idx.names))
		for name, id := range idx.names {
			names = append(names, name)
			ids = append(ids, id)
		}
		var clash models.User
		res := tx.Select("id", "name").Where("name IN ? AND id NOT IN ?", names, ids).Limit(1).Find(&clash)
		if res.Error != nil {
			return fmt.Errorf("failed to check user names: %w", res.Error)
		}
		if res.RowsAffected > 0 {
			return apperror.Import(op, "user name %q is held by stored user %d", clash.Name, clash.ID)
		}
	}
	return nil
}

func firstAbsent(want, found []int64) (int64, bool) {
	have := make(map[int64]struct{}, len(found))
	for _, id := range found {
		have[id] = struct{}{}
	}
	for _, id := range want {
		if _, ok := have[id]; !ok {
			return id, true
		}
	}
	return 0, false
}

func (im *Importer) write(tx *gorm.DB, p *plan) (follows, likes, ingredients int64, err error) {
	if err := im.keepStoredPasswords(tx, p); err != nil {
		return 0, 0, 0, err
	}
	if len(p.users) > 0 {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "gender", "age", "password", "is_deleted"}),
		}).CreateInBatches(p.users, im.batchSize).Error; err != nil {
			return 0, 0, 0, classify("upsert users", err)
		}
	}

	p.extraUsers, p.extraRecipes = nil, nil

	if len(p.deletedUsers) > 0 {
		var followers, followees []int64
		if err := tx.Model(&models.UserFollow{}).Where("followee_id IN ?", p.deletedUsers).
			Pluck("follower_id", &followers).Error; err != nil {
			return 0, 0, 0, fmt.Errorf("failed to load followers of deleted users: %w", err)
		}
		if err := tx.Model(&models.UserFollow{}).Where("follower_id IN ?", p.deletedUsers).
			Pluck("followee_id", &followees).Error; err != nil {
			return 0, 0, 0, fmt.Errorf("failed to load followees of deleted users: %w", err)
		}
		p.extraUsers = append(followers, followees...)
		if err := tx.Where("follower_id IN ? OR followee_id IN ?", p.deletedUsers, p.deletedUsers).
			Delete(&models.UserFollow{}).Error; err != nil {
			return 0, 0, 0, fmt.Errorf("failed to remove edges of deleted users: %w", err)
		}
	}

	if len(p.follows) > 0 {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(p.follows, im.batchSize)
		if res.Error != nil {
			return 0, 0, 0, classify("insert follows", res.Error)
		}
		follows = res.RowsAffected
	}

	if len(p.recipes) > 0 {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"author_id", "name", "description", "category", "cook_time", "prep_time", "total_time",
				"date_published", "calories", "fat_content", "saturated_fat_content", "cholesterol_content",
				"sodium_content", "carbohydrate_content", "fiber_content", "sugar_content", "protein_content",
				"recipe_servings", "recipe_yield",
			}),
		}).CreateInBatches(p.recipes, im.batchSize).Error; err != nil {
			return 0, 0, 0, classify("upsert recipes", err)
		}
	}

	if len(p.ingredients) > 0 {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(p.ingredients, im.batchSize)
		if res.Error != nil {
			return 0, 0, 0, classify("insert ingredients", res.Error)
		}
		ingredients = res.RowsAffected
	}

	if len(p.reviews) > 0 {
		ids := make([]int64, len(p.reviews))
		for i, rv := range p.reviews {
			ids[i] = rv.ID
		}
		for _, part := range chunk(ids, im.batchSize) {
			var previous []int64
			if err := tx.Model(&models.Review{}).Where("id IN ?", part).Distinct().
				Pluck("recipe_id", &previous).Error; err != nil {
				return 0, 0, 0, fmt.Errorf("failed to load stored reviews: %w", err)
			}
			p.extraRecipes = append(p.extraRecipes, previous...)
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"recipe_id", "author_id", "rating", "review", "date_submitted", "date_modified"}),
		}).CreateInBatches(p.reviews, im.batchSize).Error; err != nil {
			return 0, 0, 0, classify("upsert reviews", err)
		}
	}

	if len(p.likes) > 0 {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(p.likes, im.batchSize)
		if res.Error != nil {
			return 0, 0, 0, classify("insert likes", res.Error)
		}
		likes = res.RowsAffected
	}
	return follows, likes, ingredients, nil
}

// keepStoredPasswords reuses the stored hash of every user whose batch
// password still verifies against it. Salted hashes would otherwise change
// on every run of the same batch.
func (im *Importer) keepStoredPasswords(tx *gorm.DB, p *plan) error {
	ids := make([]int64, 0, len(p.users))
	for _, u := range p.users {
		ids = append(ids, u.ID)
	}

	stored := make(map[int64]string, len(ids))
	for _, part := range chunk(ids, im.batchSize) {
		var rows []models.User
		if err := tx.Select("id", "password").Where("id IN ?", part).Find(&rows).Error; err != nil {
			return fmt.Errorf("failed to load stored passwords: %w", err)
		}
		for _, row := range rows {
			stored[row.ID] = row.Password
		}
	}

	for i := range p.users {
		hash, ok := stored[p.users[i].ID]
		if ok && im.hasher.Verify(hash, p.passwords[p.users[i].ID]) == nil {
			p.users[i].Password = hash
		}
	}
	return nil
}

// recount rebuilds the denormalized counters and aggregates of every touched
// row from the relation tables.
func (im *Importer) recount(tx *gorm.DB, p *plan) error {
	users := append(append([]int64{}, p.touchedUsers...), p.extraUsers...)
	for _, ids := range chunk(users, im.batchSize) {
		if err := tx.Model(&models.User{}).Where("id IN ?", ids).Updates(map[string]interface{}{
			"followers": gorm.Expr("(SELECT COUNT(*) FROM user_follows WHERE user_follows.followee_id = users.id)"),
			"following": gorm.Expr("(SELECT COUNT(*) FROM user_follows WHERE user_follows.follower_id = users.id)"),
		}).Error; err != nil {
			return fmt.Errorf("failed to recount follow counters: %w", err)
		}
	}

	recipes := append(append([]int64{}, p.touchedRecipes...), p.extraRecipes...)
	for _, ids := range chunk(recipes, im.batchSize) {
		if err := tx.Model(&models.Recipe{}).Where("id IN ?", ids).Updates(map[string]interface{}{
			"review_count": gorm.Expr("(SELECT COUNT(*) FROM reviews WHERE reviews.recipe_id = recipes.id)"),
			"aggregated_rating": gorm.Expr("COALESCE((SELECT " + database.RoundedAverageSQL("reviews.rating") +
				" FROM reviews WHERE reviews.recipe_id = recipes.id), 0)"),
		}).Error; err != nil {
			return fmt.Errorf("failed to recount recipe aggregates: %w", err)
		}
	}
	return nil
}

// classify turns constraint violations into import errors so that the run
// is aborted rather than retried.
func classify(step string, err error) error {
	if database.IsDuplicateKey(err) || strings.Contains(err.Error(), "constraint") {
		return apperror.Wrap(apperror.KindImport, op, err, step+" violated a constraint")
	}
	return fmt.Errorf("failed to %s: %w", step, err)
}

func chunk(ids []int64, size int) [][]int64 {
	var out [][]int64
	for size < len(ids) {
		ids, out = ids[size:], append(out, ids[:size])
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
