package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pageza/recipeshare/backend/internal/apperror"
	"github.com/pageza/recipeshare/backend/internal/database"
	"github.com/pageza/recipeshare/backend/internal/events"
	"github.com/pageza/recipeshare/backend/internal/idalloc"
	"github.com/pageza/recipeshare/backend/internal/models"
	"github.com/pageza/recipeshare/backend/internal/pagination"
	"github.com/pageza/recipeshare/backend/internal/security"
	"github.com/pageza/recipeshare/backend/internal/types"
	"github.com/pageza/recipeshare/backend/internal/validation"
	"gorm.io/gorm"
)

// RecipeService handles recipe authoring and the recipe read queries
type RecipeService struct {
	runner *database.Runner
	auth   authenticator
	events events.Publisher
	now    func() time.Time
}

// Ensure RecipeService implements IRecipeService
var _ IRecipeService = (*RecipeService)(nil)

// NewRecipeService creates a new RecipeService instance
func NewRecipeService(runner *database.Runner, hasher security.PasswordHasher, tokens *security.TokenIssuer, pub events.Publisher) *RecipeService {
	return &RecipeService{
		runner: runner,
		auth:   authenticator{hasher: hasher, tokens: tokens},
		events: pub,
		now:    time.Now,
	}
}

// CreateRecipe stores a new recipe authored by the acting user with zeroed
// aggregates and returns its id.
func (s *RecipeService) CreateRecipe(ctx context.Context, auth types.AuthInfo, req *types.CreateRecipeRequest) (int64, error) {
	const op = "recipe.create"
	if req == nil {
		return 0, apperror.Validation(op, "request is required")
	}
	if err := validation.ValidateStruct(req); err != nil {
		return 0, apperror.Wrap(apperror.KindValidation, op, err, "invalid recipe")
	}
	if strings.TrimSpace(req.Name) == "" {
		return 0, apperror.Validation(op, "recipe name must not be blank")
	}
	total, err := totalTime(op, req.CookTime, req.PrepTime)
	if err != nil {
		return 0, err
	}

	parts := make([]string, 0, len(req.Ingredients))
	for _, p := range req.Ingredients {
		p = strings.TrimSpace(p)
		if p == "" {
			return 0, apperror.Validation(op, "ingredient must not be blank")
		}
		parts = append(parts, p)
	}

	published := req.DatePublished
	if published == nil {
		now := s.now().UTC()
		published = &now
	}

	var id int64
	err = s.runner.Transact(ctx, op, func(tx *gorm.DB) error {
		actor, err := s.auth.authenticate(tx, op, auth)
		if err != nil {
			return err
		}
		next, err := idalloc.Next(ctx, tx, "recipes")
		if err != nil {
			return err
		}

		recipe := &models.Recipe{
			ID:             next,
			AuthorID:       actor.ID,
			Name:           req.Name,
			Description:    req.Description,
			Category:       req.Category,
			CookTime:       req.CookTime,
			PrepTime:       req.PrepTime,
			TotalTime:      total,
			DatePublished:  published,
			RecipeServings: req.RecipeServings,
			RecipeYield:    req.RecipeYield,
		}
		applyNutrition(recipe, req.Nutrition)
		if err := tx.Create(recipe).Error; err != nil {
			return fmt.Errorf("failed to create recipe: %w", err)
		}

		for _, part := range parts {
			err := tx.Create(&models.RecipeIngredient{RecipeID: next, IngredientPart: part}).Error
			if database.IsDuplicateKey(err) {
				return apperror.Wrap(apperror.KindConflict, op, err, fmt.Sprintf("ingredient %q listed twice", part))
			}
			if err != nil {
				return fmt.Errorf("failed to add ingredient: %w", err)
			}
		}
		id = next
		return nil
	})
	if err != nil {
		return 0, err
	}

	publish(ctx, s.events, events.SubjectRecipeCreated, map[string]interface{}{"recipe_id": id, "name": req.Name})
	return id, nil
}

// DeleteRecipe removes a recipe together with its likes, reviews and
// ingredients. Only the author may delete it.
func (s *RecipeService) DeleteRecipe(ctx context.Context, auth types.AuthInfo, recipeID int64) error {
	const op = "recipe.delete"
	err := s.runner.Transact(ctx, op, func(tx *gorm.DB) error {
		actor, err := s.auth.authenticate(tx, op, auth)
		if err != nil {
			return err
		}
		recipe, err := lockRecipe(tx, op, recipeID)
		if err != nil {
			return err
		}
		if recipe.AuthorID != actor.ID {
			return apperror.Authorization(op, "user %d is not the author of recipe %d", actor.ID, recipeID)
		}

		reviewIDs := tx.Model(&models.Review{}).Select("id").Where("recipe_id = ?", recipeID)
		if err := tx.Where("review_id IN (?)", reviewIDs).Delete(&models.ReviewLike{}).Error; err != nil {
			return fmt.Errorf("failed to delete review likes: %w", err)
		}
		if err := tx.Where("recipe_id = ?", recipeID).Delete(&models.Review{}).Error; err != nil {
			return fmt.Errorf("failed to delete reviews: %w", err)
		}
		if err := tx.Where("recipe_id = ?", recipeID).Delete(&models.RecipeIngredient{}).Error; err != nil {
			return fmt.Errorf("failed to delete ingredients: %w", err)
		}
		if err := tx.Where("id = ?", recipeID).Delete(&models.Recipe{}).Error; err != nil {
			return fmt.Errorf("failed to delete recipe: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	publish(ctx, s.events, events.SubjectRecipeDeleted, map[string]interface{}{"recipe_id": recipeID})
	return nil
}

// UpdateTimes replaces the cook and/or prep time of a recipe and recomputes
// its total time. A nil argument keeps the stored value.
func (s *RecipeService) UpdateTimes(ctx context.Context, auth types.AuthInfo, recipeID int64, cookTime, prepTime *string) error {
	const op = "recipe.update_times"
	if cookTime != nil {
		if _, err := parseDuration(op, "cook_time", *cookTime); err != nil {
			return err
		}
	}
	if prepTime != nil {
		if _, err := parseDuration(op, "prep_time", *prepTime); err != nil {
			return err
		}
	}

	return s.runner.Transact(ctx, op, func(tx *gorm.DB) error {
		actor, err := s.auth.authenticate(tx, op, auth)
		if err != nil {
			return err
		}
		recipe, err := lockRecipe(tx, op, recipeID)
		if err != nil {
			return err
		}
		if recipe.AuthorID != actor.ID {
			return apperror.Authorization(op, "user %d is not the author of recipe %d", actor.ID, recipeID)
		}

		cook, prep := recipe.CookTime, recipe.PrepTime
		if cookTime != nil {
			cook = cookTime
		}
		if prepTime != nil {
			prep = prepTime
		}
		total, err := totalTime(op, cook, prep)
		if err != nil {
			return err
		}

		if err := tx.Model(&models.Recipe{}).Where("id = ?", recipeID).
			Updates(map[string]interface{}{"cook_time": cook, "prep_time": prep, "total_time": total}).Error; err != nil {
			return fmt.Errorf("failed to update recipe times: %w", err)
		}
		return nil
	})
}

// GetRecipe returns a recipe with its ingredients sorted case-insensitively.
// Recipes of deleted authors stay addressable by id.
func (s *RecipeService) GetRecipe(ctx context.Context, recipeID int64) (*types.RecipeRecord, error) {
	db := s.runner.DB().WithContext(ctx)

	var recipe models.Recipe
	if err := db.Where("id = ?", recipeID).Take(&recipe).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("recipe.get", "recipe %d not found", recipeID)
		}
		return nil, fmt.Errorf("failed to load recipe: %w", err)
	}

	records, err := s.toRecords(db, []models.Recipe{recipe})
	if err != nil {
		return nil, err
	}
	return &records[0], nil
}

// GetRecipeName returns only the name of a recipe.
func (s *RecipeService) GetRecipeName(ctx context.Context, recipeID int64) (string, error) {
	var names []string
	if err := s.runner.DB().WithContext(ctx).Model(&models.Recipe{}).
		Where("id = ?", recipeID).Limit(1).Pluck("name", &names).Error; err != nil {
		return "", fmt.Errorf("failed to load recipe name: %w", err)
	}
	if len(names) == 0 {
		return "", apperror.NotFound("recipe.name", "recipe %d not found", recipeID)
	}
	return names[0], nil
}

var recipeSortOrders = map[string]string{
	types.SortDefaultOrder: "recipes.id ASC",
	types.SortRatingDesc:   "recipes.aggregated_rating DESC NULLS LAST, recipes.id ASC",
	types.SortDateDesc:     "recipes.date_published DESC NULLS LAST, recipes.id ASC",
	types.SortCaloriesAsc:  "recipes.calories ASC NULLS LAST, recipes.id ASC",
}

// SearchRecipes pages through recipes of live authors matching filter.
func (s *RecipeService) SearchRecipes(ctx context.Context, filter types.RecipeFilter, page pagination.Request) (pagination.Result[types.RecipeRecord], error) {
	const op = "recipe.search"
	empty := pagination.Result[types.RecipeRecord]{Page: page.Page, Size: page.Size, Items: []types.RecipeRecord{}}

	order, ok := recipeSortOrders[filter.Sort]
	if !ok {
		return empty, apperror.Validation(op, "unknown sort %q", filter.Sort)
	}
	if filter.MinRating != nil && (*filter.MinRating < 0 || *filter.MinRating > models.MaxRating) {
		return empty, apperror.Validation(op, "min rating must be within 0..%d", models.MaxRating)
	}

	db := s.runner.DB().WithContext(ctx)
	base := db.Model(&models.Recipe{}).
		Joins("JOIN users ON users.id = recipes.author_id").
		Where("users.is_deleted = ?", false)
	if kw := strings.TrimSpace(filter.Keyword); kw != "" {
		pattern := "%" + escapeLike(strings.ToLower(kw)) + "%"
		base = base.Where(`(LOWER(recipes.name) LIKE ? ESCAPE '\' OR LOWER(recipes.description) LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	if filter.Category != "" {
		base = base.Where("recipes.category = ?", filter.Category)
	}
	if filter.MinRating != nil {
		base = base.Where("recipes.aggregated_rating >= ?", *filter.MinRating)
	}

	rows, err := pagination.Query[models.Recipe](ctx, base, page, pagination.Window{Select: "recipes.*", Order: order})
	if err != nil {
		return empty, err
	}
	records, err := s.toRecords(db, rows.Items)
	if err != nil {
		return empty, err
	}
	return pagination.Result[types.RecipeRecord]{Items: records, Page: rows.Page, Size: rows.Size, Total: rows.Total}, nil
}

// ClosestCaloriePair returns the two recipes with the smallest calorie
// difference. Only neighbours in (calories, id) order are compared.
func (s *RecipeService) ClosestCaloriePair(ctx context.Context) (*types.CaloriePair, error) {
	var pairs []types.CaloriePair
	err := s.runner.DB().WithContext(ctx).Raw(`
		SELECT recipe_a, recipe_b, calories_a, calories_b, ABS(calories_b - calories_a) AS difference
		FROM (
			SELECT LAG(id) OVER (ORDER BY calories, id) AS recipe_a,
			       id AS recipe_b,
			       LAG(calories) OVER (ORDER BY calories, id) AS calories_a,
			       calories AS calories_b
			FROM recipes
			WHERE calories IS NOT NULL
		) adjacent
		WHERE recipe_a IS NOT NULL
		ORDER BY difference ASC,
		         CASE WHEN recipe_a < recipe_b THEN recipe_a ELSE recipe_b END ASC,
		         CASE WHEN recipe_a < recipe_b THEN recipe_b ELSE recipe_a END ASC
		LIMIT 1`).Scan(&pairs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find closest calorie pair: %w", err)
	}
	if len(pairs) == 0 {
		return nil, apperror.NotFound("recipe.calorie_pair", "fewer than two recipes have calories")
	}

	p := pairs[0]
	if p.RecipeA > p.RecipeB {
		p.RecipeA, p.RecipeB = p.RecipeB, p.RecipeA
		p.CaloriesA, p.CaloriesB = p.CaloriesB, p.CaloriesA
	}
	return &p, nil
}

// TopComplexRecipes returns the limit recipes with the most ingredients.
func (s *RecipeService) TopComplexRecipes(ctx context.Context, limit int) ([]types.ComplexRecipe, error) {
	if limit < 1 {
		return nil, apperror.Validation("recipe.complex", "limit must be >= 1, got %d", limit)
	}

	out := []types.ComplexRecipe{}
	err := s.runner.DB().WithContext(ctx).
		Table("recipe_ingredients").
		Select("recipes.id AS recipe_id, recipes.name AS name, COUNT(*) AS ingredient_count").
		Joins("JOIN recipes ON recipes.id = recipe_ingredients.recipe_id").
		Group("recipes.id, recipes.name").
		Order("ingredient_count DESC, recipes.id ASC").
		Limit(limit).
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to rank recipes by ingredients: %w", err)
	}
	return out, nil
}

// toRecords converts recipe rows, batch-loading author names and
// ingredient lists.
func (s *RecipeService) toRecords(db *gorm.DB, recipes []models.Recipe) ([]types.RecipeRecord, error) {
	out := make([]types.RecipeRecord, 0, len(recipes))
	if len(recipes) == 0 {
		return out, nil
	}

	recipeIDs := make([]int64, 0, len(recipes))
	authorIDs := make([]int64, 0, len(recipes))
	for _, r := range recipes {
		recipeIDs = append(recipeIDs, r.ID)
		authorIDs = append(authorIDs, r.AuthorID)
	}

	var authors []models.User
	if err := db.Select("id", "name").Where("id IN ?", authorIDs).Find(&authors).Error; err != nil {
		return nil, fmt.Errorf("failed to load recipe authors: %w", err)
	}
	names := make(map[int64]string, len(authors))
	for _, a := range authors {
		names[a.ID] = a.Name
	}

	var ingredients []models.RecipeIngredient
	if err := db.Where("recipe_id IN ?", recipeIDs).Find(&ingredients).Error; err != nil {
		return nil, fmt.Errorf("failed to load ingredients: %w", err)
	}
	parts := make(map[int64][]string, len(recipes))
	for _, ing := range ingredients {
		parts[ing.RecipeID] = append(parts[ing.RecipeID], ing.IngredientPart)
	}

	for _, r := range recipes {
		list := parts[r.ID]
		if list == nil {
			list = []string{}
		}
		sortIngredients(list)
		out = append(out, types.RecipeRecord{
			ID:               r.ID,
			Name:             r.Name,
			AuthorID:         r.AuthorID,
			AuthorName:       names[r.AuthorID],
			Description:      r.Description,
			Category:         r.Category,
			CookTime:         r.CookTime,
			PrepTime:         r.PrepTime,
			TotalTime:        r.TotalTime,
			DatePublished:    r.DatePublished,
			AggregatedRating: r.AggregatedRating,
			ReviewCount:      r.ReviewCount,
			Ingredients:      list,
			Nutrition: types.Nutrition{
				Calories:            r.Calories,
				FatContent:          r.FatContent,
				SaturatedFatContent: r.SaturatedFatContent,
				CholesterolContent:  r.CholesterolContent,
				SodiumContent:       r.SodiumContent,
				CarbohydrateContent: r.CarbohydrateContent,
				FiberContent:        r.FiberContent,
				SugarContent:        r.SugarContent,
				ProteinContent:      r.ProteinContent,
			},
			RecipeServings: r.RecipeServings,
			RecipeYield:    r.RecipeYield,
		})
	}
	return out, nil
}

func applyNutrition(r *models.Recipe, n types.Nutrition) {
	r.Calories = n.Calories
	r.FatContent = n.FatContent
	r.SaturatedFatContent = n.SaturatedFatContent
	r.CholesterolContent = n.CholesterolContent
	r.SodiumContent = n.SodiumContent
	r.CarbohydrateContent = n.CarbohydrateContent
	r.FiberContent = n.FiberContent
	r.SugarContent = n.SugarContent
	r.ProteinContent = n.ProteinContent
}

// sortIngredients orders case-insensitively, raw value breaking ties.
func sortIngredients(parts []string) {
	sort.Slice(parts, func(i, j int) bool {
		a, b := strings.ToLower(parts[i]), strings.ToLower(parts[j])
		if a != b {
			return a < b
		}
		return parts[i] < parts[j]
	})
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
