package importer

import (
	"fmt"
	"strings"

	"github.com/pageza/recipeshare/backend/internal/apperror"
	"github.com/pageza/recipeshare/backend/internal/types"
	"github.com/pageza/recipeshare/backend/internal/validation"
	"github.com/sosodev/duration"
)

const op = "import"

// index holds the ids and names present in a batch.
type index struct {
	users   map[int64]types.UserRecord
	names   map[string]int64
	recipes map[int64]struct{}
	reviews map[int64]struct{}
}

// validateBatch checks every primary record without touching the store.
// References to users or recipes outside the batch are returned for the
// caller to resolve against the store.
func validateBatch(batch types.Batch) (*index, error) {
	idx := &index{
		users:   make(map[int64]types.UserRecord, len(batch.Users)),
		names:   make(map[string]int64, len(batch.Users)),
		recipes: make(map[int64]struct{}, len(batch.Recipes)),
		reviews: make(map[int64]struct{}, len(batch.Reviews)),
	}

	for i, u := range batch.Users {
		if err := validation.ValidateStruct(u); err != nil {
			return nil, recordError("user", i, u.ID, err)
		}
		if strings.TrimSpace(u.Name) == "" {
			return nil, apperror.Import(op, "user[%d] id=%d: name must not be blank", i, u.ID)
		}
		if _, dup := idx.users[u.ID]; dup {
			return nil, apperror.Import(op, "user[%d] id=%d: duplicate id in batch", i, u.ID)
		}
		if other, dup := idx.names[u.Name]; dup {
			return nil, apperror.Import(op, "user[%d] id=%d: name %q already used by user %d in batch", i, u.ID, u.Name, other)
		}
		idx.users[u.ID] = u
		idx.names[u.Name] = u.ID
	}

	for i, r := range batch.Recipes {
		if err := validation.ValidateStruct(r); err != nil {
			return nil, recordError("recipe", i, r.ID, err)
		}
		if strings.TrimSpace(r.Name) == "" {
			return nil, apperror.Import(op, "recipe[%d] id=%d: name must not be blank", i, r.ID)
		}
		if _, dup := idx.recipes[r.ID]; dup {
			return nil, apperror.Import(op, "recipe[%d] id=%d: duplicate id in batch", i, r.ID)
		}
		for _, f := range []struct {
			name  string
			value *string
		}{{"cook_time", r.CookTime}, {"prep_time", r.PrepTime}, {"total_time", r.TotalTime}} {
			if f.value == nil {
				continue
			}
			d, err := duration.Parse(*f.value)
			if err != nil || d.ToTimeDuration() < 0 {
				return nil, apperror.Import(op, "recipe[%d] id=%d: %s %q is not a non-negative ISO-8601 duration", i, r.ID, f.name, *f.value)
			}
		}
		for _, part := range r.Ingredients {
			if strings.TrimSpace(part) == "" {
				return nil, apperror.Import(op, "recipe[%d] id=%d: blank ingredient", i, r.ID)
			}
		}
		idx.recipes[r.ID] = struct{}{}
	}

	for i, rv := range batch.Reviews {
		if err := validation.ValidateStruct(rv); err != nil {
			return nil, recordError("review", i, rv.ID, err)
		}
		if _, dup := idx.reviews[rv.ID]; dup {
			return nil, apperror.Import(op, "review[%d] id=%d: duplicate id in batch", i, rv.ID)
		}
		idx.reviews[rv.ID] = struct{}{}
	}
	return idx, nil
}

func recordError(kind string, i int, id int64, err error) error {
	return apperror.Wrap(apperror.KindImport, op, err, fmt.Sprintf("%s[%d] id=%d is invalid", kind, i, id))
}

// missingUsers lists referenced user ids absent from the batch.
func (idx *index) missingUsers(batch types.Batch) []int64 {
	seen := map[int64]struct{}{}
	var out []int64
	add := func(id int64) {
		if _, ok := idx.users[id]; ok {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, r := range batch.Recipes {
		add(r.AuthorID)
	}
	for _, rv := range batch.Reviews {
		add(rv.AuthorID)
	}
	return out
}

// missingRecipes lists recipe ids referenced by reviews but absent from the batch.
func (idx *index) missingRecipes(batch types.Batch) []int64 {
	seen := map[int64]struct{}{}
	var out []int64
	for _, rv := range batch.Reviews {
		if _, ok := idx.recipes[rv.RecipeID]; ok {
			continue
		}
		if _, ok := seen[rv.RecipeID]; ok {
			continue
		}
		seen[rv.RecipeID] = struct{}{}
		out = append(out, rv.RecipeID)
	}
	return out
}
