package models

// All lists every table model in foreign-key dependency order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&UserFollow{},
		&Recipe{},
		&RecipeIngredient{},
		&Review{},
		&ReviewLike{},
	}
}
