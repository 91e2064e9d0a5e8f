package main

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/pageza/recipeshare/backend/internal/types"
)

var dishes = []struct {
	name        string
	category    string
	ingredients []string
}{
	{"Pasta Carbonara", "Dinner", []string{"spaghetti", "egg", "pecorino", "guanciale", "black pepper"}},
	{"Greek Salad", "Lunch", []string{"tomato", "cucumber", "feta", "olive", "red onion", "olive oil"}},
	{"Banana Smoothie", "Breakfast", []string{"banana", "milk", "honey"}},
	{"Chickpea Curry", "Dinner", []string{"chickpeas", "coconut milk", "onion", "garlic", "ginger", "garam masala", "rice"}},
	{"Crème Brûlée", "Dessert", []string{"cream", "egg yolk", "sugar", "vanilla"}},
	{"Sourdough Bread", "Baking", []string{"flour", "water", "salt", "starter"}},
	{"Miso Soup", "Lunch", []string{"dashi", "miso", "tofu", "wakame", "scallion"}},
	{"Tom Yum", "Dinner", []string{"shrimp", "lemongrass", "galangal", "lime", "chili", "fish sauce"}},
	{"Hummus", "Snack", []string{"chickpeas", "tahini", "lemon", "garlic", "olive oil"}},
	{"Pancakes", "Breakfast", []string{"flour", "milk", "egg", "butter", "sugar", "baking powder"}},
	{"Beef Bulgogi", "Dinner", []string{"beef", "soy sauce", "pear", "garlic", "sesame oil", "sugar"}},
	{"Gazpacho", "Lunch", []string{"tomato", "cucumber", "bell pepper", "garlic", "sherry vinegar"}},
}

var names = []string{
	"ana", "ben", "chloe", "dev", "elif", "farah", "gus", "hana", "ivo", "jun",
	"kofi", "lena", "mo", "nadia", "omar", "pia", "quinn", "rosa", "sami", "tara",
}

var reviewTexts = []string{
	"Made it twice already.",
	"Too salty for me.",
	"Great weeknight dinner.",
	"Needed more time than stated.",
	"Family favourite now.",
}

// generate builds a deterministic demo batch. The same seed always yields
// the same batch.
func generate(seed uint64, users, recipes, reviews int, base time.Time) types.Batch {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	var batch types.Batch

	for i := 1; i <= users; i++ {
		name := names[(i-1)%len(names)]
		if i > len(names) {
			name = fmt.Sprintf("%s%d", name, (i-1)/len(names))
		}
		gender := "Female"
		if rng.IntN(2) == 0 {
			gender = "Male"
		}
		batch.Users = append(batch.Users, types.UserRecord{
			ID:       int64(i),
			Name:     name,
			Gender:   gender,
			Age:      18 + rng.IntN(60),
			Password: "password" + fmt.Sprint(i),
		})
	}
	for i := range batch.Users {
		for j := range batch.Users {
			if i != j && rng.IntN(4) == 0 {
				batch.Users[i].FollowingIDs = append(batch.Users[i].FollowingIDs, batch.Users[j].ID)
			}
		}
	}

	for i := 1; i <= recipes; i++ {
		dish := dishes[(i-1)%len(dishes)]
		name := dish.name
		if i > len(dishes) {
			name = fmt.Sprintf("%s #%d", dish.name, (i-1)/len(dishes)+1)
		}
		cook := fmt.Sprintf("PT%dM", 5*(1+rng.IntN(12)))
		prep := fmt.Sprintf("PT%dM", 5*(1+rng.IntN(6)))
		calories := float64(100 + rng.IntN(900))
		published := base.Add(time.Duration(i) * 6 * time.Hour)
		batch.Recipes = append(batch.Recipes, types.RecipeRecord{
			ID:            int64(i),
			Name:          name,
			AuthorID:      int64(1 + rng.IntN(users)),
			Description:   "A " + dish.category + " classic.",
			Category:      dish.category,
			CookTime:      &cook,
			PrepTime:      &prep,
			DatePublished: &published,
			Ingredients:   append([]string(nil), dish.ingredients...),
			Nutrition:     types.Nutrition{Calories: &calories},
		})
	}

	for i := 1; i <= reviews; i++ {
		recipe := batch.Recipes[rng.IntN(len(batch.Recipes))]
		submitted := recipe.DatePublished.Add(time.Duration(1+rng.IntN(72)) * time.Hour)
		review := types.ReviewRecord{
			ID:            int64(i),
			RecipeID:      recipe.ID,
			AuthorID:      int64(1 + rng.IntN(users)),
			Rating:        1 + rng.IntN(5),
			Review:        reviewTexts[rng.IntN(len(reviewTexts))],
			DateSubmitted: submitted,
			DateModified:  submitted,
		}
		for u := 1; u <= users; u++ {
			if int64(u) != review.AuthorID && rng.IntN(5) == 0 {
				review.Likes = append(review.Likes, int64(u))
			}
		}
		batch.Reviews = append(batch.Reviews, review)
	}
	return batch
}
