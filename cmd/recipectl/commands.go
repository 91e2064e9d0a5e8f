package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/pageza/recipeshare/backend/internal/importer"
	"github.com/pageza/recipeshare/backend/internal/pagination"
	"github.com/pageza/recipeshare/backend/internal/types"
)

type command struct {
	summary string
	run     func(ctx context.Context, a *app, args []string) (interface{}, error)
}

var commands = map[string]command{
	"register":       {"create an account", cmdRegister},
	"login":          {"check credentials", cmdLogin},
	"token":          {"issue a session token", cmdToken},
	"user":           {"show a user", cmdUser},
	"delete-account": {"soft-delete an account", cmdDeleteAccount},
	"update-profile": {"change gender or age", cmdUpdateProfile},
	"follow":         {"toggle following a user", cmdFollow},
	"unfollow":       {"stop following a user", cmdUnfollow},
	"ratio":          {"user with the highest follower/following ratio", cmdRatio},
	"feed":           {"recipes by followed users", cmdFeed},
	"create-recipe":  {"publish a recipe", cmdCreateRecipe},
	"delete-recipe":  {"delete an own recipe", cmdDeleteRecipe},
	"update-times":   {"change cook or prep time", cmdUpdateTimes},
	"recipe":         {"show a recipe", cmdRecipe},
	"recipe-name":    {"show a recipe name", cmdRecipeName},
	"search":         {"search recipes", cmdSearch},
	"calorie-pair":   {"two recipes with the closest calories", cmdCaloriePair},
	"complex":        {"recipes with the most ingredients", cmdComplex},
	"review-add":     {"review a recipe", cmdReviewAdd},
	"review-edit":    {"edit an own review", cmdReviewEdit},
	"review-delete":  {"delete an own review", cmdReviewDelete},
	"like":           {"like a review", cmdLike},
	"unlike":         {"remove a like", cmdUnlike},
	"reviews":        {"list reviews of a recipe", cmdReviews},
	"import":         {"bulk-load a batch from a file or S3", cmdImport},
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: recipectl [-migrate=false] [-metrics-file path] <command> [flags]")
	fmt.Fprintln(w)
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(tw, "  %s\t%s\n", name, commands[name].summary)
	}
	_ = tw.Flush()
}

// usageError marks bad command-line input.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func isUsage(err error) bool {
	var u *usageError
	return errors.As(err, &u)
}

func usagef(format string, args ...interface{}) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return &usageError{err: err}
	}
	if fs.NArg() > 0 {
		return usagef("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return nil
}

func authFlags(fs *flag.FlagSet) *types.AuthInfo {
	auth := &types.AuthInfo{}
	fs.Int64Var(&auth.UserID, "as", 0, "acting user id")
	fs.StringVar(&auth.Password, "password", os.Getenv("RECIPECTL_PASSWORD"), "acting user password")
	fs.StringVar(&auth.Token, "token", os.Getenv("RECIPECTL_TOKEN"), "session token, used instead of the password")
	return auth
}

func pageFlags(fs *flag.FlagSet) *pagination.Request {
	page := &pagination.Request{}
	fs.IntVar(&page.Page, "page", 1, "1-based page number")
	fs.IntVar(&page.Size, "size", 20, "page size")
	return page
}

// isSet reports whether the named flag appeared on the command line.
func isSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func requireID(name string, id int64) error {
	if id == 0 {
		return usagef("-%s is required", name)
	}
	return nil
}

// stringList collects a repeatable string flag.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// optionalFloat is a float flag that stays nil unless given.
type optionalFloat struct{ v *float64 }

func (f *optionalFloat) String() string {
	if f.v == nil {
		return ""
	}
	return strconv.FormatFloat(*f.v, 'f', -1, 64)
}

func (f *optionalFloat) Set(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	f.v = &v
	return nil
}

func cmdRegister(ctx context.Context, a *app, args []string) (interface{}, error) {
	fs := newFlagSet("register")
	req := &types.RegisterUserRequest{}
	fs.StringVar(&req.Name, "name", "", "unique user name")
	fs.StringVar(&req.Gender, "gender", "", "gender")
	fs.StringVar(&req.Birthday, "birthday", "", "birthday as yyyy-MM-dd")
	fs.StringVar(&req.Password, "password", os.Getenv("RECIPECTL_PASSWORD"), "password")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	id, err := a.svc.Users.Register(ctx, req)
	if err != nil {
		return nil, err
	}
	return map[string]int64{"user_id": id}, nil
}

func cmdLogin(ctx context.Context, a *app, args []string) (interface{}, error) {
	fs := newFlagSet("login")
	auth := authFlags(fs)
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	id, err := a.svc.Users.Login(ctx, *auth)
	if err != nil {
		return nil, err
	}
	return map[string]int64{"user_id": id}, nil
}

func cmdToken(ctx context.Context, a *app, args []string) (interface{}, error) {
	fs := newFlagSet("token")
	auth := authFlags(fs)
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	token, err := a.svc.Users.IssueToken(ctx, *auth)
	if err != nil {
		return nil, err
	}
	return map[string]string{"token": token}, nil
}

func cmdUser(ctx context.Context, a *app, args []string) (interface{}, error) {
	fs := newFlagSet("user")
	id := fs.Int64("id", 0, "user id")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	if err := requireID("id", *id); err != nil {
		return nil, err
	}
	return a.svc.Users.GetUser(ctx, *id)
}

func cmdDeleteAccount(ctx context.Context, a *app, args []string) (interface{}, error) {
	fs := newFlagSet("delete-account")
	auth := authFlags(fs)
	id := fs.Int64("id", 0, "account to delete, defaults to the acting user")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	if *id == 0 {
		*id = auth.UserID
	}
	if err := a.throttle(ctx, auth.UserID); err != nil {
		return nil, err
	}
	deleted, err := a.svc.Users.DeleteAccount(ctx, *auth, *id)
	if err != nil {
		return nil, err
	}
	return map[string]bool{"deleted": deleted}, nil
}

func cmdUpdateProfile(ctx context.Context, a *app, args []string) (interface{}, error) {
	fs := newFlagSet("update-profile")
	auth := authFlags(fs)
	gender := fs.String("gender", "", "new gender")
	age := fs.Int("age", 0, "new age")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	req := &types.UpdateProfileRequest{}
	if isSet(fs, "gender") {
		req.Gender = gender
	}
	if isSet(fs, "age") {
		req.Age = age
	}
	if err := a.throttle(ctx, auth.UserID); err != nil {
		return nil, err
	}
	if err := a.svc.Users.UpdateProfile(ctx, *auth, req); err != nil {
		return nil, err
	}
	return a.svc.Users.GetUser(ctx, auth.UserID)
}

func followCommand(name string, unfollow bool) func(context.Context, *app, []string) (interface{}, error) {
	return func(ctx context.Context, a *app, args []string) (interface{}, error) {
		fs := newFlagSet(name)
		auth := authFlags(fs)
		target := fs.Int64("user", 0, "user to follow")
		if err := parse(fs, args); err != nil {
			return nil, err
		}
		if err := requireID("user", *target); err != nil {
			return nil, err
		}
		if err := a.throttle(ctx, auth.UserID); err != nil {
			return nil, err
		}
		var following bool
		var err error
		if unfollow {
			following, err = a.svc.Social.Unfollow(ctx, *auth, *target)
		} else {
			following, err = a.svc.Social.Follow(ctx, *auth, *target)
		}
		if err != nil {
			return nil, err
		}
		return map[string]bool{"following": following}, nil
	}
}

var (
	cmdFollow   = followCommand("follow", false)
	cmdUnfollow = followCommand("unfollow", true)
)

func cmdRatio(ctx context.Context, a *app, args []string) (interface{}, error) {
	if err := parse(newFlagSet("ratio"), args); err != nil {
		return nil, err
	}
	return a.svc.Social.HighestFollowRatio(ctx)
}

func cmdFeed(ctx context.Context, a *app, args []string) (interface{}, error) {
	fs := newFlagSet("feed")
	auth := authFlags(fs)
	category := fs.String("category", "", "only this category")
	page := pageFlags(fs)
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	return a.svc.Social.Feed(ctx, *auth, *category, *page)
}

func cmdCreateRecipe(ctx context.Context, a *app, args []string) (interface{}, error) {
	fs := newFlagSet("create-recipe")
	auth := authFlags(fs)
	file := fs.String("file", "", "JSON recipe document, - for stdin; other recipe flags override it")
	name := fs.String("name", "", "recipe name")
	description := fs.String("description", "", "description")
	category := fs.String("category", "", "category")
	cook := fs.String("cook", "", "cook time, ISO-8601 duration")
	prep := fs.String("prep", "", "prep time, ISO-8601 duration")
	var calories optionalFloat
	fs.Var(&calories, "calories", "calories")
	var ingredients stringList
	fs.Var(&ingredients, "ingredient", "ingredient, repeatable")
	if err := parse(fs, args); err != nil {
		return nil, err
	}

	req := &types.CreateRecipeRequest{}
	if *file != "" {
		if err := readJSON(*file, req); err != nil {
			return nil, err
		}
	}
	if isSet(fs, "name") {
		req.Name = *name
	}
	if isSet(fs, "description") {
		req.Description = *description
	}
	if isSet(fs, "category") {
		req.Category = *category
	}
	if isSet(fs, "cook") {
		req.CookTime = cook
	}
	if isSet(fs, "prep") {
		req.PrepTime = prep
	}
	if calories.v != nil {
		req.Calories = calories.v
	}
	if len(ingredients) > 0 {
		req.Ingredients = ingredients
	}

	if err := a.throttle(ctx, auth.UserID); err != nil {
		return nil, err
	}
	id, err := a.svc.Recipes.CreateRecipe(ctx, *auth, req)
	if err != nil {
		return nil, err
	}
	return map[string]int64{"recipe_id": id}, nil
}

func readJSON(path string, v interface{}) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return usagef("open %s: %v", path, err)
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return usagef("decode %s: %v", path, err)
	}
	return nil
}

func cmdDeleteRecipe(ctx context.Context, a *app, args []string) (interface{}, error) {
	fs := newFlagSet("delete-recipe")
	auth := authFlags(fs)
	id := fs.Int64("recipe", 0, "recipe id")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	if err := requireID("recipe", *id); err != nil {
		return nil, err
	}
	if err := a.throttle(ctx, auth.UserID); err != nil {
		return nil, err
	}
	if err := a.svc.Recipes.DeleteRecipe(ctx, *auth, *id); err != nil {
		return nil, err
	}
	return map[string]int64{"deleted": *id}, nil
}

func cmdUpdateTimes(ctx context.Context, a *app, args []string) (interface{}, error) {
	fs := newFlagSet("update-times")
	auth := authFlags(fs)
	id := fs.Int64("recipe", 0, "recipe id")
	cook := fs.String("cook", "", "cook time, ISO-8601 duration")
	prep := fs.String("prep", "", "prep time, ISO-8601 duration")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	if err := requireID("recipe", *id); err != nil {
		return nil, err
	}
	var cookTime, prepTime *string
	if isSet(fs, "cook") {
		cookTime = cook
	}
	if isSet(fs, "prep") {
		prepTime = prep
	}
	if err := a.throttle(ctx, auth.UserID); err != nil {
		return nil, err
	}
	if err := a.svc.Recipes.UpdateTimes(ctx, *auth, *id, cookTime, prepTime); err != nil {
		return nil, err
	}
	return a.svc.Recipes.GetRecipe(ctx, *id)
}

func cmdRecipe(ctx context.Context, a *app, args []string) (interface{}, error) {
	fs := newFlagSet("recipe")
	id := fs.Int64("id", 0, "recipe id")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	if err := requireID("id", *id); err != nil {
		return nil, err
	}
	return a.svc.Recipes.GetRecipe(ctx, *id)
}

func cmdRecipeName(ctx context.Context, a *app, args []string) (interface{}, error) {
	fs := newFlagSet("recipe-name")
	id := fs.Int64("id", 0, "recipe id")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	if err := requireID("id", *id); err != nil {
		return nil, err
	}
	name, err := a.svc.Recipes.GetRecipeName(ctx, *id)
	if err != nil {
		return nil, err
	}
	return map[string]string{"name": name}, nil
}

func cmdSearch(ctx context.Context, a *app, args []string) (interface{}, error) {
	fs := newFlagSet("search")
	filter := types.RecipeFilter{}
	fs.StringVar(&filter.Keyword, "keyword", "", "substring of name or description, case-insensitive")
	fs.StringVar(&filter.Category, "category", "", "exact category")
	var minRating optionalFloat
	fs.Var(&minRating, "min-rating", "minimum aggregated rating, 0 to 5")
	fs.StringVar(&filter.Sort, "sort", "", "rating_desc, date_desc, calories_asc or likes_desc")
	page := pageFlags(fs)
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	filter.MinRating = minRating.v
	return a.svc.Recipes.SearchRecipes(ctx, filter, *page)
}

func cmdCaloriePair(ctx context.Context, a *app, args []string) (interface{}, error) {
	if err := parse(newFlagSet("calorie-pair"), args); err != nil {
		return nil, err
	}
	return a.svc.Recipes.ClosestCaloriePair(ctx)
}

func cmdComplex(ctx context.Context, a *app, args []string) (interface{}, error) {
	fs := newFlagSet("complex")
	limit := fs.Int("limit", 10, "number of recipes")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	return a.svc.Recipes.TopComplexRecipes(ctx, *limit)
}

func cmdReviewAdd(ctx context.Context, a *app, args []string) (interface{}, error) {
	fs := newFlagSet("review-add")
	auth := authFlags(fs)
	recipe := fs.Int64("recipe", 0, "recipe id")
	rating := fs.Int("rating", 0, "rating, 0 to 5")
	body := fs.String("text", "", "review text")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	if err := requireID("recipe", *recipe); err != nil {
		return nil, err
	}
	if err := a.throttle(ctx, auth.UserID); err != nil {
		return nil, err
	}
	id, err := a.svc.Reviews.AddReview(ctx, *auth, *recipe, *rating, *body)
	if err != nil {
		return nil, err
	}
	return map[string]int64{"review_id": id}, nil
}

func cmdReviewEdit(ctx context.Context, a *app, args []string) (interface{}, error) {
	fs := newFlagSet("review-edit")
	auth := authFlags(fs)
	recipe := fs.Int64("recipe", 0, "recipe id")
	review := fs.Int64("review", 0, "review id")
	rating := fs.Int("rating", 0, "rating, 0 to 5")
	body := fs.String("text", "", "review text")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	if err := requireID("recipe", *recipe); err != nil {
		return nil, err
	}
	if err := requireID("review", *review); err != nil {
		return nil, err
	}
	if err := a.throttle(ctx, auth.UserID); err != nil {
		return nil, err
	}
	if err := a.svc.Reviews.EditReview(ctx, *auth, *recipe, *review, *rating, *body); err != nil {
		return nil, err
	}
	return a.svc.Recipes.GetRecipe(ctx, *recipe)
}

func cmdReviewDelete(ctx context.Context, a *app, args []string) (interface{}, error) {
	fs := newFlagSet("review-delete")
	auth := authFlags(fs)
	recipe := fs.Int64("recipe", 0, "recipe id")
	review := fs.Int64("review", 0, "review id")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	if err := requireID("recipe", *recipe); err != nil {
		return nil, err
	}
	if err := requireID("review", *review); err != nil {
		return nil, err
	}
	if err := a.throttle(ctx, auth.UserID); err != nil {
		return nil, err
	}
	if err := a.svc.Reviews.DeleteReview(ctx, *auth, *recipe, *review); err != nil {
		return nil, err
	}
	return a.svc.Recipes.GetRecipe(ctx, *recipe)
}

func likeCommand(name string, unlike bool) func(context.Context, *app, []string) (interface{}, error) {
	return func(ctx context.Context, a *app, args []string) (interface{}, error) {
		fs := newFlagSet(name)
		auth := authFlags(fs)
		review := fs.Int64("review", 0, "review id")
		if err := parse(fs, args); err != nil {
			return nil, err
		}
		if err := requireID("review", *review); err != nil {
			return nil, err
		}
		if err := a.throttle(ctx, auth.UserID); err != nil {
			return nil, err
		}
		var likes int64
		var err error
		if unlike {
			likes, err = a.svc.Reviews.UnlikeReview(ctx, *auth, *review)
		} else {
			likes, err = a.svc.Reviews.LikeReview(ctx, *auth, *review)
		}
		if err != nil {
			return nil, err
		}
		return map[string]int64{"likes": likes}, nil
	}
}

var (
	cmdLike   = likeCommand("like", false)
	cmdUnlike = likeCommand("unlike", true)
)

func cmdReviews(ctx context.Context, a *app, args []string) (interface{}, error) {
	fs := newFlagSet("reviews")
	recipe := fs.Int64("recipe", 0, "recipe id")
	sortBy := fs.String("sort", "", "date_desc or likes_desc")
	page := pageFlags(fs)
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	if err := requireID("recipe", *recipe); err != nil {
		return nil, err
	}
	return a.svc.Reviews.ListByRecipe(ctx, *recipe, *sortBy, *page)
}

func cmdImport(ctx context.Context, a *app, args []string) (interface{}, error) {
	fs := newFlagSet("import")
	file := fs.String("file", "", "batch JSON file")
	key := fs.String("s3-key", "", "object key of the batch in the configured bucket")
	if err := parse(fs, args); err != nil {
		return nil, err
	}

	var batch types.Batch
	var err error
	switch {
	case *file != "" && *key != "":
		return nil, usagef("-file and -s3-key are mutually exclusive")
	case *file != "":
		batch, err = importer.LoadFile(*file)
	case *key != "":
		if a.s3 == nil {
			return nil, usagef("-s3-key needs S3_BUCKET_NAME to be set")
		}
		batch, err = a.s3.Load(ctx, *key)
	default:
		return nil, usagef("one of -file or -s3-key is required")
	}
	if err != nil {
		return nil, err
	}

	report, err := a.importer.Import(ctx, batch)
	if err != nil {
		return nil, err
	}
	return struct {
		*importer.Report
		Elapsed string `json:"elapsed"`
	}{report, report.Duration.Round(time.Millisecond).String()}, nil
}
