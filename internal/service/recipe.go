package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/media"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

// IngredientAmount is one submitted ingredient line.
type IngredientAmount struct {
	ID     int64
	Amount int
}

// RecipeInput is a create or update request. Nil fields were not sent.
// Ingredients is required on both create and update: an update replaces the
// whole set.
type RecipeInput struct {
	Name        *string
	Text        *string
	Image       *string
	CookingTime *int
	Ingredients []IngredientAmount
}

// RecipeQuery filters List. FavoritedOnly and InCartOnly are ignored for
// anonymous viewers.
type RecipeQuery struct {
	AuthorID      int64
	FavoritedOnly bool
	InCartOnly    bool
	repository.ListOptions
}

// RecipeService implements recipe CRUD, the author-or-staff write policy and
// the recipe image lifecycle.
type RecipeService struct {
	viewer
	recipes     repository.RecipeRepository
	ingredients repository.IngredientRepository
	baseURL     string
	logger      *slog.Logger
}

func NewRecipeService(
	recipes repository.RecipeRepository,
	ingredients repository.IngredientRepository,
	users repository.UserRepository,
	subs repository.SubscriptionRepository,
	markers repository.MarkerRepository,
	store media.Store,
	baseURL string,
	logger *slog.Logger,
) *RecipeService {
	return &RecipeService{
		viewer:      viewer{users: users, subs: subs, markers: markers, store: store},
		recipes:     recipes,
		ingredients: ingredients,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		logger:      logger,
	}
}

// Create validates in, stores the image and inserts the recipe with its
// ingredient lines. The returned view is what GET would return.
func (s *RecipeService) Create(ctx context.Context, authorID int64, in RecipeInput) (*RecipeView, error) {
	if in.Name == nil {
		return nil, apperror.ValidationFailed("name", "name is required")
	}
	if in.Text == nil {
		return nil, apperror.ValidationFailed("text", "text is required")
	}
	if in.CookingTime == nil {
		return nil, apperror.ValidationFailed("cooking_time", "cooking_time is required")
	}
	if in.Image == nil || *in.Image == "" {
		return nil, apperror.ValidationFailed("image", "image is required")
	}
	if err := s.validate(ctx, in); err != nil {
		return nil, err
	}

	key, err := saveImage(ctx, s.store, "image", media.PrefixRecipes, *in.Image)
	if err != nil {
		logFailure(s.logger, "failed to save recipe image", err)
		return nil, fmt.Errorf("service/recipe: %w", err)
	}

	recipe := &model.Recipe{
		AuthorID:    authorID,
		Name:        strings.TrimSpace(*in.Name),
		Text:        strings.TrimSpace(*in.Text),
		Image:       key,
		CookingTime: *in.CookingTime,
		Ingredients: lines(in.Ingredients),
	}
	if err := s.recipes.CreateRecipe(ctx, recipe); err != nil {
		deleteFile(ctx, s.store, s.logger, key)
		logFailure(s.logger, "failed to create recipe", err, slog.Int64("authorID", authorID))
		return nil, fmt.Errorf("service/recipe: creating: %w", err)
	}

	s.logger.Info("recipe created",
		slog.Int64("id", recipe.ID),
		slog.Int64("authorID", authorID),
		slog.Int("ingredients", len(recipe.Ingredients)),
	)
	return s.recipeView(ctx, authorID, recipe, nil)
}

// Update applies a partial update. Only the author or a staff account may
// update; ingredients must be sent and replace every existing line. A new
// image replaces the old file, which is deleted after the write.
func (s *RecipeService) Update(ctx context.Context, actorID, id int64, in RecipeInput) (*RecipeView, error) {
	recipe, err := s.authorize(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	if err := s.validate(ctx, in); err != nil {
		return nil, err
	}

	if in.Name != nil {
		recipe.Name = strings.TrimSpace(*in.Name)
	}
	if in.Text != nil {
		recipe.Text = strings.TrimSpace(*in.Text)
	}
	if in.CookingTime != nil {
		recipe.CookingTime = *in.CookingTime
	}
	recipe.Ingredients = lines(in.Ingredients)

	newKey := ""
	if in.Image != nil {
		if *in.Image == "" {
			return nil, apperror.ValidationFailed("image", "image must not be empty")
		}
		if newKey, err = saveImage(ctx, s.store, "image", media.PrefixRecipes, *in.Image); err != nil {
			logFailure(s.logger, "failed to save recipe image", err)
			return nil, fmt.Errorf("service/recipe: %w", err)
		}
		recipe.Image = newKey
	}

	previous, err := s.recipes.UpdateRecipe(ctx, recipe)
	if err != nil {
		deleteFile(ctx, s.store, s.logger, newKey)
		logFailure(s.logger, "failed to update recipe", err, slog.Int64("id", id))
		return nil, fmt.Errorf("service/recipe: updating %d: %w", id, err)
	}
	if newKey != "" && previous != newKey {
		deleteFile(ctx, s.store, s.logger, previous)
	}

	s.logger.Info("recipe updated", slog.Int64("id", id), slog.Int64("actorID", actorID))
	return s.recipeView(ctx, actorID, recipe, nil)
}

// Delete removes the recipe and its image. Same policy as Update.
func (s *RecipeService) Delete(ctx context.Context, actorID, id int64) error {
	if _, err := s.authorize(ctx, actorID, id); err != nil {
		return err
	}

	image, err := s.recipes.DeleteRecipe(ctx, id)
	if err != nil {
		logFailure(s.logger, "failed to delete recipe", err, slog.Int64("id", id))
		return fmt.Errorf("service/recipe: deleting %d: %w", id, err)
	}
	deleteFile(ctx, s.store, s.logger, image)

	s.logger.Info("recipe deleted", slog.Int64("id", id), slog.Int64("actorID", actorID))
	return nil
}

// authorize loads the recipe and checks that actorID may modify it.
func (s *RecipeService) authorize(ctx context.Context, actorID, id int64) (*model.Recipe, error) {
	if actorID == 0 {
		return nil, apperror.Unauthorized("authentication credentials were not provided")
	}
	recipe, err := s.recipes.GetRecipeByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/recipe: %w", err)
	}
	if recipe.AuthorID == actorID {
		return recipe, nil
	}

	actor, err := s.users.GetUserByID(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("service/recipe: loading actor %d: %w", actorID, err)
	}
	if !actor.IsPrivileged() {
		return nil, apperror.Forbidden("only the author can change this recipe")
	}
	return recipe, nil
}

// validate checks the fields that were sent. Presence of create-only fields
// is checked by Create.
func (s *RecipeService) validate(ctx context.Context, in RecipeInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return apperror.ValidationFailed("name", "name must not be empty")
		}
		if utf8.RuneCountInString(name) > MaxRecipeNameLength {
			return apperror.ValidationFailed("name",
				fmt.Sprintf("name must be %d characters or fewer", MaxRecipeNameLength))
		}
	}
	if in.Text != nil && strings.TrimSpace(*in.Text) == "" {
		return apperror.ValidationFailed("text", "text must not be empty")
	}
	if in.CookingTime != nil && *in.CookingTime < MinCookingTime {
		return apperror.ValidationFailed("cooking_time",
			fmt.Sprintf("cooking_time must be at least %d", MinCookingTime))
	}

	if len(in.Ingredients) == 0 {
		return apperror.ValidationFailed("ingredients", "at least one ingredient is required")
	}
	seen := make(map[int64]struct{}, len(in.Ingredients))
	ids := make([]int64, 0, len(in.Ingredients))
	for _, item := range in.Ingredients {
		if item.Amount < MinAmount {
			return apperror.ValidationFailed("ingredients",
				fmt.Sprintf("amount must be at least %d", MinAmount))
		}
		if _, dup := seen[item.ID]; dup {
			return apperror.ValidationFailed("ingredients",
				fmt.Sprintf("ingredient %d is listed more than once", item.ID))
		}
		seen[item.ID] = struct{}{}
		ids = append(ids, item.ID)
	}

	missing, err := s.ingredients.MissingIngredientIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("service/recipe: checking ingredients: %w", err)
	}
	if len(missing) > 0 {
		return apperror.ValidationFailed("ingredients",
			fmt.Sprintf("ingredient with id %d does not exist", missing[0]))
	}
	return nil
}

func lines(items []IngredientAmount) []model.RecipeIngredient {
	out := make([]model.RecipeIngredient, len(items))
	for i, item := range items {
		out[i] = model.RecipeIngredient{IngredientID: item.ID, Amount: item.Amount}
	}
	return out
}

// Get returns one recipe decorated for viewerID.
func (s *RecipeService) Get(ctx context.Context, viewerID, id int64) (*RecipeView, error) {
	recipe, err := s.recipes.GetRecipeByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/recipe: %w", err)
	}
	view, err := s.recipeView(ctx, viewerID, recipe, nil)
	if err != nil {
		return nil, fmt.Errorf("service/recipe: %w", err)
	}
	return view, nil
}

// List returns one page of recipes, newest first, and the total match count.
func (s *RecipeService) List(ctx context.Context, viewerID int64, q RecipeQuery) ([]RecipeView, int, error) {
	filter := repository.RecipeFilter{AuthorID: q.AuthorID, ListOptions: q.ListOptions}
	if viewerID != 0 {
		if q.FavoritedOnly {
			filter.FavoritedBy = viewerID
		}
		if q.InCartOnly {
			filter.InCartOf = viewerID
		}
	}

	recipes, total, err := s.recipes.ListRecipes(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list recipes", slog.String("error", err.Error()))
		return nil, 0, fmt.Errorf("service/recipe: listing: %w", err)
	}

	authors := make(map[int64]*model.User)
	views := make([]RecipeView, 0, len(recipes))
	for i := range recipes {
		r := &recipes[i]
		author, ok := authors[r.AuthorID]
		if !ok {
			if author, err = s.users.GetUserByID(ctx, r.AuthorID); err != nil {
				return nil, 0, fmt.Errorf("service/recipe: loading author: %w", err)
			}
			authors[r.AuthorID] = author
		}
		view, err := s.recipeView(ctx, viewerID, r, author)
		if err != nil {
			return nil, 0, fmt.Errorf("service/recipe: %w", err)
		}
		views = append(views, *view)
	}
	return views, total, nil
}

// ShortLink returns the shareable "<base>/s/<id>" address of a recipe.
func (s *RecipeService) ShortLink(ctx context.Context, id int64) (string, error) {
	if _, err := s.recipes.GetRecipeByID(ctx, id); err != nil {
		return "", fmt.Errorf("service/recipe: %w", err)
	}
	return fmt.Sprintf("%s/s/%d", s.baseURL, id), nil
}

// ResolveShortLink returns the frontend path a short link redirects to.
func (s *RecipeService) ResolveShortLink(ctx context.Context, id int64) (string, error) {
	if _, err := s.recipes.GetRecipeByID(ctx, id); err != nil {
		return "", fmt.Errorf("service/recipe: %w", err)
	}
	return fmt.Sprintf("/recipes/%d", id), nil
}
