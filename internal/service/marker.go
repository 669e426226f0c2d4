package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/media"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
	"github.com/sakif/foodgram/internal/shoppinglist"
)

// MarkerService toggles favorites and shopping-cart entries and builds the
// shopping list. Both marker kinds go through the same two methods.
type MarkerService struct {
	viewer
	recipes repository.RecipeRepository
	now     func() time.Time
	logger  *slog.Logger
}

func NewMarkerService(
	markers repository.MarkerRepository,
	recipes repository.RecipeRepository,
	store media.Store,
	logger *slog.Logger,
) *MarkerService {
	return &MarkerService{
		viewer:  viewer{markers: markers, store: store},
		recipes: recipes,
		now:     time.Now,
		logger:  logger,
	}
}

var markerLabels = map[model.MarkerKind]string{
	model.MarkerFavorite:     "favorites",
	model.MarkerShoppingCart: "shopping cart",
}

// Add marks the recipe for the user. The recipe must exist (404); marking it
// twice is a duplicate (400).
func (s *MarkerService) Add(ctx context.Context, kind model.MarkerKind, userID, recipeID int64) (*RecipeShort, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("service/marker: unknown marker kind %q", kind)
	}
	recipe, err := s.recipes.GetRecipeByID(ctx, recipeID)
	if err != nil {
		return nil, fmt.Errorf("service/marker: %w", err)
	}

	if err := s.markers.AddMarker(ctx, kind, userID, recipeID); err != nil {
		if errors.Is(err, apperror.ErrDuplicate) {
			return nil, apperror.Duplicate(fmt.Sprintf("recipe %q is already in your %s", recipe.Name, markerLabels[kind]))
		}
		logFailure(s.logger, "failed to add marker", err,
			slog.String("kind", string(kind)),
			slog.Int64("userID", userID),
			slog.Int64("recipeID", recipeID),
		)
		return nil, fmt.Errorf("service/marker: %w", err)
	}

	s.logger.Info("recipe marked",
		slog.String("kind", string(kind)),
		slog.Int64("userID", userID),
		slog.Int64("recipeID", recipeID),
	)
	short := s.short(recipe)
	return &short, nil
}

// Remove unmarks the recipe. The recipe must exist (404); removing a marker
// that is not there is rejected (400) rather than ignored.
func (s *MarkerService) Remove(ctx context.Context, kind model.MarkerKind, userID, recipeID int64) error {
	if !kind.Valid() {
		return fmt.Errorf("service/marker: unknown marker kind %q", kind)
	}
	recipe, err := s.recipes.GetRecipeByID(ctx, recipeID)
	if err != nil {
		return fmt.Errorf("service/marker: %w", err)
	}

	if err := s.markers.RemoveMarker(ctx, kind, userID, recipeID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.Duplicate(fmt.Sprintf("recipe %q is not in your %s", recipe.Name, markerLabels[kind]))
		}
		logFailure(s.logger, "failed to remove marker", err, slog.Int64("recipeID", recipeID))
		return fmt.Errorf("service/marker: %w", err)
	}

	s.logger.Info("recipe unmarked",
		slog.String("kind", string(kind)),
		slog.Int64("userID", userID),
		slog.Int64("recipeID", recipeID),
	)
	return nil
}

// ShoppingList renders the aggregated shopping list for the user's cart.
// An empty cart is a validation error, not an empty file.
func (s *MarkerService) ShoppingList(ctx context.Context, userID int64) (string, error) {
	cart, err := s.markers.CartLines(ctx, userID)
	if err != nil {
		s.logger.Error("failed to load cart",
			slog.Int64("userID", userID),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("service/marker: loading cart: %w", err)
	}

	list, err := shoppinglist.Build(cart)
	if err != nil {
		if errors.Is(err, shoppinglist.ErrEmptyCart) {
			return "", apperror.ValidationFailed("shopping_cart", "your shopping cart is empty")
		}
		return "", fmt.Errorf("service/marker: %w", err)
	}

	s.logger.Info("shopping list built",
		slog.Int64("userID", userID),
		slog.Int("products", len(list.Items)),
		slog.Int("recipes", len(list.Recipes)),
	)
	return list.Render(s.now()), nil
}
