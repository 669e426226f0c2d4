package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/media"
	"github.com/sakif/foodgram/internal/repository"
)

// AuthorView is a followed author with a preview of their recipes.
type AuthorView struct {
	UserView
	Recipes      []RecipeShort
	RecipesCount int
}

// SubscriptionService manages follower → author edges.
type SubscriptionService struct {
	viewer
	recipes repository.RecipeRepository
	logger  *slog.Logger
}

func NewSubscriptionService(
	subs repository.SubscriptionRepository,
	users repository.UserRepository,
	recipes repository.RecipeRepository,
	store media.Store,
	logger *slog.Logger,
) *SubscriptionService {
	return &SubscriptionService{
		viewer:  viewer{users: users, subs: subs, store: store},
		recipes: recipes,
		logger:  logger,
	}
}

// ParseRecipesLimit reads the recipes_limit query value. Empty means no
// limit (0). Anything else must be an integer of at least MinRecipesLimit;
// it is rejected, never clamped.
func ParseRecipesLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed("recipes_limit", "recipes_limit must be an integer")
	}
	if n < MinRecipesLimit {
		return 0, apperror.ValidationFailed("recipes_limit",
			fmt.Sprintf("recipes_limit must be at least %d", MinRecipesLimit))
	}
	return n, nil
}

// Subscribe makes followerID follow authorID. The author must exist (404);
// following yourself or following twice is rejected (400).
func (s *SubscriptionService) Subscribe(ctx context.Context, followerID, authorID int64, recipesLimit int) (*AuthorView, error) {
	author, err := s.users.GetUserByID(ctx, authorID)
	if err != nil {
		return nil, fmt.Errorf("service/subscription: %w", err)
	}
	if followerID == authorID {
		return nil, apperror.ValidationFailed("author", "you cannot subscribe to yourself")
	}

	if err := s.subs.Subscribe(ctx, followerID, authorID); err != nil {
		if errors.Is(err, apperror.ErrDuplicate) {
			return nil, apperror.Duplicate(fmt.Sprintf("you are already subscribed to %s", author.Username))
		}
		logFailure(s.logger, "failed to subscribe", err,
			slog.Int64("followerID", followerID),
			slog.Int64("authorID", authorID),
		)
		return nil, fmt.Errorf("service/subscription: %w", err)
	}

	s.logger.Info("subscribed",
		slog.Int64("followerID", followerID),
		slog.Int64("authorID", authorID),
	)

	view, err := s.userView(ctx, followerID, author)
	if err != nil {
		return nil, fmt.Errorf("service/subscription: %w", err)
	}
	return s.authorView(ctx, view, recipesLimit)
}

// Unsubscribe removes the edge. The author must exist (404); an absent edge
// is rejected (400).
func (s *SubscriptionService) Unsubscribe(ctx context.Context, followerID, authorID int64) error {
	author, err := s.users.GetUserByID(ctx, authorID)
	if err != nil {
		return fmt.Errorf("service/subscription: %w", err)
	}
	if err := s.subs.Unsubscribe(ctx, followerID, authorID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.Duplicate(fmt.Sprintf("you are not subscribed to %s", author.Username))
		}
		return fmt.Errorf("service/subscription: %w", err)
	}

	s.logger.Info("unsubscribed",
		slog.Int64("followerID", followerID),
		slog.Int64("authorID", authorID),
	)
	return nil
}

// List returns one page of the authors followerID follows, each with up to
// recipesLimit recipes (0 = all).
func (s *SubscriptionService) List(ctx context.Context, followerID int64, opts repository.ListOptions, recipesLimit int) ([]AuthorView, int, error) {
	authors, total, err := s.subs.ListSubscriptions(ctx, followerID, opts)
	if err != nil {
		s.logger.Error("failed to list subscriptions",
			slog.Int64("followerID", followerID),
			slog.String("error", err.Error()),
		)
		return nil, 0, fmt.Errorf("service/subscription: %w", err)
	}

	views := make([]AuthorView, 0, len(authors))
	for i := range authors {
		uv := UserView{User: &authors[i], AvatarURL: s.mediaURL(authors[i].Avatar), IsSubscribed: true}
		av, err := s.authorView(ctx, uv, recipesLimit)
		if err != nil {
			return nil, 0, fmt.Errorf("service/subscription: %w", err)
		}
		views = append(views, *av)
	}
	return views, total, nil
}

func (s *SubscriptionService) authorView(ctx context.Context, uv UserView, recipesLimit int) (*AuthorView, error) {
	recipes, err := s.recipes.ListRecipesByAuthor(ctx, uv.ID, recipesLimit)
	if err != nil {
		return nil, err
	}
	count, err := s.recipes.CountRecipesByAuthor(ctx, uv.ID)
	if err != nil {
		return nil, err
	}

	av := &AuthorView{UserView: uv, Recipes: make([]RecipeShort, 0, len(recipes)), RecipesCount: count}
	for i := range recipes {
		av.Recipes = append(av.Recipes, s.short(&recipes[i]))
	}
	return av, nil
}
