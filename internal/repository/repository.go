// Package repository declares the storage contracts the service layer depends on.
// internal/repository/sqlite provides the production implementation.
package repository

import (
	"context"
	"time"

	"github.com/sakif/foodgram/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// RecipeFilter narrows ListRecipes. Zero fields are ignored.
type RecipeFilter struct {
	AuthorID    int64
	FavoritedBy int64
	InCartOf    int64
	ListOptions
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	ListUsers(ctx context.Context, opts ListOptions) ([]model.User, int, error)
	UpdatePassword(ctx context.Context, id int64, hash string) error
	// SetAvatar stores a new avatar key ("" clears it) and returns the key it replaced.
	SetAvatar(ctx context.Context, id int64, avatar string) (string, error)
	AvatarKeys(ctx context.Context) ([]string, error)
}

type IngredientRepository interface {
	SearchIngredients(ctx context.Context, prefix string) ([]model.Ingredient, error)
	GetIngredientByID(ctx context.Context, id int64) (*model.Ingredient, error)
	// MissingIngredientIDs returns the ids from the argument that have no catalog row.
	MissingIngredientIDs(ctx context.Context, ids []int64) ([]int64, error)
	FindIngredientByName(ctx context.Context, name string) (*model.Ingredient, error)
	// GetOrCreateIngredient reports whether a new row was inserted.
	GetOrCreateIngredient(ctx context.Context, ing *model.Ingredient) (bool, error)
	DeleteAllIngredients(ctx context.Context) error
}

type RecipeRepository interface {
	CreateRecipe(ctx context.Context, recipe *model.Recipe) error
	GetRecipeByID(ctx context.Context, id int64) (*model.Recipe, error)
	ListRecipes(ctx context.Context, filter RecipeFilter) ([]model.Recipe, int, error)
	// UpdateRecipe rewrites the recipe row, replaces every ingredient line and
	// returns the image key that was stored before the update.
	UpdateRecipe(ctx context.Context, recipe *model.Recipe) (string, error)
	// DeleteRecipe removes the recipe and returns its image key.
	DeleteRecipe(ctx context.Context, id int64) (string, error)
	ListRecipesByAuthor(ctx context.Context, authorID int64, limit int) ([]model.Recipe, error)
	CountRecipesByAuthor(ctx context.Context, authorID int64) (int, error)
	RecipeImageKeys(ctx context.Context) ([]string, error)
	DeleteAllRecipes(ctx context.Context) error
}

// MarkerRepository stores favorite and shopping-cart edges.
type MarkerRepository interface {
	// AddMarker returns apperror.ErrDuplicate when the edge already exists.
	AddMarker(ctx context.Context, kind model.MarkerKind, userID, recipeID int64) error
	// RemoveMarker returns apperror.ErrNotFound when there is no such edge.
	RemoveMarker(ctx context.Context, kind model.MarkerKind, userID, recipeID int64) error
	HasMarker(ctx context.Context, kind model.MarkerKind, userID, recipeID int64) (bool, error)
	CartLines(ctx context.Context, userID int64) ([]model.CartLine, error)
}

type SubscriptionRepository interface {
	// Subscribe returns apperror.ErrDuplicate for an existing edge or a self-subscription.
	Subscribe(ctx context.Context, followerID, authorID int64) error
	// Unsubscribe returns apperror.ErrNotFound when there is no such edge.
	Unsubscribe(ctx context.Context, followerID, authorID int64) error
	IsSubscribed(ctx context.Context, followerID, authorID int64) (bool, error)
	ListSubscriptions(ctx context.Context, followerID int64, opts ListOptions) ([]model.User, int, error)
}

// TokenRepository persists revoked token ids until they would have expired anyway.
type TokenRepository interface {
	RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)
}
