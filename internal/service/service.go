// Package service holds the business rules of the recipe API.
//
//	Handler (HTTP) → Service (validation, permissions, file lifecycle) → Repository (SQL)
//
// Services accept plain Go values and return domain errors from
// internal/apperror; they never see *http.Request or status codes. Every
// service takes repository interfaces, so tests can run against the SQLite
// store in memory or against a hand-written fake.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/media"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

// Field limits shared by validation and the importer.
const (
	MaxEmailLength          = 254
	MaxNameLength           = 150
	MaxRecipeNameLength     = 256
	MaxIngredientNameLength = 128
	MaxUnitLength           = 64
	MinCookingTime          = 1
	MinAmount               = 1
	MinRecipesLimit         = 1
)

// UserView is a user as seen by one viewer.
type UserView struct {
	*model.User
	AvatarURL    string
	IsSubscribed bool
}

// RecipeShort is the compact recipe form used by markers and subscriptions.
type RecipeShort struct {
	ID          int64
	Name        string
	ImageURL    string
	CookingTime int
}

// RecipeView is a recipe with its author and the viewer's markers.
type RecipeView struct {
	*model.Recipe
	ImageURL         string
	Author           UserView
	IsFavorited      bool
	IsInShoppingCart bool
}

// viewer is the subset of repositories needed to decorate users and recipes
// for the person asking.
type viewer struct {
	users   repository.UserRepository
	subs    repository.SubscriptionRepository
	markers repository.MarkerRepository
	store   media.Store
}

func (v viewer) mediaURL(key string) string {
	if key == "" {
		return ""
	}
	return v.store.URL(key)
}

// userView resolves the avatar URL and, for an authenticated viewer, whether
// they follow u. Anonymous viewers (viewerID 0) never follow anyone.
func (v viewer) userView(ctx context.Context, viewerID int64, u *model.User) (UserView, error) {
	view := UserView{User: u, AvatarURL: v.mediaURL(u.Avatar)}
	if viewerID == 0 || viewerID == u.ID {
		return view, nil
	}
	ok, err := v.subs.IsSubscribed(ctx, viewerID, u.ID)
	if err != nil {
		return view, err
	}
	view.IsSubscribed = ok
	return view, nil
}

func (v viewer) recipeView(ctx context.Context, viewerID int64, r *model.Recipe, author *model.User) (*RecipeView, error) {
	if author == nil {
		var err error
		if author, err = v.users.GetUserByID(ctx, r.AuthorID); err != nil {
			return nil, err
		}
	}

	authorView, err := v.userView(ctx, viewerID, author)
	if err != nil {
		return nil, err
	}

	view := &RecipeView{Recipe: r, ImageURL: v.mediaURL(r.Image), Author: authorView}
	if viewerID == 0 {
		return view, nil
	}
	if view.IsFavorited, err = v.markers.HasMarker(ctx, model.MarkerFavorite, viewerID, r.ID); err != nil {
		return nil, err
	}
	if view.IsInShoppingCart, err = v.markers.HasMarker(ctx, model.MarkerShoppingCart, viewerID, r.ID); err != nil {
		return nil, err
	}
	return view, nil
}

func (v viewer) short(r *model.Recipe) RecipeShort {
	return RecipeShort{ID: r.ID, Name: r.Name, ImageURL: v.mediaURL(r.Image), CookingTime: r.CookingTime}
}

// isAppError reports whether err is one of the expected domain outcomes,
// which are returned to the client instead of being logged as failures.
func isAppError(err error) bool {
	var appErr *apperror.AppError
	return errors.As(err, &appErr)
}

// logFailure logs err unless it is an expected domain outcome.
func logFailure(logger *slog.Logger, msg string, err error, attrs ...any) {
	if isAppError(err) {
		return
	}
	logger.Error(msg, append(attrs, slog.String("error", err.Error()))...)
}

// deleteFile removes a replaced or orphaned media file after the record
// write. A failure leaves an orphan for foodgramctl cleanup-images and is
// only logged.
func deleteFile(ctx context.Context, store media.Store, logger *slog.Logger, key string) {
	if key == "" {
		return
	}
	if err := store.Delete(ctx, key); err != nil {
		logger.Warn("failed to delete media file",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

// saveImage decodes a base64 data URI and stores it under prefix.
func saveImage(ctx context.Context, store media.Store, field, prefix, dataURI string) (string, error) {
	img, err := media.DecodeBase64Image(dataURI)
	if err != nil {
		return "", apperror.ValidationFailed(field,
			"a base64 data URI with a png, jpeg, gif or webp image is required")
	}
	key := media.NewKey(prefix, img.Ext)
	if err := store.Save(ctx, key, img.Data, img.ContentType); err != nil {
		return "", fmt.Errorf("saving %s: %w", field, err)
	}
	return key, nil
}
