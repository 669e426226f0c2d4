// Package importer seeds and maintains a foodgram database from the command
// line: fixture loading, default avatars and orphaned file cleanup.
//
// Every loader reads JSON from an io.Reader so tests can feed strings and the
// CLI can feed files. Problems with a single record are logged and counted;
// only storage failures abort a run.
package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/auth"
	"github.com/sakif/foodgram/internal/media"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

// imageWorkers bounds concurrent image reads and uploads in LoadRecipes.
const imageWorkers = 4

// defaultFaces is how many face<N> images SetDefaultAvatars cycles through.
const defaultFaces = 6

type Importer struct {
	users       repository.UserRepository
	ingredients repository.IngredientRepository
	recipes     repository.RecipeRepository
	store       media.Store
	passwords   *auth.PasswordService
	logger      *slog.Logger
}

func New(
	users repository.UserRepository,
	ingredients repository.IngredientRepository,
	recipes repository.RecipeRepository,
	store media.Store,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *Importer {
	return &Importer{
		users:       users,
		ingredients: ingredients,
		recipes:     recipes,
		store:       store,
		passwords:   passwords,
		logger:      logger,
	}
}

// Report summarises one loader run.
type Report struct {
	Total   int
	Created int
	Skipped int
}

func (r Report) String() string {
	return fmt.Sprintf("%d created, %d skipped, %d records", r.Created, r.Skipped, r.Total)
}

func decodeRecords[T any](r io.Reader) ([]T, error) {
	var records []T
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("importer: decoding records: %w", err)
	}
	return records, nil
}

// =========================================================================
// INGREDIENTS
// =========================================================================

type ingredientRecord struct {
	Name            string `json:"name"`
	MeasurementUnit string `json:"measurement_unit"`
}

// LoadIngredients replaces the catalog with the records in r. Records
// missing a name or a unit are skipped; repeated pairs are stored once.
func (im *Importer) LoadIngredients(ctx context.Context, r io.Reader) (Report, error) {
	records, err := decodeRecords[ingredientRecord](r)
	if err != nil {
		return Report{}, err
	}

	if err := im.ingredients.DeleteAllIngredients(ctx); err != nil {
		return Report{}, err
	}

	report := Report{Total: len(records)}
	for _, rec := range records {
		if rec.Name == "" || rec.MeasurementUnit == "" {
			report.Skipped++
			continue
		}
		created, err := im.ingredients.GetOrCreateIngredient(ctx, &model.Ingredient{
			Name:            rec.Name,
			MeasurementUnit: rec.MeasurementUnit,
		})
		if err != nil {
			return report, err
		}
		if created {
			report.Created++
		} else {
			report.Skipped++
		}
	}

	im.logger.Info("ingredients loaded",
		slog.Int("created", report.Created),
		slog.Int("total", report.Total),
	)
	return report, nil
}

// =========================================================================
// USERS
// =========================================================================

type userRecord struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
}

// LoadUsers creates an account per record. Usernames that already exist
// are left alone.
func (im *Importer) LoadUsers(ctx context.Context, r io.Reader) (Report, error) {
	records, err := decodeRecords[userRecord](r)
	if err != nil {
		return Report{}, err
	}

	report := Report{Total: len(records)}
	for _, rec := range records {
		if _, err := im.users.GetUserByUsername(ctx, rec.Username); err == nil {
			im.logger.Info("user already exists", slog.String("username", rec.Username))
			report.Skipped++
			continue
		} else if !errors.Is(err, apperror.ErrNotFound) {
			return report, err
		}

		hash, err := im.passwords.Hash(rec.Password)
		if err != nil {
			return report, fmt.Errorf("importer: hashing password for %q: %w", rec.Username, err)
		}

		user := &model.User{
			Email:        rec.Email,
			Username:     rec.Username,
			FirstName:    rec.FirstName,
			LastName:     rec.LastName,
			PasswordHash: hash,
		}
		if err := im.users.CreateUser(ctx, user); err != nil {
			if errors.Is(err, apperror.ErrConflict) {
				im.logger.Warn("user conflicts with an existing account",
					slog.String("username", rec.Username),
					slog.String("email", rec.Email),
				)
				report.Skipped++
				continue
			}
			return report, err
		}

		im.logger.Info("user created",
			slog.Int64("id", user.ID),
			slog.String("username", user.Username),
		)
		report.Created++
	}
	return report, nil
}

// =========================================================================
// RECIPES
// =========================================================================

type recipeRecord struct {
	Author      string `json:"author"`
	Name        string `json:"name"`
	Text        string `json:"text"`
	CookingTime int    `json:"cooking_time"`
	Image       string `json:"image"`
	Ingredients []struct {
		Name   string `json:"name"`
		Amount int    `json:"amount"`
	} `json:"ingredients"`
}

// LoadRecipes replaces every recipe with the records in r. Image paths are
// relative to dataDir.
//
// Records whose author does not exist or whose image cannot be read are
// skipped. Ingredient lines naming an unknown ingredient are dropped from
// the recipe; a recipe left with no lines is skipped.
func (im *Importer) LoadRecipes(ctx context.Context, r io.Reader, dataDir string) (Report, error) {
	records, err := decodeRecords[recipeRecord](r)
	if err != nil {
		return Report{}, err
	}

	if err := im.recipes.DeleteAllRecipes(ctx); err != nil {
		return Report{}, err
	}

	// Images are uploaded up front, concurrently. keys[i] is "" for records
	// without an image and for records whose image failed.
	keys := make([]string, len(records))
	failed := make([]bool, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(imageWorkers)
	for i, rec := range records {
		if rec.Image == "" {
			continue
		}
		g.Go(func() error {
			key, err := im.uploadFile(gctx, filepath.Join(dataDir, rec.Image), media.PrefixRecipes)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				im.logger.Warn("skipping recipe with unusable image",
					slog.String("recipe", rec.Name),
					slog.String("image", rec.Image),
					slog.String("error", err.Error()),
				)
				failed[i] = true
				return nil
			}
			keys[i] = key
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	report := Report{Total: len(records)}
	for i, rec := range records {
		if failed[i] {
			report.Skipped++
			continue
		}
		if rec.Name == "" || rec.CookingTime < 1 {
			im.logger.Warn("skipping incomplete recipe",
				slog.String("recipe", rec.Name),
				slog.Int("cooking_time", rec.CookingTime),
			)
			im.discard(ctx, keys[i])
			report.Skipped++
			continue
		}

		author, err := im.users.GetUserByUsername(ctx, rec.Author)
		if errors.Is(err, apperror.ErrNotFound) {
			im.logger.Warn("recipe author not found",
				slog.String("recipe", rec.Name),
				slog.String("author", rec.Author),
			)
			im.discard(ctx, keys[i])
			report.Skipped++
			continue
		}
		if err != nil {
			return report, err
		}

		recipe := &model.Recipe{
			AuthorID:    author.ID,
			Name:        rec.Name,
			Text:        rec.Text,
			Image:       keys[i],
			CookingTime: rec.CookingTime,
		}
		seen := make(map[int64]struct{}, len(rec.Ingredients))
		for _, line := range rec.Ingredients {
			ing, err := im.ingredients.FindIngredientByName(ctx, line.Name)
			if errors.Is(err, apperror.ErrNotFound) {
				im.logger.Warn("unknown ingredient dropped",
					slog.String("recipe", rec.Name),
					slog.String("ingredient", line.Name),
				)
				continue
			}
			if err != nil {
				return report, err
			}
			if _, dup := seen[ing.ID]; dup || line.Amount < 1 {
				continue
			}
			seen[ing.ID] = struct{}{}
			recipe.Ingredients = append(recipe.Ingredients, model.RecipeIngredient{
				IngredientID: ing.ID,
				Amount:       line.Amount,
			})
		}

		if len(recipe.Ingredients) == 0 {
			im.logger.Warn("skipping recipe without usable ingredients",
				slog.String("recipe", rec.Name),
			)
			im.discard(ctx, keys[i])
			report.Skipped++
			continue
		}

		if err := im.recipes.CreateRecipe(ctx, recipe); err != nil {
			im.discard(ctx, keys[i])
			return report, fmt.Errorf("importer: creating recipe %q: %w", rec.Name, err)
		}
		im.logger.Info("recipe created",
			slog.Int64("id", recipe.ID),
			slog.String("name", recipe.Name),
		)
		report.Created++
	}
	return report, nil
}

// =========================================================================
// MEDIA MAINTENANCE
// =========================================================================

// AvatarReport summarises SetDefaultAvatars.
type AvatarReport struct {
	Users   int
	Updated int
	Missing int
}

// SetDefaultAvatars gives user N the picture face<N%6+1>.png (or .jpg)
// from facesDir. Users whose face file is missing keep their avatar.
func (im *Importer) SetDefaultAvatars(ctx context.Context, facesDir string) (AvatarReport, error) {
	var report AvatarReport

	const batch = 100
	for offset := 0; ; offset += batch {
		users, total, err := im.users.ListUsers(ctx, repository.ListOptions{Limit: batch, Offset: offset})
		if err != nil {
			return report, err
		}

		for _, u := range users {
			report.Users++

			path, ext, ok := findFace(facesDir, u.ID)
			if !ok {
				im.logger.Warn("default avatar not found",
					slog.Int64("user_id", u.ID),
					slog.String("dir", facesDir),
				)
				report.Missing++
				continue
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return report, fmt.Errorf("importer: reading %s: %w", path, err)
			}
			key := fmt.Sprintf("%s/user_%d_avatar.%s", media.PrefixAvatars, u.ID, ext)
			if err := im.store.Save(ctx, key, data, media.ContentTypeForKey(key)); err != nil {
				return report, err
			}

			prev, err := im.users.SetAvatar(ctx, u.ID, key)
			if err != nil {
				return report, err
			}
			if prev != key {
				im.discard(ctx, prev)
			}
			report.Updated++
		}

		if len(users) == 0 || offset+len(users) >= total {
			break
		}
	}

	im.logger.Info("default avatars set",
		slog.Int("updated", report.Updated),
		slog.Int("missing", report.Missing),
	)
	return report, nil
}

func findFace(dir string, userID int64) (path, ext string, ok bool) {
	n := userID%defaultFaces + 1
	for _, ext := range []string{"png", "jpg"} {
		path := filepath.Join(dir, fmt.Sprintf("face%d.%s", n, ext))
		if _, err := os.Stat(path); err == nil {
			return path, ext, true
		}
	}
	return "", "", false
}

// CleanupImages deletes stored avatars and recipe images that no user or
// recipe references.
func (im *Importer) CleanupImages(ctx context.Context) (media.SweepResult, error) {
	avatars, err := im.users.AvatarKeys(ctx)
	if err != nil {
		return media.SweepResult{}, err
	}
	images, err := im.recipes.RecipeImageKeys(ctx)
	if err != nil {
		return media.SweepResult{}, err
	}

	referenced := make(map[string]struct{}, len(avatars)+len(images))
	for _, k := range avatars {
		referenced[k] = struct{}{}
	}
	for _, k := range images {
		referenced[k] = struct{}{}
	}

	result, err := media.Sweep(ctx, im.store, []string{media.PrefixAvatars, media.PrefixRecipes}, referenced, im.logger)
	if err != nil {
		return result, err
	}
	im.logger.Info("unused images removed",
		slog.Int("scanned", result.Scanned),
		slog.Int("deleted", result.Deleted),
		slog.Int("failed", result.Failed),
	)
	return result, nil
}

// uploadFile stores the image at path under a fresh key below prefix.
func (im *Importer) uploadFile(ctx context.Context, path, prefix string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	img, err := media.DetectImage(data)
	if err != nil {
		return "", err
	}
	key := media.NewKey(prefix, img.Ext)
	if err := im.store.Save(ctx, key, img.Data, img.ContentType); err != nil {
		return "", err
	}
	return key, nil
}

func (im *Importer) discard(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := im.store.Delete(ctx, key); err != nil {
		im.logger.Warn("failed to delete image", slog.String("key", key), slog.String("error", err.Error()))
	}
}
