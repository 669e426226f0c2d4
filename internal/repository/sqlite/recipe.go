package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

var _ repository.RecipeRepository = (*DB)(nil)

const recipeColumns = `r.id, r.author_id, r.name, r.text, r.image, r.cooking_time, r.created_at`

// querier is the subset shared by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanRecipe(row rowScanner, r *model.Recipe) error {
	return row.Scan(&r.ID, &r.AuthorID, &r.Name, &r.Text, &r.Image, &r.CookingTime, &r.CreatedAt)
}

// CreateRecipe inserts the recipe and its ingredient lines in one transaction.
// A repeated ingredient id violates the (recipe_id, ingredient_id) key and
// comes back as apperror.ErrDuplicate; an unknown ingredient id as
// apperror.ErrValidation.
func (db *DB) CreateRecipe(ctx context.Context, recipe *model.Recipe) error {
	recipe.CreatedAt = time.Now().UTC()

	return db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO recipes (author_id, name, text, image, cooking_time, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			recipe.AuthorID,
			recipe.Name,
			recipe.Text,
			recipe.Image,
			recipe.CookingTime,
			recipe.CreatedAt,
		)
		if err != nil {
			if isForeignKeyViolation(err) {
				return apperror.NotFound("user", recipe.AuthorID)
			}
			return fmt.Errorf("sqlite: creating recipe: %w", err)
		}
		if recipe.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("sqlite: reading recipe id: %w", err)
		}

		if err := insertRecipeIngredients(ctx, tx, recipe.ID, recipe.Ingredients); err != nil {
			return err
		}
		return fillIngredientNames(ctx, tx, recipe)
	})
}

func insertRecipeIngredients(ctx context.Context, q querier, recipeID int64, lines []model.RecipeIngredient) error {
	for _, line := range lines {
		_, err := q.ExecContext(ctx,
			`INSERT INTO recipe_ingredients (recipe_id, ingredient_id, amount)
			 VALUES (?, ?, ?)`,
			recipeID, line.IngredientID, line.Amount,
		)
		switch {
		case err == nil:
		case isUniqueViolation(err):
			return apperror.Duplicate("ingredients must not repeat")
		case isForeignKeyViolation(err):
			return apperror.ValidationFailed("ingredients",
				fmt.Sprintf("ingredient with id %d does not exist", line.IngredientID))
		case isCheckViolation(err):
			return apperror.ValidationFailed("ingredients", "ingredient amount must be at least 1")
		default:
			return fmt.Errorf("sqlite: inserting ingredient line for recipe %d: %w", recipeID, err)
		}
	}
	return nil
}

// fillIngredientNames reloads the lines so callers get catalog names and units.
func fillIngredientNames(ctx context.Context, q querier, recipe *model.Recipe) error {
	lines, err := loadIngredients(ctx, q, recipe.ID)
	if err != nil {
		return err
	}
	recipe.Ingredients = lines
	return nil
}

func loadIngredients(ctx context.Context, q querier, recipeID int64) ([]model.RecipeIngredient, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT ri.ingredient_id, i.name, i.measurement_unit, ri.amount
		 FROM recipe_ingredients ri
		 JOIN ingredients i ON i.id = ri.ingredient_id
		 WHERE ri.recipe_id = ?
		 ORDER BY i.name, i.measurement_unit`,
		recipeID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading ingredients for recipe %d: %w", recipeID, err)
	}
	defer rows.Close()

	lines := []model.RecipeIngredient{}
	for rows.Next() {
		var l model.RecipeIngredient
		if err := rows.Scan(&l.IngredientID, &l.Name, &l.MeasurementUnit, &l.Amount); err != nil {
			return nil, fmt.Errorf("sqlite: scanning ingredient line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating ingredient lines: %w", err)
	}
	return lines, nil
}

// GetRecipeByID returns the recipe with its ingredient lines.
func (db *DB) GetRecipeByID(ctx context.Context, id int64) (*model.Recipe, error) {
	var r model.Recipe
	err := scanRecipe(db.conn.QueryRowContext(ctx,
		`SELECT `+recipeColumns+` FROM recipes r WHERE r.id = ?`, id), &r)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("recipe", id)
		}
		return nil, fmt.Errorf("sqlite: getting recipe %d: %w", id, err)
	}

	if err := fillIngredientNames(ctx, db.conn, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRecipes returns one page of recipes, newest first, and the total
// number of recipes matching the filter.
func (db *DB) ListRecipes(ctx context.Context, filter repository.RecipeFilter) ([]model.Recipe, int, error) {
	var (
		where []string
		args  []any
	)
	if filter.AuthorID != 0 {
		where = append(where, `r.author_id = ?`)
		args = append(args, filter.AuthorID)
	}
	if filter.FavoritedBy != 0 {
		where = append(where, `EXISTS (SELECT 1 FROM user_recipe_markers m
			WHERE m.recipe_id = r.id AND m.kind = ? AND m.user_id = ?)`)
		args = append(args, string(model.MarkerFavorite), filter.FavoritedBy)
	}
	if filter.InCartOf != 0 {
		where = append(where, `EXISTS (SELECT 1 FROM user_recipe_markers m
			WHERE m.recipe_id = r.id AND m.kind = ? AND m.user_id = ?)`)
		args = append(args, string(model.MarkerShoppingCart), filter.InCartOf)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recipes r`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting recipes: %w", err)
	}

	limit := normalizeLimit(filter.Limit)
	pageArgs := append(append([]any{}, args...), limit, max(filter.Offset, 0))
	recipes, err := db.queryRecipes(ctx,
		`SELECT `+recipeColumns+` FROM recipes r`+clause+`
		 ORDER BY r.created_at DESC, r.id DESC
		 LIMIT ? OFFSET ?`, pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	return recipes, total, nil
}

// queryRecipes runs a recipe SELECT, closes the cursor, then attaches
// ingredient lines. The cursor must be closed first: an in-memory database
// has a single connection.
func (db *DB) queryRecipes(ctx context.Context, query string, args ...any) ([]model.Recipe, error) {
	recipes, err := func() ([]model.Recipe, error) {
		rows, err := db.conn.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("sqlite: listing recipes: %w", err)
		}
		defer rows.Close()

		recipes := []model.Recipe{}
		for rows.Next() {
			var r model.Recipe
			if err := scanRecipe(rows, &r); err != nil {
				return nil, fmt.Errorf("sqlite: scanning recipe row: %w", err)
			}
			recipes = append(recipes, r)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("sqlite: iterating recipes: %w", err)
		}
		return recipes, nil
	}()
	if err != nil {
		return nil, err
	}

	for i := range recipes {
		if err := fillIngredientNames(ctx, db.conn, &recipes[i]); err != nil {
			return nil, err
		}
	}
	return recipes, nil
}

// UpdateRecipe rewrites name, text, image and cooking time, clears every
// ingredient line and inserts the new set, all in one transaction.
// author_id and created_at never change.
func (db *DB) UpdateRecipe(ctx context.Context, recipe *model.Recipe) (string, error) {
	var previousImage string

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`SELECT image FROM recipes WHERE id = ?`, recipe.ID).Scan(&previousImage)
		if err != nil {
			if err == sql.ErrNoRows {
				return apperror.NotFound("recipe", recipe.ID)
			}
			return fmt.Errorf("sqlite: reading recipe %d: %w", recipe.ID, err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE recipes SET name = ?, text = ?, image = ?, cooking_time = ?
			 WHERE id = ?`,
			recipe.Name, recipe.Text, recipe.Image, recipe.CookingTime, recipe.ID,
		); err != nil {
			return fmt.Errorf("sqlite: updating recipe %d: %w", recipe.ID, err)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM recipe_ingredients WHERE recipe_id = ?`, recipe.ID); err != nil {
			return fmt.Errorf("sqlite: clearing ingredients of recipe %d: %w", recipe.ID, err)
		}
		if err := insertRecipeIngredients(ctx, tx, recipe.ID, recipe.Ingredients); err != nil {
			return err
		}

		if err := tx.QueryRowContext(ctx,
			`SELECT author_id, created_at FROM recipes WHERE id = ?`, recipe.ID,
		).Scan(&recipe.AuthorID, &recipe.CreatedAt); err != nil {
			return fmt.Errorf("sqlite: reloading recipe %d: %w", recipe.ID, err)
		}
		return fillIngredientNames(ctx, tx, recipe)
	})
	if err != nil {
		return "", err
	}
	return previousImage, nil
}

// DeleteRecipe removes a recipe; lines and markers cascade.
func (db *DB) DeleteRecipe(ctx context.Context, id int64) (string, error) {
	var image string
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT image FROM recipes WHERE id = ?`, id).Scan(&image)
		if err != nil {
			if err == sql.ErrNoRows {
				return apperror.NotFound("recipe", id)
			}
			return fmt.Errorf("sqlite: reading recipe %d: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM recipes WHERE id = ?`, id); err != nil {
			return fmt.Errorf("sqlite: deleting recipe %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return image, nil
}

// ListRecipesByAuthor returns the author's newest recipes. limit <= 0 means all.
func (db *DB) ListRecipesByAuthor(ctx context.Context, authorID int64, limit int) ([]model.Recipe, error) {
	if limit <= 0 {
		limit = -1 // SQLite: negative LIMIT means no limit
	}
	return db.queryRecipes(ctx,
		`SELECT `+recipeColumns+` FROM recipes r
		 WHERE r.author_id = ?
		 ORDER BY r.created_at DESC, r.id DESC
		 LIMIT ?`, authorID, limit)
}

func (db *DB) CountRecipesByAuthor(ctx context.Context, authorID int64) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recipes WHERE author_id = ?`, authorID).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting recipes of user %d: %w", authorID, err)
	}
	return n, nil
}

// RecipeImageKeys returns every non-empty recipe image key, for the orphan sweep.
func (db *DB) RecipeImageKeys(ctx context.Context) ([]string, error) {
	return db.stringColumn(ctx, `SELECT image FROM recipes WHERE image <> ''`)
}

func (db *DB) DeleteAllRecipes(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM recipes`); err != nil {
		return fmt.Errorf("sqlite: deleting recipes: %w", err)
	}
	return nil
}
