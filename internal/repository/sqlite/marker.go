package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

var _ repository.MarkerRepository = (*DB)(nil)

// AddMarker inserts a favorite or shopping-cart edge. The primary key
// (kind, user_id, recipe_id) rejects a second identical insert, including one
// racing with this call.
func (db *DB) AddMarker(ctx context.Context, kind model.MarkerKind, userID, recipeID int64) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO user_recipe_markers (kind, user_id, recipe_id, created_at)
		 VALUES (?, ?, ?, ?)`,
		string(kind), userID, recipeID, time.Now().UTC(),
	)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return apperror.Duplicate(fmt.Sprintf("recipe %d is already marked as %s", recipeID, kind))
	case isForeignKeyViolation(err):
		return apperror.NotFound("recipe", recipeID)
	default:
		return fmt.Errorf("sqlite: adding %s marker: %w", kind, err)
	}
}

func (db *DB) RemoveMarker(ctx context.Context, kind model.MarkerKind, userID, recipeID int64) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM user_recipe_markers WHERE kind = ? AND user_id = ? AND recipe_id = ?`,
		string(kind), userID, recipeID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: removing %s marker: %w", kind, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound(string(kind), recipeID)
	}
	return nil
}

func (db *DB) HasMarker(ctx context.Context, kind model.MarkerKind, userID, recipeID int64) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_recipe_markers
		                WHERE kind = ? AND user_id = ? AND recipe_id = ?)`,
		string(kind), userID, recipeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking %s marker: %w", kind, err)
	}
	return exists, nil
}

// CartLines returns every ingredient line of every recipe in the user's
// shopping cart. Grouping and summing happen in internal/shoppinglist.
func (db *DB) CartLines(ctx context.Context, userID int64) ([]model.CartLine, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT r.id, r.name, i.name, i.measurement_unit, ri.amount
		 FROM user_recipe_markers m
		 JOIN recipes r             ON r.id = m.recipe_id
		 JOIN recipe_ingredients ri ON ri.recipe_id = r.id
		 JOIN ingredients i         ON i.id = ri.ingredient_id
		 WHERE m.kind = ? AND m.user_id = ?`,
		string(model.MarkerShoppingCart), userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading cart of user %d: %w", userID, err)
	}
	defer rows.Close()

	var lines []model.CartLine
	for rows.Next() {
		var l model.CartLine
		if err := rows.Scan(&l.RecipeID, &l.RecipeName, &l.IngredientName, &l.MeasurementUnit, &l.Amount); err != nil {
			return nil, fmt.Errorf("sqlite: scanning cart line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating cart lines: %w", err)
	}
	return lines, nil
}
