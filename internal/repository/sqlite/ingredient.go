package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

var _ repository.IngredientRepository = (*DB)(nil)

// SearchIngredients returns ingredients whose name starts with prefix,
// ignoring case, ordered by name. SQLite's LIKE and lower() only fold ASCII,
// so a lower-cased copy of the name is kept in name_lower and the prefix is
// folded in Go before matching.
func (db *DB) SearchIngredients(ctx context.Context, prefix string) ([]model.Ingredient, error) {
	pattern := escapeLike(strings.ToLower(prefix)) + "%"

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, measurement_unit
		 FROM ingredients
		 WHERE name_lower LIKE ? ESCAPE '\'
		 ORDER BY name, measurement_unit`,
		pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: searching ingredients: %w", err)
	}
	defer rows.Close()

	ingredients := []model.Ingredient{}
	for rows.Next() {
		var ing model.Ingredient
		if err := rows.Scan(&ing.ID, &ing.Name, &ing.MeasurementUnit); err != nil {
			return nil, fmt.Errorf("sqlite: scanning ingredient row: %w", err)
		}
		ingredients = append(ingredients, ing)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating ingredients: %w", err)
	}
	return ingredients, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (db *DB) GetIngredientByID(ctx context.Context, id int64) (*model.Ingredient, error) {
	var ing model.Ingredient
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, measurement_unit FROM ingredients WHERE id = ?`, id,
	).Scan(&ing.ID, &ing.Name, &ing.MeasurementUnit)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("ingredient", id)
		}
		return nil, fmt.Errorf("sqlite: getting ingredient %d: %w", id, err)
	}
	return &ing, nil
}

// MissingIngredientIDs returns, in argument order, the ids with no catalog row.
func (db *DB) MissingIngredientIDs(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id FROM ingredients WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking ingredient ids: %w", err)
	}
	defer rows.Close()

	found := make(map[int64]struct{}, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning ingredient id: %w", err)
		}
		found[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating ingredient ids: %w", err)
	}

	var missing []int64
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// FindIngredientByName returns the first ingredient with exactly this name.
func (db *DB) FindIngredientByName(ctx context.Context, name string) (*model.Ingredient, error) {
	var ing model.Ingredient
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, measurement_unit FROM ingredients
		 WHERE name = ? ORDER BY id LIMIT 1`, name,
	).Scan(&ing.ID, &ing.Name, &ing.MeasurementUnit)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("ingredient", name)
		}
		return nil, fmt.Errorf("sqlite: finding ingredient %q: %w", name, err)
	}
	return &ing, nil
}

// GetOrCreateIngredient inserts the (name, unit) pair unless it exists and
// fills ing.ID either way.
func (db *DB) GetOrCreateIngredient(ctx context.Context, ing *model.Ingredient) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO ingredients (name, measurement_unit, name_lower)
		 VALUES (?, ?, ?)
		 ON CONFLICT (name, measurement_unit) DO NOTHING`,
		ing.Name, ing.MeasurementUnit, strings.ToLower(ing.Name),
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: inserting ingredient %q: %w", ing.Name, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}

	err = db.conn.QueryRowContext(ctx,
		`SELECT id FROM ingredients WHERE name = ? AND measurement_unit = ?`,
		ing.Name, ing.MeasurementUnit,
	).Scan(&ing.ID)
	if err != nil {
		return false, fmt.Errorf("sqlite: reading ingredient id: %w", err)
	}
	return n > 0, nil
}

// DeleteAllIngredients empties the catalog. Recipe lines referencing the
// deleted rows go with them (ON DELETE CASCADE).
func (db *DB) DeleteAllIngredients(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM ingredients`); err != nil {
		return fmt.Errorf("sqlite: deleting ingredients: %w", err)
	}
	return nil
}
