package model

import "time"

// Ingredient is a catalog entry. (Name, MeasurementUnit) is unique.
type Ingredient struct {
	ID              int64  `json:"id"               db:"id"`
	Name            string `json:"name"             db:"name"`
	MeasurementUnit string `json:"measurement_unit" db:"measurement_unit"`
}

// Recipe is a user-authored recipe. Image is a media storage key.
// Ingredients is populated by the repository on single-recipe reads and on
// list reads; writes replace the whole set.
type Recipe struct {
	ID          int64              `db:"id"`
	AuthorID    int64              `db:"author_id"`
	Name        string             `db:"name"`
	Text        string             `db:"text"`
	Image       string             `db:"image"`
	CookingTime int                `db:"cooking_time"`
	CreatedAt   time.Time          `db:"created_at"`
	Ingredients []RecipeIngredient `db:"-"`
}

// RecipeIngredient is one ingredient line of a recipe. Name and
// MeasurementUnit are read-only copies joined from the catalog.
type RecipeIngredient struct {
	IngredientID    int64  `db:"ingredient_id"`
	Name            string `db:"name"`
	MeasurementUnit string `db:"measurement_unit"`
	Amount          int    `db:"amount"`
}

// MarkerKind tags a user → recipe edge. Favorites and shopping cart entries
// share one shape and one table; the kind tells them apart.
type MarkerKind string

const (
	MarkerFavorite     MarkerKind = "favorite"
	MarkerShoppingCart MarkerKind = "shopping_cart"
)

// Valid reports whether k is a known marker kind.
func (k MarkerKind) Valid() bool {
	return k == MarkerFavorite || k == MarkerShoppingCart
}

// CartLine is one (recipe, ingredient, amount) row reachable from a user's
// shopping cart. The shopping list is built from these rows.
type CartLine struct {
	RecipeID        int64
	RecipeName      string
	IngredientName  string
	MeasurementUnit string
	Amount          int
}
