package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/model"
)

func TestAddMarker_SecondInsertIsDuplicate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "eater")
	flour := createTestIngredient(t, db, "flour", "g")
	r := createTestRecipe(t, db, user, "bread", line(flour, 1))

	for _, kind := range []model.MarkerKind{model.MarkerFavorite, model.MarkerShoppingCart} {
		t.Run(string(kind), func(t *testing.T) {
			require.NoError(t, db.AddMarker(ctx, kind, user.ID, r.ID))
			assert.ErrorIs(t, db.AddMarker(ctx, kind, user.ID, r.ID), apperror.ErrDuplicate)

			has, err := db.HasMarker(ctx, kind, user.ID, r.ID)
			require.NoError(t, err)
			assert.True(t, has)
		})
	}
}

func TestAddMarker_KindsAreIndependent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "eater")
	flour := createTestIngredient(t, db, "flour", "g")
	r := createTestRecipe(t, db, user, "bread", line(flour, 1))

	require.NoError(t, db.AddMarker(ctx, model.MarkerFavorite, user.ID, r.ID))

	inCart, err := db.HasMarker(ctx, model.MarkerShoppingCart, user.ID, r.ID)
	require.NoError(t, err)
	assert.False(t, inCart)
}

func TestAddMarker_MissingRecipe(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "eater")

	err := db.AddMarker(context.Background(), model.MarkerFavorite, user.ID, 404)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestRemoveMarker(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "eater")
	flour := createTestIngredient(t, db, "flour", "g")
	r := createTestRecipe(t, db, user, "bread", line(flour, 1))

	assert.ErrorIs(t, db.RemoveMarker(ctx, model.MarkerShoppingCart, user.ID, r.ID), apperror.ErrNotFound)

	require.NoError(t, db.AddMarker(ctx, model.MarkerShoppingCart, user.ID, r.ID))
	require.NoError(t, db.RemoveMarker(ctx, model.MarkerShoppingCart, user.ID, r.ID))

	has, err := db.HasMarker(ctx, model.MarkerShoppingCart, user.ID, r.ID)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestCartLines(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "eater")
	other := createTestUser(t, db, "other")
	flour := createTestIngredient(t, db, "Flour", "g")
	sugar := createTestIngredient(t, db, "Sugar", "g")

	bread := createTestRecipe(t, db, other, "Bread", line(flour, 200))
	cake := createTestRecipe(t, db, other, "Cake", line(flour, 150), line(sugar, 100))
	createTestRecipe(t, db, other, "Unrelated", line(sugar, 999))

	require.NoError(t, db.AddMarker(ctx, model.MarkerShoppingCart, user.ID, bread.ID))
	require.NoError(t, db.AddMarker(ctx, model.MarkerShoppingCart, user.ID, cake.ID))
	// Favorites never reach the shopping list.
	require.NoError(t, db.AddMarker(ctx, model.MarkerFavorite, user.ID, bread.ID))

	lines, err := db.CartLines(ctx, user.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []model.CartLine{
		{RecipeID: bread.ID, RecipeName: "Bread", IngredientName: "Flour", MeasurementUnit: "g", Amount: 200},
		{RecipeID: cake.ID, RecipeName: "Cake", IngredientName: "Flour", MeasurementUnit: "g", Amount: 150},
		{RecipeID: cake.ID, RecipeName: "Cake", IngredientName: "Sugar", MeasurementUnit: "g", Amount: 100},
	}, lines)

	empty, err := db.CartLines(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
