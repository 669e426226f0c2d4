package handler

import (
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/service"
)

// JSON representations. Services return views; these structs fix the wire
// names and the null-vs-empty rules (a missing avatar is null, an empty list
// is []).

type userJSON struct {
	ID           int64   `json:"id"`
	Email        string  `json:"email"`
	Username     string  `json:"username"`
	FirstName    string  `json:"first_name"`
	LastName     string  `json:"last_name"`
	Avatar       *string `json:"avatar"`
	IsSubscribed bool    `json:"is_subscribed"`
}

// createdUserJSON is the registration response. It has no avatar or
// subscription state yet.
type createdUserJSON struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type ingredientLineJSON struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	MeasurementUnit string `json:"measurement_unit"`
	Amount          int    `json:"amount"`
}

type recipeJSON struct {
	ID               int64                `json:"id"`
	Author           userJSON             `json:"author"`
	Ingredients      []ingredientLineJSON `json:"ingredients"`
	IsFavorited      bool                 `json:"is_favorited"`
	IsInShoppingCart bool                 `json:"is_in_shopping_cart"`
	Name             string               `json:"name"`
	Image            string               `json:"image"`
	Text             string               `json:"text"`
	CookingTime      int                  `json:"cooking_time"`
}

type recipeShortJSON struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Image       string `json:"image"`
	CookingTime int    `json:"cooking_time"`
}

// authorJSON is a followed author with a preview of their recipes.
type authorJSON struct {
	userJSON
	Recipes      []recipeShortJSON `json:"recipes"`
	RecipesCount int               `json:"recipes_count"`
}

func toUserJSON(v service.UserView) userJSON {
	out := userJSON{
		ID:           v.ID,
		Email:        v.Email,
		Username:     v.Username,
		FirstName:    v.FirstName,
		LastName:     v.LastName,
		IsSubscribed: v.IsSubscribed,
	}
	if v.AvatarURL != "" {
		avatar := v.AvatarURL
		out.Avatar = &avatar
	}
	return out
}

func toCreatedUserJSON(u *model.User) createdUserJSON {
	return createdUserJSON{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

func toUsersJSON(views []service.UserView) []userJSON {
	out := make([]userJSON, len(views))
	for i, v := range views {
		out[i] = toUserJSON(v)
	}
	return out
}

func toRecipeJSON(v *service.RecipeView) recipeJSON {
	lines := make([]ingredientLineJSON, len(v.Ingredients))
	for i, l := range v.Ingredients {
		lines[i] = ingredientLineJSON{
			ID:              l.IngredientID,
			Name:            l.Name,
			MeasurementUnit: l.MeasurementUnit,
			Amount:          l.Amount,
		}
	}
	return recipeJSON{
		ID:               v.ID,
		Author:           toUserJSON(v.Author),
		Ingredients:      lines,
		IsFavorited:      v.IsFavorited,
		IsInShoppingCart: v.IsInShoppingCart,
		Name:             v.Name,
		Image:            v.ImageURL,
		Text:             v.Text,
		CookingTime:      v.CookingTime,
	}
}

func toRecipesJSON(views []service.RecipeView) []recipeJSON {
	out := make([]recipeJSON, len(views))
	for i := range views {
		out[i] = toRecipeJSON(&views[i])
	}
	return out
}

func toShortJSON(s service.RecipeShort) recipeShortJSON {
	return recipeShortJSON{ID: s.ID, Name: s.Name, Image: s.ImageURL, CookingTime: s.CookingTime}
}

func toAuthorJSON(a *service.AuthorView) authorJSON {
	recipes := make([]recipeShortJSON, len(a.Recipes))
	for i, r := range a.Recipes {
		recipes[i] = toShortJSON(r)
	}
	return authorJSON{userJSON: toUserJSON(a.UserView), Recipes: recipes, RecipesCount: a.RecipesCount}
}

func toAuthorsJSON(views []service.AuthorView) []authorJSON {
	out := make([]authorJSON, len(views))
	for i := range views {
		out[i] = toAuthorJSON(&views[i])
	}
	return out
}
