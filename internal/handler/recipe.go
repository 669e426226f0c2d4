package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
	"github.com/sakif/foodgram/internal/service"
)

// RecipeHandler serves recipes, favorites, the shopping cart and short links.
type RecipeHandler struct {
	recipes *service.RecipeService
	markers *service.MarkerService
	pages   Paginator
	logger  *slog.Logger
}

func NewRecipeHandler(recipes *service.RecipeService, markers *service.MarkerService, pages Paginator, logger *slog.Logger) *RecipeHandler {
	return &RecipeHandler{recipes: recipes, markers: markers, pages: pages, logger: logger}
}

type ingredientAmountRequest struct {
	ID     int64 `json:"id"`
	Amount int   `json:"amount"`
}

// recipeRequest uses pointers so PATCH can tell "not sent" from "empty".
type recipeRequest struct {
	Name        *string                   `json:"name"`
	Text        *string                   `json:"text"`
	Image       *string                   `json:"image"`
	CookingTime *int                      `json:"cooking_time"`
	Ingredients []ingredientAmountRequest `json:"ingredients"`
}

func (req recipeRequest) input() service.RecipeInput {
	in := service.RecipeInput{
		Name:        req.Name,
		Text:        req.Text,
		Image:       req.Image,
		CookingTime: req.CookingTime,
		Ingredients: make([]service.IngredientAmount, len(req.Ingredients)),
	}
	for i, item := range req.Ingredients {
		in.Ingredients[i] = service.IngredientAmount{ID: item.ID, Amount: item.Amount}
	}
	return in
}

// HandleList returns recipes newest first.
//
// HTTP: GET /api/recipes/?page=&limit=&author=&is_favorited=&is_in_shopping_cart=
func (h *RecipeHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := service.RecipeQuery{
		FavoritedOnly: queryFlag(r, "is_favorited"),
		InCartOnly:    queryFlag(r, "is_in_shopping_cart"),
	}
	if raw := r.URL.Query().Get("author"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 1 {
			writeError(w, apperror.ValidationFailed("author", "author must be a user id"))
			return
		}
		q.AuthorID = id
	}

	viewer := viewerID(r)
	paginate(w, r, h.pages, func(opts repository.ListOptions) ([]recipeJSON, int, error) {
		q.ListOptions = opts
		views, total, err := h.recipes.List(r.Context(), viewer, q)
		if err != nil {
			return nil, 0, err
		}
		return toRecipesJSON(views), total, nil
	})
}

// HandleGet returns one recipe.
//
// HTTP: GET /api/recipes/{id}/
func (h *RecipeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	view, err := h.recipes.Get(r.Context(), viewerID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecipeJSON(view))
}

// HandleCreate publishes a recipe authored by the caller.
//
// HTTP: POST /api/recipes/
// Auth: Required
func (h *RecipeHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req recipeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	view, err := h.recipes.Create(r.Context(), userID, req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecipeJSON(view))
}

// HandleUpdate partially updates a recipe. ingredients is required and
// replaces the whole set.
//
// HTTP: PATCH /api/recipes/{id}/
// Auth: Required (author or staff)
func (h *RecipeHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req recipeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	view, err := h.recipes.Update(r.Context(), userID, id, req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecipeJSON(view))
}

// HandleDelete removes a recipe.
//
// HTTP: DELETE /api/recipes/{id}/
// Auth: Required (author or staff)
func (h *RecipeHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.recipes.Delete(r.Context(), userID, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAddMarker returns the POST handler for /favorite/ or /shopping_cart/.
//
// HTTP: POST /api/recipes/{id}/favorite/, POST /api/recipes/{id}/shopping_cart/
// Auth: Required
func (h *RecipeHandler) HandleAddMarker(kind model.MarkerKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUser(r)
		if err != nil {
			writeError(w, err)
			return
		}
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}
		short, err := h.markers.Add(r.Context(), kind, userID, id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toShortJSON(*short))
	}
}

// HandleRemoveMarker returns the DELETE handler for /favorite/ or /shopping_cart/.
func (h *RecipeHandler) HandleRemoveMarker(kind model.MarkerKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUser(r)
		if err != nil {
			writeError(w, err)
			return
		}
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}
		if err := h.markers.Remove(r.Context(), kind, userID, id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleDownloadShoppingCart sends the aggregated shopping list as a text
// attachment.
//
// HTTP: GET /api/recipes/download_shopping_cart/
// Auth: Required
func (h *RecipeHandler) HandleDownloadShoppingCart(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	text, err := h.markers.ShoppingList(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="shopping_cart.txt"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(text)); err != nil {
		h.logger.Warn("failed to write shopping list", slog.String("error", err.Error()))
	}
}

type shortLinkResponse struct {
	ShortLink string `json:"short-link"`
}

// HandleGetLink returns the shareable short URL of a recipe.
//
// HTTP: GET /api/recipes/{id}/get-link/
func (h *RecipeHandler) HandleGetLink(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	link, err := h.recipes.ShortLink(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shortLinkResponse{ShortLink: link})
}

// HandleShortLink redirects a short link to the recipe page.
//
// HTTP: GET /s/{id}
func (h *RecipeHandler) HandleShortLink(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	target, err := h.recipes.ResolveShortLink(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}
