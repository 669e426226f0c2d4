package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/foodgram/internal/service"
)

// IngredientHandler serves the read-only ingredient catalog.
type IngredientHandler struct {
	ingredients *service.IngredientService
	logger      *slog.Logger
}

func NewIngredientHandler(ingredients *service.IngredientService, logger *slog.Logger) *IngredientHandler {
	return &IngredientHandler{ingredients: ingredients, logger: logger}
}

// HandleSearch lists ingredients whose name starts with ?name=, ignoring
// case. The catalog is not paginated.
//
// HTTP: GET /api/ingredients/?name=
func (h *IngredientHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	items, err := h.ingredients.Search(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// HandleGet returns one ingredient.
//
// HTTP: GET /api/ingredients/{id}/
func (h *IngredientHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	ing, err := h.ingredients.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ing)
}
