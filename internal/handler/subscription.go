package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/foodgram/internal/repository"
	"github.com/sakif/foodgram/internal/service"
)

// SubscriptionHandler serves follow/unfollow and the caller's subscriptions.
// All routes require authentication.
type SubscriptionHandler struct {
	subs   *service.SubscriptionService
	pages  Paginator
	logger *slog.Logger
}

func NewSubscriptionHandler(subs *service.SubscriptionService, pages Paginator, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{subs: subs, pages: pages, logger: logger}
}

// HandleSubscribe follows the author.
//
// HTTP: POST /api/users/{id}/subscribe/?recipes_limit=
func (h *SubscriptionHandler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	followerID, err := requireUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	authorID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := service.ParseRecipesLimit(r.URL.Query().Get("recipes_limit"))
	if err != nil {
		writeError(w, err)
		return
	}

	view, err := h.subs.Subscribe(r.Context(), followerID, authorID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAuthorJSON(view))
}

// HandleUnsubscribe stops following the author.
//
// HTTP: DELETE /api/users/{id}/subscribe/
func (h *SubscriptionHandler) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	followerID, err := requireUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	authorID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.subs.Unsubscribe(r.Context(), followerID, authorID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleList returns the authors the caller follows, each with up to
// recipes_limit of their newest recipes.
//
// HTTP: GET /api/users/subscriptions/?page=&limit=&recipes_limit=
func (h *SubscriptionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	followerID, err := requireUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	recipesLimit, err := service.ParseRecipesLimit(r.URL.Query().Get("recipes_limit"))
	if err != nil {
		writeError(w, err)
		return
	}

	paginate(w, r, h.pages, func(opts repository.ListOptions) ([]authorJSON, int, error) {
		views, total, err := h.subs.List(r.Context(), followerID, opts, recipesLimit)
		if err != nil {
			return nil, 0, err
		}
		return toAuthorsJSON(views), total, nil
	})
}
