package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/foodgram/internal/repository"
	"github.com/sakif/foodgram/internal/service"
)

// UserHandler serves registration, profiles, passwords and avatars.
type UserHandler struct {
	users  *service.UserService
	auth   *service.AuthService
	pages  Paginator
	logger *slog.Logger
}

func NewUserHandler(users *service.UserService, authSvc *service.AuthService, pages Paginator, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, auth: authSvc, pages: pages, logger: logger}
}

type registerRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
}

// HandleRegister creates an account.
//
// HTTP: POST /api/users/
func (h *UserHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.auth.Register(r.Context(), service.RegisterInput{
		Email:     req.Email,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCreatedUserJSON(user))
}

// HandleList returns users ordered by username.
//
// HTTP: GET /api/users/?page=&limit=
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	viewer := viewerID(r)
	paginate(w, r, h.pages, func(opts repository.ListOptions) ([]userJSON, int, error) {
		views, total, err := h.users.List(r.Context(), viewer, opts)
		if err != nil {
			return nil, 0, err
		}
		return toUsersJSON(views), total, nil
	})
}

// HandleGet returns one profile.
//
// HTTP: GET /api/users/{id}/
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	view, err := h.users.Get(r.Context(), viewerID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserJSON(*view))
}

// HandleMe returns the caller's own profile.
//
// HTTP: GET /api/users/me/
// Auth: Required
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	view, err := h.users.Get(r.Context(), userID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserJSON(*view))
}

type setPasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// HandleSetPassword changes the caller's password.
//
// HTTP: POST /api/users/set_password/
// Auth: Required
func (h *UserHandler) HandleSetPassword(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req setPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.auth.SetPassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type avatarRequest struct {
	Avatar string `json:"avatar"`
}

type avatarResponse struct {
	Avatar string `json:"avatar"`
}

// HandleSetAvatar replaces the caller's avatar with a base64 image.
//
// HTTP: PUT /api/users/me/avatar/
// Auth: Required
func (h *UserHandler) HandleSetAvatar(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req avatarRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	url, err := h.users.SetAvatar(r.Context(), userID, req.Avatar)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, avatarResponse{Avatar: url})
}

// HandleDeleteAvatar clears the caller's avatar.
//
// HTTP: DELETE /api/users/me/avatar/
// Auth: Required
func (h *UserHandler) HandleDeleteAvatar(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.users.DeleteAvatar(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
