package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON / writeError so the API has one
// JSON shape for success and one for failure:
//
//	{"error": "not_found", "detail": "recipe not found with id 7"}
//	{"error": "validation_error", "detail": "name is required", "field": "name"}

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/auth"
)

// maxBodyBytes bounds JSON request bodies. Base64 images make recipe bodies
// large, so this is well above media.MaxImageBytes.
const maxBodyBytes = 16 << 20

// ErrorResponse is the error format returned by every endpoint.
type ErrorResponse struct {
	Error  string `json:"error"`           // Machine-readable kind (e.g. "not_found")
	Detail string `json:"detail"`          // Human-readable description
	Field  string `json:"field,omitempty"` // Offending input field, for validation errors
}

// writeJSON sends data with the given status. Headers must be set before
// WriteHeader; anything set afterwards is ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to its HTTP status.
//
// errors.Is walks the wrap chain, so a service error like
// fmt.Errorf("service/recipe: %w", apperror.NotFound(...)) still maps to 404.
// Anything that is not an *apperror.AppError is a 500 with a generic body:
// raw errors can carry SQL or file paths.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:  "internal_error",
			Detail: "an internal error occurred",
		})
		return
	}

	status, kind := statusOf(err)
	writeJSON(w, status, ErrorResponse{
		Error:  kind,
		Detail: appErr.Message,
		Field:  appErr.Field,
	})
}

func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrDuplicate):
		return http.StatusBadRequest, "duplicate"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// decodeJSON reads a JSON body into dst. A malformed body is a validation
// error; an empty one decodes as {}.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperror.ValidationFailed("", fmt.Sprintf("request body must be %d bytes or fewer", tooLarge.Limit))
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return apperror.ValidationFailed(typeErr.Field, typeErr.Field+" has the wrong type")
		}
		return apperror.ValidationFailed("", "invalid JSON body: "+err.Error())
	}
	return nil
}

// pathID parses the {name} URL parameter as a positive id. A malformed id
// cannot match any row, so it is reported as not found.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, apperror.NotFound(name, raw)
	}
	return id, nil
}

// viewerID is the authenticated caller, or 0 for anonymous requests.
func viewerID(r *http.Request) int64 {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}

// requireUser returns the caller's id. Routes that need it are already behind
// RequireAuth, so a miss here means a routing mistake.
func requireUser(r *http.Request) (int64, error) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return 0, apperror.Unauthorized("authentication credentials were not provided")
	}
	return id, nil
}

// queryFlag reads boolean filters sent as 1/0 or true/false.
func queryFlag(r *http.Request, name string) bool {
	switch r.URL.Query().Get(name) {
	case "1", "true", "True":
		return true
	default:
		return false
	}
}
