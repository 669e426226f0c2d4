package apperror

import (
	"errors"
	"fmt"
	"testing"
)

// Each constructor wraps exactly one sentinel, so handlers can map an error
// to a status with errors.Is alone.
func TestConstructorsWrapOneSentinel(t *testing.T) {
	sentinels := []error{ErrNotFound, ErrValidation, ErrConflict, ErrForbidden, ErrDuplicate, ErrUnauthorized}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"missing recipe", NotFound("recipe", 42), ErrNotFound},
		{"short cooking time", ValidationFailed("cooking_time", "must be at least 1"), ErrValidation},
		{"taken username", Conflict("user", "chef"), ErrConflict},
		{"foreign recipe", Forbidden("only the author may edit this recipe"), ErrForbidden},
		{"second favorite", Duplicate("recipe already in favorites"), ErrDuplicate},
		{"no token", Unauthorized("authentication credentials were not provided"), ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, s := range sentinels {
				got := errors.Is(tt.err, s)
				if got != (s == tt.want) {
					t.Errorf("errors.Is(%q, %v) = %v", tt.err, s, got)
				}
			}
		})
	}
}

func TestMessages(t *testing.T) {
	tests := []struct {
		err  *AppError
		want string
	}{
		{NotFound("recipe", 42), "recipe not found with id 42"},
		{NotFound("ingredient", "unicorn"), "ingredient not found with id unicorn"},
		{Conflict("user", "chef"), "user conflict with id chef"},
		{Duplicate("you are already subscribed to chef"), "you are already subscribed to chef"},
	}

	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestWrappedByLayers(t *testing.T) {
	err := fmt.Errorf("service/recipe: updating 7: %w", NotFound("recipe", 7))

	if !errors.Is(err, ErrNotFound) {
		t.Fatal("wrapped error lost its sentinel")
	}

	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatal("errors.As did not find the *AppError")
	}
	if appErr.Message != "recipe not found with id 7" {
		t.Errorf("Message = %q", appErr.Message)
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("ingredients", "ingredients must not repeat")
	if err.Field != "ingredients" {
		t.Errorf("Field = %q, want %q", err.Field, "ingredients")
	}
	if NotFound("recipe", 1).Field != "" {
		t.Error("only validation errors carry a field")
	}
}
