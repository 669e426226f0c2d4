package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rs/xid"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/auth"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

// usernamePattern is letters, digits and @ . + - _ only.
var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// reservedUsernames collide with routes like /api/users/me/.
var reservedUsernames = map[string]bool{"me": true}

// AuthService registers accounts and issues, revokes and rotates credentials.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	revoker   auth.Revoker
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	revoker auth.Revoker,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		revoker:   revoker,
		logger:    logger,
	}
}

// RegisterInput is the sign-up form.
type RegisterInput struct {
	Email     string
	Username  string
	FirstName string
	LastName  string
	Password  string
}

// AuthResult bundles the user and a freshly issued token.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register validates the form, hashes the password and creates the account.
// A taken email or username is a validation error on that field.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	if err := validateRegistration(in); err != nil {
		return nil, err
	}

	if _, err := s.users.GetUserByEmail(ctx, in.Email); err == nil {
		return nil, apperror.ValidationFailed("email", "a user with this email already exists")
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: checking email: %w", err)
	}
	if _, err := s.users.GetUserByUsername(ctx, in.Username); err == nil {
		return nil, apperror.ValidationFailed("username", "a user with this username already exists")
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: checking username: %w", err)
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, apperror.ValidationFailed("password", "password must be 72 bytes or fewer")
		}
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	user := &model.User{
		Email:        in.Email,
		Username:     in.Username,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		// Lost a race with another sign-up for the same email or username.
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.ValidationFailed("username", "a user with this email or username already exists")
		}
		s.logger.Error("failed to create user",
			slog.String("username", in.Username),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user registered",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

func validateRegistration(in RegisterInput) error {
	switch {
	case in.Email == "":
		return apperror.ValidationFailed("email", "email is required")
	case utf8.RuneCountInString(in.Email) > MaxEmailLength:
		return apperror.ValidationFailed("email", fmt.Sprintf("email must be %d characters or fewer", MaxEmailLength))
	case !validEmail(in.Email):
		return apperror.ValidationFailed("email", "enter a valid email address")
	case in.Username == "":
		return apperror.ValidationFailed("username", "username is required")
	case utf8.RuneCountInString(in.Username) > MaxNameLength:
		return apperror.ValidationFailed("username", fmt.Sprintf("username must be %d characters or fewer", MaxNameLength))
	case !usernamePattern.MatchString(in.Username):
		return apperror.ValidationFailed("username", "username may contain only letters, digits and @/./+/-/_")
	case reservedUsernames[strings.ToLower(in.Username)]:
		return apperror.ValidationFailed("username", fmt.Sprintf("username %q is reserved", in.Username))
	case in.FirstName == "":
		return apperror.ValidationFailed("first_name", "first name is required")
	case utf8.RuneCountInString(in.FirstName) > MaxNameLength:
		return apperror.ValidationFailed("first_name", fmt.Sprintf("first name must be %d characters or fewer", MaxNameLength))
	case in.LastName == "":
		return apperror.ValidationFailed("last_name", "last name is required")
	case utf8.RuneCountInString(in.LastName) > MaxNameLength:
		return apperror.ValidationFailed("last_name", fmt.Sprintf("last name must be %d characters or fewer", MaxNameLength))
	case in.Password == "":
		return apperror.ValidationFailed("password", "password is required")
	}
	return nil
}

// validEmail accepts a bare address only ("a@b.c", not "Name <a@b.c>").
func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s && strings.Contains(s[strings.LastIndexByte(s, '@'):], ".")
}

// Login checks email and password and issues a token. Unknown email and
// wrong password produce the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	invalid := apperror.ValidationFailed("", "unable to log in with the provided credentials")

	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, invalid
		}
		return nil, fmt.Errorf("service/auth: loading user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, invalid
		}
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	return s.issue(user)
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %d: %w", user.ID, err)
	}
	s.logger.Info("token issued", slog.Int64("userID", user.ID))
	return &AuthResult{User: user, Token: token}, nil
}

// Logout revokes the token the request was made with.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil {
		return apperror.Unauthorized("authentication credentials were not provided")
	}
	if err := s.revoker.Revoke(ctx, claims.TokenID, claims.ExpiresAt); err != nil {
		s.logger.Error("failed to revoke token",
			slog.Int64("userID", claims.UserID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("service/auth: revoking token: %w", err)
	}
	s.logger.Info("token revoked", slog.Int64("userID", claims.UserID))
	return nil
}

// SetPassword replaces the password after checking the current one.
func (s *AuthService) SetPassword(ctx context.Context, userID int64, current, next string) error {
	if current == "" {
		return apperror.ValidationFailed("current_password", "current password is required")
	}
	if next == "" {
		return apperror.ValidationFailed("new_password", "new password is required")
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("service/auth: loading user %d: %w", userID, err)
	}
	if err := s.passwords.Verify(user.PasswordHash, current); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return apperror.ValidationFailed("current_password", "current password is incorrect")
		}
		return fmt.Errorf("service/auth: %w", err)
	}

	hash, err := s.passwords.Hash(next)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return apperror.ValidationFailed("new_password", "password must be 72 bytes or fewer")
		}
		return fmt.Errorf("service/auth: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("service/auth: updating password: %w", err)
	}

	s.logger.Info("password changed", slog.Int64("userID", userID))
	return nil
}

// LoginOrRegisterGitHub signs in the account with the GitHub email, creating
// one (without a password) on first sign-in. The username is the GitHub login,
// suffixed when it is already taken here.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, gh *auth.GitHubUser) (*AuthResult, error) {
	if gh == nil || gh.Email == "" {
		return nil, fmt.Errorf("service/auth: GitHub user must have an email")
	}

	user, err := s.users.GetUserByEmail(ctx, gh.Email)
	switch {
	case err == nil:
		return s.issue(user)
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/auth: loading user by email: %w", err)
	}

	username, err := s.freeUsername(ctx, gh.Login)
	if err != nil {
		return nil, err
	}
	first, last := splitName(gh.Name, gh.Login)

	user = &model.User{
		Email:     gh.Email,
		Username:  username,
		FirstName: first,
		LastName:  last,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating GitHub user (githubID=%d): %w", gh.ID, err)
	}

	s.logger.Info("user registered via GitHub",
		slog.Int64("userID", user.ID),
		slog.String("login", gh.Login),
	)
	return s.issue(user)
}

func (s *AuthService) freeUsername(ctx context.Context, login string) (string, error) {
	base := login
	if !usernamePattern.MatchString(base) || reservedUsernames[strings.ToLower(base)] {
		base = "github-user"
	}
	if utf8.RuneCountInString(base) > MaxNameLength-21 {
		base = string([]rune(base)[:MaxNameLength-21])
	}

	candidate := base
	for range 5 {
		_, err := s.users.GetUserByUsername(ctx, candidate)
		if errors.Is(err, apperror.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("service/auth: checking username: %w", err)
		}
		candidate = base + "-" + xid.New().String()
	}
	return "", fmt.Errorf("service/auth: no free username for GitHub login %q", login)
}

// splitName turns "Mona Lisa Octocat" into ("Mona", "Lisa Octocat").
func splitName(full, fallback string) (string, string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return fallback, fallback
	}
	first, last, ok := strings.Cut(full, " ")
	if !ok {
		return first, first
	}
	return first, strings.TrimSpace(last)
}
