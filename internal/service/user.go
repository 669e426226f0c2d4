package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/media"
	"github.com/sakif/foodgram/internal/repository"
)

// UserService serves profiles and owns the avatar file lifecycle.
type UserService struct {
	viewer
	logger *slog.Logger
}

func NewUserService(
	users repository.UserRepository,
	subs repository.SubscriptionRepository,
	markers repository.MarkerRepository,
	store media.Store,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		viewer: viewer{users: users, subs: subs, markers: markers, store: store},
		logger: logger,
	}
}

// Get returns user id as seen by viewerID (0 for anonymous).
func (s *UserService) Get(ctx context.Context, viewerID, id int64) (*UserView, error) {
	u, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/user: %w", err)
	}
	view, err := s.userView(ctx, viewerID, u)
	if err != nil {
		return nil, fmt.Errorf("service/user: %w", err)
	}
	return &view, nil
}

// List returns one page of users ordered by username, and the total count.
func (s *UserService) List(ctx context.Context, viewerID int64, opts repository.ListOptions) ([]UserView, int, error) {
	users, total, err := s.users.ListUsers(ctx, opts)
	if err != nil {
		logFailure(s.logger, "failed to list users", err)
		return nil, 0, fmt.Errorf("service/user: listing users: %w", err)
	}

	views := make([]UserView, 0, len(users))
	for i := range users {
		view, err := s.userView(ctx, viewerID, &users[i])
		if err != nil {
			return nil, 0, fmt.Errorf("service/user: %w", err)
		}
		views = append(views, view)
	}
	return views, total, nil
}

// SetAvatar stores the uploaded image, points the user at it and then
// deletes the file it replaced. Returns the new avatar URL.
func (s *UserService) SetAvatar(ctx context.Context, userID int64, dataURI string) (string, error) {
	if dataURI == "" {
		return "", apperror.ValidationFailed("avatar", "avatar is required")
	}

	key, err := saveImage(ctx, s.store, "avatar", media.PrefixAvatars, dataURI)
	if err != nil {
		logFailure(s.logger, "failed to save avatar", err, slog.Int64("userID", userID))
		return "", fmt.Errorf("service/user: %w", err)
	}

	previous, err := s.users.SetAvatar(ctx, userID, key)
	if err != nil {
		deleteFile(ctx, s.store, s.logger, key)
		return "", fmt.Errorf("service/user: setting avatar: %w", err)
	}
	deleteFile(ctx, s.store, s.logger, previous)

	s.logger.Info("avatar updated", slog.Int64("userID", userID), slog.String("key", key))
	return s.store.URL(key), nil
}

// DeleteAvatar clears the avatar and deletes its file.
func (s *UserService) DeleteAvatar(ctx context.Context, userID int64) error {
	previous, err := s.users.SetAvatar(ctx, userID, "")
	if err != nil {
		return fmt.Errorf("service/user: clearing avatar: %w", err)
	}
	deleteFile(ctx, s.store, s.logger, previous)

	s.logger.Info("avatar removed", slog.Int64("userID", userID))
	return nil
}
