package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/repository"
)

func TestUserGet_SubscriptionFlag(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db, db, db, newMemStore(), quietLogger())
	chef := mustUser(t, db, "chef")
	fan := mustUser(t, db, "fan")
	ctx := context.Background()
	require.NoError(t, db.Subscribe(ctx, fan.ID, chef.ID))

	view, err := svc.Get(ctx, fan.ID, chef.ID)
	require.NoError(t, err)
	assert.True(t, view.IsSubscribed)
	assert.Empty(t, view.AvatarURL)

	self, err := svc.Get(ctx, chef.ID, chef.ID)
	require.NoError(t, err)
	assert.False(t, self.IsSubscribed)

	anon, err := svc.Get(ctx, 0, chef.ID)
	require.NoError(t, err)
	assert.False(t, anon.IsSubscribed)

	_, err = svc.Get(ctx, 0, 9999)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUserList(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db, db, db, newMemStore(), quietLogger())
	mustUser(t, db, "bob")
	mustUser(t, db, "alice")
	mustUser(t, db, "carol")

	users, total, err := svc.List(context.Background(), 0, repository.ListOptions{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, "bob", users[1].Username)
}

func TestAvatarLifecycle(t *testing.T) {
	db := newTestDB(t)
	store := newMemStore()
	svc := NewUserService(db, db, db, store, quietLogger())
	u := mustUser(t, db, "chef")
	ctx := context.Background()

	first, err := svc.SetAvatar(ctx, u.ID, pngURI)
	require.NoError(t, err)
	assert.Contains(t, first, "http://media.test/avatars/")
	assert.Equal(t, 1, store.count())

	second, err := svc.SetAvatar(ctx, u.ID, pngURI)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, 1, store.count(), "previous avatar file deleted")

	view, err := svc.Get(ctx, 0, u.ID)
	require.NoError(t, err)
	assert.Equal(t, second, view.AvatarURL)

	require.NoError(t, svc.DeleteAvatar(ctx, u.ID))
	assert.Zero(t, store.count())

	view, err = svc.Get(ctx, 0, u.ID)
	require.NoError(t, err)
	assert.Empty(t, view.AvatarURL)
}

func TestSetAvatar_Invalid(t *testing.T) {
	db := newTestDB(t)
	store := newMemStore()
	svc := NewUserService(db, db, db, store, quietLogger())
	u := mustUser(t, db, "chef")

	_, err := svc.SetAvatar(context.Background(), u.ID, "")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.SetAvatar(context.Background(), u.ID, "not a data uri")
	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.Equal(t, "avatar", fieldOf(err))

	_, err = svc.SetAvatar(context.Background(), 9999, pngURI)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.Zero(t, store.count(), "file removed when the user is missing")
}

func TestSetAvatar_StoreFailure(t *testing.T) {
	db := newTestDB(t)
	store := newMemStore()
	store.saveErr = errDiskFull
	svc := NewUserService(db, db, db, store, quietLogger())
	u := mustUser(t, db, "chef")

	_, err := svc.SetAvatar(context.Background(), u.ID, pngURI)
	assert.ErrorIs(t, err, errDiskFull)
}
