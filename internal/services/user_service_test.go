package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/simplenotify/internal/models"
)

func TestUserServiceCreate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.users.Create(ctx, CreateUserInput{Username: " alice ", Email: "Alice@Example.com"})
	require.NoError(t, err)
	require.Equal(t, "alice", user.Username)
	require.Equal(t, "alice@example.com", user.Email)
	require.True(t, user.IsActive)

	_, err = env.users.Create(ctx, CreateUserInput{Username: "alice"})
	require.Error(t, err)

	_, err = env.users.Create(ctx, CreateUserInput{})
	require.Error(t, err)

	inactive := false
	disabled, err := env.users.Create(ctx, CreateUserInput{Username: "bob", IsActive: &inactive})
	require.NoError(t, err)
	reloaded, err := env.users.GetByID(ctx, disabled.ID)
	require.NoError(t, err)
	require.False(t, reloaded.IsActive)
}

func TestUserServiceDeleteCascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.createUser(t, "carol")
	other := env.createUser(t, "dave")
	first := env.subscribe(t, user.Owner(), "https://push.example.com/carol-1")
	second := env.subscribe(t, user.Owner(), "https://push.example.com/carol-2")
	keep := env.subscribe(t, other.Owner(), "https://push.example.com/dave")

	for _, sub := range []*models.PushSubscription{first, second, keep} {
		_, err := env.preferences.Resolve(ctx, sub)
		require.NoError(t, err)
	}

	require.NoError(t, env.users.Delete(ctx, user.ID))

	_, err := env.users.GetByID(ctx, user.ID)
	require.ErrorIs(t, err, ErrUserNotFound)

	subs, err := env.subscriptions.ListForOwner(ctx, user.Owner())
	require.NoError(t, err)
	require.Empty(t, subs)

	var prefs []models.NotificationPreferences
	require.NoError(t, env.db.Find(&prefs).Error)
	for _, p := range prefs {
		require.NotEqual(t, user.Owner(), p.Owner())
		require.NotEqual(t, models.SubscriptionOwner(first.ID), p.Owner())
		require.NotEqual(t, models.SubscriptionOwner(second.ID), p.Owner())
	}
	require.Len(t, prefs, 2)

	require.False(t, env.cached(t, first.ID))
	require.False(t, env.cached(t, second.ID))
	require.True(t, env.cached(t, keep.ID))

	require.ErrorIs(t, env.users.Delete(ctx, user.ID), ErrUserNotFound)
}
