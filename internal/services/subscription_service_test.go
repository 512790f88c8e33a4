package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/simplenotify/internal/models"
)

func TestSubscriptionServiceUpsertCreates(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice")

	sub, err := env.subscriptions.Upsert(context.Background(), user.Owner(), SubscribeInput{
		Endpoint: " https://push.example.com/alice ",
		P256dh:   "key",
		Auth:     "secret",
		Metadata: map[string]any{"browser": "Firefox", "platform": "Linux"},
	})
	require.NoError(t, err)
	require.NotZero(t, sub.ID)
	require.Equal(t, "https://push.example.com/alice", sub.Endpoint)
	require.Equal(t, "Firefox on Linux", sub.Name)
	require.Equal(t, user.Owner(), sub.Owner())
	require.Equal(t, "Firefox", sub.Metadata["browser"])
}

func TestSubscriptionServiceUpsertSameEndpointDoesNotDuplicate(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "bob")
	ctx := context.Background()

	first, err := env.subscriptions.Upsert(ctx, user.Owner(), SubscribeInput{
		Endpoint: "https://push.example.com/bob",
		P256dh:   "key-1",
		Auth:     "secret-1",
		Metadata: map[string]any{"name": "Laptop"},
	})
	require.NoError(t, err)

	second, err := env.subscriptions.Upsert(ctx, user.Owner(), SubscribeInput{
		Endpoint: "https://push.example.com/bob",
		P256dh:   "key-2",
		Auth:     "secret-2",
		Metadata: map[string]any{"name": "Renamed"},
	})
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "key-2", second.P256dh)
	require.Equal(t, "secret-2", second.Auth)
	require.Equal(t, "Laptop", second.Name)
	require.Equal(t, "Renamed", second.Metadata["name"])

	var count int64
	require.NoError(t, env.db.Model(&models.PushSubscription{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestSubscriptionServiceUpsertRebindsEndpointAndInvalidates(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	ctx := context.Background()

	sub := env.subscribe(t, alice.Owner(), "https://push.example.com/shared-device")
	_, err := env.preferences.Resolve(ctx, sub)
	require.NoError(t, err)
	require.True(t, env.cached(t, sub.ID))

	rebound := env.subscribe(t, bob.Owner(), "https://push.example.com/shared-device")
	require.Equal(t, sub.ID, rebound.ID)
	require.Equal(t, bob.Owner(), rebound.Owner())
	require.False(t, env.cached(t, sub.ID))
}

func TestSubscriptionServiceUpsertResetsDevicePreferencesOnOwnerChange(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	ctx := context.Background()

	sub := env.subscribe(t, alice.Owner(), "https://push.example.com/handed-over")
	_, err := env.preferences.Update(ctx, models.SubscriptionOwner(sub.ID), PreferencesPatch{NotificationFrequency: intPtr(5)})
	require.NoError(t, err)

	// refreshing keys for the same owner keeps the device settings
	env.subscribe(t, alice.Owner(), "https://push.example.com/handed-over")
	merged, err := env.preferences.Resolve(ctx, sub)
	require.NoError(t, err)
	require.Equal(t, 5, merged.NotificationFrequency)

	rebound := env.subscribe(t, bob.Owner(), "https://push.example.com/handed-over")
	require.Equal(t, sub.ID, rebound.ID)

	var count int64
	require.NoError(t, env.db.Model(&models.NotificationPreferences{}).
		Where("owner_kind = ? AND owner_id = ?", models.OwnerKindSubscription, sub.ID).
		Count(&count).Error)
	require.Zero(t, count)

	merged, err = env.preferences.Resolve(ctx, rebound)
	require.NoError(t, err)
	require.Equal(t, DefaultMergedPreferences(), merged)
}

func TestSubscriptionServiceManyDevicesPerOwner(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "carol")
	ctx := context.Background()

	env.subscribe(t, user.Owner(), "https://push.example.com/carol-phone")
	env.subscribe(t, user.Owner(), "https://push.example.com/carol-laptop")

	subs, err := env.subscriptions.ListForOwner(ctx, user.Owner())
	require.NoError(t, err)
	require.Len(t, subs, 2)
}

func TestSubscriptionServiceUpsertValidation(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "dave")
	ctx := context.Background()

	inputs := map[string]SubscribeInput{
		"missing endpoint": {P256dh: "k", Auth: "a"},
		"missing p256dh":   {Endpoint: "https://push.example.com/x", Auth: "a"},
		"missing auth":     {Endpoint: "https://push.example.com/x", P256dh: "k"},
	}
	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := env.subscriptions.Upsert(ctx, user.Owner(), input)
			require.Error(t, err)
		})
	}

	_, err := env.subscriptions.Upsert(ctx, models.OwnerRef{}, SubscribeInput{Endpoint: "https://push.example.com/x", P256dh: "k", Auth: "a"})
	require.Error(t, err)

	_, err = env.subscriptions.Upsert(ctx, models.SubscriptionOwner(1), SubscribeInput{Endpoint: "https://push.example.com/x", P256dh: "k", Auth: "a"})
	require.ErrorIs(t, err, ErrUnknownOwnerKind)
}

func TestDeriveSubscriptionName(t *testing.T) {
	tests := []struct {
		metadata map[string]any
		want     string
	}{
		{metadata: nil, want: ""},
		{metadata: map[string]any{"name": "Work", "device_name": "Pixel"}, want: "Work"},
		{metadata: map[string]any{"device_name": "Pixel", "browser": "Chrome", "platform": "Android"}, want: "Pixel"},
		{metadata: map[string]any{"browser": "Chrome", "platform": "Android", "os": "Android 15"}, want: "Chrome on Android"},
		{metadata: map[string]any{"browser": "Chrome", "os": "macOS"}, want: "macOS"},
		{metadata: map[string]any{"name": 42}, want: ""},
	}

	for _, tc := range tests {
		require.Equal(t, tc.want, deriveSubscriptionName(tc.metadata))
	}
}

func TestSubscriptionServiceDeleteByEndpoint(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "erin")
	other := env.createUser(t, "frank")
	ctx := context.Background()

	sub := env.subscribe(t, user.Owner(), "https://push.example.com/erin")
	_, err := env.preferences.Update(ctx, models.SubscriptionOwner(sub.ID), PreferencesPatch{NotificationFrequency: intPtr(30)})
	require.NoError(t, err)
	_, err = env.preferences.Resolve(ctx, sub)
	require.NoError(t, err)

	err = env.subscriptions.DeleteByEndpoint(ctx, other.Owner(), sub.Endpoint)
	require.ErrorIs(t, err, ErrSubscriptionNotFound)

	err = env.subscriptions.DeleteByEndpoint(ctx, user.Owner(), "https://push.example.com/unknown")
	require.ErrorIs(t, err, ErrSubscriptionNotFound)

	require.NoError(t, env.subscriptions.DeleteByEndpoint(ctx, user.Owner(), sub.Endpoint))

	_, err = env.subscriptions.Get(ctx, sub.ID)
	require.ErrorIs(t, err, ErrSubscriptionNotFound)
	require.False(t, env.cached(t, sub.ID))

	var prefsCount int64
	require.NoError(t, env.db.Model(&models.NotificationPreferences{}).
		Where("owner_kind = ? AND owner_id = ?", models.OwnerKindSubscription, sub.ID).
		Count(&prefsCount).Error)
	require.Zero(t, prefsCount)

	err = env.subscriptions.DeleteByEndpoint(ctx, user.Owner(), sub.Endpoint)
	require.ErrorIs(t, err, ErrSubscriptionNotFound)
}

func TestSubscriptionServiceDeleteForOwner(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "grace")
	ctx := context.Background()

	removed, err := env.subscriptions.DeleteForOwner(ctx, user.Owner())
	require.NoError(t, err)
	require.Zero(t, removed)

	env.subscribe(t, user.Owner(), "https://push.example.com/grace-1")
	env.subscribe(t, user.Owner(), "https://push.example.com/grace-2")

	removed, err = env.subscriptions.DeleteForOwner(ctx, user.Owner())
	require.NoError(t, err)
	require.EqualValues(t, 2, removed)
}

func TestSubscriptionServiceStatus(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "heidi")
	ctx := context.Background()

	status, err := env.subscriptions.Status(ctx, user.Owner(), "")
	require.NoError(t, err)
	require.False(t, status.Subscribed)
	require.Nil(t, status.Subscription)

	sub := env.subscribe(t, user.Owner(), "https://push.example.com/heidi")

	status, err = env.subscriptions.Status(ctx, user.Owner(), "")
	require.NoError(t, err)
	require.True(t, status.Subscribed)
	require.Equal(t, sub.ID, status.Subscription.ID)
	require.Equal(t, "p256dh-key", status.Subscription.Keys.P256dh)

	status, err = env.subscriptions.Status(ctx, user.Owner(), "https://push.example.com/other")
	require.NoError(t, err)
	require.False(t, status.Subscribed)
}

func TestSubscriptionServiceGetForOwner(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "ivan")
	other := env.createUser(t, "judy")
	sub := env.subscribe(t, user.Owner(), "https://push.example.com/ivan")
	ctx := context.Background()

	found, err := env.subscriptions.GetForOwner(ctx, user.Owner(), sub.ID)
	require.NoError(t, err)
	require.Equal(t, sub.ID, found.ID)

	_, err = env.subscriptions.GetForOwner(ctx, other.Owner(), sub.ID)
	require.ErrorIs(t, err, ErrSubscriptionNotFound)
}
