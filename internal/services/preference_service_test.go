package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/simplenotify/internal/cache"
	"github.com/charlesng35/simplenotify/internal/models"
	apperrors "github.com/charlesng35/simplenotify/pkg/errors"
)

func TestPreferenceServiceGetOrCreateDefaults(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice")
	ctx := context.Background()

	prefs, err := env.preferences.GetOrCreate(ctx, user.Owner())
	require.NoError(t, err)
	require.NotZero(t, prefs.ID)
	require.Equal(t, models.DefaultNotificationFrequency, prefs.NotificationFrequency)
	require.Equal(t, models.DefaultQuietHoursTimezone, prefs.QuietHoursTimezone)
	require.Nil(t, prefs.QuietHoursStart)

	again, err := env.preferences.GetOrCreate(ctx, user.Owner())
	require.NoError(t, err)
	require.Equal(t, prefs.ID, again.ID)

	var count int64
	require.NoError(t, env.db.Model(&models.NotificationPreferences{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestPreferenceServiceValidatesOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.preferences.GetOrCreate(ctx, models.OwnerRef{Kind: "team", ID: 1})
	require.ErrorIs(t, err, ErrUnknownOwnerKind)

	_, err = env.preferences.GetOrCreate(ctx, models.UserOwner(999))
	require.ErrorIs(t, err, ErrOwnerNotFound)

	_, err = env.preferences.GetOrCreate(ctx, models.OwnerRef{})
	require.Error(t, err)
}

func TestPreferenceServiceUpdate(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "bob")
	ctx := context.Background()

	prefs, err := env.preferences.Update(ctx, user.Owner(), PreferencesPatch{
		NotificationFrequency: intPtr(0),
		QuietHoursStart:       stringPtr("22:00"),
		QuietHoursEnd:         stringPtr("06:30:15"),
		QuietHoursTimezone:    stringPtr("Europe/Paris"),
	})
	require.NoError(t, err)
	require.Equal(t, 0, prefs.NotificationFrequency)
	require.Equal(t, "22:00:00", *prefs.QuietHoursStart)
	require.Equal(t, "06:30:15", *prefs.QuietHoursEnd)
	require.Equal(t, "Europe/Paris", prefs.QuietHoursTimezone)

	reloaded, err := env.preferences.GetOrCreate(ctx, user.Owner())
	require.NoError(t, err)
	require.Equal(t, 0, reloaded.NotificationFrequency)
	require.Equal(t, "22:00:00", *reloaded.QuietHoursStart)

	cleared, err := env.preferences.Update(ctx, user.Owner(), PreferencesPatch{ClearQuietHours: true})
	require.NoError(t, err)
	require.Nil(t, cleared.QuietHoursStart)
	require.Nil(t, cleared.QuietHoursEnd)
	require.Equal(t, "Europe/Paris", cleared.QuietHoursTimezone)
}

func TestPreferenceServiceUpdateValidation(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "carol")
	ctx := context.Background()

	patches := map[string]PreferencesPatch{
		"frequency too high": {NotificationFrequency: intPtr(101)},
		"frequency negative": {NotificationFrequency: intPtr(-1)},
		"bad start":          {QuietHoursStart: stringPtr("25:00")},
		"bad end":            {QuietHoursEnd: stringPtr("noon")},
		"bad timezone":       {QuietHoursTimezone: stringPtr("Mars/Olympus")},
	}
	for name, patch := range patches {
		t.Run(name, func(t *testing.T) {
			_, err := env.preferences.Update(ctx, user.Owner(), patch)
			require.Error(t, err)

			var appErr *apperrors.AppError
			require.True(t, errors.As(err, &appErr))
			require.Equal(t, apperrors.ErrBadRequest.Code, appErr.Code)
		})
	}
}

func TestPreferenceServiceResolveOverlaysWholeSubscriptionRecord(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "dave")
	sub := env.subscribe(t, user.Owner(), "https://push.example.com/dave")
	ctx := context.Background()

	_, err := env.preferences.Update(ctx, user.Owner(), PreferencesPatch{
		NotificationFrequency: intPtr(20),
		QuietHoursStart:       stringPtr("22:00"),
		QuietHoursEnd:         stringPtr("06:00"),
	})
	require.NoError(t, err)

	merged, err := env.preferences.Resolve(ctx, sub)
	require.NoError(t, err)
	require.Equal(t, DefaultMergedPreferences(), merged)

	_, err = env.preferences.Update(ctx, models.SubscriptionOwner(sub.ID), PreferencesPatch{NotificationFrequency: intPtr(75)})
	require.NoError(t, err)

	merged, err = env.preferences.Resolve(ctx, sub)
	require.NoError(t, err)
	require.Equal(t, 75, merged.NotificationFrequency)
	require.Nil(t, merged.QuietHoursStart)
}

func TestPreferenceServiceResolveCachesWithoutExpiry(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "erin")
	sub := env.subscribe(t, user.Owner(), "https://push.example.com/erin")
	ctx := context.Background()

	_, err := env.preferences.Resolve(ctx, sub)
	require.NoError(t, err)
	require.True(t, env.cached(t, sub.ID))

	var entry models.CacheEntry
	require.NoError(t, env.db.Where(map[string]any{"key": PreferenceCacheKey(sub.ID)}).Take(&entry).Error)
	require.True(t, entry.ExpiresAt.IsZero())

	var cachedView MergedPreferences
	require.NoError(t, json.Unmarshal(entry.Value, &cachedView))
	require.Equal(t, DefaultMergedPreferences(), cachedView)

	// a write that bypasses the service is not observed until invalidation
	require.NoError(t, env.db.Model(&models.NotificationPreferences{}).
		Where("owner_kind = ? AND owner_id = ?", models.OwnerKindSubscription, sub.ID).
		Update("notification_frequency", 5).Error)

	merged, err := env.preferences.Resolve(ctx, sub)
	require.NoError(t, err)
	require.Equal(t, 100, merged.NotificationFrequency)

	env.preferences.InvalidateSubscriptions(ctx, sub.ID)
	merged, err = env.preferences.Resolve(ctx, sub)
	require.NoError(t, err)
	require.Equal(t, 5, merged.NotificationFrequency)
}

func TestPreferenceServiceUserUpdateInvalidatesAllSubscriptions(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "frank")
	other := env.createUser(t, "grace")
	first := env.subscribe(t, user.Owner(), "https://push.example.com/frank-1")
	second := env.subscribe(t, user.Owner(), "https://push.example.com/frank-2")
	foreign := env.subscribe(t, other.Owner(), "https://push.example.com/grace")
	ctx := context.Background()

	for _, sub := range []*models.PushSubscription{first, second, foreign} {
		_, err := env.preferences.Resolve(ctx, sub)
		require.NoError(t, err)
		require.True(t, env.cached(t, sub.ID))
	}

	_, err := env.preferences.Update(ctx, user.Owner(), PreferencesPatch{NotificationFrequency: intPtr(40)})
	require.NoError(t, err)

	require.False(t, env.cached(t, first.ID))
	require.False(t, env.cached(t, second.ID))
	require.True(t, env.cached(t, foreign.ID))
}

func TestPreferenceServiceSubscriptionUpdateInvalidatesOnlyThatSubscription(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "heidi")
	first := env.subscribe(t, user.Owner(), "https://push.example.com/heidi-1")
	second := env.subscribe(t, user.Owner(), "https://push.example.com/heidi-2")
	ctx := context.Background()

	for _, sub := range []*models.PushSubscription{first, second} {
		_, err := env.preferences.Resolve(ctx, sub)
		require.NoError(t, err)
	}

	_, err := env.preferences.Update(ctx, models.SubscriptionOwner(first.ID), PreferencesPatch{NotificationFrequency: intPtr(10)})
	require.NoError(t, err)

	require.False(t, env.cached(t, first.ID))
	require.True(t, env.cached(t, second.ID))

	merged, err := env.preferences.Resolve(ctx, first)
	require.NoError(t, err)
	require.Equal(t, 10, merged.NotificationFrequency)
}

func TestPreferenceServiceDeleteInvalidates(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "ivan")
	sub := env.subscribe(t, user.Owner(), "https://push.example.com/ivan")
	ctx := context.Background()

	_, err := env.preferences.Update(ctx, models.SubscriptionOwner(sub.ID), PreferencesPatch{NotificationFrequency: intPtr(10)})
	require.NoError(t, err)
	_, err = env.preferences.Resolve(ctx, sub)
	require.NoError(t, err)

	require.NoError(t, env.preferences.Delete(ctx, models.SubscriptionOwner(sub.ID)))
	require.False(t, env.cached(t, sub.ID))

	merged, err := env.preferences.Resolve(ctx, sub)
	require.NoError(t, err)
	require.Equal(t, 100, merged.NotificationFrequency)
}

// interleavingStore runs beforeSet once, just before the first write to watchKey reaches the store.
type interleavingStore struct {
	cache.Store
	watchKey  string
	beforeSet func()
	once      sync.Once
}

func (s *interleavingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == s.watchKey {
		s.once.Do(s.beforeSet)
	}
	return s.Store.Set(ctx, key, value, ttl)
}

func TestPreferenceServiceResolveDiscardsViewRacingAWrite(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "judy")
	sub := env.subscribe(t, user.Owner(), "https://push.example.com/judy")
	ctx := context.Background()

	store := &interleavingStore{Store: env.store, watchKey: PreferenceCacheKey(sub.ID)}
	prefs, err := NewPreferenceService(env.db, NewPreferenceCache(store), env.registry)
	require.NoError(t, err)
	store.beforeSet = func() {
		// commits and invalidates after the reader loaded the records
		_, err := prefs.Update(ctx, models.SubscriptionOwner(sub.ID), PreferencesPatch{NotificationFrequency: intPtr(0)})
		require.NoError(t, err)
	}

	first, err := prefs.Resolve(ctx, sub)
	require.NoError(t, err)
	require.Equal(t, 100, first.NotificationFrequency)

	second, err := prefs.Resolve(ctx, sub)
	require.NoError(t, err)
	require.Equal(t, 0, second.NotificationFrequency)

	third, err := prefs.Resolve(ctx, sub)
	require.NoError(t, err)
	require.Equal(t, 0, third.NotificationFrequency)
	require.True(t, env.cached(t, sub.ID))
}

func TestPreferenceServiceCacheHitAfterInvalidationRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "kate")
	sub := env.subscribe(t, user.Owner(), "https://push.example.com/kate")
	ctx := context.Background()

	env.preferences.InvalidateSubscriptions(ctx, sub.ID)
	generation, err := env.preferences.cache.Generation(ctx, sub.ID)
	require.NoError(t, err)
	require.NotEmpty(t, generation)

	_, err = env.preferences.Resolve(ctx, sub)
	require.NoError(t, err)

	_, ok, err := env.preferences.cache.Get(ctx, sub.ID)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestPreferenceServicePrincipalNeedsNoLocalUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	principal := models.UserOwner(4242)

	_, err := env.preferences.GetOrCreate(ctx, principal)
	require.ErrorIs(t, err, ErrOwnerNotFound)

	prefs, err := env.preferences.GetOrCreateForPrincipal(ctx, principal)
	require.NoError(t, err)
	require.Equal(t, principal, prefs.Owner())

	updated, err := env.preferences.UpdateForPrincipal(ctx, principal, PreferencesPatch{NotificationFrequency: intPtr(10)})
	require.NoError(t, err)
	require.Equal(t, 10, updated.NotificationFrequency)

	_, err = env.preferences.UpdateForPrincipal(ctx, models.SubscriptionOwner(1), PreferencesPatch{NotificationFrequency: intPtr(0)})
	require.ErrorIs(t, err, ErrUnknownOwnerKind)
	_, err = env.preferences.GetOrCreateForPrincipal(ctx, models.OwnerRef{})
	require.ErrorIs(t, err, ErrUnknownOwnerKind)
}
