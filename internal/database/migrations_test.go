package database

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/simplenotify/internal/models"
)

func TestAutoMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, AutoMigrate(db))
	require.NoError(t, AutoMigrate(db))
}

func TestPushSubscriptionEndpointUnique(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, AutoMigrate(db))

	first := models.PushSubscription{OwnerKind: models.OwnerKindUser, OwnerID: 1, Endpoint: "https://push.example.com/a", P256dh: "k", Auth: "a"}
	require.NoError(t, db.Create(&first).Error)

	dup := models.PushSubscription{OwnerKind: models.OwnerKindUser, OwnerID: 2, Endpoint: "https://push.example.com/a", P256dh: "k", Auth: "a"}
	require.Error(t, db.Create(&dup).Error)
}

func TestNotificationPreferencesOwnerUnique(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, AutoMigrate(db))

	owner := models.UserOwner(7)
	first := models.NewNotificationPreferences(owner)
	require.NoError(t, db.Create(&first).Error)
	require.Equal(t, models.DefaultNotificationFrequency, first.NotificationFrequency)
	require.Equal(t, models.DefaultQuietHoursTimezone, first.QuietHoursTimezone)

	second := models.NewNotificationPreferences(owner)
	require.Error(t, db.Create(&second).Error)

	other := models.NewNotificationPreferences(models.SubscriptionOwner(7))
	require.NoError(t, db.Create(&other).Error)
}
