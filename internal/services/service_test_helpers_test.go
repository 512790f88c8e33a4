package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/simplenotify/internal/cache"
	"github.com/charlesng35/simplenotify/internal/database/testutil"
	"github.com/charlesng35/simplenotify/internal/models"
	"github.com/charlesng35/simplenotify/internal/push"
)

// fixedRand always draws the same value.
type fixedRand int

func (r fixedRand) IntN(int) int { return int(r) }

type sentMessage struct {
	Subscription push.Subscription
	Payload      []byte
}

type fakeSender struct {
	mu    sync.Mutex
	calls []sentMessage
	err   error
}

func (f *fakeSender) Send(_ context.Context, sub push.Subscription, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sentMessage{Subscription: sub, Payload: payload})
	return f.err
}

func (f *fakeSender) Calls() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.calls...)
}

type testEnv struct {
	db            *gorm.DB
	store         *cache.DatabaseStore
	registry      *OwnerRegistry
	preferences   *PreferenceService
	subscriptions *SubscriptionService
	users         *UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := cache.NewDatabaseStore(db)

	registry, err := NewOwnerRegistry(db)
	require.NoError(t, err)
	prefs, err := NewPreferenceService(db, NewPreferenceCache(store), registry)
	require.NoError(t, err)
	subs, err := NewSubscriptionService(db, prefs)
	require.NoError(t, err)
	users, err := NewUserService(db, prefs)
	require.NoError(t, err)

	return &testEnv{
		db:            db,
		store:         store,
		registry:      registry,
		preferences:   prefs,
		subscriptions: subs,
		users:         users,
	}
}

func (e *testEnv) createUser(t *testing.T, username string) *models.User {
	t.Helper()
	user, err := e.users.Create(context.Background(), CreateUserInput{Username: username, Email: username + "@example.com"})
	require.NoError(t, err)
	return user
}

func (e *testEnv) subscribe(t *testing.T, owner models.OwnerRef, endpoint string) *models.PushSubscription {
	t.Helper()
	sub, err := e.subscriptions.Upsert(context.Background(), owner, SubscribeInput{
		Endpoint: endpoint,
		P256dh:   "p256dh-key",
		Auth:     "auth-secret",
	})
	require.NoError(t, err)
	return sub
}

func (e *testEnv) cached(t *testing.T, subscriptionID uint) bool {
	t.Helper()
	_, ok, err := e.store.Get(context.Background(), PreferenceCacheKey(subscriptionID))
	require.NoError(t, err)
	return ok
}

func stringPtr(value string) *string { return &value }

func intPtr(value int) *int { return &value }
