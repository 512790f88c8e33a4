package api

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/charlesng35/simplenotify/internal/cache"
	"github.com/charlesng35/simplenotify/internal/push"
	"github.com/charlesng35/simplenotify/internal/services"
)

// Services bundles the domain services the HTTP routes depend on.
type Services struct {
	Owners        *services.OwnerRegistry
	Preferences   *services.PreferenceService
	Subscriptions *services.SubscriptionService
	Users         *services.UserService
	Dispatcher    *services.DispatchService
}

// BuildServices wires the domain services around a shared cache store and push sender.
// A nil store disables preference caching; a nil sender leaves the dispatcher unconfigured.
func BuildServices(db *gorm.DB, store cache.Store, sender push.Sender, pushCfg push.Config, opts ...services.DispatchOption) (*Services, error) {
	if db == nil {
		return nil, errors.New("database handle must be provided")
	}

	owners, err := services.NewOwnerRegistry(db)
	if err != nil {
		return nil, fmt.Errorf("owner registry: %w", err)
	}

	preferences, err := services.NewPreferenceService(db, services.NewPreferenceCache(store), owners)
	if err != nil {
		return nil, fmt.Errorf("preference service: %w", err)
	}

	subscriptions, err := services.NewSubscriptionService(db, preferences)
	if err != nil {
		return nil, fmt.Errorf("subscription service: %w", err)
	}

	users, err := services.NewUserService(db, preferences)
	if err != nil {
		return nil, fmt.Errorf("user service: %w", err)
	}

	dispatcher, err := services.NewDispatchService(subscriptions, preferences, sender, pushCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("dispatch service: %w", err)
	}

	return &Services{
		Owners:        owners,
		Preferences:   preferences,
		Subscriptions: subscriptions,
		Users:         users,
		Dispatcher:    dispatcher,
	}, nil
}
