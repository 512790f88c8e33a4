package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/charlesng35/simplenotify/internal/cache"
)

const (
	preferenceCacheKeyPrefix      = "simple_notifications_prefs_"
	preferenceGenerationKeyPrefix = "simple_notifications_prefs_generation_"
)

// PreferenceCache stores merged preference views per subscription without expiry.
// A nil store disables caching.
//
// Every entry is stamped with the subscription's generation token as read before the
// view was computed. Invalidate rotates the token, so an entry written by a reader that
// raced a preference write no longer matches and is treated as a miss.
type PreferenceCache struct {
	store cache.Store
}

type cachedPreferences struct {
	MergedPreferences
	Generation string `json:"generation,omitempty"`
}

// NewPreferenceCache wraps a cache.Store.
func NewPreferenceCache(store cache.Store) *PreferenceCache {
	return &PreferenceCache{store: store}
}

// PreferenceCacheKey returns the cache key for a subscription's merged view.
func PreferenceCacheKey(subscriptionID uint) string {
	return preferenceCacheKeyPrefix + strconv.FormatUint(uint64(subscriptionID), 10)
}

// PreferenceGenerationKey returns the key holding a subscription's generation token.
func PreferenceGenerationKey(subscriptionID uint) string {
	return preferenceGenerationKeyPrefix + strconv.FormatUint(uint64(subscriptionID), 10)
}

// Generation returns the current generation token. An absent token reads as "".
func (c *PreferenceCache) Generation(ctx context.Context, subscriptionID uint) (string, error) {
	if c == nil || c.store == nil {
		return "", nil
	}

	raw, ok, err := c.store.Get(ensureContext(ctx), PreferenceGenerationKey(subscriptionID))
	if err != nil {
		return "", fmt.Errorf("preference cache: get generation: %w", err)
	}
	if !ok {
		return "", nil
	}
	return string(raw), nil
}

// Get returns the cached merged view. A payload that fails to decode, or that was
// computed under an older generation, is treated as a miss.
func (c *PreferenceCache) Get(ctx context.Context, subscriptionID uint) (MergedPreferences, bool, error) {
	if c == nil || c.store == nil {
		return MergedPreferences{}, false, nil
	}
	ctx = ensureContext(ctx)

	raw, ok, err := c.store.Get(ctx, PreferenceCacheKey(subscriptionID))
	if err != nil {
		return MergedPreferences{}, false, fmt.Errorf("preference cache: get: %w", err)
	}
	if !ok {
		return MergedPreferences{}, false, nil
	}

	var entry cachedPreferences
	if err := json.Unmarshal(raw, &entry); err != nil {
		return MergedPreferences{}, false, nil
	}

	current, err := c.Generation(ctx, subscriptionID)
	if err != nil {
		return MergedPreferences{}, false, err
	}
	if entry.Generation != current {
		return MergedPreferences{}, false, nil
	}
	return entry.MergedPreferences, true, nil
}

// Set stores the merged view with no expiry, stamped with the generation the caller
// read before loading the underlying records.
func (c *PreferenceCache) Set(ctx context.Context, subscriptionID uint, generation string, prefs MergedPreferences) error {
	if c == nil || c.store == nil {
		return nil
	}

	payload, err := json.Marshal(cachedPreferences{MergedPreferences: prefs, Generation: generation})
	if err != nil {
		return fmt.Errorf("preference cache: marshal: %w", err)
	}
	if err := c.store.Set(ensureContext(ctx), PreferenceCacheKey(subscriptionID), payload, 0); err != nil {
		return fmt.Errorf("preference cache: set: %w", err)
	}
	return nil
}

// Invalidate rotates the generation of the supplied subscriptions and drops their cached views.
func (c *PreferenceCache) Invalidate(ctx context.Context, subscriptionIDs ...uint) error {
	if c == nil || c.store == nil || len(subscriptionIDs) == 0 {
		return nil
	}
	ctx = ensureContext(ctx)

	keys := make([]string, len(subscriptionIDs))
	for i, id := range subscriptionIDs {
		if err := c.store.Set(ctx, PreferenceGenerationKey(id), []byte(uuid.NewString()), 0); err != nil {
			return fmt.Errorf("preference cache: rotate generation: %w", err)
		}
		keys[i] = PreferenceCacheKey(id)
	}
	if err := c.store.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("preference cache: invalidate: %w", err)
	}
	return nil
}
