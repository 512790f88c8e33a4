package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/simplenotify/internal/models"
	apperrors "github.com/charlesng35/simplenotify/pkg/errors"
	"github.com/charlesng35/simplenotify/pkg/logger"
	"github.com/charlesng35/simplenotify/pkg/metrics"
	"github.com/charlesng35/simplenotify/pkg/validator"
)

const timeOfDayStorageLayout = "15:04:05"

// MergedPreferences is the effective preference view for one subscription.
type MergedPreferences struct {
	NotificationFrequency int     `json:"notification_frequency"`
	QuietHoursStart       *string `json:"quiet_hours_start"`
	QuietHoursEnd         *string `json:"quiet_hours_end"`
	QuietHoursTimezone    string  `json:"quiet_hours_timezone"`
}

// DefaultMergedPreferences returns the view produced by two default records.
func DefaultMergedPreferences() MergedPreferences {
	return MergedPreferences{
		NotificationFrequency: models.DefaultNotificationFrequency,
		QuietHoursTimezone:    models.DefaultQuietHoursTimezone,
	}
}

// PreferencesPatch describes a partial preferences update. Nil fields are left untouched.
// An empty quiet-hours string clears that bound.
type PreferencesPatch struct {
	NotificationFrequency *int
	QuietHoursStart       *string
	QuietHoursEnd         *string
	QuietHoursTimezone    *string
	ClearQuietHours       bool
}

// PreferencesDTO is the API representation of a preferences record.
type PreferencesDTO struct {
	OwnerKind             string    `json:"owner_kind"`
	OwnerID               uint      `json:"owner_id"`
	NotificationFrequency int       `json:"notification_frequency"`
	QuietHoursStart       *string   `json:"quiet_hours_start"`
	QuietHoursEnd         *string   `json:"quiet_hours_end"`
	QuietHoursTimezone    string    `json:"quiet_hours_timezone"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// PreferenceService owns notification preference records and the merged per-subscription view.
type PreferenceService struct {
	db       *gorm.DB
	cache    *PreferenceCache
	registry *OwnerRegistry
	log      *zap.Logger
}

// NewPreferenceService constructs a PreferenceService. cache and registry are optional.
func NewPreferenceService(db *gorm.DB, cache *PreferenceCache, registry *OwnerRegistry) (*PreferenceService, error) {
	if db == nil {
		return nil, errors.New("preference service: db is required")
	}
	return &PreferenceService{
		db:       db,
		cache:    cache,
		registry: registry,
		log:      logger.WithModule("preferences"),
	}, nil
}

// GetOrCreate returns the owner's record, creating it with defaults when missing.
// The owner must resolve through the registry.
func (s *PreferenceService) GetOrCreate(ctx context.Context, owner models.OwnerRef) (*models.NotificationPreferences, error) {
	ctx = ensureContext(ctx)
	owner = owner.Normalised()
	if err := s.validateOwner(ctx, owner); err != nil {
		return nil, err
	}
	return s.getOrCreate(ctx, s.db, owner)
}

// GetOrCreateForPrincipal is GetOrCreate for an authenticated caller. Principals are
// issued by the token authority and need no local row.
func (s *PreferenceService) GetOrCreateForPrincipal(ctx context.Context, principal models.OwnerRef) (*models.NotificationPreferences, error) {
	ctx = ensureContext(ctx)
	principal = principal.Normalised()
	if err := validatePrincipal(principal); err != nil {
		return nil, err
	}
	return s.getOrCreate(ctx, s.db, principal)
}

// Update applies patch to the owner's record and invalidates every affected merged view.
func (s *PreferenceService) Update(ctx context.Context, owner models.OwnerRef, patch PreferencesPatch) (*models.NotificationPreferences, error) {
	ctx = ensureContext(ctx)
	owner = owner.Normalised()
	if err := s.validateOwner(ctx, owner); err != nil {
		return nil, err
	}
	return s.update(ctx, owner, patch)
}

// UpdateForPrincipal is Update for an authenticated caller.
func (s *PreferenceService) UpdateForPrincipal(ctx context.Context, principal models.OwnerRef, patch PreferencesPatch) (*models.NotificationPreferences, error) {
	ctx = ensureContext(ctx)
	principal = principal.Normalised()
	if err := validatePrincipal(principal); err != nil {
		return nil, err
	}
	return s.update(ctx, principal, patch)
}

func (s *PreferenceService) update(ctx context.Context, owner models.OwnerRef, patch PreferencesPatch) (*models.NotificationPreferences, error) {
	var prefs *models.NotificationPreferences
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.getOrCreate(ctx, tx, owner)
		if err != nil {
			return err
		}
		if err := applyPreferencesPatch(current, patch); err != nil {
			return err
		}

		if err := tx.Model(current).
			Select("notification_frequency", "quiet_hours_start", "quiet_hours_end", "quiet_hours_timezone", "updated_at").
			Updates(current).Error; err != nil {
			return fmt.Errorf("preference service: update preferences: %w", err)
		}
		prefs = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateOwner(ctx, owner)
	return prefs, nil
}

// Delete removes the owner's record. Deleting a missing record is not an error.
func (s *PreferenceService) Delete(ctx context.Context, owner models.OwnerRef) error {
	ctx = ensureContext(ctx)
	owner = owner.Normalised()
	if owner.IsZero() {
		return ErrUnknownOwnerKind.WithMessage("Owner reference is incomplete")
	}

	if err := s.db.WithContext(ctx).
		Where("owner_kind = ? AND owner_id = ?", owner.Kind, owner.ID).
		Delete(&models.NotificationPreferences{}).Error; err != nil {
		return fmt.Errorf("preference service: delete preferences: %w", err)
	}

	s.invalidateOwner(ctx, owner)
	return nil
}

// Resolve returns the merged view for sub, serving it from the cache when possible.
func (s *PreferenceService) Resolve(ctx context.Context, sub *models.PushSubscription) (MergedPreferences, error) {
	ctx = ensureContext(ctx)
	if sub == nil || sub.ID == 0 {
		return MergedPreferences{}, errors.New("preference service: subscription is required")
	}

	cached, ok, err := s.cache.Get(ctx, sub.ID)
	switch {
	case err != nil:
		metrics.PreferenceCacheLookups.WithLabelValues("error").Inc()
		s.log.Warn("preference cache read failed", zap.Uint("subscription_id", sub.ID), zap.Error(err))
	case ok:
		metrics.PreferenceCacheLookups.WithLabelValues("hit").Inc()
		return cached, nil
	default:
		metrics.PreferenceCacheLookups.WithLabelValues("miss").Inc()
	}

	// read before the records so a concurrent invalidation makes this view unusable
	generation, genErr := s.cache.Generation(ctx, sub.ID)
	if genErr != nil {
		s.log.Warn("preference cache generation read failed", zap.Uint("subscription_id", sub.ID), zap.Error(genErr))
	}

	userPrefs, err := s.getOrCreate(ctx, s.db, sub.Owner())
	if err != nil {
		return MergedPreferences{}, err
	}
	subPrefs, err := s.getOrCreate(ctx, s.db, models.SubscriptionOwner(sub.ID))
	if err != nil {
		return MergedPreferences{}, err
	}

	merged := mergePreferences(*userPrefs, *subPrefs)
	if genErr != nil {
		return merged, nil
	}
	if err := s.cache.Set(ctx, sub.ID, generation, merged); err != nil {
		s.log.Warn("preference cache write failed", zap.Uint("subscription_id", sub.ID), zap.Error(err))
	}
	return merged, nil
}

// InvalidateSubscriptions drops cached merged views. Cache failures are logged, not returned.
func (s *PreferenceService) InvalidateSubscriptions(ctx context.Context, subscriptionIDs ...uint) {
	if err := s.cache.Invalidate(ensureContext(ctx), subscriptionIDs...); err != nil {
		s.log.Warn("preference cache invalidation failed", zap.Uints("subscription_ids", subscriptionIDs), zap.Error(err))
	}
}

// mergePreferences overlays the whole subscription record onto the user record.
// Unset subscription quiet hours replace the user's values rather than falling back to them.
func mergePreferences(user, subscription models.NotificationPreferences) MergedPreferences {
	merged := preferencesView(user)
	overlay := preferencesView(subscription)

	merged.NotificationFrequency = overlay.NotificationFrequency
	merged.QuietHoursStart = overlay.QuietHoursStart
	merged.QuietHoursEnd = overlay.QuietHoursEnd
	merged.QuietHoursTimezone = overlay.QuietHoursTimezone
	return merged
}

func preferencesView(prefs models.NotificationPreferences) MergedPreferences {
	return MergedPreferences{
		NotificationFrequency: prefs.NotificationFrequency,
		QuietHoursStart:       prefs.QuietHoursStart,
		QuietHoursEnd:         prefs.QuietHoursEnd,
		QuietHoursTimezone:    prefs.QuietHoursTimezone,
	}
}

func (s *PreferenceService) validateOwner(ctx context.Context, owner models.OwnerRef) error {
	if owner.IsZero() {
		return ErrUnknownOwnerKind.WithMessage("Owner reference is incomplete")
	}
	if s.registry == nil {
		return nil
	}
	return s.registry.Validate(ctx, owner)
}

func validatePrincipal(principal models.OwnerRef) error {
	if principal.IsZero() {
		return ErrUnknownOwnerKind.WithMessage("Owner reference is incomplete")
	}
	if principal.Kind == models.OwnerKindSubscription {
		return ErrUnknownOwnerKind.WithMessage("A subscription cannot act as a principal")
	}
	return nil
}

func (s *PreferenceService) getOrCreate(ctx context.Context, db *gorm.DB, owner models.OwnerRef) (*models.NotificationPreferences, error) {
	prefs, err := s.find(ctx, db, owner)
	if err == nil {
		return prefs, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("preference service: load preferences: %w", err)
	}

	created := models.NewNotificationPreferences(owner)
	if err := db.WithContext(ctx).Create(&created).Error; err != nil {
		if !isUniqueConstraintError(err) {
			return nil, fmt.Errorf("preference service: create preferences: %w", err)
		}
		// lost a creation race; the row now exists
		prefs, err = s.find(ctx, db, owner)
		if err != nil {
			return nil, fmt.Errorf("preference service: reload preferences: %w", err)
		}
		return prefs, nil
	}
	return &created, nil
}

func (s *PreferenceService) find(ctx context.Context, db *gorm.DB, owner models.OwnerRef) (*models.NotificationPreferences, error) {
	var prefs models.NotificationPreferences
	if err := db.WithContext(ctx).
		Where("owner_kind = ? AND owner_id = ?", owner.Kind, owner.ID).
		Take(&prefs).Error; err != nil {
		return nil, err
	}
	return &prefs, nil
}

// invalidateOwner drops the views a write to owner's record can affect.
func (s *PreferenceService) invalidateOwner(ctx context.Context, owner models.OwnerRef) {
	if owner.Kind == models.OwnerKindSubscription {
		s.InvalidateSubscriptions(ctx, owner.ID)
		return
	}

	var ids []uint
	if err := s.db.WithContext(ctx).
		Model(&models.PushSubscription{}).
		Where("owner_kind = ? AND owner_id = ?", owner.Kind, owner.ID).
		Pluck("id", &ids).Error; err != nil {
		s.log.Warn("list subscriptions for invalidation failed", zap.Stringer("owner", owner), zap.Error(err))
		return
	}
	s.InvalidateSubscriptions(ctx, ids...)
}

func applyPreferencesPatch(prefs *models.NotificationPreferences, patch PreferencesPatch) error {
	if patch.NotificationFrequency != nil {
		frequency := *patch.NotificationFrequency
		if frequency < 0 || frequency > 100 {
			return apperrors.NewBadRequest("notification_frequency must be between 0 and 100")
		}
		prefs.NotificationFrequency = frequency
	}

	if patch.ClearQuietHours {
		prefs.QuietHoursStart = nil
		prefs.QuietHoursEnd = nil
	}
	if patch.QuietHoursStart != nil {
		value, err := normaliseTimeOfDay("quiet_hours_start", *patch.QuietHoursStart)
		if err != nil {
			return err
		}
		prefs.QuietHoursStart = value
	}
	if patch.QuietHoursEnd != nil {
		value, err := normaliseTimeOfDay("quiet_hours_end", *patch.QuietHoursEnd)
		if err != nil {
			return err
		}
		prefs.QuietHoursEnd = value
	}

	if patch.QuietHoursTimezone != nil {
		tz := strings.TrimSpace(*patch.QuietHoursTimezone)
		if tz == "" {
			tz = models.DefaultQuietHoursTimezone
		}
		if _, err := time.LoadLocation(tz); err != nil {
			return apperrors.NewBadRequest(fmt.Sprintf("quiet_hours_timezone %q is not a known timezone", tz))
		}
		prefs.QuietHoursTimezone = tz
	}
	return nil
}

func normaliseTimeOfDay(field, value string) (*string, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	parsed, ok := validator.ParseTimeOfDay(value)
	if !ok {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("%s must use HH:MM or HH:MM:SS", field))
	}
	formatted := parsed.Format(timeOfDayStorageLayout)
	return &formatted, nil
}

// ToPreferencesDTO maps a record to its API representation.
func ToPreferencesDTO(prefs *models.NotificationPreferences) PreferencesDTO {
	if prefs == nil {
		return PreferencesDTO{}
	}
	return PreferencesDTO{
		OwnerKind:             prefs.OwnerKind,
		OwnerID:               prefs.OwnerID,
		NotificationFrequency: prefs.NotificationFrequency,
		QuietHoursStart:       prefs.QuietHoursStart,
		QuietHoursEnd:         prefs.QuietHoursEnd,
		QuietHoursTimezone:    prefs.QuietHoursTimezone,
		UpdatedAt:             prefs.UpdatedAt,
	}
}
