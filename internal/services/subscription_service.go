package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/simplenotify/internal/models"
	apperrors "github.com/charlesng35/simplenotify/pkg/errors"
	"github.com/charlesng35/simplenotify/pkg/metrics"
)

// SubscribeInput carries the browser PushSubscription payload.
type SubscribeInput struct {
	Endpoint string
	P256dh   string
	Auth     string
	Metadata map[string]any
}

// SubscriptionKeys groups the encryption keys the browser hands out.
type SubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// SubscriptionDTO is the public representation of a push subscription.
type SubscriptionDTO struct {
	ID        uint             `json:"id"`
	Endpoint  string           `json:"endpoint"`
	Keys      SubscriptionKeys `json:"keys"`
	Name      string           `json:"name"`
	Metadata  map[string]any   `json:"metadata"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// SubscriptionStatus reports whether a principal has a subscription.
type SubscriptionStatus struct {
	Subscribed   bool             `json:"subscribed"`
	Subscription *SubscriptionDTO `json:"subscription"`
}

// SubscriptionService manages push subscriptions. One principal may own many subscriptions;
// each endpoint belongs to exactly one of them.
type SubscriptionService struct {
	db          *gorm.DB
	preferences *PreferenceService
}

// NewSubscriptionService constructs a SubscriptionService.
func NewSubscriptionService(db *gorm.DB, preferences *PreferenceService) (*SubscriptionService, error) {
	if db == nil {
		return nil, errors.New("subscription service: db is required")
	}
	if preferences == nil {
		return nil, errors.New("subscription service: preference service is required")
	}
	return &SubscriptionService{db: db, preferences: preferences}, nil
}

// Upsert creates the subscription or, when the endpoint is already known, rebinds it to owner
// with fresh keys and metadata. The stored name is kept on update.
func (s *SubscriptionService) Upsert(ctx context.Context, owner models.OwnerRef, input SubscribeInput) (*models.PushSubscription, error) {
	ctx = ensureContext(ctx)
	owner = owner.Normalised()
	if owner.IsZero() {
		return nil, ErrUnknownOwnerKind.WithMessage("Owner reference is incomplete")
	}
	if owner.Kind == models.OwnerKindSubscription {
		return nil, ErrUnknownOwnerKind.WithMessage("A subscription cannot own subscriptions")
	}

	endpoint := strings.TrimSpace(input.Endpoint)
	p256dh := strings.TrimSpace(input.P256dh)
	auth := strings.TrimSpace(input.Auth)
	switch {
	case endpoint == "":
		return nil, apperrors.NewBadRequest("endpoint is required")
	case p256dh == "":
		return nil, apperrors.NewBadRequest("keys.p256dh is required")
	case auth == "":
		return nil, apperrors.NewBadRequest("keys.auth is required")
	}

	metadata := datatypes.JSONMap{}
	for key, value := range input.Metadata {
		metadata[key] = value
	}

	var (
		sub     models.PushSubscription
		existed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var previous models.PushSubscription
		err := tx.Where("endpoint = ?", endpoint).Take(&previous).Error
		switch {
		case err == nil:
			existed = true
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("subscription service: lookup endpoint: %w", err)
		}
		if existed && previous.Owner() != owner {
			// the device changed hands; the previous owner's per-device settings do not carry over
			if err := tx.Where("owner_kind = ? AND owner_id = ?", models.OwnerKindSubscription, previous.ID).
				Delete(&models.NotificationPreferences{}).Error; err != nil {
				return fmt.Errorf("subscription service: reset subscription preferences: %w", err)
			}
		}

		candidate := models.PushSubscription{
			OwnerKind: owner.Kind,
			OwnerID:   owner.ID,
			Endpoint:  endpoint,
			P256dh:    p256dh,
			Auth:      auth,
			Name:      deriveSubscriptionName(input.Metadata),
			Metadata:  metadata,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"owner_kind", "owner_id", "p256dh", "auth", "metadata", "updated_at"}),
		}).Create(&candidate).Error; err != nil {
			return fmt.Errorf("subscription service: upsert subscription: %w", err)
		}

		if err := tx.Where("endpoint = ?", endpoint).Take(&sub).Error; err != nil {
			return fmt.Errorf("subscription service: reload subscription: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if existed {
		metrics.SubscriptionChanges.WithLabelValues("updated").Inc()
		// the owner may have changed, so the merged view is stale
		s.preferences.InvalidateSubscriptions(ctx, sub.ID)
	} else {
		metrics.SubscriptionChanges.WithLabelValues("created").Inc()
	}
	return &sub, nil
}

// Get loads a subscription by id.
func (s *SubscriptionService) Get(ctx context.Context, id uint) (*models.PushSubscription, error) {
	ctx = ensureContext(ctx)

	var sub models.PushSubscription
	if err := s.db.WithContext(ctx).Take(&sub, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("subscription service: load subscription: %w", err)
	}
	return &sub, nil
}

// GetForOwner loads a subscription by id and ensures owner holds it.
func (s *SubscriptionService) GetForOwner(ctx context.Context, owner models.OwnerRef, id uint) (*models.PushSubscription, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Owner() != owner.Normalised() {
		return nil, ErrSubscriptionNotFound
	}
	return sub, nil
}

// ListForOwner returns owner's subscriptions, newest first.
func (s *SubscriptionService) ListForOwner(ctx context.Context, owner models.OwnerRef) ([]models.PushSubscription, error) {
	ctx = ensureContext(ctx)
	owner = owner.Normalised()

	var subs []models.PushSubscription
	if err := s.db.WithContext(ctx).
		Where("owner_kind = ? AND owner_id = ?", owner.Kind, owner.ID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("subscription service: list subscriptions: %w", err)
	}
	return subs, nil
}

// Status reports whether owner has a subscription. With an endpoint, only that endpoint is considered.
func (s *SubscriptionService) Status(ctx context.Context, owner models.OwnerRef, endpoint string) (SubscriptionStatus, error) {
	ctx = ensureContext(ctx)
	owner = owner.Normalised()

	query := s.db.WithContext(ctx).
		Where("owner_kind = ? AND owner_id = ?", owner.Kind, owner.ID)
	if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
		query = query.Where("endpoint = ?", endpoint)
	}

	var sub models.PushSubscription
	err := query.Order("updated_at DESC").Take(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return SubscriptionStatus{}, nil
	}
	if err != nil {
		return SubscriptionStatus{}, fmt.Errorf("subscription service: status: %w", err)
	}

	dto := ToSubscriptionDTO(&sub)
	return SubscriptionStatus{Subscribed: true, Subscription: &dto}, nil
}

// DeleteByEndpoint removes owner's subscription for endpoint.
func (s *SubscriptionService) DeleteByEndpoint(ctx context.Context, owner models.OwnerRef, endpoint string) error {
	ctx = ensureContext(ctx)
	owner = owner.Normalised()
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return apperrors.NewBadRequest("endpoint is required")
	}

	var sub models.PushSubscription
	err := s.db.WithContext(ctx).
		Where("owner_kind = ? AND owner_id = ? AND endpoint = ?", owner.Kind, owner.ID, endpoint).
		Take(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrSubscriptionNotFound
	}
	if err != nil {
		return fmt.Errorf("subscription service: load subscription: %w", err)
	}

	_, err = s.deleteSubscriptions(ctx, []uint{sub.ID})
	return err
}

// Delete removes a subscription by id regardless of owner.
func (s *SubscriptionService) Delete(ctx context.Context, id uint) error {
	removed, err := s.deleteSubscriptions(ensureContext(ctx), []uint{id})
	if err != nil {
		return err
	}
	if removed == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

// DeleteForOwner removes every subscription owner holds and returns how many were removed.
func (s *SubscriptionService) DeleteForOwner(ctx context.Context, owner models.OwnerRef) (int64, error) {
	ctx = ensureContext(ctx)
	owner = owner.Normalised()

	var ids []uint
	if err := s.db.WithContext(ctx).
		Model(&models.PushSubscription{}).
		Where("owner_kind = ? AND owner_id = ?", owner.Kind, owner.ID).
		Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("subscription service: list subscriptions: %w", err)
	}
	return s.deleteSubscriptions(ctx, ids)
}

// deleteSubscriptions removes the rows together with their subscription-level preferences,
// then drops their cached merged views.
func (s *SubscriptionService) deleteSubscriptions(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		removed, err = deleteSubscriptionRows(tx, ids)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.preferences.InvalidateSubscriptions(ctx, ids...)
	if removed > 0 {
		metrics.SubscriptionChanges.WithLabelValues("deleted").Add(float64(removed))
	}
	return removed, nil
}

func deleteSubscriptionRows(tx *gorm.DB, ids []uint) (int64, error) {
	if err := tx.Where("owner_kind = ? AND owner_id IN ?", models.OwnerKindSubscription, ids).
		Delete(&models.NotificationPreferences{}).Error; err != nil {
		return 0, fmt.Errorf("subscription service: delete subscription preferences: %w", err)
	}

	result := tx.Where("id IN ?", ids).Delete(&models.PushSubscription{})
	if result.Error != nil {
		return 0, fmt.Errorf("subscription service: delete subscriptions: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// deriveSubscriptionName picks a display name from client metadata.
func deriveSubscriptionName(metadata map[string]any) string {
	if name := metadataString(metadata, "name"); name != "" {
		return name
	}
	if name := metadataString(metadata, "device_name"); name != "" {
		return name
	}
	browser := metadataString(metadata, "browser")
	platform := metadataString(metadata, "platform")
	if browser != "" && platform != "" {
		return browser + " on " + platform
	}
	return metadataString(metadata, "os")
}

// ToSubscriptionDTO maps a subscription to its public representation.
func ToSubscriptionDTO(sub *models.PushSubscription) SubscriptionDTO {
	if sub == nil {
		return SubscriptionDTO{}
	}
	metadata := map[string]any{}
	for key, value := range sub.Metadata {
		metadata[key] = value
	}
	return SubscriptionDTO{
		ID:       sub.ID,
		Endpoint: sub.Endpoint,
		Keys: SubscriptionKeys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
		Name:      sub.Name,
		Metadata:  metadata,
		CreatedAt: sub.CreatedAt,
		UpdatedAt: sub.UpdatedAt,
	}
}

// ToSubscriptionDTOs maps a slice of subscriptions.
func ToSubscriptionDTOs(subs []models.PushSubscription) []SubscriptionDTO {
	out := make([]SubscriptionDTO, 0, len(subs))
	for i := range subs {
		out = append(out, ToSubscriptionDTO(&subs[i]))
	}
	return out
}
