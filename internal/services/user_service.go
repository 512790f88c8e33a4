package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/simplenotify/internal/models"
	apperrors "github.com/charlesng35/simplenotify/pkg/errors"
)

// ErrUserNotFound indicates the requested user does not exist.
var ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)

// CreateUserInput describes the fields accepted when creating a user.
type CreateUserInput struct {
	Username string
	Email    string
	IsActive *bool
}

// UserService manages the user principals that own subscriptions.
type UserService struct {
	db          *gorm.DB
	preferences *PreferenceService
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB, preferences *PreferenceService) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db, preferences: preferences}, nil
}

// Create provisions a new user.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, apperrors.NewBadRequest("username is required")
	}

	user := &models.User{
		Username: username,
		Email:    strings.ToLower(strings.TrimSpace(input.Email)),
		IsActive: true,
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.ErrConflict.WithMessage("username already exists")
		}
		return nil, fmt.Errorf("user service: create user: %w", err)
	}
	if input.IsActive != nil && !*input.IsActive {
		// gorm skips zero values that carry a column default
		if err := s.db.WithContext(ctx).Model(user).Update("is_active", false).Error; err != nil {
			return nil, fmt.Errorf("user service: deactivate user: %w", err)
		}
	}
	return user, nil
}

// GetByID loads a user by identifier.
func (s *UserService) GetByID(ctx context.Context, id uint) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: get user: %w", err)
	}
	return &user, nil
}

// Delete removes a user together with its preferences, its subscriptions and their preferences.
func (s *UserService) Delete(ctx context.Context, id uint) error {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("user service: load user: %w", err)
	}

	owner := user.Owner()
	var subscriptionIDs []uint
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.PushSubscription{}).
			Where("owner_kind = ? AND owner_id = ?", owner.Kind, owner.ID).
			Pluck("id", &subscriptionIDs).Error; err != nil {
			return fmt.Errorf("user service: list subscriptions: %w", err)
		}
		if len(subscriptionIDs) > 0 {
			if _, err := deleteSubscriptionRows(tx, subscriptionIDs); err != nil {
				return err
			}
		}
		if err := tx.Where("owner_kind = ? AND owner_id = ?", owner.Kind, owner.ID).
			Delete(&models.NotificationPreferences{}).Error; err != nil {
			return fmt.Errorf("user service: delete preferences: %w", err)
		}
		if err := tx.Delete(&user).Error; err != nil {
			return fmt.Errorf("user service: delete user: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.preferences != nil {
		s.preferences.InvalidateSubscriptions(ctx, subscriptionIDs...)
	}
	return nil
}
