package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/simplenotify/internal/models"
	"github.com/charlesng35/simplenotify/internal/services"
	"github.com/charlesng35/simplenotify/pkg/response"
)

// PreferenceHandler exposes principal-level and subscription-level notification preferences.
type PreferenceHandler struct {
	preferences   *services.PreferenceService
	subscriptions *services.SubscriptionService
}

// NewPreferenceHandler constructs a preference handler.
func NewPreferenceHandler(preferences *services.PreferenceService, subscriptions *services.SubscriptionService) (*PreferenceHandler, error) {
	if preferences == nil {
		return nil, errors.New("preference handler: preference service is required")
	}
	if subscriptions == nil {
		return nil, errors.New("preference handler: subscription service is required")
	}
	return &PreferenceHandler{preferences: preferences, subscriptions: subscriptions}, nil
}

type updatePreferencesRequest struct {
	NotificationFrequency *int    `json:"notification_frequency" validate:"omitempty,min=0,max=100"`
	QuietHoursStart       *string `json:"quiet_hours_start" validate:"omitempty,timeofday"`
	QuietHoursEnd         *string `json:"quiet_hours_end" validate:"omitempty,timeofday"`
	QuietHoursTimezone    *string `json:"quiet_hours_timezone" validate:"omitempty,max=64"`
	ClearQuietHours       bool    `json:"clear_quiet_hours"`
}

func (r updatePreferencesRequest) patch() services.PreferencesPatch {
	return services.PreferencesPatch{
		NotificationFrequency: r.NotificationFrequency,
		QuietHoursStart:       r.QuietHoursStart,
		QuietHoursEnd:         r.QuietHoursEnd,
		QuietHoursTimezone:    r.QuietHoursTimezone,
		ClearQuietHours:       r.ClearQuietHours,
	}
}

// GetMine returns the caller's own preferences, creating defaults on first access.
func (h *PreferenceHandler) GetMine(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	h.get(c, principal, h.preferences.GetOrCreateForPrincipal)
}

// UpdateMine applies a partial update to the caller's own preferences.
func (h *PreferenceHandler) UpdateMine(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	h.update(c, principal, h.preferences.UpdateForPrincipal)
}

// GetSubscription returns the preferences stored on one of the caller's subscriptions.
func (h *PreferenceHandler) GetSubscription(c *gin.Context) {
	sub, ok := h.ownedSubscription(c)
	if !ok {
		return
	}
	h.get(c, models.SubscriptionOwner(sub.ID), h.preferences.GetOrCreate)
}

// UpdateSubscription applies a partial update to one of the caller's subscriptions.
func (h *PreferenceHandler) UpdateSubscription(c *gin.Context) {
	sub, ok := h.ownedSubscription(c)
	if !ok {
		return
	}
	h.update(c, models.SubscriptionOwner(sub.ID), h.preferences.Update)
}

// Effective returns the merged view the dispatcher applies to a subscription.
func (h *PreferenceHandler) Effective(c *gin.Context) {
	sub, ok := h.ownedSubscription(c)
	if !ok {
		return
	}

	merged, err := h.preferences.Resolve(requestContext(c), sub)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, merged)
}

type (
	loadPreferencesFunc   func(context.Context, models.OwnerRef) (*models.NotificationPreferences, error)
	updatePreferencesFunc func(context.Context, models.OwnerRef, services.PreferencesPatch) (*models.NotificationPreferences, error)
)

func (h *PreferenceHandler) get(c *gin.Context, owner models.OwnerRef, load loadPreferencesFunc) {
	prefs, err := load(requestContext(c), owner)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, services.ToPreferencesDTO(prefs))
}

func (h *PreferenceHandler) update(c *gin.Context, owner models.OwnerRef, apply updatePreferencesFunc) {
	var payload updatePreferencesRequest
	if !bindAndValidate(c, &payload) {
		return
	}

	prefs, err := apply(requestContext(c), owner, payload.patch())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, services.ToPreferencesDTO(prefs))
}

func (h *PreferenceHandler) ownedSubscription(c *gin.Context) (*models.PushSubscription, bool) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return nil, false
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return nil, false
	}

	sub, err := h.subscriptions.GetForOwner(requestContext(c), principal, id)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	return sub, true
}
