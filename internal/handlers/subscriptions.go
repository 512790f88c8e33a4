package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/simplenotify/internal/services"
	"github.com/charlesng35/simplenotify/pkg/response"
)

// SubscriptionHandler exposes the browser push subscription endpoints.
type SubscriptionHandler struct {
	subscriptions *services.SubscriptionService
}

// NewSubscriptionHandler constructs a subscription handler.
func NewSubscriptionHandler(subscriptions *services.SubscriptionService) (*SubscriptionHandler, error) {
	if subscriptions == nil {
		return nil, errors.New("subscription handler: subscription service is required")
	}
	return &SubscriptionHandler{subscriptions: subscriptions}, nil
}

type subscriptionKeysRequest struct {
	P256dh string `json:"p256dh" validate:"required,max=255"`
	Auth   string `json:"auth" validate:"required,max=255"`
}

// subscribeRequest mirrors PushSubscription.toJSON() plus optional device metadata.
type subscribeRequest struct {
	Endpoint string                  `json:"endpoint" validate:"required,url,max=500"`
	Keys     subscriptionKeysRequest `json:"keys"`
	Metadata map[string]any          `json:"metadata"`
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint" validate:"required,max=500"`
}

type subscriptionStatusResponse struct {
	Success      bool                      `json:"success"`
	Subscribed   bool                      `json:"subscribed"`
	Subscription *services.SubscriptionDTO `json:"subscription"`
}

// Subscribe stores (or refreshes) the caller's subscription for an endpoint.
func (h *SubscriptionHandler) Subscribe(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}

	var payload subscribeRequest
	if !bindAndValidate(c, &payload) {
		return
	}

	sub, err := h.subscriptions.Upsert(requestContext(c), principal, services.SubscribeInput{
		Endpoint: payload.Endpoint,
		P256dh:   payload.Keys.P256dh,
		Auth:     payload.Keys.Auth,
		Metadata: payload.Metadata,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, services.ToSubscriptionDTO(sub))
}

// Unsubscribe removes the caller's subscription for the endpoint in the body.
func (h *SubscriptionHandler) Unsubscribe(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}

	var payload unsubscribeRequest
	if !bindAndValidate(c, &payload) {
		return
	}

	err := h.subscriptions.DeleteByEndpoint(requestContext(c), principal, payload.Endpoint)
	if errors.Is(err, services.ErrSubscriptionNotFound) {
		response.Detail(c, http.StatusNotFound, services.ErrSubscriptionNotFound.Message)
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Status reports whether the caller is subscribed, optionally for a single endpoint.
func (h *SubscriptionHandler) Status(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}

	status, err := h.subscriptions.Status(requestContext(c), principal, c.Query("endpoint"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, subscriptionStatusResponse{
		Success:      true,
		Subscribed:   status.Subscribed,
		Subscription: status.Subscription,
	})
}

// List returns every subscription registered by the caller.
func (h *SubscriptionHandler) List(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}

	subs, err := h.subscriptions.ListForOwner(requestContext(c), principal)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, services.ToSubscriptionDTOs(subs))
}
