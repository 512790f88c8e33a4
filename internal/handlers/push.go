package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/simplenotify/internal/services"
	"github.com/charlesng35/simplenotify/pkg/response"
)

const defaultTestNotificationTitle = "Test notification"

// PushHandler triggers deliveries and serves the browser-facing push helpers.
type PushHandler struct {
	dispatcher    *services.DispatchService
	subscriptions *services.SubscriptionService
}

// NewPushHandler constructs a push handler.
func NewPushHandler(dispatcher *services.DispatchService, subscriptions *services.SubscriptionService) (*PushHandler, error) {
	if dispatcher == nil {
		return nil, errors.New("push handler: dispatch service is required")
	}
	if subscriptions == nil {
		return nil, errors.New("push handler: subscription service is required")
	}
	return &PushHandler{dispatcher: dispatcher, subscriptions: subscriptions}, nil
}

type sendNotificationRequest struct {
	Title  string         `json:"title" validate:"max=255"`
	Body   string         `json:"body" validate:"max=4096"`
	Data   map[string]any `json:"data"`
	Silent bool           `json:"silent"`
	Icon   string         `json:"icon" validate:"omitempty,max=500"`
	Badge  string         `json:"badge" validate:"omitempty,max=500"`
}

func (r sendNotificationRequest) notification() services.Notification {
	title := strings.TrimSpace(r.Title)
	if title == "" {
		title = defaultTestNotificationTitle
	}
	return services.Notification{
		Title:  title,
		Body:   r.Body,
		Data:   r.Data,
		Silent: r.Silent,
		Icon:   strings.TrimSpace(r.Icon),
		Badge:  strings.TrimSpace(r.Badge),
	}
}

// SendToMe fans a notification out to every subscription of the caller.
func (h *PushHandler) SendToMe(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	payload, ok := bindNotification(c)
	if !ok {
		return
	}

	summary, err := h.dispatcher.SendToOwner(requestContext(c), principal, payload.notification())
	if err != nil && errors.Is(err, services.ErrPushNotConfigured) {
		response.Error(c, err)
		return
	}
	if err != nil {
		_ = c.Error(err)
	}

	response.Success(c, http.StatusOK, summary)
}

// SendToSubscription delivers a notification to one of the caller's subscriptions.
func (h *PushHandler) SendToSubscription(c *gin.Context) {
	principal, ok := requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	payload, ok := bindNotification(c)
	if !ok {
		return
	}

	ctx := requestContext(c)
	if err := h.dispatcher.Configured(); err != nil {
		response.Error(c, err)
		return
	}
	sub, err := h.subscriptions.GetForOwner(ctx, principal, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	sent, err := h.dispatcher.Send(ctx, sub, payload.notification())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"sent": sent})
}

// VAPIDPublicKey returns the application server key browsers pass to pushManager.subscribe.
func (h *PushHandler) VAPIDPublicKey(c *gin.Context) {
	if err := h.dispatcher.Configured(); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"public_key": h.dispatcher.PublicKey()})
}

// ServiceWorkerAck acknowledges pings from the service worker; delivery is handled client side.
func ServiceWorkerAck(c *gin.Context) {
	response.Success(c, http.StatusOK, nil)
}

// bindNotification accepts an empty body as a default test notification.
func bindNotification(c *gin.Context) (sendNotificationRequest, bool) {
	var payload sendNotificationRequest
	if c.Request == nil || c.Request.Body == nil || c.Request.ContentLength == 0 {
		return payload, true
	}
	if err := c.ShouldBindJSON(&payload); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, errBadJSON)
		return payload, false
	}
	if !validatePayload(c, &payload) {
		return payload, false
	}
	return payload, true
}
