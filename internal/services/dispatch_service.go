package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/simplenotify/internal/models"
	"github.com/charlesng35/simplenotify/internal/monitoring"
	"github.com/charlesng35/simplenotify/internal/push"
	"github.com/charlesng35/simplenotify/pkg/logger"
	"github.com/charlesng35/simplenotify/pkg/metrics"
)

// Notification is the message handed to the browser's service worker.
type Notification struct {
	Title  string         `json:"title"`
	Body   string         `json:"body"`
	Data   map[string]any `json:"data"`
	Silent bool           `json:"silent"`
	Icon   string         `json:"icon"`
	Badge  string         `json:"badge"`
}

type pushPayload struct {
	Title  string         `json:"title"`
	Body   string         `json:"body"`
	Data   map[string]any `json:"data"`
	Silent bool           `json:"silent"`
	Icon   *string        `json:"icon"`
	Badge  *string        `json:"badge"`
}

// DispatchSummary counts the outcomes of a fan-out send.
type DispatchSummary struct {
	Sent       int `json:"sent"`
	Suppressed int `json:"suppressed"`
	Failed     int `json:"failed"`
	Removed    int `json:"removed"`
}

type deliveryOutcome string

const (
	outcomeSent       deliveryOutcome = monitoring.PushResultSent
	outcomeSuppressed deliveryOutcome = monitoring.PushResultSuppressed
	outcomeGone       deliveryOutcome = monitoring.PushResultGone
	outcomeFailed     deliveryOutcome = monitoring.PushResultFailed
)

// DispatchOption customises a DispatchService.
type DispatchOption func(*DispatchService)

// WithDispatchRand overrides the frequency draw source.
func WithDispatchRand(rnd Rand) DispatchOption {
	return func(s *DispatchService) {
		if rnd != nil {
			s.rnd = rnd
		}
	}
}

// WithDispatchClock overrides the clock used for quiet hours.
func WithDispatchClock(now func() time.Time) DispatchOption {
	return func(s *DispatchService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDispatchLogger overrides the logger.
func WithDispatchLogger(log *zap.Logger) DispatchOption {
	return func(s *DispatchService) {
		if log != nil {
			s.log = log
		}
	}
}

// DispatchService gates and delivers push notifications to subscriptions.
type DispatchService struct {
	subscriptions *SubscriptionService
	preferences   *PreferenceService
	sender        push.Sender
	cfg           push.Config
	rnd           Rand
	now           func() time.Time
	log           *zap.Logger
}

// NewDispatchService constructs a DispatchService. Missing credentials do not fail construction;
// check Configured and expect every send to return ErrPushNotConfigured until they are supplied.
func NewDispatchService(subscriptions *SubscriptionService, preferences *PreferenceService, sender push.Sender, cfg push.Config, opts ...DispatchOption) (*DispatchService, error) {
	if subscriptions == nil {
		return nil, errors.New("dispatch service: subscription service is required")
	}
	if preferences == nil {
		return nil, errors.New("dispatch service: preference service is required")
	}

	svc := &DispatchService{
		subscriptions: subscriptions,
		preferences:   preferences,
		sender:        sender,
		cfg:           cfg,
		rnd:           DefaultRand,
		now:           time.Now,
		log:           logger.WithModule("dispatch"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Configured returns ErrPushNotConfigured when credentials or the sender are missing.
func (s *DispatchService) Configured() error {
	if err := s.cfg.Validate(); err != nil {
		return ErrPushNotConfigured.WithInternal(err)
	}
	if s.sender == nil {
		return ErrPushNotConfigured.WithInternal(push.ErrNotConfigured)
	}
	return nil
}

// PublicKey returns the VAPID application server key, empty when unset.
func (s *DispatchService) PublicKey() string {
	return s.cfg.PublicKey
}

// Send delivers n to sub. It returns false without error when the send gate suppresses the
// notification or delivery fails; a subscription reported gone is deleted.
func (s *DispatchService) Send(ctx context.Context, sub *models.PushSubscription, n Notification) (bool, error) {
	ctx = ensureContext(ctx)
	if err := s.Configured(); err != nil {
		return false, err
	}
	if sub == nil {
		return false, errors.New("dispatch service: subscription is required")
	}

	outcome, err := s.deliver(ctx, sub, n)
	if err != nil {
		return false, err
	}
	monitoring.RecordPushDelivery(string(outcome))
	return outcome == outcomeSent, nil
}

// SendToOwner sends n to each of owner's subscriptions in turn.
func (s *DispatchService) SendToOwner(ctx context.Context, owner models.OwnerRef, n Notification) (DispatchSummary, error) {
	ctx = ensureContext(ctx)
	if err := s.Configured(); err != nil {
		return DispatchSummary{}, err
	}

	subs, err := s.subscriptions.ListForOwner(ctx, owner)
	if err != nil {
		return DispatchSummary{}, err
	}

	var (
		summary DispatchSummary
		errs    error
	)
	for i := range subs {
		outcome, err := s.deliver(ctx, &subs[i], n)
		if err != nil {
			summary.Failed++
			monitoring.RecordPushDelivery(string(outcomeFailed))
			errs = multierr.Append(errs, err)
			continue
		}
		monitoring.RecordPushDelivery(string(outcome))
		switch outcome {
		case outcomeSent:
			summary.Sent++
		case outcomeSuppressed:
			summary.Suppressed++
		case outcomeGone:
			summary.Removed++
		default:
			summary.Failed++
		}
	}
	return summary, errs
}

func (s *DispatchService) deliver(ctx context.Context, sub *models.PushSubscription, n Notification) (deliveryOutcome, error) {
	prefs, err := s.preferences.Resolve(ctx, sub)
	if err != nil {
		return "", fmt.Errorf("dispatch service: resolve preferences: %w", err)
	}
	if !ShouldSend(prefs, s.now(), s.rnd) {
		return outcomeSuppressed, nil
	}

	payload, err := json.Marshal(buildPushPayload(n))
	if err != nil {
		return "", fmt.Errorf("dispatch service: marshal payload: %w", err)
	}

	started := time.Now()
	err = s.sender.Send(ctx, push.Subscription{
		Endpoint: sub.Endpoint,
		P256dh:   sub.P256dh,
		Auth:     sub.Auth,
	}, payload)
	metrics.PushLatency.Observe(time.Since(started).Seconds())
	if err == nil {
		return outcomeSent, nil
	}

	fields := []zap.Field{
		zap.Uint("subscription_id", sub.ID),
		zap.String("endpoint_host", endpointHost(sub.Endpoint)),
		zap.Error(err),
	}
	var deliveryErr *push.DeliveryError
	if errors.As(err, &deliveryErr) {
		fields = append(fields, zap.Int("status", deliveryErr.StatusCode))
	}

	if errors.Is(err, push.ErrSubscriptionGone) {
		s.log.Info("push subscription gone, removing", fields...)
		if delErr := s.subscriptions.Delete(ctx, sub.ID); delErr != nil && !errors.Is(delErr, ErrSubscriptionNotFound) {
			s.log.Error("remove gone subscription failed", zap.Uint("subscription_id", sub.ID), zap.Error(delErr))
		}
		return outcomeGone, nil
	}

	s.log.Warn("push delivery failed", fields...)
	return outcomeFailed, nil
}

func buildPushPayload(n Notification) pushPayload {
	data := n.Data
	if data == nil {
		data = map[string]any{}
	}
	payload := pushPayload{
		Title:  n.Title,
		Body:   n.Body,
		Data:   data,
		Silent: n.Silent,
	}
	if n.Icon != "" {
		icon := n.Icon
		payload.Icon = &icon
	}
	if n.Badge != "" {
		badge := n.Badge
		payload.Badge = &badge
	}
	return payload
}
