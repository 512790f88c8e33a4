package push

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// ErrSubscriptionGone means the push service reported the subscription as expired or unknown (404/410).
var ErrSubscriptionGone = errors.New("push: subscription is no longer valid")

// Subscription carries the browser-provided delivery coordinates.
type Subscription struct {
	Endpoint string
	P256dh   string
	Auth     string
}

// Sender delivers an encrypted payload to one subscription.
type Sender interface {
	Send(ctx context.Context, sub Subscription, payload []byte) error
}

// DeliveryError describes a non-success response from the push service.
type DeliveryError struct {
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("push: push service responded with status %d", e.StatusCode)
	}
	return fmt.Sprintf("push: push service responded with status %d: %s", e.StatusCode, e.Body)
}

// KeyPair is a base64url-encoded VAPID key pair.
type KeyPair struct {
	PrivateKey string `json:"private_key"`
	PublicKey  string `json:"public_key"`
}

// GenerateVAPIDKeys creates a fresh P-256 VAPID key pair.
func GenerateVAPIDKeys() (KeyPair, error) {
	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return KeyPair{}, fmt.Errorf("push: generate vapid keys: %w", err)
	}
	return KeyPair{PrivateKey: privateKey, PublicKey: publicKey}, nil
}

// Client is a Sender backed by webpush-go.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client used to reach push services.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient validates the credentials and returns a Client.
func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// PublicKey returns the VAPID application server key.
func (c *Client) PublicKey() string {
	return c.cfg.PublicKey
}

// Send encrypts payload for sub and posts it to the subscription endpoint.
func (c *Client) Send(ctx context.Context, sub Subscription, payload []byte) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(sub.Endpoint) == "" {
		return errors.New("push: subscription endpoint is required")
	}

	ttl := c.cfg.TTL
	if ttl <= 0 {
		ttl = 30
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			Auth:   sub.Auth,
			P256dh: sub.P256dh,
		},
	}, &webpush.Options{
		HTTPClient:      c.httpClient,
		Subscriber:      c.cfg.subscriber(),
		TTL:             ttl,
		VAPIDPublicKey:  c.cfg.PublicKey,
		VAPIDPrivateKey: c.cfg.PrivateKey,
	})
	if err != nil {
		return fmt.Errorf("push: send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	deliveryErr := &DeliveryError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return fmt.Errorf("%w: %w", ErrSubscriptionGone, deliveryErr)
	}
	return deliveryErr
}
