package app

import (
	"strings"

	"github.com/charlesng35/simplenotify/internal/push"
)

// ClientConfig converts PushConfig to the push package representation.
func (c PushConfig) ClientConfig() push.Config {
	return push.Config{
		PrivateKey: strings.TrimSpace(c.VAPID.PrivateKey),
		PublicKey:  strings.TrimSpace(c.VAPID.PublicKey),
		Email:      strings.TrimSpace(c.VAPID.Email),
		TTL:        c.TTL,
		Timeout:    c.Timeout,
	}
}
