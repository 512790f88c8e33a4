package push

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotConfigured is returned when any of the VAPID credentials are missing.
var ErrNotConfigured = errors.New("push: vapid credentials are not configured")

// Config holds the VAPID credential triple and delivery options.
type Config struct {
	PrivateKey string
	PublicKey  string
	// Email is the contact address sent as the VAPID subject. A "mailto:" prefix is optional.
	Email string
	// TTL is how long, in seconds, the push service should retain an undelivered message.
	TTL int
	// Timeout bounds the HTTP call to the push service. Zero means no timeout.
	Timeout time.Duration
}

// Validate reports ErrNotConfigured naming the missing credentials.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.PrivateKey) == "" {
		missing = append(missing, "private_key")
	}
	if strings.TrimSpace(c.PublicKey) == "" {
		missing = append(missing, "public_key")
	}
	if strings.TrimSpace(c.subscriber()) == "" {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrNotConfigured, strings.Join(missing, ", "))
	}
	return nil
}

// Configured reports whether all credentials are present.
func (c Config) Configured() bool {
	return c.Validate() == nil
}

func (c Config) subscriber() string {
	email := strings.TrimSpace(c.Email)
	return strings.TrimPrefix(email, "mailto:")
}
