package services

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/charlesng35/simplenotify/pkg/errors"
)

var (
	// ErrSubscriptionNotFound indicates no subscription matched the supplied endpoint or id for the principal.
	ErrSubscriptionNotFound = apperrors.New("SUBSCRIPTION_NOT_FOUND", "Subscription not found.", http.StatusNotFound)
	// ErrPushNotConfigured indicates the VAPID credentials are missing.
	ErrPushNotConfigured = apperrors.New("PUSH_NOT_CONFIGURED", "Push notifications are not configured", http.StatusServiceUnavailable)
	// ErrUnknownOwnerKind indicates an owner reference whose kind has no registered lookup.
	ErrUnknownOwnerKind = apperrors.New("OWNER_KIND_UNKNOWN", "Unknown owner kind", http.StatusBadRequest)
	// ErrOwnerNotFound indicates the owner reference points at a missing entity.
	ErrOwnerNotFound = apperrors.New("OWNER_NOT_FOUND", "Owner not found", http.StatusNotFound)
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique") || strings.Contains(lower, "duplicate")
}
