package models

// DefaultNotificationFrequency means "always send".
const DefaultNotificationFrequency = 100

// DefaultQuietHoursTimezone is applied when no timezone is configured.
const DefaultQuietHoursTimezone = "UTC"

// NotificationPreferences holds delivery preferences for a user or a single subscription.
type NotificationPreferences struct {
	BaseModel

	OwnerKind string `gorm:"size:64;not null;uniqueIndex:idx_notification_preferences_owner,priority:1" json:"-"`
	OwnerID   uint   `gorm:"not null;uniqueIndex:idx_notification_preferences_owner,priority:2" json:"-"`

	NotificationFrequency int     `gorm:"not null" json:"notification_frequency"`
	QuietHoursStart       *string `gorm:"size:8" json:"quiet_hours_start"`
	QuietHoursEnd         *string `gorm:"size:8" json:"quiet_hours_end"`
	QuietHoursTimezone    string  `gorm:"size:50;not null;default:'UTC'" json:"quiet_hours_timezone"`
}

// NewNotificationPreferences returns a record populated with defaults for the owner.
func NewNotificationPreferences(owner OwnerRef) NotificationPreferences {
	return NotificationPreferences{
		OwnerKind:             owner.Kind,
		OwnerID:               owner.ID,
		NotificationFrequency: DefaultNotificationFrequency,
		QuietHoursTimezone:    DefaultQuietHoursTimezone,
	}
}

// Owner returns the entity the preferences belong to.
func (p NotificationPreferences) Owner() OwnerRef {
	return OwnerRef{Kind: p.OwnerKind, ID: p.OwnerID}
}
