package models

import (
	"gorm.io/datatypes"
)

// PushSubscription stores a browser Web Push subscription for a principal.
type PushSubscription struct {
	BaseModel

	OwnerKind string `gorm:"size:64;not null;index:idx_push_subscriptions_owner,priority:1" json:"-"`
	OwnerID   uint   `gorm:"not null;index:idx_push_subscriptions_owner,priority:2" json:"-"`

	Endpoint string `gorm:"size:500;not null;uniqueIndex" json:"endpoint"`
	P256dh   string `gorm:"column:p256dh;size:255;not null" json:"p256dh"`
	Auth     string `gorm:"size:255;not null" json:"auth"`

	Name     string            `gorm:"size:255;not null;default:''" json:"name"`
	Metadata datatypes.JSONMap `json:"metadata"`
}

// Owner returns the principal owning the subscription.
func (s PushSubscription) Owner() OwnerRef {
	return OwnerRef{Kind: s.OwnerKind, ID: s.OwnerID}
}

// DisplayName returns the name or a shortened endpoint.
func (s PushSubscription) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	if len(s.Endpoint) > 40 {
		return s.Endpoint[:40]
	}
	return s.Endpoint
}
