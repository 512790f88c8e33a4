package models

import "time"

// User is the default principal kind owning push subscriptions and user-level preferences.
type User struct {
	ID       uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Username string `gorm:"uniqueIndex;size:150;not null" json:"username"`
	Email    string `gorm:"size:254" json:"email"`
	IsActive bool   `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Owner returns the tagged reference for the user.
func (u User) Owner() OwnerRef {
	return UserOwner(u.ID)
}
