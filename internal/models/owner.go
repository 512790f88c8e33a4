package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Owner kinds understood by the stores. Additional principal kinds can be registered at runtime.
const (
	OwnerKindUser         = "user"
	OwnerKindSubscription = "subscription"
)

// OwnerRef is a tagged reference to the entity owning a subscription or a preferences record.
type OwnerRef struct {
	Kind string `json:"kind"`
	ID   uint   `json:"id"`
}

// UserOwner returns the reference for a user principal.
func UserOwner(id uint) OwnerRef {
	return OwnerRef{Kind: OwnerKindUser, ID: id}
}

// SubscriptionOwner returns the reference for a push subscription.
func SubscriptionOwner(id uint) OwnerRef {
	return OwnerRef{Kind: OwnerKindSubscription, ID: id}
}

// Normalised lower-cases and trims the kind.
func (o OwnerRef) Normalised() OwnerRef {
	return OwnerRef{Kind: strings.ToLower(strings.TrimSpace(o.Kind)), ID: o.ID}
}

// IsZero reports whether the reference is incomplete.
func (o OwnerRef) IsZero() bool {
	return strings.TrimSpace(o.Kind) == "" || o.ID == 0
}

func (o OwnerRef) String() string {
	return fmt.Sprintf("%s:%d", o.Kind, o.ID)
}

// ParseOwnerRef parses the "kind:id" form produced by String.
func ParseOwnerRef(value string) (OwnerRef, error) {
	kind, rawID, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok {
		return OwnerRef{}, fmt.Errorf("owner ref %q: expected kind:id", value)
	}
	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil || id == 0 {
		return OwnerRef{}, fmt.Errorf("owner ref %q: invalid id", value)
	}
	ref := OwnerRef{Kind: kind, ID: uint(id)}.Normalised()
	if ref.Kind == "" {
		return OwnerRef{}, fmt.Errorf("owner ref %q: kind is required", value)
	}
	return ref, nil
}
