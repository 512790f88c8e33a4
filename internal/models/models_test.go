package models

import (
	"strings"
	"testing"
	"time"
)

func TestParseOwnerRef(t *testing.T) {
	ref, err := ParseOwnerRef(" User:42 ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ref != UserOwner(42) {
		t.Fatalf("unexpected ref %v", ref)
	}
	if ref.String() != "user:42" {
		t.Fatalf("unexpected string form %q", ref.String())
	}

	for _, input := range []string{"", "user", "user:0", "user:abc", ":7"} {
		if _, err := ParseOwnerRef(input); err == nil {
			t.Fatalf("expected %q to be rejected", input)
		}
	}
}

func TestOwnerRefIsZero(t *testing.T) {
	if !(OwnerRef{}).IsZero() {
		t.Fatal("expected empty ref to be zero")
	}
	if !(OwnerRef{Kind: "user"}).IsZero() {
		t.Fatal("expected ref without id to be zero")
	}
	if SubscriptionOwner(3).IsZero() {
		t.Fatal("expected complete ref to be non-zero")
	}
}

func TestPushSubscriptionDisplayName(t *testing.T) {
	sub := PushSubscription{Endpoint: "https://fcm.googleapis.com/fcm/send/" + strings.Repeat("x", 64)}
	if got := sub.DisplayName(); len(got) != 40 {
		t.Fatalf("expected truncated endpoint, got %q", got)
	}

	sub.Name = "Firefox on Linux"
	if got := sub.DisplayName(); got != "Firefox on Linux" {
		t.Fatalf("expected name, got %q", got)
	}

	sub.OwnerKind, sub.OwnerID = OwnerKindUser, 9
	if sub.Owner() != UserOwner(9) {
		t.Fatalf("unexpected owner %v", sub.Owner())
	}
}

func TestNewNotificationPreferencesDefaults(t *testing.T) {
	prefs := NewNotificationPreferences(SubscriptionOwner(5))
	if prefs.NotificationFrequency != 100 {
		t.Fatalf("expected frequency 100, got %d", prefs.NotificationFrequency)
	}
	if prefs.QuietHoursTimezone != "UTC" {
		t.Fatalf("expected UTC, got %q", prefs.QuietHoursTimezone)
	}
	if prefs.QuietHoursStart != nil || prefs.QuietHoursEnd != nil {
		t.Fatal("expected quiet hours unset")
	}
	if prefs.Owner() != SubscriptionOwner(5) {
		t.Fatalf("unexpected owner %v", prefs.Owner())
	}
}

func TestCacheEntryExpired(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	if (CacheEntry{}).Expired(now) {
		t.Fatal("expected zero expiry to never expire")
	}
	if !(CacheEntry{ExpiresAt: now.Add(-time.Second)}).Expired(now) {
		t.Fatal("expected past expiry to be expired")
	}
	if (CacheEntry{ExpiresAt: now.Add(time.Minute)}).Expired(now) {
		t.Fatal("expected future expiry to be live")
	}
}
