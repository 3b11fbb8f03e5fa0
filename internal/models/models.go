package models

import (
	"fmt"
	"time"
)

// AddressKey identifies a physical address watched by one or more subscriptions.
// The three parts are treated as opaque strings; equality is exact.
type AddressKey struct {
	City   string `json:"city"`
	Street string `json:"street"`
	House  string `json:"house"`
}

// String returns the canonical "city::street::house" form used as a cache key.
func (k AddressKey) String() string {
	return fmt.Sprintf("%s::%s::%s", k.City, k.Street, k.House)
}

// Display returns the human-readable "city, street, house" form for messages.
func (k AddressKey) Display() string {
	return fmt.Sprintf("%s, %s, %s", k.City, k.Street, k.House)
}

// Subscription is one (user, address) pair being watched.
type Subscription struct {
	ID               int64      `json:"id" db:"id"`
	UserID           int64      `json:"user_id" db:"user_id"` // Telegram chat ID
	City             string     `json:"city" db:"city"`
	Street           string     `json:"street" db:"street"`
	House            string     `json:"house" db:"house"`
	Group            string     `json:"group_name" db:"group_name"` // provider rotation-queue label, learned from fetches
	CheckIntervalMin int        `json:"check_interval_min" db:"check_interval_min"`
	LastDigest       string     `json:"last_digest" db:"last_digest"`
	NextCheckAt      time.Time  `json:"next_check_at" db:"next_check_at"`
	LeadTimeMin      int        `json:"lead_time_min" db:"lead_time_min"` // minutes of advance warning, 0 = alerts off
	LastAlertedAt    *time.Time `json:"last_alerted_at,omitempty" db:"last_alerted_at"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
}

// Address returns the subscription's address key.
func (s *Subscription) Address() AddressKey {
	return AddressKey{City: s.City, Street: s.Street, House: s.House}
}

// PollState is one row of a batched poll-state write after a check cycle.
// Digest is written only when DigestChanged is set; otherwise the stored
// digest is preserved (failed or unchanged checks).
type PollState struct {
	SubscriptionID int64
	NextCheckAt    time.Time
	Digest         string
	DigestChanged  bool
}
