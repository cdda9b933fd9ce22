package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus is the billing state recorded on a user profile.
// Only SubscriptionActive is meaningful to metering; every other value is
// treated as not subscribed.
type SubscriptionStatus string

// Known subscription states.
const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionInactive SubscriptionStatus = "inactive"
)

// Profile is the per-user usage ledger read by the metering gate.
type Profile struct {
	UserID             uuid.UUID          `json:"user_id"`
	TokenCount         int                `json:"token_count"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// IsSubscribed reports whether the profile bypasses metering.
func (p *Profile) IsSubscribed() bool {
	return p.SubscriptionStatus == SubscriptionActive
}

// CanAfford reports whether the balance covers cost.
func (p *Profile) CanAfford(cost int) bool {
	return p.TokenCount >= cost
}

// UsageAnomaly records a generation that was delivered but could not be
// charged. Rows are reviewed and resolved out of band.
type UsageAnomaly struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Cost      int       `json:"cost"`
	Reason    string    `json:"reason"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Debit is a single charge against a profile balance.
type Debit struct {
	UserID uuid.UUID
	Amount int
	Reason string
}
