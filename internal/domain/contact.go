package domain

import "time"

// EngagementTier buckets a contact by how recently it engaged with our mail.
type EngagementTier string

const (
	TierNew  EngagementTier = "NEW"  // never sent to
	TierHot  EngagementTier = "HOT"  // engaged within 30 days
	TierWarm EngagementTier = "WARM" // engaged within 60 days
	TierCool EngagementTier = "COOL" // engaged within 90 days
	TierCold EngagementTier = "COLD" // older than 90 days, or never engaged
)

// AllTiers lists every tier in send-priority order. HOT contacts are the
// safest recipients; NEW ranks above WARM because untested addresses carry
// unknown deliverability risk and should be probed while volume is still
// small.
var AllTiers = []EngagementTier{TierHot, TierNew, TierWarm, TierCool, TierCold}

// Priority returns the send-priority rank of the tier (lower is better).
// Unknown tiers rank last.
func (t EngagementTier) Priority() int {
	for i, tier := range AllTiers {
		if tier == t {
			return i
		}
	}
	return len(AllTiers)
}

// Valid reports whether t is a known engagement tier.
func (t EngagementTier) Valid() bool {
	return t.Priority() < len(AllTiers)
}

// ContactStatus enumerates the states a contact can be in.
type ContactStatus string

const (
	ContactActive       ContactStatus = "active"
	ContactUnsubscribed ContactStatus = "unsubscribed"
	ContactBounced      ContactStatus = "bounced"
)

// Contact represents a single recipient in the marketing list. The
// engagement fields are owned by the engagement classifier: EngagementTier
// is derived, never set directly by users.
type Contact struct {
	ID     string        `json:"id" db:"id"`
	Email  string        `json:"email" db:"email"`
	Status ContactStatus `json:"status" db:"status"`

	EngagementTier      EngagementTier `json:"engagement_tier" db:"engagement_tier"`
	TotalEmailsReceived int            `json:"total_emails_received" db:"total_emails_received"`
	TotalOpens          int            `json:"total_opens" db:"total_opens"`
	TotalClicks         int            `json:"total_clicks" db:"total_clicks"`
	LastOpenedAt        *time.Time     `json:"last_opened_at" db:"last_opened_at"`
	LastClickedAt       *time.Time     `json:"last_clicked_at" db:"last_clicked_at"`
	LastEmailReceivedAt *time.Time     `json:"last_email_received_at" db:"last_email_received_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
