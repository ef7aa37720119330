package domain

import "time"

// SuppressionReason enumerates why an email was suppressed.
type SuppressionReason string

const (
	ReasonUnsubscribed SuppressionReason = "unsubscribed"
	ReasonHardBounce   SuppressionReason = "hard_bounce"
	ReasonComplaint    SuppressionReason = "complaint"
	ReasonManual       SuppressionReason = "manual"
)

// Suppression represents a standing ban on contacting an email address.
// It is checked independently of the contact's subscribed flag: either
// signal alone is enough to exclude an address from every audience.
type Suppression struct {
	Email      string            `json:"email" db:"email"`
	Reason     SuppressionReason `json:"reason" db:"reason"`
	CampaignID string            `json:"campaign_id,omitempty" db:"campaign_id"`
	CreatedAt  time.Time         `json:"created_at" db:"created_at"`
}
