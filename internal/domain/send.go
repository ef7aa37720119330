package domain

import "time"

// SendStatus enumerates the delivery states of a single send-ledger row.
// pending transitions to sent or failed and both are terminal; bounced is
// recorded from provider feedback after the fact.
type SendStatus string

const (
	SendPending SendStatus = "pending"
	SendSent    SendStatus = "sent"
	SendFailed  SendStatus = "failed"
	SendBounced SendStatus = "bounced"
)

// SendRecord is one row of the send ledger: the per-(campaign, contact)
// delivery and tracking state. It is the unit of idempotency: a campaign
// send creates exactly one record per eligible contact, and tracking events
// key off the record's ID.
//
// OpenedAt/ClickedAt are set at most once (first occurrence) while
// OpenCount/ClickCount increment without bound. Campaign-level opened/clicked
// rollups advance only on the nil→set transition.
type SendRecord struct {
	ID         string     `json:"id" db:"id"`
	CampaignID string     `json:"campaign_id" db:"campaign_id"`
	ContactID  string     `json:"contact_id" db:"contact_id"`
	Status     SendStatus `json:"status" db:"status"`
	SentAt     *time.Time `json:"sent_at" db:"sent_at"`
	OpenedAt   *time.Time `json:"opened_at" db:"opened_at"`
	ClickedAt  *time.Time `json:"clicked_at" db:"clicked_at"`
	OpenCount  int        `json:"open_count" db:"open_count"`
	ClickCount int        `json:"click_count" db:"click_count"`
	ErrorMsg   string     `json:"error_message,omitempty" db:"error_message"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}
