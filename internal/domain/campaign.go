package domain

import (
	"time"
)

// CampaignStatus enumerates the lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignSending   CampaignStatus = "sending"
	CampaignCompleted CampaignStatus = "completed"
	CampaignCancelled CampaignStatus = "cancelled"
)

// AudienceType selects how a campaign's recipients are resolved.
type AudienceType string

const (
	AudienceAll      AudienceType = "all"
	AudienceByTag    AudienceType = "by_tag"
	AudienceBySource AudienceType = "by_source"
)

// Campaign represents an email campaign with its content, audience selector,
// lifecycle status, and aggregate counters.
type Campaign struct {
	ID             string         `json:"id" db:"id"`
	Name           string         `json:"name" db:"name"`
	AudienceType   AudienceType   `json:"audience_type" db:"audience_type"`
	AudienceFilter string         `json:"audience_filter" db:"audience_filter"`
	Subject        string         `json:"subject" db:"subject"`
	Preheader      string         `json:"preheader" db:"preheader"`
	BodyHTML       string         `json:"body_html" db:"body_html"`
	BodyText       string         `json:"body_text" db:"body_text"`
	CTAText        string         `json:"cta_text" db:"cta_text"`
	CTALink        string         `json:"cta_link" db:"cta_link"`
	Status         CampaignStatus `json:"status" db:"status"`
	ScheduledAt    *time.Time     `json:"scheduled_at" db:"scheduled_at"`
	SentAt         *time.Time     `json:"sent_at" db:"sent_at"`

	// Counters (read-only, maintained by the dispatcher and tracking endpoint)
	TargetedCount int `json:"targeted_count" db:"targeted_count"`
	SentCount     int `json:"sent_count" db:"sent_count"`
	FailedCount   int `json:"failed_count" db:"failed_count"`
	OpenedCount   int `json:"opened_count" db:"opened_count"`
	ClickedCount  int `json:"clicked_count" db:"clicked_count"`

	CreatedBy string    `json:"created_by" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsTerminal returns true if the campaign is in a final state. Completed
// campaigns are immutable except for the opened/clicked counters, which
// tracking may still increment.
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignCompleted || c.Status == CampaignCancelled
}

// Sendable reports whether the campaign may be handed to the dispatcher.
func (c *Campaign) Sendable() bool {
	return c.Status == CampaignDraft || c.Status == CampaignScheduled
}

// CanTransition reports whether moving from the campaign's current status to
// the target status is a legal lifecycle step. Status only advances
// draft→scheduled→sending→completed, or draft/scheduled/sending→cancelled.
func (c *Campaign) CanTransition(to CampaignStatus) bool {
	switch to {
	case CampaignScheduled:
		return c.Status == CampaignDraft
	case CampaignSending:
		return c.Status == CampaignDraft || c.Status == CampaignScheduled
	case CampaignCompleted:
		return c.Status == CampaignSending
	case CampaignCancelled:
		return c.Status == CampaignDraft || c.Status == CampaignScheduled || c.Status == CampaignSending
	case CampaignDraft:
		return c.Status == CampaignScheduled // unschedule
	default:
		return false
	}
}
