package campaign

import (
	"context"
	"time"

	"github.com/fluentive/campaigns/internal/domain"
)

// Repository defines the data access contract for campaigns.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single campaign. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Campaign, error)

	// List returns campaigns matching the filter, ordered by created_at DESC.
	List(ctx context.Context, f ListFilter) ([]domain.Campaign, int, error)

	// ListDue returns scheduled campaigns whose scheduled_at is at or before now.
	ListDue(ctx context.Context, now time.Time) ([]domain.Campaign, error)

	// Create inserts a new campaign.
	Create(ctx context.Context, c *domain.Campaign) error

	// Update modifies mutable content fields. Only non-nil fields are applied.
	Update(ctx context.Context, id string, u UpdateFields) error

	// Delete removes a campaign. Only draft/cancelled campaigns can be deleted.
	Delete(ctx context.Context, id string) error

	// UpdateStatus transitions a campaign's status, guarded by the expected
	// current statuses. Returns ErrInvalidTransition if no row matched, which
	// also makes the sending transition a claim: only one caller wins.
	UpdateStatus(ctx context.Context, id string, from []domain.CampaignStatus, to domain.CampaignStatus) error

	// SetTargeted records the resolved audience size at dispatch time.
	SetTargeted(ctx context.Context, id string, targeted int) error

	// SetCompleted marks the campaign completed with final send counters.
	SetCompleted(ctx context.Context, id string, sent, failed int) error
}

// ListFilter controls pagination and filtering for campaign lists.
type ListFilter struct {
	Status string
	Search string
	Limit  int
	Offset int
}

// UpdateFields holds the mutable fields for a campaign update.
// Nil fields are not applied.
type UpdateFields struct {
	Name           *string
	AudienceType   *domain.AudienceType
	AudienceFilter *string
	Subject        *string
	Preheader      *string
	BodyHTML       *string
	BodyText       *string
	CTAText        *string
	CTALink        *string
	ScheduledAt    *time.Time
}
