package campaign

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/fluentive/campaigns/internal/domain"
)

// Service implements campaign business logic. All public methods are safe
// for concurrent use if the underlying repository is.
type Service struct {
	repo Repository
}

// NewService creates a campaign service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns a single campaign.
func (s *Service) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.repo.Get(ctx, id)
}

// List returns campaigns matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Campaign, int, error) {
	return s.repo.List(ctx, f)
}

// CreateInput holds the fields for creating a new campaign.
type CreateInput struct {
	Name           string              `json:"name"`
	AudienceType   domain.AudienceType `json:"audience_type"`
	AudienceFilter string              `json:"audience_filter"`
	Subject        string              `json:"subject"`
	Preheader      string              `json:"preheader"`
	BodyHTML       string              `json:"body_html"`
	BodyText       string              `json:"body_text"`
	CTAText        string              `json:"cta_text"`
	CTALink        string              `json:"cta_link"`
	CreatedBy      string              `json:"created_by"`
}

// Create validates and persists a new campaign in draft status.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Campaign, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if input.AudienceType == "" {
		input.AudienceType = domain.AudienceAll
	}
	if input.AudienceType != domain.AudienceAll && input.AudienceFilter == "" {
		return nil, fmt.Errorf("audience filter is required for %s", input.AudienceType)
	}

	c := &domain.Campaign{
		ID:             uuid.New().String(),
		Name:           input.Name,
		AudienceType:   input.AudienceType,
		AudienceFilter: input.AudienceFilter,
		Subject:        input.Subject,
		Preheader:      input.Preheader,
		BodyHTML:       input.BodyHTML,
		BodyText:       input.BodyText,
		CTAText:        input.CTAText,
		CTALink:        input.CTALink,
		Status:         domain.CampaignDraft,
		CreatedBy:      input.CreatedBy,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Update modifies mutable campaign fields. Only draft and scheduled
// campaigns can be edited.
func (s *Service) Update(ctx context.Context, id string, u UpdateFields) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.Status != domain.CampaignDraft && c.Status != domain.CampaignScheduled {
		return ErrNotEditable
	}
	return s.repo.Update(ctx, id, u)
}

// Delete removes a campaign (only draft/cancelled).
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// Schedule moves a draft campaign to scheduled at the given time. The status
// transition runs first so a non-draft campaign is left untouched.
func (s *Service) Schedule(ctx context.Context, id string, at time.Time) error {
	if at.Before(time.Now()) {
		return fmt.Errorf("scheduled time must be in the future")
	}
	err := s.repo.UpdateStatus(ctx, id, []domain.CampaignStatus{domain.CampaignDraft}, domain.CampaignScheduled)
	if err != nil {
		return err
	}
	return s.repo.Update(ctx, id, UpdateFields{ScheduledAt: &at})
}

// Unschedule moves a scheduled campaign back to draft and clears its
// scheduled time.
func (s *Service) Unschedule(ctx context.Context, id string) error {
	err := s.repo.UpdateStatus(ctx, id,
		[]domain.CampaignStatus{domain.CampaignScheduled}, domain.CampaignDraft)
	if err != nil {
		return err
	}
	var zero time.Time
	return s.repo.Update(ctx, id, UpdateFields{ScheduledAt: &zero})
}

// Cancel stops a campaign. Draft and scheduled campaigns are cancelled
// outright; a sending campaign is flagged so the dispatcher halts at the
// next batch boundary. Completed/cancelled campaigns cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, id string) error {
	err := s.repo.UpdateStatus(ctx, id,
		[]domain.CampaignStatus{domain.CampaignDraft, domain.CampaignScheduled, domain.CampaignSending},
		domain.CampaignCancelled)
	if err != nil {
		return err
	}
	log.Printf("[campaign.Service] Campaign %s cancelled", id)
	return nil
}
