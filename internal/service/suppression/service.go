package suppression

import (
	"context"
	"fmt"

	"github.com/fluentive/campaigns/internal/domain"
)

// Service implements suppression business logic. It is safe for concurrent
// use if the underlying repository is.
type Service struct {
	repo Repository
}

// NewService creates a suppression service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// IsSuppressed checks whether an email address should be blocked from sending.
func (s *Service) IsSuppressed(ctx context.Context, email string) (bool, error) {
	return s.repo.IsSuppressed(ctx, domain.NormalizeEmail(email))
}

// Suppress adds an email to the suppression list. Idempotent: if the email
// is already suppressed, the existing entry is preserved.
func (s *Service) Suppress(ctx context.Context, email string, reason domain.SuppressionReason, campaignID string) error {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}
	return s.repo.Suppress(ctx, &domain.Suppression{
		Email:      email,
		Reason:     reason,
		CampaignID: campaignID,
	})
}

// Remove deletes a suppression entry. Returns ErrNotFound if the email is
// not suppressed.
func (s *Service) Remove(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}
	return s.repo.Remove(ctx, email)
}

// List returns suppression entries matching the given filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Suppression, int, error) {
	return s.repo.List(ctx, f)
}

// Stats holds aggregate suppression counts for the admin console.
type Stats struct {
	Total    int            `json:"total"`
	ByReason map[string]int `json:"by_reason"`
}

// GetStats computes suppression statistics grouped by reason.
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	entries, total, err := s.repo.List(ctx, ListFilter{Limit: 0})
	if err != nil {
		return nil, err
	}
	stats := &Stats{Total: total, ByReason: make(map[string]int)}
	for _, e := range entries {
		stats.ByReason[string(e.Reason)]++
	}
	return stats, nil
}
