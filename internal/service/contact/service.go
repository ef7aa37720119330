package contact

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/fluentive/campaigns/internal/domain"
	"github.com/fluentive/campaigns/internal/service/suppression"
)

// Service implements contact business logic, including the unsubscribe flow
// that bridges contacts and the suppression list.
type Service struct {
	repo        Repository
	suppression *suppression.Service
}

// NewService creates a contact service. The suppression service is used by
// Unsubscribe to record the matching suppression entry.
func NewService(repo Repository, sup *suppression.Service) *Service {
	return &Service{repo: repo, suppression: sup}
}

// Get returns a single contact.
func (s *Service) Get(ctx context.Context, id string) (*domain.Contact, error) {
	return s.repo.Get(ctx, id)
}

// List returns contacts matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Contact, int, error) {
	return s.repo.List(ctx, f)
}

// CreateInput holds the fields for creating or importing a contact.
type CreateInput struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Tags      string `json:"tags"`
	Source    string `json:"source"`
}

// Create validates and persists a contact. Importing an email that already
// exists updates the name, tags, and source of the existing record.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Contact, error) {
	email := domain.NormalizeEmail(input.Email)
	if !validEmail(email) {
		return nil, ErrInvalidEmail
	}

	c := &domain.Contact{
		ID:               uuid.New().String(),
		Email:            email,
		FirstName:        strings.TrimSpace(input.FirstName),
		LastName:         strings.TrimSpace(input.LastName),
		Tags:             strings.TrimSpace(input.Tags),
		Source:           strings.TrimSpace(input.Source),
		Subscribed:       true,
		UnsubscribeToken: newUnsubscribeToken(),
	}
	if err := s.repo.Upsert(ctx, c); err != nil {
		return nil, fmt.Errorf("upsert contact: %w", err)
	}
	return c, nil
}

// Delete removes a contact. Admin-only.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// Unsubscribe redeems an opaque unsubscribe token: the owning contact is
// marked subscribed=false and its email is added to the suppression list
// with reason "unsubscribed". Idempotent: repeated calls with the same
// token are no-ops after the first.
func (s *Service) Unsubscribe(ctx context.Context, token string) error {
	if token == "" {
		return ErrNotFound
	}
	c, err := s.repo.GetByUnsubscribeToken(ctx, token)
	if err != nil {
		return err
	}

	if c.Subscribed {
		if err := s.repo.SetSubscribed(ctx, c.ID, false); err != nil {
			return fmt.Errorf("unsubscribe contact %s: %w", c.ID, err)
		}
	}
	if err := s.suppression.Suppress(ctx, c.Email, domain.ReasonUnsubscribed, ""); err != nil {
		return fmt.Errorf("suppress %s: %w", c.Email, err)
	}

	log.Printf("[contact.Service] Unsubscribed %s", c.Email)
	return nil
}

// newUnsubscribeToken returns a 32-hex-char opaque secret.
func newUnsubscribeToken() string {
	var b [16]byte
	rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// validEmail performs a minimal structural check; full verification is the
// mail provider's job.
func validEmail(email string) bool {
	if len(email) < 3 || len(email) > 254 {
		return false
	}
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return false
	}
	return strings.Contains(email[at+1:], ".")
}
