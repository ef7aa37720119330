package suppression

import (
	"context"

	"github.com/fluentive/campaigns/internal/domain"
)

// Repository defines the data access contract for suppression entries.
// Implementations must be safe for concurrent use.
type Repository interface {
	// IsSuppressed reports whether the (normalized) email is suppressed.
	IsSuppressed(ctx context.Context, email string) (bool, error)

	// Suppress inserts an entry. Inserting an already-suppressed email is a
	// no-op that preserves the original entry (first reason wins).
	Suppress(ctx context.Context, s *domain.Suppression) error

	// Remove deletes an entry. Returns ErrNotFound if the email is not suppressed.
	Remove(ctx context.Context, email string) error

	// List returns entries ordered by created_at DESC, plus the total count.
	List(ctx context.Context, f ListFilter) ([]domain.Suppression, int, error)

	// AllEmails returns every suppressed email. Used by the audience resolver
	// to filter a candidate set in one pass.
	AllEmails(ctx context.Context) (map[string]struct{}, error)
}

// ListFilter controls pagination for suppression lists.
type ListFilter struct {
	Reason string
	Limit  int
	Offset int
}
