package contact

import (
	"context"

	"github.com/fluentive/campaigns/internal/domain"
)

// Repository defines the data access contract for contacts.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a contact by ID. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Contact, error)

	// GetByEmail returns a contact by normalized email.
	GetByEmail(ctx context.Context, email string) (*domain.Contact, error)

	// GetByUnsubscribeToken returns the contact owning the given token.
	GetByUnsubscribeToken(ctx context.Context, token string) (*domain.Contact, error)

	// Upsert inserts a contact, or updates name/tags/source on email conflict.
	Upsert(ctx context.Context, c *domain.Contact) error

	// SetSubscribed flips the subscribed flag. No-op if already at the value.
	SetSubscribed(ctx context.Context, id string, subscribed bool) error

	// List returns contacts ordered by created_at DESC, plus the total count.
	List(ctx context.Context, f ListFilter) ([]domain.Contact, int, error)

	// ListSubscribed returns every subscribed contact. The audience resolver
	// applies selector and suppression filtering on top of this set.
	ListSubscribed(ctx context.Context) ([]domain.Contact, error)

	// Delete removes a contact. Admin-only side operation; the dispatch and
	// tracking subsystems never call this.
	Delete(ctx context.Context, id string) error
}

// ListFilter controls pagination and filtering for contact lists.
type ListFilter struct {
	Search string
	Tag    string
	Source string
	Limit  int
	Offset int
}
