// Package audience computes the eligible recipient set for a campaign.
// Resolution is a pure read: the base set comes from the contact store and
// the suppression list is subtracted afterwards, so a contact that is
// subscribed but separately suppressed (e.g. a bounce recorded after
// subscription) is still excluded.
package audience

import (
	"context"
	"fmt"

	"github.com/fluentive/campaigns/internal/domain"
)

// ContactSource provides the subscribed-contact base set.
type ContactSource interface {
	ListSubscribed(ctx context.Context) ([]domain.Contact, error)
}

// SuppressionSource provides the set of suppressed emails.
type SuppressionSource interface {
	AllEmails(ctx context.Context) (map[string]struct{}, error)
}

// Resolution is the result of resolving a campaign audience. TotalMatched
// counts contacts matching the selector before suppression filtering, so a
// confirmation UI can show both numbers.
type Resolution struct {
	Eligible        []domain.Contact `json:"eligible"`
	TotalMatched    int              `json:"total_matched"`
	SuppressedCount int              `json:"suppressed_count"`
}

// Resolver resolves audience selectors against the contact store and
// suppression list. It performs no writes and needs no locking.
type Resolver struct {
	contacts     ContactSource
	suppressions SuppressionSource
}

// NewResolver creates an audience resolver.
func NewResolver(contacts ContactSource, suppressions SuppressionSource) *Resolver {
	return &Resolver{contacts: contacts, suppressions: suppressions}
}

// Resolve computes the eligible contact set for the given selector.
// by_tag matches are exact-token comparisons on the comma-delimited tag
// field; by_source matches are exact string equality.
func (r *Resolver) Resolve(ctx context.Context, audienceType domain.AudienceType, filter string) (*Resolution, error) {
	if audienceType != domain.AudienceAll && filter == "" {
		return nil, fmt.Errorf("audience filter is required for %s", audienceType)
	}

	subscribed, err := r.contacts.ListSubscribed(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subscribed contacts: %w", err)
	}

	var matched []domain.Contact
	for _, c := range subscribed {
		switch audienceType {
		case domain.AudienceAll:
			matched = append(matched, c)
		case domain.AudienceByTag:
			if c.HasTag(filter) {
				matched = append(matched, c)
			}
		case domain.AudienceBySource:
			if c.Source == filter {
				matched = append(matched, c)
			}
		default:
			return nil, fmt.Errorf("unknown audience type %q", audienceType)
		}
	}

	suppressed, err := r.suppressions.AllEmails(ctx)
	if err != nil {
		return nil, fmt.Errorf("load suppression list: %w", err)
	}

	res := &Resolution{TotalMatched: len(matched)}
	for _, c := range matched {
		if _, ok := suppressed[domain.NormalizeEmail(c.Email)]; ok {
			res.SuppressedCount++
			continue
		}
		res.Eligible = append(res.Eligible, c)
	}
	return res, nil
}
