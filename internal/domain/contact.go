package domain

import (
	"strings"
	"time"
)

// Contact represents a single marketing contact.
//
// Tags are stored as comma-delimited text. Matching against a tag is always
// exact-token equality on the split field, never a substring match; use
// HasTag rather than strings.Contains.
type Contact struct {
	ID               string    `json:"id" db:"id"`
	Email            string    `json:"email" db:"email"`
	FirstName        string    `json:"first_name" db:"first_name"`
	LastName         string    `json:"last_name" db:"last_name"`
	Tags             string    `json:"tags" db:"tags"`
	Source           string    `json:"source" db:"source"`
	Subscribed       bool      `json:"subscribed" db:"subscribed"`
	UnsubscribeToken string    `json:"-" db:"unsubscribe_token"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// NormalizeEmail lowercases and trims an email address. Every lookup and
// uniqueness check in the platform goes through this.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HasTag reports whether the contact's tag field contains the given tag as
// an exact token. Comparison is case-sensitive.
func (c *Contact) HasTag(tag string) bool {
	if tag == "" || c.Tags == "" {
		return false
	}
	for _, t := range strings.Split(c.Tags, ",") {
		if strings.TrimSpace(t) == tag {
			return true
		}
	}
	return false
}

// TagList returns the contact's tags as a slice, empty tokens removed.
func (c *Contact) TagList() []string {
	if c.Tags == "" {
		return nil
	}
	var out []string
	for _, t := range strings.Split(c.Tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
