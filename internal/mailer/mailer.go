// Package mailer abstracts the outbound email provider. The dispatcher only
// depends on the Transport interface so tests and local development can swap
// SES for a log transport.
package mailer

import "context"

// Message is a single outbound email, fully rendered.
type Message struct {
	To       string
	FromName string
	FromAddr string
	Subject  string
	BodyHTML string
	BodyText string
}

// Transport sends a single message. Implementations must be safe for
// concurrent use.
type Transport interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}
