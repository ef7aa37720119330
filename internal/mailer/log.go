package mailer

import (
	"context"
	"log"
)

// LogTransport writes messages to the process log instead of sending them.
// It is the default transport in development environments.
type LogTransport struct{}

func (LogTransport) Name() string { return "log" }

func (LogTransport) Send(_ context.Context, msg Message) error {
	log.Printf("[LogTransport] To=%s Subject=%q (%d bytes html, %d bytes text)",
		msg.To, msg.Subject, len(msg.BodyHTML), len(msg.BodyText))
	return nil
}
