// Package alert carries critical events to an operator. It replaces the
// usual attach-a-handler-to-the-root-logger trick with an explicit
// collaborator that services receive through their constructors.
package alert

import (
	"context"
	"log/slog"

	"rocinante/internal/mail"
)

type Event struct {
	Subject string
	Message string
}

type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// Nop discards events. Used when no alert recipient is configured and in
// tests.
type Nop struct{}

func (Nop) Notify(context.Context, Event) {}

// EmailNotifier mails each event to a fixed recipient. Delivery failures
// are logged, never propagated: alerting must not break the operation that
// raised the alert.
type EmailNotifier struct {
	mailer *mail.Mailer
	to     string
}

func NewEmailNotifier(mailer *mail.Mailer, to string) *EmailNotifier {
	return &EmailNotifier{mailer: mailer, to: to}
}

func (n *EmailNotifier) Notify(ctx context.Context, event Event) {
	if err := n.mailer.Send(n.to, event.Subject, event.Message); err != nil {
		slog.Error("failed to send alert email", "subject", event.Subject, "error", err)
	}
}

func (n *EmailNotifier) Close() error { return nil }
