package mailer

import (
	"context"
	"fmt"
	"html"

	"go.uber.org/zap"

	"github.com/nhle/epikom-hub/internal/model"
)

// Sender delivers a composed message.
type Sender interface {
	Send(ctx context.Context, from string, to []string, raw []byte) error
}

// Archiver keeps a copy of a sent message.
type Archiver interface {
	Archive(ctx context.Context, raw []byte) error
}

// Mailer composes and sends overdue-deliverable reminders.
type Mailer struct {
	from    string
	sender  Sender
	archive Archiver
	log     *zap.Logger
}

// New creates a Mailer. archive may be nil.
func New(from string, sender Sender, archive Archiver, log *zap.Logger) *Mailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Mailer{from: from, sender: sender, archive: archive, log: log}
}

// ReminderSubject is the subject of overdue reminder emails.
const ReminderSubject = "Reminder: pending deliverable"

// ReminderText is the body of the reminder for d.
func ReminderText(d model.OverdueDeliverable) string {
	return fmt.Sprintf("The deliverable %q of project %q is %d days overdue.",
		d.Name, d.ProjectName, d.DaysOverdue)
}

// SendReminder emails the overdue reminder for d to the address to. A
// failure to archive the sent copy is logged and not returned.
func (m *Mailer) SendReminder(ctx context.Context, to string, d model.OverdueDeliverable) error {
	text := ReminderText(d)
	body := fmt.Sprintf("<p>%s</p>", html.EscapeString(text))
	if d.ClientName != nil && *d.ClientName != "" {
		greeting := "Hello " + *d.ClientName + ","
		text = greeting + "\n\n" + text
		body = fmt.Sprintf("<p>%s</p>%s", html.EscapeString(greeting), body)
	}

	raw, err := Compose(Message{
		From:    m.from,
		To:      []string{to},
		Subject: ReminderSubject,
		Text:    text,
		HTML:    body,
	})
	if err != nil {
		return err
	}

	if err := m.sender.Send(ctx, m.from, []string{to}, raw); err != nil {
		return fmt.Errorf("sending reminder for deliverable %s: %w", d.ID, err)
	}

	if m.archive != nil {
		if err := m.archive.Archive(ctx, raw); err != nil {
			m.log.Warn("archiving sent reminder",
				zap.String("deliverable_id", d.ID),
				zap.Error(err),
			)
		}
	}
	return nil
}
