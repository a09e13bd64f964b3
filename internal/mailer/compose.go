// Package mailer sends reminder emails over SMTP and archives a copy in
// the sender's IMAP Sent mailbox.
package mailer

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-message/mail"
)

// Message is a plain-text email with an optional HTML alternative.
type Message struct {
	From    string
	To      []string
	Subject string
	Text    string
	HTML    string
	Date    time.Time
}

// Compose renders m as an RFC 5322 message.
func Compose(m Message) ([]byte, error) {
	if len(m.To) == 0 {
		return nil, fmt.Errorf("composing message: no recipients")
	}

	var h mail.Header
	from, err := mail.ParseAddress(m.From)
	if err != nil {
		return nil, fmt.Errorf("parsing sender %q: %w", m.From, err)
	}
	h.SetAddressList("From", []*mail.Address{from})

	to := make([]*mail.Address, 0, len(m.To))
	for _, raw := range m.To {
		addr, err := mail.ParseAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing recipient %q: %w", raw, err)
		}
		to = append(to, addr)
	}
	h.SetAddressList("To", to)

	date := m.Date
	if date.IsZero() {
		date = time.Now()
	}
	h.SetDate(date)
	h.SetSubject(m.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generating message id: %w", err)
	}

	var buf bytes.Buffer
	if m.HTML == "" {
		h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
		w, err := mail.CreateSingleInlineWriter(&buf, h)
		if err != nil {
			return nil, fmt.Errorf("creating message writer: %w", err)
		}
		if _, err := io.WriteString(w, m.Text); err != nil {
			return nil, fmt.Errorf("writing message body: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("closing message: %w", err)
		}
		return buf.Bytes(), nil
	}

	w, err := mail.CreateInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}
	if err := writePart(w, "text/plain", m.Text); err != nil {
		return nil, err
	}
	if err := writePart(w, "text/html", m.HTML); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing message: %w", err)
	}
	return buf.Bytes(), nil
}

func writePart(w *mail.InlineWriter, contentType, body string) error {
	var ph mail.InlineHeader
	ph.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	pw, err := w.CreatePart(ph)
	if err != nil {
		return fmt.Errorf("creating %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(pw, body); err != nil {
		return fmt.Errorf("writing %s part: %w", contentType, err)
	}
	return pw.Close()
}
