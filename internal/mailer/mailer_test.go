package mailer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/epikom-hub/internal/model"
)

type fakeSender struct {
	from string
	to   []string
	raw  []byte
	err  error
}

func (f *fakeSender) Send(_ context.Context, from string, to []string, raw []byte) error {
	f.from, f.to, f.raw = from, to, raw
	return f.err
}

type fakeArchive struct {
	calls int
	err   error
}

func (f *fakeArchive) Archive(context.Context, []byte) error {
	f.calls++
	return f.err
}

func readParts(t *testing.T, raw []byte) (subject string, texts map[string]string) {
	t.Helper()
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer mr.Close()

	subject, err = mr.Header.Subject()
	require.NoError(t, err)

	texts = map[string]string{}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if h, ok := part.Header.(*mail.InlineHeader); ok {
			ct, _, _ := h.ContentType()
			body, err := io.ReadAll(part.Body)
			require.NoError(t, err)
			texts[ct] = string(body)
		}
	}
	return subject, texts
}

func TestComposeAlternative(t *testing.T) {
	raw, err := Compose(Message{
		From:    "Agency <hub@agency.test>",
		To:      []string{"client@client.test"},
		Subject: "Hello",
		Text:    "plain body",
		HTML:    "<p>html body</p>",
	})
	require.NoError(t, err)

	subject, texts := readParts(t, raw)
	assert.Equal(t, "Hello", subject)
	assert.Equal(t, "plain body", texts["text/plain"])
	assert.Equal(t, "<p>html body</p>", texts["text/html"])
}

func TestComposeRejectsBadInput(t *testing.T) {
	_, err := Compose(Message{From: "hub@agency.test", Subject: "x"})
	assert.Error(t, err)

	_, err = Compose(Message{From: "not an address", To: []string{"a@b.test"}})
	assert.Error(t, err)
}

func TestSendReminder(t *testing.T) {
	client := "Client Co"
	d := model.OverdueDeliverable{
		ID: "d1", Name: "Logo", ProjectName: "Launch", DaysOverdue: 4, ClientName: &client,
	}

	sender := &fakeSender{}
	archive := &fakeArchive{err: errors.New("imap down")}
	m := New("hub@agency.test", sender, archive, nil)

	require.NoError(t, m.SendReminder(context.Background(), "billing@client.test", d))
	assert.Equal(t, "hub@agency.test", sender.from)
	assert.Equal(t, []string{"billing@client.test"}, sender.to)
	assert.Equal(t, 1, archive.calls)

	subject, texts := readParts(t, sender.raw)
	assert.Equal(t, ReminderSubject, subject)
	assert.True(t, strings.HasPrefix(texts["text/plain"], "Hello Client Co,"))
	assert.Contains(t, texts["text/plain"], `"Logo" of project "Launch" is 4 days overdue`)
}

func TestSendReminderFailure(t *testing.T) {
	sender := &fakeSender{err: errors.New("connection refused")}
	archive := &fakeArchive{}
	m := New("hub@agency.test", sender, archive, nil)

	err := m.SendReminder(context.Background(), "billing@client.test", model.OverdueDeliverable{ID: "d1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "d1")
	assert.Zero(t, archive.calls)
}
