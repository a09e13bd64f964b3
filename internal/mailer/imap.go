package mailer

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// IMAPConfig holds the mailbox that keeps copies of sent reminders.
type IMAPConfig struct {
	Host        string
	Port        string
	Username    string
	Password    string
	TLS         bool
	SentMailbox string
}

// IMAPArchiver appends sent messages to an IMAP mailbox.
type IMAPArchiver struct {
	cfg IMAPConfig
}

// NewIMAPArchiver creates an archiver for cfg. An empty SentMailbox
// means "Sent".
func NewIMAPArchiver(cfg IMAPConfig) *IMAPArchiver {
	if cfg.SentMailbox == "" {
		cfg.SentMailbox = "Sent"
	}
	return &IMAPArchiver{cfg: cfg}
}

// connect establishes a connection to the IMAP server and authenticates.
// The caller is responsible for calling Logout on the returned client.
func (a *IMAPArchiver) connect(_ context.Context) (*imapclient.Client, error) {
	addr := net.JoinHostPort(a.cfg.Host, a.cfg.Port)

	var client *imapclient.Client
	var err error

	if a.cfg.TLS {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(a.cfg.Username, a.cfg.Password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("IMAP login as %s: %w", a.cfg.Username, err)
	}

	return client, nil
}

// Archive appends raw to the Sent mailbox flagged as seen.
func (a *IMAPArchiver) Archive(ctx context.Context, raw []byte) error {
	client, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	cmd := client.Append(a.cfg.SentMailbox, int64(len(raw)), &imap.AppendOptions{
		Flags: []imap.Flag{imap.FlagSeen},
		Time:  time.Now(),
	})
	if _, err := cmd.Write(raw); err != nil {
		_ = cmd.Close()
		return fmt.Errorf("writing message to %s: %w", a.cfg.SentMailbox, err)
	}
	if err := cmd.Close(); err != nil {
		return fmt.Errorf("closing append to %s: %w", a.cfg.SentMailbox, err)
	}
	if _, err := cmd.Wait(); err != nil {
		return fmt.Errorf("appending to %s: %w", a.cfg.SentMailbox, err)
	}
	return nil
}
