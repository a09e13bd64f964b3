package alerts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/epikom-hub/internal/apperr"
	"github.com/nhle/epikom-hub/internal/mailer"
	"github.com/nhle/epikom-hub/internal/model"
	"github.com/nhle/epikom-hub/internal/reminder"
)

// ResultKind is the outcome of one reminder send.
type ResultKind string

const (
	ResultSent             ResultKind = "sent"
	ResultSkippedNoAccount ResultKind = "skipped_no_account"
	ResultSkippedDuplicate ResultKind = "skipped_duplicate"
	ResultFailed           ResultKind = "failed"
)

// bucketDueSoon is the dedupe slot of the pre-deadline notice.
const bucketDueSoon = reminder.Bucket("due_soon")

// Result reports what happened to one deliverable's reminder.
type Result struct {
	DeliverableID string
	Kind          ResultKind
	Bucket        reminder.Bucket

	// Err is set when Kind is ResultFailed.
	Err error

	// Emailed is true when the email channel also delivered; EmailErr
	// holds its failure. Neither affects Kind.
	Emailed  bool
	EmailErr error
}

// Summary aggregates the results of a batch of sends.
type Summary struct {
	Sent             int
	SkippedNoAccount int
	SkippedDuplicate int
	Failed           int
	Results          []Result
}

func (s *Summary) add(r Result) {
	switch r.Kind {
	case ResultSent:
		s.Sent++
	case ResultSkippedNoAccount:
		s.SkippedNoAccount++
	case ResultSkippedDuplicate:
		s.SkippedDuplicate++
	case ResultFailed:
		s.Failed++
	}
	s.Results = append(s.Results, r)
}

// Merge adds the counts and results of o to s.
func (s *Summary) Merge(o Summary) {
	for _, r := range o.Results {
		s.add(r)
	}
}

// SendReminder notifies the linked account of d's client that d is
// overdue. At most one reminder is recorded per deliverable and bucket.
func (a *Aggregator) SendReminder(ctx context.Context, d model.OverdueDeliverable) Result {
	return a.send(ctx, d, reminder.BucketFor(d.Policy, d.DaysOverdue), overdueNotice(d), true)
}

// SendReminders sends a reminder for every item and tallies the outcome.
func (a *Aggregator) SendReminders(ctx context.Context, items []model.OverdueDeliverable) Summary {
	var sum Summary
	for _, d := range items {
		sum.add(a.SendReminder(ctx, d))
	}
	return sum
}

// Sweep sends the reminders a project's policy asks for at now: overdue
// reminders when a deliverable crosses a tier, and a pre-deadline notice
// once a deliverable enters its reminder window.
func (a *Aggregator) Sweep(ctx context.Context, now time.Time) (Summary, error) {
	candidates, err := a.store.ListOverdueCandidates(ctx)
	if err != nil {
		return Summary{}, apperr.Transient("loading reminder candidates", err)
	}

	var sum Summary
	for _, d := range Overdue(candidates, now) {
		bucket, ok := reminder.Tier(reminder.OrDefault(d.Policy), d.DaysOverdue)
		if !ok {
			continue
		}
		sum.add(a.send(ctx, d, bucket, overdueNotice(d), true))
	}

	for _, d := range candidates {
		if d.Status == model.DeliverableStatusApproved || !d.DueDate.After(now) {
			continue
		}
		if !reminder.DueSoon(reminder.OrDefault(d.Policy), d.DueDate, now) {
			continue
		}
		sum.add(a.send(ctx, d, bucketDueSoon, dueSoonNotice(d, now), false))
	}

	a.log.Info("reminder sweep finished",
		zap.Int("sent", sum.Sent),
		zap.Int("skipped_no_account", sum.SkippedNoAccount),
		zap.Int("skipped_duplicate", sum.SkippedDuplicate),
		zap.Int("failed", sum.Failed),
	)
	return sum, nil
}

type notice struct {
	title   string
	message string
}

func overdueNotice(d model.OverdueDeliverable) notice {
	return notice{title: mailer.ReminderSubject, message: mailer.ReminderText(d)}
}

func dueSoonNotice(d model.OverdueDeliverable, now time.Time) notice {
	hours := int(d.DueDate.Sub(now).Hours())
	return notice{
		title: "Upcoming deadline",
		message: fmt.Sprintf("The deliverable %q of project %q is due in %d hours.",
			d.Name, d.ProjectName, hours),
	}
}

func (a *Aggregator) send(
	ctx context.Context, d model.OverdueDeliverable, bucket reminder.Bucket, nt notice, email bool,
) Result {
	res := Result{DeliverableID: d.ID, Bucket: bucket}
	log := a.log.With(
		zap.String("deliverable_id", d.ID),
		zap.String("bucket", string(bucket)),
	)

	if d.ClientEmail == nil || strings.TrimSpace(*d.ClientEmail) == "" {
		res.Kind = ResultSkippedNoAccount
		return res
	}
	clientEmail := strings.TrimSpace(*d.ClientEmail)

	profile, err := a.store.GetProfileByEmail(ctx, clientEmail)
	if apperr.IsNotFound(err) {
		res.Kind = ResultSkippedNoAccount
		return res
	}
	if err != nil {
		res.Kind = ResultFailed
		res.Err = apperr.Transient("looking up client account", err)
		log.Warn("reminder lookup failed", zap.Error(err))
		return res
	}

	link := "/projects/" + d.ProjectID
	projectID := d.ProjectID
	n := &model.Notification{
		UserID:    profile.ID,
		Type:      model.NotificationDeadline,
		Title:     nt.title,
		Message:   nt.message,
		Link:      &link,
		ProjectID: &projectID,
	}
	claimed, err := a.store.RecordReminder(ctx, model.ReminderSend{
		DeliverableID: d.ID,
		Bucket:        string(bucket),
		Channel:       model.ChannelInApp,
		Recipient:     profile.ID,
	}, n)
	if err != nil {
		res.Kind = ResultFailed
		res.Err = apperr.Transient("recording reminder", err)
		log.Warn("reminder insert failed", zap.Error(err))
		return res
	}
	if !claimed {
		res.Kind = ResultSkippedDuplicate
		return res
	}
	res.Kind = ResultSent
	log.Info("reminder sent", zap.String("recipient", profile.ID))

	if email && a.mailer != nil {
		res.Emailed, res.EmailErr = a.sendEmail(ctx, d, bucket, clientEmail)
	}
	return res
}

// sendEmail mails the reminder and logs the attempt on the email
// channel. It only runs after the in-app slot was claimed, so a bucket is
// mailed at most once.
func (a *Aggregator) sendEmail(
	ctx context.Context, d model.OverdueDeliverable, bucket reminder.Bucket, to string,
) (bool, error) {
	send := model.ReminderSend{
		DeliverableID: d.ID,
		Bucket:        string(bucket),
		Channel:       model.ChannelEmail,
		Recipient:     to,
		Status:        model.ReminderStatusSent,
	}

	mailErr := a.mailer.SendReminder(ctx, to, d)
	if mailErr != nil {
		msg := mailErr.Error()
		send.Status = model.ReminderStatusFailed
		send.Error = &msg
		a.log.Warn("reminder email failed",
			zap.String("deliverable_id", d.ID),
			zap.Error(mailErr),
		)
	}

	if _, err := a.store.LogReminderSend(ctx, send); err != nil {
		a.log.Error("logging reminder email",
			zap.String("deliverable_id", d.ID),
			zap.Error(err),
		)
	}
	return mailErr == nil, mailErr
}
