package posts

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/epikom-hub/internal/apperr"
	"github.com/nhle/epikom-hub/internal/model"
)

// DuePostReminders returns the scheduled posts whose reminder is due at
// now: the post goes out within its notify_before_hours and no reminder
// was sent yet. Schedules are read in now's location.
func DuePostReminders(posts []model.SocialPost, now time.Time) []model.SocialPost {
	var due []model.SocialPost
	for _, p := range posts {
		if p.Status != model.PostScheduled || p.NotificationSent {
			continue
		}
		at, err := p.ScheduledAt(now.Location())
		if err != nil {
			continue
		}
		hours := p.NotifyBeforeHours
		if hours <= 0 {
			hours = model.DefaultNotifyBeforeHours
		}
		if !at.Add(-time.Duration(hours) * time.Hour).After(now) {
			due = append(due, p)
		}
	}
	return due
}

// NoticeStore is the slice of the persistence gateway used by Notifier.
type NoticeStore interface {
	ListPostsAwaitingNotice(ctx context.Context) ([]model.SocialPost, error)
	ListAdmins(ctx context.Context) ([]model.Profile, error)
	CreateNotification(ctx context.Context, n model.Notification) (*model.Notification, error)
	MarkPostNotified(ctx context.Context, id string) error
}

// Notifier tells admins about posts that are about to go out.
type Notifier struct {
	store NoticeStore
	log   *zap.Logger
}

// NewNotifier creates a Notifier over store.
func NewNotifier(store NoticeStore, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{store: store, log: log}
}

// Sweep sends one project_update notification per admin for every post
// whose reminder is due, then flags the post so it is announced once. A
// post no admin could be notified about stays unflagged for the next
// sweep. It returns the number of posts announced.
func (n *Notifier) Sweep(ctx context.Context, now time.Time) (int, error) {
	waiting, err := n.store.ListPostsAwaitingNotice(ctx)
	if err != nil {
		return 0, apperr.Transient("listing scheduled posts", err)
	}
	due := DuePostReminders(waiting, now)
	if len(due) == 0 {
		return 0, nil
	}

	admins, err := n.store.ListAdmins(ctx)
	if err != nil {
		return 0, apperr.Transient("listing admins", err)
	}

	announced := 0
	for _, p := range due {
		delivered := 0
		for _, a := range admins {
			if _, err := n.store.CreateNotification(ctx, postNotice(p, a.ID)); err != nil {
				n.log.Warn("notifying admin of scheduled post",
					zap.String("post_id", p.ID),
					zap.String("user_id", a.ID),
					zap.Error(err),
				)
				continue
			}
			delivered++
		}
		if delivered == 0 {
			n.log.Warn("no admin notified of scheduled post", zap.String("post_id", p.ID))
			continue
		}
		if err := n.store.MarkPostNotified(ctx, p.ID); err != nil {
			n.log.Warn("flagging post notified", zap.String("post_id", p.ID), zap.Error(err))
			continue
		}
		announced++
	}

	n.log.Info("post reminders swept", zap.Int("due", len(due)), zap.Int("announced", announced))
	return announced, nil
}

func postNotice(p model.SocialPost, userID string) model.Notification {
	link := "/projects/" + p.ProjectID
	projectID := p.ProjectID
	when := p.ScheduledDate
	if p.ScheduledTime != nil && *p.ScheduledTime != "" {
		when += " " + *p.ScheduledTime
	}
	return model.Notification{
		UserID:    userID,
		Type:      model.NotificationProjectUpdate,
		Title:     "Post going out soon",
		Message:   fmt.Sprintf("%q is scheduled on %s for %s.", p.Title, PlatformLabel(p.Platform), when),
		Link:      &link,
		ProjectID: &projectID,
	}
}
