package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/epikom-hub/internal/apperr"
	"github.com/nhle/epikom-hub/internal/model"
	"github.com/nhle/epikom-hub/internal/realtime"
	"github.com/nhle/epikom-hub/internal/store"
	"github.com/nhle/epikom-hub/tests/testutil"
)

func strPtr(s string) *string { return &s }

type events struct {
	mu  sync.Mutex
	all []realtime.Event
}

func (e *events) add(ev realtime.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.all = append(e.all, ev)
}

func (e *events) count(op realtime.Op) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, ev := range e.all {
		if ev.Op == op {
			n++
		}
	}
	return n
}

func TestProfiles(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	p := testutil.MustProfile(t, s, "Jane Doe", "Jane@Example.test", model.RoleAdmin)
	assert.NotEmpty(t, p.ID)

	got, err := s.GetProfileByEmail(ctx, "jane@example.test")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.True(t, got.IsAdmin())
	assert.Equal(t, "Jane", got.FirstName())

	_, err = s.GetProfileByID(ctx, "missing")
	assert.True(t, apperr.IsNotFound(err))

	_, err = s.CreateProfile(ctx, model.Profile{FullName: "No Mail"})
	assert.True(t, apperr.IsValidation(err))

	testutil.MustProfile(t, s, "Carl", "carl@example.test", "")
	admins, err := s.ListAdmins(ctx)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, p.ID, admins[0].ID)
}

func TestProjectSettingsRoundTrip(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	fx := testutil.Seed(t, s)

	got, err := s.GetProjectByID(ctx, fx.Project.ID)
	require.NoError(t, err)
	assert.Nil(t, got.NotificationSettings)
	assert.Equal(t, model.ProjectStatusActive, got.Status)

	policy := model.ReminderPolicy{
		OnStart:             true,
		OnDeliverableDue:    true,
		ReminderHoursBefore: 48,
		OverdueReminders:    model.OverdueReminders{First: 1, Second: 3, Third: 7},
	}
	require.NoError(t, s.UpdateProjectSettings(ctx, fx.Project.ID, policy))

	got, err = s.GetProjectByID(ctx, fx.Project.ID)
	require.NoError(t, err)
	require.NotNil(t, got.NotificationSettings)
	assert.Equal(t, policy, *got.NotificationSettings)

	err = s.UpdateProjectSettings(ctx, "missing", policy)
	assert.True(t, apperr.IsNotFound(err))
}

func TestListActiveProjectDeadlines(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	fx := testutil.Seed(t, s)

	_, err := s.CreateProject(ctx, model.Project{Name: "Open ended", ClientID: fx.Client.ID})
	require.NoError(t, err)
	end := time.Now().UTC().Add(24 * time.Hour)
	_, err = s.CreateProject(ctx, model.Project{
		Name: "Done", ClientID: fx.Client.ID, Status: model.ProjectStatusCompleted, EndDate: &end,
	})
	require.NoError(t, err)

	deadlines, err := s.ListActiveProjectDeadlines(ctx)
	require.NoError(t, err)
	require.Len(t, deadlines, 1)
	assert.Equal(t, fx.Project.ID, deadlines[0].ID)
	require.NotNil(t, deadlines[0].ClientName)
	assert.Equal(t, "Client Co", *deadlines[0].ClientName)
}

func TestDeliverableApprovalAndOverdueCandidates(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	fx := testutil.Seed(t, s)

	late := testutil.MustDeliverable(t, s, fx.Project.ID, "Logo", time.Now().UTC().Add(-48*time.Hour))
	done := testutil.MustDeliverable(t, s, fx.Project.ID, "Brief", time.Now().UTC().Add(-24*time.Hour))
	_, err := s.CreateDeliverable(ctx, model.Deliverable{ProjectID: fx.Project.ID, Name: "Undated"})
	require.NoError(t, err)

	require.NoError(t, s.UpdateDeliverableStatus(ctx, done.ID, model.DeliverableStatusApproved, &fx.Admin.ID))
	approved, err := s.GetDeliverableByID(ctx, done.ID)
	require.NoError(t, err)
	assert.NotNil(t, approved.ApprovedAt)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, fx.Admin.ID, *approved.ApprovedBy)

	candidates, err := s.ListOverdueCandidates(ctx)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, late.ID, candidates[0].ID)
	assert.Equal(t, "Launch", candidates[0].ProjectName)
	require.NotNil(t, candidates[0].ClientEmail)
	assert.Equal(t, "billing@client.test", *candidates[0].ClientEmail)

	err = s.UpdateDeliverableStatus(ctx, "missing", model.DeliverableStatusRejected, nil)
	assert.True(t, apperr.IsNotFound(err))
}

func TestNotificationLifecycle(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	fx := testutil.Seed(t, s)

	var seen events
	unsub, err := s.Subscribe(ctx, realtime.Filtered(store.TableNotifications, "user_id", fx.Member.ID), seen.add)
	require.NoError(t, err)
	defer unsub()

	for _, title := range []string{"first", "second", "third"} {
		_, err := s.CreateNotification(ctx, model.Notification{
			UserID:  fx.Member.ID,
			Type:    model.NotificationComment,
			Title:   title,
			Message: title,
			ActorID: &fx.Admin.ID,
		})
		require.NoError(t, err)
	}
	_, err = s.CreateNotification(ctx, model.Notification{
		UserID: fx.Admin.ID, Type: model.NotificationComment, Title: "other", Message: "other",
	})
	require.NoError(t, err)

	list, err := s.ListNotifications(ctx, fx.Member.ID, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "third", list[0].Title)
	assert.Equal(t, "second", list[1].Title)
	require.NotNil(t, list[0].Actor)
	assert.Equal(t, "Ada Admin", list[0].Actor.FullName)

	require.NoError(t, s.MarkNotificationRead(ctx, list[0].ID))
	changed, err := s.MarkAllNotificationsRead(ctx, fx.Member.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	changed, err = s.MarkAllNotificationsRead(ctx, fx.Member.ID)
	require.NoError(t, err)
	assert.Zero(t, changed)

	require.NoError(t, s.DeleteNotification(ctx, list[1].ID))
	assert.True(t, apperr.IsNotFound(s.DeleteNotification(ctx, list[1].ID)))

	removed, err := s.DeleteAllNotifications(ctx, fx.Member.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	assert.Eventually(t, func() bool {
		return seen.count(realtime.OpInsert) == 3 &&
			seen.count(realtime.OpUpdate) == 3 &&
			seen.count(realtime.OpDelete) == 3
	}, time.Second, 5*time.Millisecond)

	others, err := s.ListNotifications(ctx, fx.Admin.ID, 0)
	require.NoError(t, err)
	assert.Len(t, others, 1)
}

func TestCommentThreadAndCascade(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	fx := testutil.Seed(t, s)

	top, err := s.CreateComment(ctx, model.Comment{
		ProjectID: fx.Project.ID, UserID: fx.Admin.ID, Content: "Kickoff @carl", Mentions: []string{fx.Member.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{fx.Member.ID}, top.Mentions)
	require.NotNil(t, top.Author)
	assert.Equal(t, "Ada Admin", top.Author.FullName)

	_, err = s.CreateComment(ctx, model.Comment{
		ProjectID: fx.Project.ID, UserID: fx.Member.ID, ParentID: &top.ID, Content: "Thanks",
	})
	require.NoError(t, err)

	_, err = s.CreateComment(ctx, model.Comment{ProjectID: fx.Project.ID, UserID: fx.Member.ID, Content: "  "})
	assert.True(t, apperr.IsValidation(err))

	edited, err := s.UpdateComment(ctx, top.ID, "Kickoff moved")
	require.NoError(t, err)
	assert.True(t, edited.IsEdited)
	assert.Equal(t, "Kickoff moved", edited.Content)

	replies, err := s.ListReplies(ctx, fx.Project.ID)
	require.NoError(t, err)
	require.Len(t, replies, 1)

	require.NoError(t, s.DeleteComment(ctx, top.ID))

	tops, err := s.ListTopLevelComments(ctx, fx.Project.ID)
	require.NoError(t, err)
	assert.Empty(t, tops)
	replies, err = s.ListReplies(ctx, fx.Project.ID)
	require.NoError(t, err)
	assert.Empty(t, replies)
}

func TestPostsDefaultsAndStatus(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	fx := testutil.Seed(t, s)

	later, err := s.CreatePost(ctx, model.SocialPost{
		ProjectID: fx.Project.ID, Title: "Later", Platform: model.PlatformInstagram,
		ScheduledDate: "2026-11-02", Hashtags: []string{"#launch"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.PostDraft, later.Status)
	assert.Equal(t, model.DefaultNotifyBeforeHours, later.NotifyBeforeHours)
	assert.Equal(t, []string{"#launch"}, later.Hashtags)
	assert.Empty(t, later.MediaURLs)

	sooner, err := s.CreatePost(ctx, model.SocialPost{
		ProjectID: fx.Project.ID, Title: "Sooner", Platform: model.PlatformLinkedIn,
		ScheduledDate: "2026-11-01", ScheduledTime: strPtr("09:30"), Status: model.PostScheduled,
	})
	require.NoError(t, err)

	posts, err := s.ListPosts(ctx, fx.Project.ID)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, sooner.ID, posts[0].ID)

	awaiting, err := s.ListPostsAwaitingNotice(ctx)
	require.NoError(t, err)
	require.Len(t, awaiting, 1)
	require.NoError(t, s.MarkPostNotified(ctx, sooner.ID))
	awaiting, err = s.ListPostsAwaitingNotice(ctx)
	require.NoError(t, err)
	assert.Empty(t, awaiting)

	now := time.Now().UTC()
	published, err := s.SetPostStatus(ctx, sooner.ID, model.PostScheduled, model.PostPublished, &now)
	require.NoError(t, err)
	assert.Equal(t, model.PostPublished, published.Status)
	assert.NotNil(t, published.PublishedAt)

	_, err = s.SetPostStatus(ctx, sooner.ID, model.PostScheduled, model.PostCancelled, nil)
	assert.True(t, apperr.IsValidation(err))
	_, err = s.UpdatePost(ctx, *published, model.PostScheduled)
	assert.True(t, apperr.IsValidation(err))
	_, err = s.SetPostStatus(ctx, "missing", model.PostDraft, model.PostScheduled, nil)
	assert.True(t, apperr.IsNotFound(err))

	require.NoError(t, s.DeletePost(ctx, later.ID))
	_, err = s.GetPost(ctx, later.ID)
	assert.True(t, apperr.IsNotFound(err))
}

func TestFilesListLatestOnly(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	fx := testutil.Seed(t, s)

	root, err := s.CreateFile(ctx, model.FileRecord{
		ProjectID: fx.Project.ID, Name: "brief.pdf", OriginalName: "brief.pdf",
		Size: 1024, MimeType: "application/pdf", StoragePath: fx.Project.ID + "/1-a.pdf",
	})
	require.NoError(t, err)
	_, err = s.CreateFile(ctx, model.FileRecord{
		ProjectID: fx.Project.ID, Name: "brief.pdf", OriginalName: "brief.pdf",
		StoragePath: fx.Project.ID + "/2-b.pdf", Version: 2, ParentID: &root.ID,
	})
	require.NoError(t, err)

	files, err := s.ListFiles(ctx, fx.Project.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, root.ID, files[0].ID)
	assert.Equal(t, 1, files[0].Version)

	require.NoError(t, s.DeleteFile(ctx, root.ID))
	assert.True(t, apperr.IsNotFound(s.DeleteFile(ctx, root.ID)))
}

func TestRecordReminderOncePerBucket(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	fx := testutil.Seed(t, s)
	d := testutil.MustDeliverable(t, s, fx.Project.ID, "Logo", time.Now().UTC().Add(-72*time.Hour))

	send := model.ReminderSend{
		DeliverableID: d.ID, Bucket: "first", Channel: model.ChannelInApp, Recipient: fx.Member.ID,
	}
	notice := func() *model.Notification {
		return &model.Notification{
			UserID: fx.Member.ID, Type: model.NotificationDeadline, Title: "Overdue", Message: "Logo is overdue",
			ProjectID: &fx.Project.ID,
		}
	}

	claimed, err := s.RecordReminder(ctx, send, notice())
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = s.RecordReminder(ctx, send, notice())
	require.NoError(t, err)
	assert.False(t, claimed)

	send.Channel = model.ChannelEmail
	send.Recipient = "billing@client.test"
	claimed, err = s.LogReminderSend(ctx, send)
	require.NoError(t, err)
	assert.True(t, claimed)

	list, err := s.ListNotifications(ctx, fx.Member.ID, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	sends, err := s.ListReminderSends(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, sends, 2)
	assert.Equal(t, model.ChannelInApp, sends[0].Channel)
	assert.Equal(t, model.ReminderStatusSent, sends[0].Status)
}
