package posts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/epikom-hub/internal/apperr"
	"github.com/nhle/epikom-hub/internal/model"
	"github.com/nhle/epikom-hub/internal/store"
	"github.com/nhle/epikom-hub/tests/testutil"
)

func ptr[T any](v T) *T { return &v }

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to model.PostStatus
		ok       bool
	}{
		{model.PostDraft, model.PostScheduled, true},
		{model.PostDraft, model.PostCancelled, true},
		{model.PostDraft, model.PostPublished, false},
		{model.PostScheduled, model.PostPublished, true},
		{model.PostScheduled, model.PostDraft, true},
		{model.PostScheduled, model.PostCancelled, true},
		{model.PostCancelled, model.PostDraft, true},
		{model.PostCancelled, model.PostScheduled, false},
		{model.PostPublished, model.PostDraft, false},
		{model.PostPublished, model.PostCancelled, false},
		{model.PostPublished, model.PostPublished, true},
		{model.PostDraft, "archived", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			err := CanTransition(tt.from, tt.to)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, apperr.IsValidation(err))
		})
	}
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "Twitter/X", PlatformLabel(model.PlatformTwitter))
	assert.Equal(t, "mastodon", PlatformLabel("mastodon"))
	assert.Equal(t, "📱", PlatformIcon("mastodon"))
	assert.Equal(t, "Scheduled", StatusLabel(model.PostScheduled))
}

func newBoard(t *testing.T) (*Board, *store.SQLiteStore, testutil.Fixture) {
	t.Helper()
	s := testutil.NewTestStore(t)
	fx := testutil.Seed(t, s)
	return NewBoard(s, fx.Project.ID, nil), s, fx
}

func input(title, date string) model.PostInput {
	return model.PostInput{
		Title:         ptr(title),
		Platform:      ptr(model.PlatformInstagram),
		ScheduledDate: ptr(date),
	}
}

func TestCreateValidatesAndDefaults(t *testing.T) {
	b, _, _ := newBoard(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		in    model.PostInput
		field string
	}{
		{name: "missing title", in: model.PostInput{Platform: ptr(model.PlatformInstagram), ScheduledDate: ptr("2026-11-03")}, field: "title"},
		{name: "blank title", in: input("  ", "2026-11-03"), field: "title"},
		{name: "missing platform", in: model.PostInput{Title: ptr("x"), ScheduledDate: ptr("2026-11-03")}, field: "platform"},
		{name: "missing date", in: model.PostInput{Title: ptr("x"), Platform: ptr(model.PlatformInstagram)}, field: "scheduled_date"},
		{name: "bad date", in: input("x", "03/11/2026"), field: "scheduled_date"},
		{name: "bad platform", in: model.PostInput{Title: ptr("x"), Platform: ptr(model.Platform("myspace")), ScheduledDate: ptr("2026-11-03")}, field: "platform"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Create(ctx, tt.in)
			var ve *apperr.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	p, err := b.Create(ctx, input("Launch teaser", "2026-11-03"))
	require.NoError(t, err)
	assert.Equal(t, model.PostDraft, p.Status)
	assert.Equal(t, 2, p.NotifyBeforeHours)
	assert.Equal(t, []string{}, p.MediaURLs)
	assert.Equal(t, []string{}, p.Hashtags)
	assert.Nil(t, p.PublishedAt)
}

func TestBoardOrderingAndQueries(t *testing.T) {
	b, _, _ := newBoard(t)
	ctx := context.Background()

	late := input("late", "2026-11-10")
	late.ScheduledTime = ptr("18:00")
	early := input("early", "2026-11-10")
	early.ScheduledTime = ptr("09:00")
	for _, in := range []model.PostInput{late, input("october", "2026-10-30"), early} {
		_, err := b.Create(ctx, in)
		require.NoError(t, err)
	}

	titles := func(ps []model.SocialPost) []string {
		out := []string{}
		for _, p := range ps {
			out = append(out, p.Title)
		}
		return out
	}
	assert.Equal(t, []string{"october", "early", "late"}, titles(b.Posts()))

	require.NoError(t, b.Fetch(ctx))
	assert.Equal(t, []string{"october", "early", "late"}, titles(b.Posts()))
	assert.Equal(t, []string{"early", "late"}, titles(b.ByDate("2026-11-10")))
	assert.Equal(t, []string{"early", "late"}, titles(b.ForMonth(2026, time.November)))
	assert.Len(t, b.ByStatus(model.PostDraft), 3)
	assert.Empty(t, b.ByStatus(model.PostPublished))
}

func TestPublishedAtStampedOnce(t *testing.T) {
	b, _, _ := newBoard(t)
	ctx := context.Background()
	stamp := time.Date(2026, 11, 3, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return stamp }

	p, err := b.Create(ctx, input("Teaser", "2026-11-03"))
	require.NoError(t, err)

	p, err = b.UpdateStatus(ctx, p.ID, model.PostScheduled)
	require.NoError(t, err)
	assert.Nil(t, p.PublishedAt)

	p, err = b.UpdateStatus(ctx, p.ID, model.PostPublished)
	require.NoError(t, err)
	require.NotNil(t, p.PublishedAt)
	assert.True(t, stamp.Equal(*p.PublishedAt))

	b.now = func() time.Time { return stamp.Add(time.Hour) }
	p, err = b.UpdateStatus(ctx, p.ID, model.PostPublished)
	require.NoError(t, err)
	assert.True(t, stamp.Equal(*p.PublishedAt))

	_, err = b.UpdateStatus(ctx, p.ID, model.PostDraft)
	assert.True(t, apperr.IsValidation(err))
}

func TestUpdateResetsReminderOnReschedule(t *testing.T) {
	b, s, _ := newBoard(t)
	ctx := context.Background()

	p, err := b.Create(ctx, input("Teaser", "2026-11-03"))
	require.NoError(t, err)
	require.NoError(t, s.MarkPostNotified(ctx, p.ID))

	p, err = b.Update(ctx, p.ID, model.PostInput{Notes: ptr("brand colours")})
	require.NoError(t, err)
	assert.True(t, p.NotificationSent)
	assert.Equal(t, "brand colours", *p.Notes)

	p, err = b.Update(ctx, p.ID, model.PostInput{ScheduledDate: ptr("2026-11-05"), Status: ptr(model.PostScheduled)})
	require.NoError(t, err)
	assert.False(t, p.NotificationSent)
	assert.Equal(t, model.PostScheduled, p.Status)

	require.NoError(t, b.Delete(ctx, p.ID))
	assert.Empty(t, b.Posts())
	assert.True(t, apperr.IsNotFound(b.Delete(ctx, p.ID)))
}

func TestUpdateRejectedTransitionWritesNothing(t *testing.T) {
	b, s, _ := newBoard(t)
	ctx := context.Background()

	p, err := b.Create(ctx, input("Teaser", "2026-11-03"))
	require.NoError(t, err)
	_, err = b.UpdateStatus(ctx, p.ID, model.PostScheduled)
	require.NoError(t, err)
	_, err = b.UpdateStatus(ctx, p.ID, model.PostPublished)
	require.NoError(t, err)

	_, err = b.Update(ctx, p.ID, model.PostInput{Title: ptr("New"), Status: ptr(model.PostDraft)})
	assert.True(t, apperr.IsValidation(err))

	stored, err := s.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Teaser", stored.Title)
	assert.Equal(t, model.PostPublished, stored.Status)
	assert.NotNil(t, stored.PublishedAt)
}

func TestUpdateWritesFieldsAndStatusTogether(t *testing.T) {
	b, s, _ := newBoard(t)
	ctx := context.Background()

	p, err := b.Create(ctx, input("Teaser", "2026-11-03"))
	require.NoError(t, err)
	_, err = b.UpdateStatus(ctx, p.ID, model.PostScheduled)
	require.NoError(t, err)

	p, err = b.Update(ctx, p.ID, model.PostInput{Title: ptr("Live"), Status: ptr(model.PostPublished)})
	require.NoError(t, err)
	assert.Equal(t, "Live", p.Title)
	assert.Equal(t, model.PostPublished, p.Status)
	require.NotNil(t, p.PublishedAt)

	stored, err := s.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Live", stored.Title)
	assert.Equal(t, model.PostPublished, stored.Status)
}

// staleRead serves a snapshot of a post taken before another board
// changed it.
type staleRead struct {
	Gateway
	snapshot model.SocialPost
}

func (g staleRead) GetPost(context.Context, string) (*model.SocialPost, error) {
	p := g.snapshot
	return &p, nil
}

func TestStatusChangeLosesToConcurrentWriter(t *testing.T) {
	b, s, fx := newBoard(t)
	ctx := context.Background()

	p, err := b.Create(ctx, input("Teaser", "2026-11-03"))
	require.NoError(t, err)
	scheduled, err := b.UpdateStatus(ctx, p.ID, model.PostScheduled)
	require.NoError(t, err)

	other := NewBoard(staleRead{Gateway: s, snapshot: *scheduled}, fx.Project.ID, nil)

	_, err = b.UpdateStatus(ctx, p.ID, model.PostPublished)
	require.NoError(t, err)

	_, err = other.UpdateStatus(ctx, p.ID, model.PostCancelled)
	assert.True(t, apperr.IsValidation(err))

	_, err = other.Update(ctx, p.ID, model.PostInput{Title: ptr("Renamed")})
	assert.True(t, apperr.IsValidation(err))

	stored, err := s.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PostPublished, stored.Status)
	assert.NotNil(t, stored.PublishedAt)
	assert.Equal(t, "Teaser", stored.Title)
}

type failingStatus struct {
	Gateway
}

func (failingStatus) SetPostStatus(context.Context, string, model.PostStatus, model.PostStatus, *time.Time) (*model.SocialPost, error) {
	return nil, errors.New("connection reset")
}

func TestDrop(t *testing.T) {
	b, s, fx := newBoard(t)
	ctx := context.Background()

	p, err := b.Create(ctx, input("Teaser", "2026-11-03"))
	require.NoError(t, err)

	res := b.Drop(ctx, *fx.Admin, p.ID, model.PostDraft)
	require.NoError(t, res.Err)
	assert.False(t, res.Reverted)

	res = b.Drop(ctx, *fx.Member, p.ID, model.PostScheduled)
	assert.True(t, apperr.IsPermission(res.Err))
	assert.Equal(t, model.PostDraft, b.Posts()[0].Status)

	res = b.Drop(ctx, *fx.Admin, p.ID, model.PostPublished)
	assert.True(t, apperr.IsValidation(res.Err))
	assert.True(t, res.Reverted)
	assert.Equal(t, model.PostDraft, b.Posts()[0].Status)

	res = b.Drop(ctx, *fx.Admin, p.ID, model.PostScheduled)
	require.NoError(t, res.Err)
	assert.Equal(t, model.PostScheduled, res.Post.Status)

	broken := NewBoard(failingStatus{Gateway: s}, fx.Project.ID, nil)
	require.NoError(t, broken.Fetch(ctx))
	res = broken.Drop(ctx, *fx.Admin, p.ID, model.PostPublished)
	require.Error(t, res.Err)
	assert.True(t, apperr.IsTransient(res.Err))
	assert.True(t, res.Reverted)
	assert.Equal(t, model.PostScheduled, broken.Posts()[0].Status)

	stored, err := s.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PostScheduled, stored.Status)

	res = b.Drop(ctx, *fx.Admin, "missing", model.PostDraft)
	assert.True(t, apperr.IsNotFound(res.Err))
}

func TestDuePostReminders(t *testing.T) {
	now := time.Date(2026, 11, 3, 10, 0, 0, 0, time.UTC)
	post := func(id, date string, clock *string, hours int, status model.PostStatus, sent bool) model.SocialPost {
		return model.SocialPost{
			ID: id, ScheduledDate: date, ScheduledTime: clock, NotifyBeforeHours: hours,
			Status: status, NotificationSent: sent,
		}
	}
	list := []model.SocialPost{
		post("inside", "2026-11-03", ptr("11:30"), 2, model.PostScheduled, false),
		post("boundary", "2026-11-03", ptr("12:00"), 2, model.PostScheduled, false),
		post("later", "2026-11-03", ptr("12:01"), 2, model.PostScheduled, false),
		post("past", "2026-11-03", nil, 2, model.PostScheduled, false),
		post("sent", "2026-11-03", ptr("11:00"), 2, model.PostScheduled, true),
		post("draft", "2026-11-03", ptr("11:00"), 2, model.PostDraft, false),
		post("wide", "2026-11-04", ptr("09:00"), 24, model.PostScheduled, false),
		post("garbled", "someday", nil, 2, model.PostScheduled, false),
	}

	var ids []string
	for _, p := range DuePostReminders(list, now) {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"inside", "boundary", "past", "wide"}, ids)
}

func TestNotifierSweep(t *testing.T) {
	b, s, fx := newBoard(t)
	ctx := context.Background()
	now := time.Now().UTC()

	soon := input("Soon", now.Add(time.Hour).Format("2006-01-02"))
	soon.ScheduledTime = ptr(now.Add(time.Hour).Format("15:04"))
	soon.Status = ptr(model.PostScheduled)
	far := input("Far", now.Add(48*time.Hour).Format("2006-01-02"))
	far.Status = ptr(model.PostScheduled)
	for _, in := range []model.PostInput{soon, far} {
		_, err := b.Create(ctx, in)
		require.NoError(t, err)
	}

	n := NewNotifier(s, nil)
	count, err := n.Sweep(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	inbox, err := s.ListNotifications(ctx, fx.Admin.ID, 0)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, model.NotificationProjectUpdate, inbox[0].Type)
	assert.Contains(t, inbox[0].Message, "Instagram")

	member, err := s.ListNotifications(ctx, fx.Member.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, member)

	count, err = n.Sweep(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, count)
}

type failingNotice struct {
	NoticeStore
	failures int
}

func (f *failingNotice) CreateNotification(ctx context.Context, n model.Notification) (*model.Notification, error) {
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("database is locked")
	}
	return f.NoticeStore.CreateNotification(ctx, n)
}

func TestNotifierKeepsPostWhenNoAdminReached(t *testing.T) {
	b, s, fx := newBoard(t)
	ctx := context.Background()
	now := time.Now().UTC()

	soon := input("Soon", now.Add(time.Hour).Format("2006-01-02"))
	soon.ScheduledTime = ptr(now.Add(time.Hour).Format("15:04"))
	soon.Status = ptr(model.PostScheduled)
	p, err := b.Create(ctx, soon)
	require.NoError(t, err)

	admins, err := s.ListAdmins(ctx)
	require.NoError(t, err)
	flaky := &failingNotice{NoticeStore: s, failures: len(admins)}
	n := NewNotifier(flaky, nil)

	count, err := n.Sweep(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, count)

	stored, err := s.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, stored.NotificationSent)

	count, err = n.Sweep(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	stored, err = s.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, stored.NotificationSent)

	inbox, err := s.ListNotifications(ctx, fx.Admin.ID, 0)
	require.NoError(t, err)
	assert.Len(t, inbox, 1)
}
