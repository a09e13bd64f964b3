package comments

import (
	"context"
	"errors"
	"sync/atomic"
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

type harness struct {
	store *store.SQLiteStore
	reg   *realtime.Registry
	fx    testutil.Fixture
}

func newHarness(t *testing.T) harness {
	t.Helper()
	s := testutil.NewTestStore(t)
	reg := realtime.NewRegistry(s.Feed())
	t.Cleanup(reg.Close)
	return harness{store: s, reg: reg, fx: testutil.Seed(t, s)}
}

func (h harness) thread(actor model.Profile) *Thread {
	return NewThread(h.store, h.reg, h.fx.Project.ID, actor, nil)
}

func TestBuildTree(t *testing.T) {
	a, b := "a", "b"
	tops := []model.Comment{{ID: "b"}, {ID: "a"}}
	replies := []model.Comment{
		{ID: "r1", ParentID: &a},
		{ID: "r2", ParentID: &b},
		{ID: "r3", ParentID: &a},
		{ID: "orphan", ParentID: new(string)},
	}

	tree := BuildTree(tops, replies)
	require.Len(t, tree, 2)
	assert.Equal(t, "b", tree[0].ID)
	assert.Equal(t, []string{"r2"}, ids(tree[0].Replies))
	assert.Equal(t, []string{"r1", "r3"}, ids(tree[1].Replies))
}

func ids(cs []model.Comment) []string {
	out := []string{}
	for _, c := range cs {
		out = append(out, c.ID)
	}
	return out
}

func TestThreadAddAndReply(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	admin := h.thread(*h.fx.Admin)
	defer admin.Close()
	require.NoError(t, admin.Fetch(ctx))
	assert.Empty(t, admin.Snapshot().Comments)

	top, err := admin.AddComment(ctx, "  kickoff notes  ", nil, []string{h.fx.Member.ID, h.fx.Admin.ID})
	require.NoError(t, err)
	assert.Equal(t, "kickoff notes", top.Content)
	require.Len(t, admin.Snapshot().Comments, 1)

	// The mentioned member is notified; the author is not.
	inbox, err := h.store.ListNotifications(ctx, h.fx.Member.ID, 0)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, model.NotificationMention, inbox[0].Type)
	own, err := h.store.ListNotifications(ctx, h.fx.Admin.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, own)

	member := h.thread(*h.fx.Member)
	defer member.Close()
	_, err = member.AddComment(ctx, "on it", &top.ID, nil)
	require.NoError(t, err)

	own, err = h.store.ListNotifications(ctx, h.fx.Admin.ID, 0)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, model.NotificationComment, own[0].Type)

	require.NoError(t, member.Fetch(ctx))
	snap := member.Snapshot()
	require.Len(t, snap.Comments, 1)
	require.Len(t, snap.Comments[0].Replies, 1)
	assert.Equal(t, "on it", snap.Comments[0].Replies[0].Content)
}

func TestThreadRejectsInvalidComments(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	th := h.thread(*h.fx.Admin)

	_, err := th.AddComment(ctx, "   ", nil, nil)
	assert.True(t, apperr.IsValidation(err))

	missing := "nope"
	_, err = th.AddComment(ctx, "hello", &missing, nil)
	assert.True(t, apperr.IsNotFound(err))

	top, err := th.AddComment(ctx, "top", nil, nil)
	require.NoError(t, err)
	reply, err := th.AddComment(ctx, "reply", &top.ID, nil)
	require.NoError(t, err)

	_, err = th.AddComment(ctx, "nested", &reply.ID, nil)
	assert.True(t, apperr.IsValidation(err))
}

func TestThreadOwnershipRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	other := testutil.MustProfile(t, h.store, "Olga Other", "olga@client.test", model.RoleClient)

	member := h.thread(*h.fx.Member)
	c, err := member.AddComment(ctx, "draft idea", nil, nil)
	require.NoError(t, err)

	stranger := h.thread(*other)
	_, err = stranger.UpdateComment(ctx, c.ID, "hijack")
	assert.True(t, apperr.IsPermission(err))
	assert.True(t, apperr.IsPermission(stranger.DeleteComment(ctx, c.ID)))

	updated, err := member.UpdateComment(ctx, c.ID, "final idea")
	require.NoError(t, err)
	assert.True(t, updated.IsEdited)
	assert.Equal(t, "final idea", member.Snapshot().Comments[0].Content)

	_, err = member.UpdateComment(ctx, "missing", "x")
	assert.True(t, apperr.IsNotFound(err))

	admin := h.thread(*h.fx.Admin)
	require.NoError(t, admin.Fetch(ctx))
	require.NoError(t, admin.DeleteComment(ctx, c.ID))
	assert.Empty(t, admin.Snapshot().Comments)
}

func TestThreadRefetchesOnChange(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	viewer := h.thread(*h.fx.Member)
	defer viewer.Close()
	require.NoError(t, viewer.Fetch(ctx))
	require.NoError(t, viewer.Subscribe(ctx))

	author := h.thread(*h.fx.Admin)
	top, err := author.AddComment(ctx, "new brief", nil, nil)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return len(viewer.Snapshot().Comments) == 1 }, time.Second, 5*time.Millisecond)

	_, err = author.AddComment(ctx, "details", &top.ID, nil)
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		cs := viewer.Snapshot().Comments
		return len(cs) == 1 && len(cs[0].Replies) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, author.DeleteComment(ctx, top.ID))
	assert.Eventually(t, func() bool { return len(viewer.Snapshot().Comments) == 0 }, time.Second, 5*time.Millisecond)
}

type brokenNotifications struct {
	Gateway
}

func (brokenNotifications) CreateNotification(context.Context, model.Notification) (*model.Notification, error) {
	return nil, errors.New("disk full")
}

func TestThreadNotificationFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	th := NewThread(brokenNotifications{Gateway: h.store}, h.reg, h.fx.Project.ID, *h.fx.Admin, nil)

	c, err := th.AddComment(context.Background(), "@carl see this", nil, []string{h.fx.Member.ID})
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
}

// pauseFirstList holds the first top-level read until release is closed.
type pauseFirstList struct {
	Gateway
	calls   *atomic.Int32
	read    chan struct{}
	release chan struct{}
}

func (p pauseFirstList) ListTopLevelComments(ctx context.Context, projectID string) ([]model.Comment, error) {
	tops, err := p.Gateway.ListTopLevelComments(ctx, projectID)
	if p.calls.Add(1) == 1 {
		close(p.read)
		<-p.release
	}
	return tops, err
}

func TestThreadDropsStaleFetch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	gw := pauseFirstList{Gateway: h.store, calls: &atomic.Int32{}, read: make(chan struct{}), release: make(chan struct{})}
	viewer := NewThread(gw, h.reg, h.fx.Project.ID, *h.fx.Member, nil)
	defer viewer.Close()

	stale := make(chan error, 1)
	go func() { stale <- viewer.Fetch(ctx) }()
	<-gw.read

	_, err := h.thread(*h.fx.Admin).AddComment(ctx, "fresh", nil, nil)
	require.NoError(t, err)
	require.NoError(t, viewer.Fetch(ctx))
	require.Len(t, viewer.Snapshot().Comments, 1)

	close(gw.release)
	require.NoError(t, <-stale)

	snap := viewer.Snapshot()
	require.Len(t, snap.Comments, 1)
	assert.Equal(t, "fresh", snap.Comments[0].Content)
	assert.False(t, snap.Loading)
}

func TestThreadLocalDeleteWinsOverEarlierFetch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	author := h.thread(*h.fx.Admin)
	c, err := author.AddComment(ctx, "to remove", nil, nil)
	require.NoError(t, err)

	gw := pauseFirstList{Gateway: h.store, calls: &atomic.Int32{}, read: make(chan struct{}), release: make(chan struct{})}
	admin := NewThread(gw, h.reg, h.fx.Project.ID, *h.fx.Admin, nil)
	defer admin.Close()

	stale := make(chan error, 1)
	go func() { stale <- admin.Fetch(ctx) }()
	<-gw.read

	require.NoError(t, admin.DeleteComment(ctx, c.ID))
	close(gw.release)
	require.NoError(t, <-stale)

	assert.Empty(t, admin.Snapshot().Comments)
}
