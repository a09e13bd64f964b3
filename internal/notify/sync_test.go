package notify

import (
	"context"
	"encoding/json"
	"errors"
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
	store  *store.SQLiteStore
	fanout *realtime.Fanout
	reg    *realtime.Registry
	fx     testutil.Fixture
}

func newHarness(t *testing.T) harness {
	t.Helper()
	fanout := realtime.NewFanout()
	s := testutil.NewTestStore(t, store.WithFanout(fanout))
	reg := realtime.NewRegistry(s.Feed())
	t.Cleanup(reg.Close)
	return harness{store: s, fanout: fanout, reg: reg, fx: testutil.Seed(t, s)}
}

func (h harness) notifyMember(t *testing.T, title string) *model.Notification {
	t.Helper()
	n, err := h.store.CreateNotification(context.Background(), model.Notification{
		UserID: h.fx.Member.ID, Type: model.NotificationComment, Title: title, Message: title,
		ActorID: &h.fx.Admin.ID,
	})
	require.NoError(t, err)
	return n
}

func TestSyncInitializeAndLiveInsert(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.notifyMember(t, "before")

	s := NewSync(h.store, h.reg, h.fx.Member.ID, nil)
	defer s.Close()
	require.NoError(t, s.Initialize(ctx))
	require.NoError(t, s.Subscribe(ctx))
	require.NoError(t, s.Subscribe(ctx))
	assert.Equal(t, 1, h.reg.ActiveScopes())

	snap := s.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 1, snap.Unread)
	assert.False(t, snap.Loading)

	live := h.notifyMember(t, "live")
	assert.Eventually(t, func() bool { return len(s.Snapshot().Items) == 2 }, time.Second, 5*time.Millisecond)

	snap = s.Snapshot()
	assert.Equal(t, live.ID, snap.Items[0].ID)
	assert.Equal(t, 2, snap.Unread)
	require.NotNil(t, snap.Items[0].Actor)
	assert.Equal(t, "Ada Admin", snap.Items[0].Actor.FullName)

	// Refetching after the live insert yields the same list.
	require.NoError(t, s.Refetch(ctx))
	assert.Len(t, s.Snapshot().Items, 2)
	assert.Equal(t, 2, s.Snapshot().Unread)
}

func TestSyncMarkAsReadAndDelete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.notifyMember(t, "a")
	b := h.notifyMember(t, "b")
	h.notifyMember(t, "c")

	s := NewSync(h.store, h.reg, h.fx.Member.ID, nil)
	defer s.Close()
	require.NoError(t, s.Initialize(ctx))
	require.NoError(t, s.Subscribe(ctx))

	require.NoError(t, s.MarkAsRead(ctx, a.ID))
	require.NoError(t, s.MarkAsRead(ctx, a.ID))
	assert.Equal(t, 2, s.Snapshot().Unread)

	require.NoError(t, s.Delete(ctx, a.ID))
	assert.Equal(t, 2, s.Snapshot().Unread)
	require.NoError(t, s.Delete(ctx, b.ID))
	assert.Equal(t, 1, s.Snapshot().Unread)

	// A late insert event for a deleted id is ignored.
	row, err := json.Marshal(b)
	require.NoError(t, err)
	h.fanout.Publish(realtime.Event{
		Origin: "elsewhere", Seq: 1, Table: store.TableNotifications, Op: realtime.OpInsert,
		ID: b.ID, Columns: map[string]string{"user_id": h.fx.Member.ID}, New: row,
	})
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, s.Snapshot().Items, 1)

	require.NoError(t, s.MarkAllAsRead(ctx))
	assert.Zero(t, s.Snapshot().Unread)

	require.NoError(t, s.ClearAll(ctx))
	snap := s.Snapshot()
	assert.Empty(t, snap.Items)
	assert.Zero(t, snap.Unread)

	list, err := h.store.ListNotifications(ctx, h.fx.Member.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

type failingGateway struct {
	Gateway
	err error
}

func (f failingGateway) MarkNotificationRead(context.Context, string) error { return f.err }
func (f failingGateway) DeleteNotification(context.Context, string) error   { return f.err }

func TestSyncFailedMutationKeepsState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.notifyMember(t, "a")

	s := NewSync(failingGateway{Gateway: h.store, err: errors.New("connection reset")}, h.reg, h.fx.Member.ID, nil)
	defer s.Close()
	require.NoError(t, s.Initialize(ctx))

	err := s.MarkAsRead(ctx, a.ID)
	require.Error(t, err)
	assert.True(t, apperr.IsTransient(err))
	assert.Equal(t, 1, s.Snapshot().Unread)

	require.Error(t, s.Delete(ctx, a.ID))
	assert.Len(t, s.Snapshot().Items, 1)
}

type blockingGateway struct {
	Gateway
}

func (blockingGateway) ListNotifications(ctx context.Context, _ string, _ int) ([]model.Notification, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestSyncInitializeTimeout(t *testing.T) {
	h := newHarness(t)
	s := NewSync(blockingGateway{Gateway: h.store}, h.reg, h.fx.Member.ID, nil)
	s.timeout = 20 * time.Millisecond

	err := s.Initialize(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.IsTransient(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	snap := s.Snapshot()
	assert.False(t, snap.Loading)
	assert.Error(t, snap.Err)
}

func TestSyncCloseDropsEvents(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	s := NewSync(h.store, h.reg, h.fx.Member.ID, nil)
	require.NoError(t, s.Initialize(ctx))
	require.NoError(t, s.Subscribe(ctx))
	s.Close()
	assert.Equal(t, 0, h.reg.ActiveScopes())

	h.notifyMember(t, "after close")
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, s.Snapshot().Items)
}

// pausedList returns the rows it read, but only after release is closed.
type pausedList struct {
	Gateway
	read    chan struct{}
	release chan struct{}
}

func (p pausedList) ListNotifications(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	items, err := p.Gateway.ListNotifications(ctx, userID, limit)
	close(p.read)
	<-p.release
	return items, err
}

func TestSyncKeepsInsertPushedDuringFetch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.notifyMember(t, "a")

	gw := pausedList{Gateway: h.store, read: make(chan struct{}), release: make(chan struct{})}
	s := NewSync(gw, h.reg, h.fx.Member.ID, nil)
	defer s.Close()
	require.NoError(t, s.Subscribe(ctx))

	done := make(chan error, 1)
	go func() { done <- s.Initialize(ctx) }()
	<-gw.read

	b := h.notifyMember(t, "b")
	assert.Eventually(t, func() bool { return len(s.Snapshot().Items) == 1 }, time.Second, 5*time.Millisecond)

	close(gw.release)
	require.NoError(t, <-done)

	snap := s.Snapshot()
	ids := []string{}
	for _, n := range snap.Items {
		ids = append(ids, n.ID)
	}
	assert.ElementsMatch(t, []string{a.ID, b.ID}, ids)
	assert.Equal(t, 2, snap.Unread)
	assert.False(t, snap.Loading)
}
