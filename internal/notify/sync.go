package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/epikom-hub/internal/apperr"
	"github.com/nhle/epikom-hub/internal/model"
	"github.com/nhle/epikom-hub/internal/realtime"
)

const (
	// FetchLimit is the number of newest notifications loaded.
	FetchLimit = 50

	loadTimeout = 5 * time.Second

	table = "notifications"
)

// Gateway is the slice of the persistence gateway used by Sync.
type Gateway interface {
	ListNotifications(ctx context.Context, userID string, limit int) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) (int, error)
	DeleteNotification(ctx context.Context, id string) error
	DeleteAllNotifications(ctx context.Context, userID string) (int, error)
}

// Subscriber opens live feeds. *realtime.Registry satisfies it.
type Subscriber interface {
	Subscribe(ctx context.Context, scope realtime.Scope, handler func(realtime.Event)) (func(), error)
}

// Snapshot is a copy of the sync state.
type Snapshot struct {
	Items   []model.Notification
	Unread  int
	Loading bool
	Err     error
}

// Sync mirrors one user's notifications. It is safe for concurrent use;
// the mutex is never held across gateway calls.
type Sync struct {
	gw      Gateway
	feeds   Subscriber
	userID  string
	log     *zap.Logger
	timeout time.Duration

	mu      sync.Mutex
	state   *reducer
	loading bool
	err     error
	unsub   func()
	closed  bool

	changed chan struct{}
}

// NewSync creates a Sync for userID.
func NewSync(gw Gateway, feeds Subscriber, userID string, log *zap.Logger) *Sync {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sync{
		gw:      gw,
		feeds:   feeds,
		userID:  userID,
		log:     log.With(zap.String("user_id", userID)),
		timeout: loadTimeout,
		state:   newReducer(),
		changed: make(chan struct{}, 1),
	}
}

// Changes signals after each state change. Signals coalesce.
func (s *Sync) Changes() <-chan struct{} {
	return s.changed
}

func (s *Sync) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

func (s *Sync) apply(ev Event) {
	s.mu.Lock()
	changed := s.state.apply(ev)
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// Initialize loads the newest notifications. The fetch gives up after
// five seconds with a TransientIOError and loading cleared. Live events
// that arrive while the fetch runs are merged into its result.
func (s *Sync) Initialize(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	since := s.state.begin()
	s.mu.Unlock()
	s.notify()

	lctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	items, err := s.gw.ListNotifications(lctx, s.userID, FetchLimit)
	if err == nil && lctx.Err() != nil {
		err = lctx.Err()
	}

	s.mu.Lock()
	if err != nil {
		s.state.abort()
		s.loading = s.state.inflight > 0
		err = apperr.Transient("loading notifications", err)
		s.err = err
		s.mu.Unlock()
		s.notify()
		s.log.Warn("loading notifications", zap.Error(err))
		return err
	}
	s.err = nil
	s.state.apply(Event{Kind: Loaded, Items: items, Since: since})
	s.loading = s.state.inflight > 0
	s.mu.Unlock()
	s.notify()
	return nil
}

// Refetch reloads the list without touching the live feed.
func (s *Sync) Refetch(ctx context.Context) error {
	return s.Initialize(ctx)
}

// Subscribe joins the live feed of the user's notifications. Inserts are
// merged through the reducer; a reconnect triggers a refetch.
func (s *Sync) Subscribe(ctx context.Context) error {
	s.mu.Lock()
	if s.unsub != nil || s.closed {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	unsub, err := s.feeds.Subscribe(ctx, realtime.Filtered(table, "user_id", s.userID), s.handle)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.unsub != nil || s.closed {
		s.mu.Unlock()
		unsub()
		return nil
	}
	s.unsub = unsub
	s.mu.Unlock()
	return nil
}

func (s *Sync) handle(ev realtime.Event) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}

	switch ev.Op {
	case realtime.OpInsert:
		var n model.Notification
		if err := ev.Decode(&n); err != nil {
			s.log.Warn("dropping notification event", zap.Error(err))
			return
		}
		s.apply(Event{Kind: Inserted, Item: n})

	case realtime.OpUpdate:
		var n model.Notification
		if err := ev.Decode(&n); err == nil && n.IsRead {
			s.apply(Event{Kind: Read, ID: ev.ID})
		}

	case realtime.OpDelete:
		s.apply(Event{Kind: Removed, ID: ev.ID})

	case realtime.OpResync:
		go func() {
			if err := s.Refetch(context.Background()); err != nil {
				s.log.Warn("refetch after reconnect", zap.Error(err))
			}
		}()
	}
}

// MarkAsRead marks one notification read, backend first. On failure the
// local state is left as it was.
func (s *Sync) MarkAsRead(ctx context.Context, id string) error {
	s.mu.Lock()
	n, ok := s.state.find(id)
	s.mu.Unlock()
	if ok && n.IsRead {
		return nil
	}

	if err := s.gw.MarkNotificationRead(ctx, id); err != nil {
		return apperr.Transient("marking notification read", err)
	}
	s.apply(Event{Kind: Read, ID: id})
	return nil
}

// MarkAllAsRead marks every unread notification of the user read.
func (s *Sync) MarkAllAsRead(ctx context.Context) error {
	at := time.Now().UTC()
	if _, err := s.gw.MarkAllNotificationsRead(ctx, s.userID); err != nil {
		return apperr.Transient("marking all notifications read", err)
	}
	s.apply(Event{Kind: AllRead, At: at})
	return nil
}

// Delete removes one notification, backend first.
func (s *Sync) Delete(ctx context.Context, id string) error {
	if err := s.gw.DeleteNotification(ctx, id); err != nil {
		return apperr.Transient("deleting notification", err)
	}
	s.apply(Event{Kind: Removed, ID: id})
	return nil
}

// ClearAll removes every notification of the user.
func (s *Sync) ClearAll(ctx context.Context) error {
	at := time.Now().UTC()
	if _, err := s.gw.DeleteAllNotifications(ctx, s.userID); err != nil {
		return apperr.Transient("clearing notifications", err)
	}
	s.apply(Event{Kind: Cleared, At: at})
	return nil
}

// Snapshot returns a copy of the current state.
func (s *Sync) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]model.Notification, len(s.state.items))
	copy(items, s.state.items)
	return Snapshot{
		Items:   items,
		Unread:  s.state.unread,
		Loading: s.loading,
		Err:     s.err,
	}
}

// Close leaves the live feed. Later feed events are dropped.
func (s *Sync) Close() {
	s.mu.Lock()
	unsub := s.unsub
	s.unsub = nil
	s.closed = true
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}
