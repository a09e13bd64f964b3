// Package notify keeps the signed-in user's notification list in sync
// with the backend and its live feed.
package notify

import (
	"slices"
	"time"

	"github.com/nhle/epikom-hub/internal/model"
)

// EventKind selects a reducer transition.
type EventKind int

const (
	Loaded EventKind = iota
	Inserted
	Read
	AllRead
	Removed
	Cleared
)

func (k EventKind) String() string {
	switch k {
	case Loaded:
		return "loaded"
	case Inserted:
		return "inserted"
	case Read:
		return "read"
	case AllRead:
		return "all_read"
	case Removed:
		return "removed"
	case Cleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// Event is one input to the reducer. Loaded uses Items and Since,
// Inserted uses Item, Read and Removed use ID. AllRead and Cleared use At
// to bound the rows they covered on the backend.
type Event struct {
	Kind  EventKind
	Items []model.Notification
	Item  model.Notification
	ID    string
	Since uint64
	At    time.Time
}

// loggedEvent is an event applied while a load was in flight.
type loggedEvent struct {
	seq uint64
	ev  Event
}

// reducer owns the list and the unread count. Every state change goes
// through apply, which keeps unread equal to the number of unread items.
//
// While loads are in flight every other event is logged, and a Loaded
// result replays the events logged after its load began, so a push that
// races a fetch survives whichever finishes first.
type reducer struct {
	items      []model.Notification
	unread     int
	tombstones map[string]struct{}

	seq      uint64
	inflight int
	log      []loggedEvent
}

func newReducer() *reducer {
	return &reducer{tombstones: make(map[string]struct{})}
}

// begin marks the start of a load and returns the token to pass as Since
// in the matching Loaded event.
func (r *reducer) begin() uint64 {
	r.inflight++
	return r.seq
}

// abort ends a load that produced no result.
func (r *reducer) abort() {
	r.finish()
}

func (r *reducer) finish() {
	if r.inflight > 0 {
		r.inflight--
	}
	if r.inflight == 0 {
		r.log = nil
	}
}

// apply runs ev and reports whether the state changed.
func (r *reducer) apply(ev Event) bool {
	if ev.Kind == Loaded {
		r.load(ev)
		return true
	}
	if r.inflight > 0 {
		r.seq++
		r.log = append(r.log, loggedEvent{seq: r.seq, ev: ev})
	}
	return r.step(ev)
}

// load replaces the list with ev.Items minus tombstoned rows, then
// replays what happened since the load began.
func (r *reducer) load(ev Event) {
	r.items = make([]model.Notification, 0, len(ev.Items))
	for _, n := range ev.Items {
		if _, gone := r.tombstones[n.ID]; !gone {
			r.items = append(r.items, n)
		}
	}
	for _, le := range r.log {
		if le.seq > ev.Since {
			r.step(le.ev)
		}
	}
	slices.SortStableFunc(r.items, func(a, b model.Notification) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	r.recount()
	r.finish()
}

func (r *reducer) recount() {
	r.unread = 0
	for _, n := range r.items {
		if !n.IsRead {
			r.unread++
		}
	}
}

func (r *reducer) step(ev Event) bool {
	switch ev.Kind {
	case Inserted:
		if ev.Item.ID == "" {
			return false
		}
		if _, gone := r.tombstones[ev.Item.ID]; gone {
			return false
		}
		if r.index(ev.Item.ID) >= 0 {
			return false
		}
		r.items = append([]model.Notification{ev.Item}, r.items...)
		if !ev.Item.IsRead {
			r.unread++
		}
		return true

	case Read:
		i := r.index(ev.ID)
		if i < 0 || r.items[i].IsRead {
			return false
		}
		r.items[i].IsRead = true
		r.unread = max(0, r.unread-1)
		return true

	case AllRead:
		changed := false
		for i := range r.items {
			if !r.items[i].IsRead && covers(ev.At, r.items[i]) {
				r.items[i].IsRead = true
				changed = true
			}
		}
		r.recount()
		return changed

	case Removed:
		r.tombstones[ev.ID] = struct{}{}
		i := r.index(ev.ID)
		if i < 0 {
			return false
		}
		if !r.items[i].IsRead {
			r.unread = max(0, r.unread-1)
		}
		r.items = append(r.items[:i], r.items[i+1:]...)
		return true

	case Cleared:
		kept := r.items[:0]
		for _, n := range r.items {
			if covers(ev.At, n) {
				r.tombstones[n.ID] = struct{}{}
				continue
			}
			kept = append(kept, n)
		}
		changed := len(kept) != len(r.items)
		r.items = kept
		r.recount()
		return changed
	}
	return false
}

// covers reports whether a bulk operation at at reached n. A zero at
// covers everything.
func covers(at time.Time, n model.Notification) bool {
	return at.IsZero() || !n.CreatedAt.After(at)
}

func (r *reducer) index(id string) int {
	for i, n := range r.items {
		if n.ID == id {
			return i
		}
	}
	return -1
}

func (r *reducer) find(id string) (model.Notification, bool) {
	if i := r.index(id); i >= 0 {
		return r.items[i], true
	}
	return model.Notification{}, false
}

// Icon returns the glyph shown next to a notification of type t.
func Icon(t model.NotificationType) string {
	switch t {
	case model.NotificationMention:
		return "💬"
	case model.NotificationComment:
		return "🗨️"
	case model.NotificationFileUpload:
		return "📎"
	case model.NotificationProjectUpdate:
		return "📋"
	case model.NotificationDeadline:
		return "⏰"
	default:
		return "🔔"
	}
}
