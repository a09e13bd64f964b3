// Package comments keeps a project's two-level comment thread in sync
// with the backend and its live feed.
package comments

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/epikom-hub/internal/apperr"
	"github.com/nhle/epikom-hub/internal/model"
	"github.com/nhle/epikom-hub/internal/realtime"
)

const (
	loadTimeout = 5 * time.Second
	table       = "comments"
	excerptLen  = 80
)

// Gateway is the slice of the persistence gateway used by Thread.
type Gateway interface {
	CreateComment(ctx context.Context, c model.Comment) (*model.Comment, error)
	GetComment(ctx context.Context, id string) (*model.Comment, error)
	ListTopLevelComments(ctx context.Context, projectID string) ([]model.Comment, error)
	ListReplies(ctx context.Context, projectID string) ([]model.Comment, error)
	UpdateComment(ctx context.Context, id, content string) (*model.Comment, error)
	DeleteComment(ctx context.Context, id string) error
	CreateNotification(ctx context.Context, n model.Notification) (*model.Notification, error)
}

// Subscriber opens live feeds. *realtime.Registry satisfies it.
type Subscriber interface {
	Subscribe(ctx context.Context, scope realtime.Scope, handler func(realtime.Event)) (func(), error)
}

// Snapshot is a copy of the thread state.
type Snapshot struct {
	Comments []model.Comment
	Loading  bool
	Err      error
}

// Thread mirrors the comments of one project for one acting user.
type Thread struct {
	gw        Gateway
	feeds     Subscriber
	projectID string
	actor     model.Profile
	log       *zap.Logger
	timeout   time.Duration

	mu       sync.Mutex
	comments []model.Comment
	loading  bool
	err      error
	unsub    func()
	closed   bool

	// version orders fetches and local mutations; applied is the version
	// the current comments reflect.
	version  uint64
	applied  uint64
	fetching int

	changed chan struct{}
}

// NewThread creates a Thread for projectID acting as actor.
func NewThread(gw Gateway, feeds Subscriber, projectID string, actor model.Profile, log *zap.Logger) *Thread {
	if log == nil {
		log = zap.NewNop()
	}
	return &Thread{
		gw:        gw,
		feeds:     feeds,
		projectID: projectID,
		actor:     actor,
		log:       log.With(zap.String("project_id", projectID)),
		timeout:   loadTimeout,
		changed:   make(chan struct{}, 1),
	}
}

// Changes signals after each state change. Signals coalesce.
func (t *Thread) Changes() <-chan struct{} {
	return t.changed
}

func (t *Thread) notify() {
	select {
	case t.changed <- struct{}{}:
	default:
	}
}

// Fetch loads the top-level comments newest first, each with its replies
// oldest first, and replaces the local state. A result older than the
// state already shown is dropped.
func (t *Thread) Fetch(ctx context.Context) error {
	t.mu.Lock()
	t.version++
	mine := t.version
	t.fetching++
	t.loading = true
	t.mu.Unlock()
	t.notify()

	lctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	tree, err := t.load(lctx)

	t.mu.Lock()
	t.fetching--
	t.loading = t.fetching > 0
	switch {
	case err != nil:
		t.err = apperr.Transient("loading comments", err)
		err = t.err
	case mine > t.applied:
		t.err = nil
		t.comments = tree
		t.applied = mine
	}
	t.mu.Unlock()
	t.notify()

	if err != nil {
		t.log.Warn("loading comments", zap.Error(err))
	}
	return err
}

// touch records a local mutation so fetches started before it are
// dropped. The caller holds t.mu.
func (t *Thread) touch() {
	t.version++
	t.applied = t.version
}

func (t *Thread) load(ctx context.Context) ([]model.Comment, error) {
	tops, err := t.gw.ListTopLevelComments(ctx, t.projectID)
	if err != nil {
		return nil, err
	}
	replies, err := t.gw.ListReplies(ctx, t.projectID)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return BuildTree(tops, replies), nil
}

// BuildTree attaches replies (oldest first) to their top-level parents.
// Replies whose parent is not in tops are dropped.
func BuildTree(tops, replies []model.Comment) []model.Comment {
	byParent := make(map[string][]model.Comment, len(tops))
	for _, r := range replies {
		if r.ParentID == nil {
			continue
		}
		byParent[*r.ParentID] = append(byParent[*r.ParentID], r)
	}

	tree := make([]model.Comment, 0, len(tops))
	for _, c := range tops {
		c.Replies = byParent[c.ID]
		if c.Replies == nil {
			c.Replies = []model.Comment{}
		}
		tree = append(tree, c)
	}
	return tree
}

// Subscribe joins the project's live comment feed. Any change refetches
// the whole thread.
func (t *Thread) Subscribe(ctx context.Context) error {
	t.mu.Lock()
	if t.unsub != nil || t.closed {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	unsub, err := t.feeds.Subscribe(ctx, realtime.Filtered(table, "project_id", t.projectID), t.handle)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if t.unsub != nil || t.closed {
		t.mu.Unlock()
		unsub()
		return nil
	}
	t.unsub = unsub
	t.mu.Unlock()
	return nil
}

func (t *Thread) handle(realtime.Event) {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return
	}
	if err := t.Fetch(context.Background()); err != nil {
		t.log.Warn("refetch after change", zap.Error(err))
	}
}

// AddComment posts content as the acting user, as a reply when parentID
// is set. Replies to replies are rejected. Mentioned users and the author
// of the parent comment are notified.
func (t *Thread) AddComment(
	ctx context.Context, content string, parentID *string, mentions []string,
) (*model.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.Invalid("content", "comment must not be empty")
	}

	var parent *model.Comment
	if parentID != nil && *parentID != "" {
		p, err := t.gw.GetComment(ctx, *parentID)
		if err != nil {
			return nil, apperr.Transient("loading parent comment", err)
		}
		if p.IsReply() {
			return nil, apperr.Invalid("parent_id", "replies cannot be nested")
		}
		if p.ProjectID != t.projectID {
			return nil, apperr.Invalid("parent_id", "parent belongs to another project")
		}
		parent = p
	} else {
		parentID = nil
	}

	created, err := t.gw.CreateComment(ctx, model.Comment{
		ProjectID: t.projectID,
		UserID:    t.actor.ID,
		ParentID:  parentID,
		Content:   content,
		Mentions:  mentions,
	})
	if err != nil {
		return nil, apperr.Transient("adding comment", err)
	}

	if parent == nil {
		t.mu.Lock()
		t.touch()
		if indexOf(t.comments, created.ID) < 0 {
			c := *created
			c.Replies = []model.Comment{}
			t.comments = append([]model.Comment{c}, t.comments...)
		}
		t.mu.Unlock()
		t.notify()
	}

	t.notifyParticipants(ctx, created, parent)
	return created, nil
}

func (t *Thread) notifyParticipants(ctx context.Context, c *model.Comment, parent *model.Comment) {
	link := "/projects/" + t.projectID
	projectID := t.projectID
	actorID := t.actor.ID
	text := excerpt(c.Content)

	notified := map[string]bool{t.actor.ID: true}
	var pending []model.Notification
	for _, uid := range c.Mentions {
		if notified[uid] {
			continue
		}
		notified[uid] = true
		pending = append(pending, model.Notification{
			UserID:    uid,
			Type:      model.NotificationMention,
			Title:     fmt.Sprintf("%s mentioned you", t.actor.FullName),
			Message:   text,
			Link:      &link,
			ProjectID: &projectID,
			ActorID:   &actorID,
		})
	}
	if parent != nil && !notified[parent.UserID] {
		pending = append(pending, model.Notification{
			UserID:    parent.UserID,
			Type:      model.NotificationComment,
			Title:     fmt.Sprintf("%s replied to your comment", t.actor.FullName),
			Message:   text,
			Link:      &link,
			ProjectID: &projectID,
			ActorID:   &actorID,
		})
	}

	for _, n := range pending {
		if _, err := t.gw.CreateNotification(ctx, n); err != nil {
			t.log.Warn("notifying comment participant",
				zap.String("comment_id", c.ID),
				zap.String("user_id", n.UserID),
				zap.Error(err),
			)
		}
	}
}

// UpdateComment replaces the content of a comment owned by the acting
// user, or any comment when the actor is an admin.
func (t *Thread) UpdateComment(ctx context.Context, id, content string) (*model.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.Invalid("content", "comment must not be empty")
	}
	if _, err := t.authorize(ctx, id, "edit comment"); err != nil {
		return nil, err
	}

	updated, err := t.gw.UpdateComment(ctx, id, content)
	if err != nil {
		return nil, apperr.Transient("updating comment", err)
	}

	t.mu.Lock()
	t.touch()
	t.comments = replace(t.comments, *updated)
	t.mu.Unlock()
	t.notify()
	return updated, nil
}

// DeleteComment removes a comment owned by the acting user, or any
// comment when the actor is an admin. Replies go with their parent.
func (t *Thread) DeleteComment(ctx context.Context, id string) error {
	if _, err := t.authorize(ctx, id, "delete comment"); err != nil {
		return err
	}
	if err := t.gw.DeleteComment(ctx, id); err != nil {
		return apperr.Transient("deleting comment", err)
	}

	t.mu.Lock()
	t.touch()
	t.comments = remove(t.comments, id)
	t.mu.Unlock()
	t.notify()
	return nil
}

func (t *Thread) authorize(ctx context.Context, id, action string) (*model.Comment, error) {
	c, err := t.gw.GetComment(ctx, id)
	if err != nil {
		return nil, apperr.Transient("loading comment", err)
	}
	if !CanModify(t.actor, *c) {
		return nil, apperr.Forbidden(action)
	}
	return c, nil
}

// CanModify reports whether actor may edit or delete c.
func CanModify(actor model.Profile, c model.Comment) bool {
	return actor.IsAdmin() || c.UserID == actor.ID
}

// Snapshot returns a copy of the current thread.
func (t *Thread) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.Comment, len(t.comments))
	for i, c := range t.comments {
		c.Replies = append([]model.Comment(nil), c.Replies...)
		out[i] = c
	}
	return Snapshot{Comments: out, Loading: t.loading, Err: t.err}
}

// Close leaves the live feed. Later feed events are dropped.
func (t *Thread) Close() {
	t.mu.Lock()
	unsub := t.unsub
	t.unsub = nil
	t.closed = true
	t.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func indexOf(list []model.Comment, id string) int {
	for i, c := range list {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func replace(list []model.Comment, updated model.Comment) []model.Comment {
	for i := range list {
		if list[i].ID == updated.ID {
			updated.Replies = list[i].Replies
			list[i] = updated
			return list
		}
		for j := range list[i].Replies {
			if list[i].Replies[j].ID == updated.ID {
				list[i].Replies[j] = updated
				return list
			}
		}
	}
	return list
}

func remove(list []model.Comment, id string) []model.Comment {
	if i := indexOf(list, id); i >= 0 {
		return append(list[:i], list[i+1:]...)
	}
	for i := range list {
		if j := indexOf(list[i].Replies, id); j >= 0 {
			list[i].Replies = append(list[i].Replies[:j], list[i].Replies[j+1:]...)
			return list
		}
	}
	return list
}

func excerpt(s string) string {
	r := []rune(s)
	if len(r) <= excerptLen {
		return s
	}
	return string(r[:excerptLen-1]) + "…"
}
