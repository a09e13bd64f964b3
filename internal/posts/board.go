package posts

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/epikom-hub/internal/apperr"
	"github.com/nhle/epikom-hub/internal/model"
)

// Gateway is the slice of the persistence gateway used by Board.
type Gateway interface {
	CreatePost(ctx context.Context, p model.SocialPost) (*model.SocialPost, error)
	GetPost(ctx context.Context, id string) (*model.SocialPost, error)
	ListPosts(ctx context.Context, projectID string) ([]model.SocialPost, error)
	UpdatePost(ctx context.Context, p model.SocialPost, from model.PostStatus) (*model.SocialPost, error)
	SetPostStatus(ctx context.Context, id string, from, to model.PostStatus, publishedAt *time.Time) (*model.SocialPost, error)
	DeletePost(ctx context.Context, id string) error
}

// createRequest holds the fields a new post must carry.
type createRequest struct {
	Title         string `json:"title" validate:"required"`
	Platform      string `json:"platform" validate:"required"`
	ScheduledDate string `json:"scheduled_date" validate:"required"`
}

// DropResult reports the outcome of dropping a card on a board column.
// Reverted is set when the card went back to its previous column.
type DropResult struct {
	Post     model.SocialPost
	Reverted bool
	Err      error
}

// Board holds the posts of one project in schedule order.
type Board struct {
	gw        Gateway
	projectID string
	log       *zap.Logger
	now       func() time.Time

	mu      sync.Mutex
	posts   []model.SocialPost
	loading bool
}

// NewBoard creates a Board for projectID.
func NewBoard(gw Gateway, projectID string, log *zap.Logger) *Board {
	if log == nil {
		log = zap.NewNop()
	}
	return &Board{
		gw:        gw,
		projectID: projectID,
		log:       log.With(zap.String("project_id", projectID)),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Fetch loads the project's posts ordered by date, then time.
func (b *Board) Fetch(ctx context.Context) error {
	b.mu.Lock()
	b.loading = true
	b.mu.Unlock()

	list, err := b.gw.ListPosts(ctx, b.projectID)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.loading = false
	if err != nil {
		return apperr.Transient("loading posts", err)
	}
	b.posts = list
	return nil
}

// Create validates in and stores a new post. Status defaults to draft,
// the reminder offset to two hours and lists to empty.
func (b *Board) Create(ctx context.Context, in model.PostInput) (*model.SocialPost, error) {
	req := createRequest{
		Title:         strings.TrimSpace(deref(in.Title)),
		Platform:      string(deref(in.Platform)),
		ScheduledDate: deref(in.ScheduledDate),
	}
	if err := apperr.Check(req); err != nil {
		return nil, err
	}
	if err := apperr.Check(in); err != nil {
		return nil, err
	}

	p := model.SocialPost{
		ProjectID:         b.projectID,
		Title:             req.Title,
		Content:           in.Content,
		MediaURLs:         orEmpty(in.MediaURLs),
		Platform:          model.Platform(req.Platform),
		ScheduledDate:     req.ScheduledDate,
		ScheduledTime:     in.ScheduledTime,
		Status:            model.PostDraft,
		NotifyBeforeHours: model.DefaultNotifyBeforeHours,
		Hashtags:          orEmpty(in.Hashtags),
		Notes:             in.Notes,
	}
	if in.Status != nil {
		p.Status = *in.Status
	}
	if in.NotifyBeforeHours != nil {
		p.NotifyBeforeHours = *in.NotifyBeforeHours
	}
	if p.Status == model.PostPublished {
		now := b.now()
		p.PublishedAt = &now
	}

	created, err := b.gw.CreatePost(ctx, p)
	if err != nil {
		return nil, apperr.Transient("creating post", err)
	}

	b.mu.Lock()
	b.posts = append(b.posts, *created)
	sortPosts(b.posts)
	b.mu.Unlock()
	return created, nil
}

// Update applies the non-nil fields of patch in a single write. A status
// in the patch must be allowed by the state machine, otherwise nothing is
// written.
func (b *Board) Update(ctx context.Context, id string, patch model.PostInput) (*model.SocialPost, error) {
	if err := apperr.Check(patch); err != nil {
		return nil, err
	}
	cur, err := b.gw.GetPost(ctx, id)
	if err != nil {
		return nil, apperr.Transient("loading post", err)
	}

	next := *cur
	if patch.Title != nil {
		next.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Content != nil {
		next.Content = patch.Content
	}
	if patch.MediaURLs != nil {
		next.MediaURLs = patch.MediaURLs
	}
	if patch.Platform != nil {
		next.Platform = *patch.Platform
	}
	if patch.ScheduledDate != nil {
		next.ScheduledDate = *patch.ScheduledDate
	}
	if patch.ScheduledTime != nil {
		next.ScheduledTime = patch.ScheduledTime
	}
	if patch.NotifyBeforeHours != nil {
		next.NotifyBeforeHours = *patch.NotifyBeforeHours
	}
	if patch.Hashtags != nil {
		next.Hashtags = patch.Hashtags
	}
	if patch.Notes != nil {
		next.Notes = patch.Notes
	}
	// A moved schedule gets a fresh reminder.
	if next.ScheduledDate != cur.ScheduledDate || deref(next.ScheduledTime) != deref(cur.ScheduledTime) ||
		next.NotifyBeforeHours != cur.NotifyBeforeHours {
		next.NotificationSent = false
	}
	if patch.Status != nil && *patch.Status != cur.Status {
		if err := CanTransition(cur.Status, *patch.Status); err != nil {
			return nil, err
		}
		next.Status = *patch.Status
		next.PublishedAt = b.publishedAt(next.Status)
	}

	updated, err := b.gw.UpdatePost(ctx, next, cur.Status)
	if err != nil {
		return nil, apperr.Transient("updating post", err)
	}
	if updated.Status != cur.Status {
		b.log.Info("post status changed",
			zap.String("post_id", id),
			zap.String("from", string(cur.Status)),
			zap.String("to", string(updated.Status)),
		)
	}

	b.replace(*updated)
	return updated, nil
}

// UpdateStatus moves a post to status if the state machine allows it.
// published_at is stamped on entering published.
func (b *Board) UpdateStatus(ctx context.Context, id string, status model.PostStatus) (*model.SocialPost, error) {
	cur, err := b.gw.GetPost(ctx, id)
	if err != nil {
		return nil, apperr.Transient("loading post", err)
	}
	if err := CanTransition(cur.Status, status); err != nil {
		return nil, err
	}
	if cur.Status == status {
		return cur, nil
	}

	updated, err := b.gw.SetPostStatus(ctx, id, cur.Status, status, b.publishedAt(status))
	if err != nil {
		return nil, apperr.Transient("updating post status", err)
	}

	b.log.Info("post status changed",
		zap.String("post_id", id),
		zap.String("from", string(cur.Status)),
		zap.String("to", string(status)),
	)
	b.replace(*updated)
	return updated, nil
}

// publishedAt stamps the current time for the published status and
// clears it for every other status.
func (b *Board) publishedAt(status model.PostStatus) *time.Time {
	if status != model.PostPublished {
		return nil
	}
	now := b.now()
	return &now
}

// Drop handles a card dropped on column. Dropping on the card's own
// column does nothing. The card moves at once and goes back to its
// previous column if the update fails.
func (b *Board) Drop(ctx context.Context, actor model.Profile, id string, column model.PostStatus) DropResult {
	b.mu.Lock()
	i := slices.IndexFunc(b.posts, func(p model.SocialPost) bool { return p.ID == id })
	if i < 0 {
		b.mu.Unlock()
		return DropResult{Err: apperr.NotFound("post", id)}
	}
	prev := b.posts[i]
	if prev.Status == column {
		b.mu.Unlock()
		return DropResult{Post: prev}
	}
	if !actor.IsAdmin() {
		b.mu.Unlock()
		return DropResult{Post: prev, Err: apperr.Forbidden("move post")}
	}
	b.posts[i].Status = column
	b.mu.Unlock()

	updated, err := b.UpdateStatus(ctx, id, column)
	if err != nil {
		b.mu.Lock()
		if j := slices.IndexFunc(b.posts, func(p model.SocialPost) bool { return p.ID == id }); j >= 0 {
			b.posts[j] = prev
		}
		b.mu.Unlock()
		b.log.Warn("reverting dropped post",
			zap.String("post_id", id),
			zap.String("column", string(column)),
			zap.Error(err),
		)
		return DropResult{Post: prev, Reverted: true, Err: err}
	}
	return DropResult{Post: *updated}
}

// Delete removes a post.
func (b *Board) Delete(ctx context.Context, id string) error {
	if err := b.gw.DeletePost(ctx, id); err != nil {
		return apperr.Transient("deleting post", err)
	}
	b.mu.Lock()
	b.posts = slices.DeleteFunc(b.posts, func(p model.SocialPost) bool { return p.ID == id })
	b.mu.Unlock()
	return nil
}

// Posts returns a copy of the board's posts in schedule order.
func (b *Board) Posts() []model.SocialPost {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.posts)
}

// Loading reports whether a fetch is in flight.
func (b *Board) Loading() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loading
}

// ByStatus returns the posts in status.
func (b *Board) ByStatus(status model.PostStatus) []model.SocialPost {
	return filter(b.Posts(), func(p model.SocialPost) bool { return p.Status == status })
}

// ByDate returns the posts scheduled on date (YYYY-MM-DD).
func (b *Board) ByDate(date string) []model.SocialPost {
	return filter(b.Posts(), func(p model.SocialPost) bool { return p.ScheduledDate == date })
}

// ForMonth returns the posts scheduled in the given month.
func (b *Board) ForMonth(year int, month time.Month) []model.SocialPost {
	return filter(b.Posts(), func(p model.SocialPost) bool {
		d, err := time.Parse("2006-01-02", p.ScheduledDate)
		return err == nil && d.Year() == year && d.Month() == month
	})
}

func (b *Board) replace(p model.SocialPost) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i := slices.IndexFunc(b.posts, func(q model.SocialPost) bool { return q.ID == p.ID }); i >= 0 {
		b.posts[i] = p
	} else {
		b.posts = append(b.posts, p)
	}
	sortPosts(b.posts)
}

func sortPosts(list []model.SocialPost) {
	slices.SortStableFunc(list, func(a, b model.SocialPost) int {
		if c := strings.Compare(a.ScheduledDate, b.ScheduledDate); c != 0 {
			return c
		}
		return strings.Compare(deref(a.ScheduledTime), deref(b.ScheduledTime))
	})
}

func filter(list []model.SocialPost, keep func(model.SocialPost) bool) []model.SocialPost {
	out := []model.SocialPost{}
	for _, p := range list {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
