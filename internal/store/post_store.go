package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/nhle/epikom-hub/internal/apperr"
	"github.com/nhle/epikom-hub/internal/model"
	"github.com/nhle/epikom-hub/internal/realtime"
)

const postColumns = `id, project_id, title, content, media_urls, platform,
	scheduled_date, scheduled_time, status, notify_before_hours, notification_sent,
	hashtags, notes, approved_by, approved_at, published_at, created_at, updated_at`

// postRow carries the JSON list columns of a post.
type postRow struct {
	model.SocialPost
	MediaRaw    string `db:"media_urls"`
	HashtagsRaw string `db:"hashtags"`
}

func (r postRow) toModel() model.SocialPost {
	p := r.SocialPost
	p.MediaURLs = decodeList(r.MediaRaw)
	p.Hashtags = decodeList(r.HashtagsRaw)
	return p
}

func postEventColumns(p *model.SocialPost) map[string]string {
	return map[string]string{"project_id": p.ProjectID}
}

// CreatePost inserts a scheduled post. Status defaults to draft and the
// notification offset to DefaultNotifyBeforeHours.
func (s *SQLiteStore) CreatePost(ctx context.Context, p model.SocialPost) (*model.SocialPost, error) {
	if strings.TrimSpace(p.Title) == "" {
		return nil, apperr.Invalid("title", "post title must not be empty")
	}
	if p.ScheduledDate == "" {
		return nil, apperr.Invalid("scheduled_date", "post must have a scheduled date")
	}
	p.ID = newID(p.ID)
	if p.Status == "" {
		p.Status = model.PostDraft
	}
	if p.NotifyBeforeHours <= 0 {
		p.NotifyBeforeHours = model.DefaultNotifyBeforeHours
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO social_media_posts (`+postColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.ProjectID, p.Title, p.Content, encodeList(p.MediaURLs), p.Platform,
		p.ScheduledDate, p.ScheduledTime, p.Status, p.NotifyBeforeHours,
		boolToInt(p.NotificationSent), encodeList(p.Hashtags), p.Notes,
		p.ApprovedBy, utcPtr(p.ApprovedAt), utcPtr(p.PublishedAt), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating post: %w", err)
	}

	created, err := s.GetPost(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	s.emit(change{
		table: TablePosts, op: realtime.OpInsert, id: created.ID,
		columns: postEventColumns(created), row: created,
	})
	return created, nil
}

// GetPost retrieves a single post by ID.
func (s *SQLiteStore) GetPost(ctx context.Context, id string) (*model.SocialPost, error) {
	var row postRow
	err := s.db.GetContext(ctx, &row,
		"SELECT "+postColumns+" FROM social_media_posts WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, "post", id, "getting post "+id)
	}
	p := row.toModel()
	return &p, nil
}

// ListPosts returns a project's posts ordered by schedule.
func (s *SQLiteStore) ListPosts(ctx context.Context, projectID string) ([]model.SocialPost, error) {
	return s.selectPosts(ctx, `
		SELECT `+postColumns+` FROM social_media_posts
		WHERE project_id = ?
		ORDER BY scheduled_date ASC, scheduled_time ASC`, projectID)
}

func (s *SQLiteStore) selectPosts(ctx context.Context, query string, args ...any) ([]model.SocialPost, error) {
	var rows []postRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying posts: %w", err)
	}
	out := make([]model.SocialPost, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// UpdatePost writes every editable field of p together with its status
// and published_at. The write only lands while the stored status is still
// from.
func (s *SQLiteStore) UpdatePost(ctx context.Context, p model.SocialPost, from model.PostStatus) (*model.SocialPost, error) {
	if strings.TrimSpace(p.Title) == "" {
		return nil, apperr.Invalid("title", "post title must not be empty")
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE social_media_posts
		SET title = ?, content = ?, media_urls = ?, platform = ?, scheduled_date = ?,
		    scheduled_time = ?, notify_before_hours = ?, notification_sent = ?,
		    hashtags = ?, notes = ?, status = ?, published_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		p.Title, p.Content, encodeList(p.MediaURLs), p.Platform, p.ScheduledDate,
		p.ScheduledTime, p.NotifyBeforeHours, boolToInt(p.NotificationSent),
		encodeList(p.Hashtags), p.Notes, p.Status, utcPtr(p.PublishedAt), time.Now().UTC(),
		p.ID, from,
	)
	if err != nil {
		return nil, fmt.Errorf("updating post %s: %w", p.ID, err)
	}
	if err := s.requireStatus(ctx, result, p.ID, from); err != nil {
		return nil, err
	}
	return s.reloadPost(ctx, p.ID)
}

// SetPostStatus moves a post from one status to another. publishedAt is
// written as given, so leaving published clears it.
func (s *SQLiteStore) SetPostStatus(
	ctx context.Context, id string, from, to model.PostStatus, publishedAt *time.Time,
) (*model.SocialPost, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE social_media_posts SET status = ?, published_at = ?, updated_at = ? WHERE id = ? AND status = ?",
		to, utcPtr(publishedAt), time.Now().UTC(), id, from)
	if err != nil {
		return nil, fmt.Errorf("setting status of post %s: %w", id, err)
	}
	if err := s.requireStatus(ctx, result, id, from); err != nil {
		return nil, err
	}
	return s.reloadPost(ctx, id)
}

// requireStatus tells a missing post apart from one whose status moved
// away from from before the guarded write.
func (s *SQLiteStore) requireStatus(ctx context.Context, result sql.Result, id string, from model.PostStatus) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update of post %s: %w", id, err)
	}
	if n > 0 {
		return nil
	}
	cur, err := s.GetPost(ctx, id)
	if err != nil {
		return err
	}
	return apperr.Invalid("status", "post is %s, not %s; it was changed elsewhere", cur.Status, from)
}

func (s *SQLiteStore) reloadPost(ctx context.Context, id string) (*model.SocialPost, error) {
	updated, err := s.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	s.emit(change{
		table: TablePosts, op: realtime.OpUpdate, id: id,
		columns: postEventColumns(updated), row: updated,
	})
	return updated, nil
}

// DeletePost removes a post.
func (s *SQLiteStore) DeletePost(ctx context.Context, id string) error {
	var projectID string
	err := s.db.GetContext(ctx, &projectID, "SELECT project_id FROM social_media_posts WHERE id = ?", id)
	if err != nil {
		return notFound(err, "post", id, "reading post "+id)
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM social_media_posts WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting post %s: %w", id, err)
	}

	s.emit(change{
		table: TablePosts, op: realtime.OpDelete, id: id,
		columns: map[string]string{"project_id": projectID},
	})
	return nil
}

// ListPostsAwaitingNotice returns scheduled posts whose reminder has not
// been sent yet.
func (s *SQLiteStore) ListPostsAwaitingNotice(ctx context.Context) ([]model.SocialPost, error) {
	return s.selectPosts(ctx, `
		SELECT `+postColumns+` FROM social_media_posts
		WHERE status = ? AND notification_sent = 0
		ORDER BY scheduled_date ASC, scheduled_time ASC`, model.PostScheduled)
}

// MarkPostNotified flags the post's reminder as sent.
func (s *SQLiteStore) MarkPostNotified(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE social_media_posts SET notification_sent = 1, updated_at = ? WHERE id = ?",
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("marking post %s notified: %w", id, err)
	}
	if err := requireRows(result, "post", id); err != nil {
		return err
	}
	_, err = s.reloadPost(ctx, id)
	return err
}
