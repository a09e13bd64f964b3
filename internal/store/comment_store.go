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

// commentRow is a comment joined with its author's profile.
type commentRow struct {
	model.Comment
	MentionsRaw  string         `db:"mentions"`
	AuthorName   sql.NullString `db:"author_full_name"`
	AuthorAvatar sql.NullString `db:"author_avatar_url"`
}

func (r commentRow) toModel() model.Comment {
	c := r.Comment
	c.Mentions = decodeList(r.MentionsRaw)
	c.Author = &model.Author{ID: c.UserID, FullName: r.AuthorName.String}
	if r.AuthorAvatar.Valid {
		avatar := r.AuthorAvatar.String
		c.Author.AvatarURL = &avatar
	}
	return c
}

const commentSelect = `
	SELECT c.id, c.project_id, c.user_id, c.parent_id, c.content, c.mentions,
	       c.is_edited, c.created_at, c.updated_at,
	       a.full_name AS author_full_name, a.avatar_url AS author_avatar_url
	FROM comments c
	LEFT JOIN profiles a ON a.id = c.user_id`

func commentColumns(projectID string) map[string]string {
	return map[string]string{"project_id": projectID}
}

// CreateComment inserts a comment and returns it with its author joined.
func (s *SQLiteStore) CreateComment(ctx context.Context, c model.Comment) (*model.Comment, error) {
	if strings.TrimSpace(c.Content) == "" {
		return nil, apperr.Invalid("content", "comment must not be empty")
	}
	c.ID = newID(c.ID)
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments
			(id, project_id, user_id, parent_id, content, mentions, is_edited, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		c.ID, c.ProjectID, c.UserID, c.ParentID, c.Content, encodeList(c.Mentions),
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating comment: %w", err)
	}

	created, err := s.GetComment(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	s.emit(change{
		table: TableComments, op: realtime.OpInsert, id: created.ID,
		columns: commentColumns(created.ProjectID),
		row:     created,
	})
	return created, nil
}

// GetComment retrieves a single comment by ID.
func (s *SQLiteStore) GetComment(ctx context.Context, id string) (*model.Comment, error) {
	var row commentRow
	if err := s.db.GetContext(ctx, &row, commentSelect+" WHERE c.id = ?", id); err != nil {
		return nil, notFound(err, "comment", id, "getting comment "+id)
	}
	c := row.toModel()
	return &c, nil
}

// ListTopLevelComments returns the project's top-level comments, newest
// first.
func (s *SQLiteStore) ListTopLevelComments(ctx context.Context, projectID string) ([]model.Comment, error) {
	return s.listComments(ctx,
		commentSelect+" WHERE c.project_id = ? AND c.parent_id IS NULL ORDER BY c.created_at DESC, c.rowid DESC",
		projectID)
}

// ListReplies returns every reply in the project, oldest first.
func (s *SQLiteStore) ListReplies(ctx context.Context, projectID string) ([]model.Comment, error) {
	return s.listComments(ctx,
		commentSelect+" WHERE c.project_id = ? AND c.parent_id IS NOT NULL ORDER BY c.created_at ASC, c.rowid ASC",
		projectID)
}

func (s *SQLiteStore) listComments(ctx context.Context, query, projectID string) ([]model.Comment, error) {
	var rows []commentRow
	if err := s.db.SelectContext(ctx, &rows, query, projectID); err != nil {
		return nil, fmt.Errorf("querying comments for project %s: %w", projectID, err)
	}
	out := make([]model.Comment, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// UpdateComment replaces the content of a comment and flags it edited.
func (s *SQLiteStore) UpdateComment(ctx context.Context, id, content string) (*model.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperr.Invalid("content", "comment must not be empty")
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE comments SET content = ?, is_edited = 1, updated_at = ? WHERE id = ?",
		content, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("updating comment %s: %w", id, err)
	}
	if err := requireRows(result, "comment", id); err != nil {
		return nil, err
	}

	updated, err := s.GetComment(ctx, id)
	if err != nil {
		return nil, err
	}
	s.emit(change{
		table: TableComments, op: realtime.OpUpdate, id: id,
		columns: commentColumns(updated.ProjectID),
		row:     updated,
	})
	return updated, nil
}

// DeleteComment removes a comment. Replies go with it.
func (s *SQLiteStore) DeleteComment(ctx context.Context, id string) error {
	var target struct {
		ProjectID string         `db:"project_id"`
		ParentID  sql.NullString `db:"parent_id"`
	}
	err := s.db.GetContext(ctx, &target, "SELECT project_id, parent_id FROM comments WHERE id = ?", id)
	if err != nil {
		return notFound(err, "comment", id, "reading comment "+id)
	}

	var replyIDs []string
	if !target.ParentID.Valid {
		err = s.db.SelectContext(ctx, &replyIDs, "SELECT id FROM comments WHERE parent_id = ?", id)
		if err != nil {
			return fmt.Errorf("querying replies of comment %s: %w", id, err)
		}
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM comments WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting comment %s: %w", id, err)
	}

	changes := make([]change, 0, len(replyIDs)+1)
	for _, rid := range replyIDs {
		changes = append(changes, change{
			table: TableComments, op: realtime.OpDelete, id: rid,
			columns: commentColumns(target.ProjectID),
		})
	}
	changes = append(changes, change{
		table: TableComments, op: realtime.OpDelete, id: id,
		columns: commentColumns(target.ProjectID),
	})
	s.emit(changes...)
	return nil
}
