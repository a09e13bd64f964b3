package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nhle/epikom-hub/internal/apperr"
	"github.com/nhle/epikom-hub/internal/model"
	"github.com/nhle/epikom-hub/internal/realtime"
)

// notificationRow is a notification joined with its actor's profile.
type notificationRow struct {
	model.Notification
	ActorName   sql.NullString `db:"actor_full_name"`
	ActorAvatar sql.NullString `db:"actor_avatar_url"`
}

func (r notificationRow) toModel() model.Notification {
	n := r.Notification
	if r.ActorName.Valid {
		n.Actor = &model.Actor{FullName: r.ActorName.String}
		if r.ActorAvatar.Valid {
			avatar := r.ActorAvatar.String
			n.Actor.AvatarURL = &avatar
		}
	}
	return n
}

const notificationSelect = `
	SELECT n.id, n.user_id, n.type, n.title, n.message, n.link, n.project_id,
	       n.actor_id, n.is_read, n.created_at,
	       a.full_name AS actor_full_name, a.avatar_url AS actor_avatar_url
	FROM notifications n
	LEFT JOIN profiles a ON a.id = n.actor_id`

func notificationColumns(userID string) map[string]string {
	return map[string]string{"user_id": userID}
}

// CreateNotification inserts a notification and returns it with the
// actor joined.
func (s *SQLiteStore) CreateNotification(ctx context.Context, n model.Notification) (*model.Notification, error) {
	if n.UserID == "" {
		return nil, apperr.Invalid("user_id", "notification must have a recipient")
	}
	if err := s.insertNotification(ctx, s.db, &n); err != nil {
		return nil, err
	}

	created, err := s.getNotification(ctx, n.ID)
	if err != nil {
		return nil, err
	}
	s.emit(change{
		table: TableNotifications, op: realtime.OpInsert, id: created.ID,
		columns: notificationColumns(created.UserID),
		row:     created,
	})
	return created, nil
}

// execer is satisfied by both *sqlx.DB and *sqlx.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) insertNotification(ctx context.Context, db execer, n *model.Notification) error {
	n.ID = newID(n.ID)
	n.CreatedAt = time.Now().UTC()

	_, err := db.ExecContext(ctx, `
		INSERT INTO notifications
			(id, user_id, type, title, message, link, project_id, actor_id, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Type, n.Title, n.Message, n.Link, n.ProjectID, n.ActorID,
		boolToInt(n.IsRead), n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating notification: %w", err)
	}
	return nil
}

func (s *SQLiteStore) getNotification(ctx context.Context, id string) (*model.Notification, error) {
	var row notificationRow
	err := s.db.GetContext(ctx, &row, notificationSelect+" WHERE n.id = ?", id)
	if err != nil {
		return nil, notFound(err, "notification", id, "getting notification "+id)
	}
	n := row.toModel()
	return &n, nil
}

// ListNotifications returns the newest notifications of a user, at most
// limit of them. A non-positive limit means no limit.
func (s *SQLiteStore) ListNotifications(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	query := notificationSelect + " WHERE n.user_id = ? ORDER BY n.created_at DESC, n.rowid DESC"
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows []notificationRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying notifications for %s: %w", userID, err)
	}

	out := make([]model.Notification, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// MarkNotificationRead sets is_read on one notification.
func (s *SQLiteStore) MarkNotificationRead(ctx context.Context, id string) error {
	var userID string
	err := s.db.GetContext(ctx, &userID, "SELECT user_id FROM notifications WHERE id = ?", id)
	if err != nil {
		return notFound(err, "notification", id, "reading notification "+id)
	}

	if _, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET is_read = 1 WHERE id = ?", id); err != nil {
		return fmt.Errorf("marking notification %s read: %w", id, err)
	}

	s.emit(change{
		table: TableNotifications, op: realtime.OpUpdate, id: id,
		columns: notificationColumns(userID),
		row:     map[string]any{"id": id, "user_id": userID, "is_read": true},
	})
	return nil
}

// MarkAllNotificationsRead marks every unread notification of a user
// read and returns how many changed.
func (s *SQLiteStore) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids,
		"SELECT id FROM notifications WHERE user_id = ? AND is_read = 0", userID)
	if err != nil {
		return 0, fmt.Errorf("querying unread notifications for %s: %w", userID, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if _, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0", userID); err != nil {
		return 0, fmt.Errorf("marking notifications read for %s: %w", userID, err)
	}

	changes := make([]change, 0, len(ids))
	for _, id := range ids {
		changes = append(changes, change{
			table: TableNotifications, op: realtime.OpUpdate, id: id,
			columns: notificationColumns(userID),
			row:     map[string]any{"id": id, "user_id": userID, "is_read": true},
		})
	}
	s.emit(changes...)
	return len(ids), nil
}

// DeleteNotification removes one notification.
func (s *SQLiteStore) DeleteNotification(ctx context.Context, id string) error {
	var userID string
	err := s.db.GetContext(ctx, &userID, "SELECT user_id FROM notifications WHERE id = ?", id)
	if err != nil {
		return notFound(err, "notification", id, "reading notification "+id)
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM notifications WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting notification %s: %w", id, err)
	}

	s.emit(change{
		table: TableNotifications, op: realtime.OpDelete, id: id,
		columns: notificationColumns(userID),
	})
	return nil
}

// DeleteAllNotifications removes every notification of a user and
// returns how many were removed.
func (s *SQLiteStore) DeleteAllNotifications(ctx context.Context, userID string) (int, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, "SELECT id FROM notifications WHERE user_id = ?", userID)
	if err != nil {
		return 0, fmt.Errorf("querying notifications for %s: %w", userID, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM notifications WHERE user_id = ?", userID); err != nil {
		return 0, fmt.Errorf("clearing notifications for %s: %w", userID, err)
	}

	changes := make([]change, 0, len(ids))
	for _, id := range ids {
		changes = append(changes, change{
			table: TableNotifications, op: realtime.OpDelete, id: id,
			columns: notificationColumns(userID),
		})
	}
	s.emit(changes...)
	return len(ids), nil
}
