package store

import (
	"context"
	"fmt"
	"time"

	"github.com/nhle/epikom-hub/internal/model"
	"github.com/nhle/epikom-hub/internal/realtime"
)

// RecordReminder claims the (deliverable, bucket, channel) slot for send
// and, when n is given, inserts the notification in the same transaction.
// It reports false without writing anything if the slot was already taken.
func (s *SQLiteStore) RecordReminder(
	ctx context.Context, send model.ReminderSend, n *model.Notification,
) (bool, error) {
	prepareSend(&send)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning reminder transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	claimed, err := insertSend(ctx, tx, send)
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, nil
	}

	if n != nil {
		if err := s.insertNotification(ctx, tx, n); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing reminder: %w", err)
	}

	changes := []change{{
		table: TableReminderSends, op: realtime.OpInsert, id: send.ID,
		columns: map[string]string{"deliverable_id": send.DeliverableID}, row: send,
	}}
	if n != nil {
		created, err := s.getNotification(ctx, n.ID)
		if err != nil {
			return true, err
		}
		changes = append(changes, change{
			table: TableNotifications, op: realtime.OpInsert, id: created.ID,
			columns: notificationColumns(created.UserID), row: created,
		})
	}
	s.emit(changes...)
	return true, nil
}

// LogReminderSend records a send on its own, reporting false when the
// slot was already taken.
func (s *SQLiteStore) LogReminderSend(ctx context.Context, send model.ReminderSend) (bool, error) {
	prepareSend(&send)

	claimed, err := insertSend(ctx, s.db, send)
	if err != nil || !claimed {
		return false, err
	}

	s.emit(change{
		table: TableReminderSends, op: realtime.OpInsert, id: send.ID,
		columns: map[string]string{"deliverable_id": send.DeliverableID}, row: send,
	})
	return true, nil
}

// ListReminderSends returns the send log of a deliverable, oldest first.
func (s *SQLiteStore) ListReminderSends(ctx context.Context, deliverableID string) ([]model.ReminderSend, error) {
	var sends []model.ReminderSend
	err := s.db.SelectContext(ctx, &sends, `
		SELECT id, deliverable_id, bucket, channel, recipient, status, error, created_at
		FROM reminder_sends
		WHERE deliverable_id = ?
		ORDER BY created_at ASC, rowid ASC`, deliverableID)
	if err != nil {
		return nil, fmt.Errorf("querying reminder sends for %s: %w", deliverableID, err)
	}
	return sends, nil
}

func prepareSend(send *model.ReminderSend) {
	send.ID = newID(send.ID)
	if send.Status == "" {
		send.Status = model.ReminderStatusSent
	}
	send.CreatedAt = time.Now().UTC()
}

func insertSend(ctx context.Context, db execer, send model.ReminderSend) (bool, error) {
	result, err := db.ExecContext(ctx, `
		INSERT OR IGNORE INTO reminder_sends
			(id, deliverable_id, bucket, channel, recipient, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		send.ID, send.DeliverableID, send.Bucket, send.Channel, send.Recipient,
		send.Status, send.Error, send.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("recording reminder send: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("recording reminder send: %w", err)
	}
	return rows > 0, nil
}
