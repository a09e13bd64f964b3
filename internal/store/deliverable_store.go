package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nhle/epikom-hub/internal/apperr"
	"github.com/nhle/epikom-hub/internal/model"
	"github.com/nhle/epikom-hub/internal/realtime"
)

const deliverableColumns = `id, project_id, name, description, due_date, status,
	rejection_reason, approved_at, approved_by, created_at, updated_at`

// CreateDeliverable inserts a new deliverable.
func (s *SQLiteStore) CreateDeliverable(ctx context.Context, d model.Deliverable) (*model.Deliverable, error) {
	if strings.TrimSpace(d.Name) == "" {
		return nil, apperr.Invalid("name", "deliverable name must not be empty")
	}
	d.ID = newID(d.ID)
	if d.Status == "" {
		d.Status = model.DeliverableStatusPending
	}
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deliverables (`+deliverableColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.ProjectID, d.Name, d.Description, utcPtr(d.DueDate), d.Status,
		d.RejectionReason, utcPtr(d.ApprovedAt), d.ApprovedBy, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating deliverable: %w", err)
	}

	s.emit(change{
		table: TableDeliverables, op: realtime.OpInsert, id: d.ID,
		columns: map[string]string{"project_id": d.ProjectID},
		row:     d,
	})
	return &d, nil
}

// GetDeliverableByID retrieves a single deliverable by ID.
func (s *SQLiteStore) GetDeliverableByID(ctx context.Context, id string) (*model.Deliverable, error) {
	var d model.Deliverable
	err := s.db.GetContext(ctx, &d,
		"SELECT "+deliverableColumns+" FROM deliverables WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, "deliverable", id, "getting deliverable "+id)
	}
	return &d, nil
}

// UpdateDeliverableStatus sets the status of a deliverable. Approving
// stamps approved_at and approved_by; any other status clears them.
func (s *SQLiteStore) UpdateDeliverableStatus(
	ctx context.Context, id, status string, actorID *string,
) error {
	now := time.Now().UTC()
	var approvedAt *time.Time
	var approvedBy *string
	if status == model.DeliverableStatusApproved {
		approvedAt = &now
		approvedBy = actorID
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE deliverables
		SET status = ?, approved_at = ?, approved_by = ?, updated_at = ?
		WHERE id = ?`,
		status, approvedAt, approvedBy, now, id)
	if err != nil {
		return fmt.Errorf("updating status of deliverable %s: %w", id, err)
	}
	if err := requireRows(result, "deliverable", id); err != nil {
		return err
	}

	d, err := s.GetDeliverableByID(ctx, id)
	if err != nil {
		return err
	}
	s.emit(change{
		table: TableDeliverables, op: realtime.OpUpdate, id: id,
		columns: map[string]string{"project_id": d.ProjectID},
		row:     d,
	})
	return nil
}

// overdueRow carries the owning project's raw settings next to the
// deliverable view.
type overdueRow struct {
	model.OverdueDeliverable
	Settings sql.NullString `db:"notification_settings"`
}

// ListOverdueCandidates returns every unapproved deliverable with a due
// date, joined with its project and client. The caller decides which are
// past due.
func (s *SQLiteStore) ListOverdueCandidates(ctx context.Context) ([]model.OverdueDeliverable, error) {
	var rows []overdueRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT d.id, d.name, d.status, d.due_date, d.project_id,
		       p.name AS project_name, p.notification_settings,
		       c.name AS client_name, c.email AS client_email
		FROM deliverables d
		JOIN projects p ON p.id = d.project_id
		LEFT JOIN clients c ON c.id = p.client_id
		WHERE d.status != ? AND d.due_date IS NOT NULL
		ORDER BY d.due_date`,
		model.DeliverableStatusApproved)
	if err != nil {
		return nil, fmt.Errorf("querying overdue candidates: %w", err)
	}

	out := make([]model.OverdueDeliverable, 0, len(rows))
	for _, r := range rows {
		od := r.OverdueDeliverable
		if r.Settings.Valid && r.Settings.String != "" {
			var policy model.ReminderPolicy
			if err := json.Unmarshal([]byte(r.Settings.String), &policy); err == nil {
				od.Policy = &policy
			}
		}
		out = append(out, od)
	}
	return out, nil
}
