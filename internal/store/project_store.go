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

// CreateClient inserts a new client.
func (s *SQLiteStore) CreateClient(ctx context.Context, c model.Client) (*model.Client, error) {
	if strings.TrimSpace(c.Name) == "" {
		return nil, apperr.Invalid("name", "client name must not be empty")
	}
	c.ID = newID(c.ID)
	c.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (id, name, email, company, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Email, c.Company, c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}

	s.emit(change{table: TableClients, op: realtime.OpInsert, id: c.ID, row: c})
	return &c, nil
}

// GetClientByID retrieves a single client by ID.
func (s *SQLiteStore) GetClientByID(ctx context.Context, id string) (*model.Client, error) {
	var c model.Client
	err := s.db.GetContext(ctx, &c,
		"SELECT id, name, email, company, created_at FROM clients WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, "client", id, "getting client "+id)
	}
	return &c, nil
}

const projectColumns = `id, name, description, client_id, status, progress,
	start_date, end_date, notification_settings, created_by, created_at, updated_at`

// projectRow adds the raw settings column to a project for scanning.
type projectRow struct {
	model.Project
	Settings sql.NullString `db:"notification_settings"`
}

func (r projectRow) toModel() model.Project {
	p := r.Project
	if r.Settings.Valid && r.Settings.String != "" {
		var policy model.ReminderPolicy
		if err := json.Unmarshal([]byte(r.Settings.String), &policy); err == nil {
			p.NotificationSettings = &policy
		}
	}
	return p
}

func encodeSettings(policy *model.ReminderPolicy) (*string, error) {
	if policy == nil {
		return nil, nil
	}
	body, err := json.Marshal(policy)
	if err != nil {
		return nil, fmt.Errorf("encoding notification settings: %w", err)
	}
	raw := string(body)
	return &raw, nil
}

// CreateProject inserts a new project.
func (s *SQLiteStore) CreateProject(ctx context.Context, p model.Project) (*model.Project, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, apperr.Invalid("name", "project name must not be empty")
	}
	if p.ClientID == "" {
		return nil, apperr.Invalid("client_id", "project must belong to a client")
	}
	p.ID = newID(p.ID)
	if p.Status == "" {
		p.Status = model.ProjectStatusActive
	}
	now := time.Now().UTC()
	if p.StartDate.IsZero() {
		p.StartDate = now
	}
	p.CreatedAt = now
	p.UpdatedAt = now

	settings, err := encodeSettings(p.NotificationSettings)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO projects (`+projectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.ClientID, p.Status, p.Progress,
		p.StartDate.UTC(), utcPtr(p.EndDate), settings, p.CreatedBy,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}

	s.emit(change{table: TableProjects, op: realtime.OpInsert, id: p.ID, row: p})
	return &p, nil
}

// GetProjectByID retrieves a single project by ID.
func (s *SQLiteStore) GetProjectByID(ctx context.Context, id string) (*model.Project, error) {
	var row projectRow
	err := s.db.GetContext(ctx, &row,
		"SELECT "+projectColumns+" FROM projects WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, "project", id, "getting project "+id)
	}
	p := row.toModel()
	return &p, nil
}

// ListProjects returns all projects, newest first.
func (s *SQLiteStore) ListProjects(ctx context.Context) ([]model.Project, error) {
	var rows []projectRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT "+projectColumns+" FROM projects ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}

	projects := make([]model.Project, 0, len(rows))
	for _, r := range rows {
		projects = append(projects, r.toModel())
	}
	return projects, nil
}

// UpdateProjectSettings replaces the reminder policy of a project.
// Callers validate the policy and the actor before calling.
func (s *SQLiteStore) UpdateProjectSettings(
	ctx context.Context, id string, policy model.ReminderPolicy,
) error {
	settings, err := encodeSettings(&policy)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE projects SET notification_settings = ?, updated_at = ? WHERE id = ?",
		settings, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating settings for project %s: %w", id, err)
	}
	if err := requireRows(result, "project", id); err != nil {
		return err
	}

	s.emit(change{
		table: TableProjects, op: realtime.OpUpdate, id: id,
		columns: map[string]string{"id": id},
		row:     map[string]any{"id": id, "notification_settings": policy},
	})
	return nil
}

// ListActiveProjectDeadlines returns every active project that has an end
// date, soonest first, with its client name. Windowing is the caller's.
func (s *SQLiteStore) ListActiveProjectDeadlines(ctx context.Context) ([]model.UpcomingDeadline, error) {
	var deadlines []model.UpcomingDeadline
	err := s.db.SelectContext(ctx, &deadlines, `
		SELECT p.id, p.name, p.end_date, c.name AS client_name, p.progress
		FROM projects p
		LEFT JOIN clients c ON c.id = p.client_id
		WHERE p.status = ? AND p.end_date IS NOT NULL
		ORDER BY p.end_date`,
		model.ProjectStatusActive)
	if err != nil {
		return nil, fmt.Errorf("querying project deadlines: %w", err)
	}
	return deadlines, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
