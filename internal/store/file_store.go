package store

import (
	"context"
	"fmt"
	"time"

	"github.com/nhle/epikom-hub/internal/apperr"
	"github.com/nhle/epikom-hub/internal/model"
	"github.com/nhle/epikom-hub/internal/realtime"
)

const fileColumns = `id, project_id, name, original_name, size, mime_type, storage_path,
	uploaded_by, description, version, parent_id, created_at, updated_at`

// CreateFile inserts a file metadata row.
func (s *SQLiteStore) CreateFile(ctx context.Context, f model.FileRecord) (*model.FileRecord, error) {
	if f.StoragePath == "" {
		return nil, apperr.Invalid("storage_path", "file must have a storage path")
	}
	f.ID = newID(f.ID)
	if f.Version <= 0 {
		f.Version = 1
	}
	if f.MimeType == "" {
		f.MimeType = "application/octet-stream"
	}
	now := time.Now().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO files (`+fileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.ProjectID, f.Name, f.OriginalName, f.Size, f.MimeType, f.StoragePath,
		f.UploadedBy, f.Description, f.Version, f.ParentID, f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating file record: %w", err)
	}

	s.emit(change{
		table: TableFiles, op: realtime.OpInsert, id: f.ID,
		columns: map[string]string{"project_id": f.ProjectID}, row: f,
	})
	return &f, nil
}

// GetFile retrieves a single file record by ID.
func (s *SQLiteStore) GetFile(ctx context.Context, id string) (*model.FileRecord, error) {
	var f model.FileRecord
	if err := s.db.GetContext(ctx, &f, "SELECT "+fileColumns+" FROM files WHERE id = ?", id); err != nil {
		return nil, notFound(err, "file", id, "getting file "+id)
	}
	return &f, nil
}

// ListFiles returns the root record of every file in a project, newest
// first. Rows with a parent are version entries and are left out.
func (s *SQLiteStore) ListFiles(ctx context.Context, projectID string) ([]model.FileRecord, error) {
	var files []model.FileRecord
	err := s.db.SelectContext(ctx, &files, `
		SELECT `+fileColumns+` FROM files
		WHERE project_id = ? AND parent_id IS NULL
		ORDER BY created_at DESC, rowid DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("querying files for project %s: %w", projectID, err)
	}
	return files, nil
}

// DeleteFile removes a file metadata row. The blob is the caller's.
func (s *SQLiteStore) DeleteFile(ctx context.Context, id string) error {
	f, err := s.GetFile(ctx, id)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM files WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting file %s: %w", id, err)
	}

	s.emit(change{
		table: TableFiles, op: realtime.OpDelete, id: id,
		columns: map[string]string{"project_id": f.ProjectID},
	})
	return nil
}
