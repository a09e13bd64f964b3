package model

import "time"

// FileRecord is the metadata row of a blob stored for a project.
type FileRecord struct {
	ID           string    `json:"id" db:"id"`
	ProjectID    string    `json:"project_id" db:"project_id"`
	Name         string    `json:"name" db:"name"`
	OriginalName string    `json:"original_name" db:"original_name"`
	Size         int64     `json:"size" db:"size"`
	MimeType     string    `json:"mime_type" db:"mime_type"`
	StoragePath  string    `json:"storage_path" db:"storage_path"`
	UploadedBy   *string   `json:"uploaded_by,omitempty" db:"uploaded_by"`
	Description  *string   `json:"description,omitempty" db:"description"`
	Version      int       `json:"version" db:"version"`
	ParentID     *string   `json:"parent_id,omitempty" db:"parent_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
