package model

import "time"

// Project status constants.
const (
	ProjectStatusActive    = "active"
	ProjectStatusOnHold    = "on-hold"
	ProjectStatusCompleted = "completed"
	ProjectStatusCancelled = "cancelled"
)

// Project is a unit of client work with deliverables, comments, files
// and scheduled posts.
type Project struct {
	ID          string     `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	Description string     `json:"description" db:"description"`
	ClientID    string     `json:"client_id" db:"client_id"`
	Status      string     `json:"status" db:"status"`
	Progress    int        `json:"progress" db:"progress"`
	StartDate   time.Time  `json:"start_date" db:"start_date"`
	EndDate     *time.Time `json:"end_date,omitempty" db:"end_date"`
	CreatedBy   *string    `json:"created_by,omitempty" db:"created_by"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`

	// NotificationSettings is stored as JSON in the notification_settings
	// column. Nil means the project predates reminder settings.
	NotificationSettings *ReminderPolicy `json:"notification_settings,omitempty" db:"-"`
}
