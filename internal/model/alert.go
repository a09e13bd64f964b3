package model

import "time"

// Severity ranks an alert for display.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// OverdueDeliverable is a derived view of a deliverable past its due date
// that has not been approved. It is recomputed on every alert fetch.
type OverdueDeliverable struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Status      string    `json:"status" db:"status"`
	DueDate     time.Time `json:"due_date" db:"due_date"`
	ProjectID   string    `json:"project_id" db:"project_id"`
	ProjectName string    `json:"project_name" db:"project_name"`
	ClientName  *string   `json:"client_name,omitempty" db:"client_name"`
	ClientEmail *string   `json:"client_email,omitempty" db:"client_email"`
	DaysOverdue int       `json:"days_overdue" db:"-"`
	Severity    Severity  `json:"severity" db:"-"`

	// Policy is the owning project's reminder policy, if any.
	Policy *ReminderPolicy `json:"-" db:"-"`
}

// UpcomingDeadline is a derived view of an active project whose end date
// falls within the next seven days.
type UpcomingDeadline struct {
	ID         string    `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	EndDate    time.Time `json:"end_date" db:"end_date"`
	ClientName *string   `json:"client_name,omitempty" db:"client_name"`
	Progress   int       `json:"progress" db:"progress"`
	DaysUntil  int       `json:"days_until" db:"-"`
	Severity   Severity  `json:"severity" db:"-"`
}
