package model

import "time"

// Deliverable status constants.
const (
	DeliverableStatusPending  = "pending"
	DeliverableStatusInReview = "in_review"
	DeliverableStatusApproved = "approved"
	DeliverableStatusRejected = "rejected"
)

// Deliverable is a trackable unit of work within a project with a due
// date and an approval status.
type Deliverable struct {
	ID              string     `json:"id" db:"id"`
	ProjectID       string     `json:"project_id" db:"project_id"`
	Name            string     `json:"name" db:"name"`
	Description     string     `json:"description" db:"description"`
	DueDate         *time.Time `json:"due_date,omitempty" db:"due_date"`
	Status          string     `json:"status" db:"status"`
	RejectionReason *string    `json:"rejection_reason,omitempty" db:"rejection_reason"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty" db:"approved_at"`
	ApprovedBy      *string    `json:"approved_by,omitempty" db:"approved_by"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// IsOverdue returns true if the deliverable has a due date before now
// and has not been approved.
func (d Deliverable) IsOverdue(now time.Time) bool {
	return d.DueDate != nil &&
		d.Status != DeliverableStatusApproved &&
		d.DueDate.Before(now)
}
