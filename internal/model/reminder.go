package model

import "time"

// ReminderChannel is how a reminder reached its recipient.
type ReminderChannel string

const (
	ChannelInApp ReminderChannel = "in_app"
	ChannelEmail ReminderChannel = "email"
)

// Reminder send status constants.
const (
	ReminderStatusSent   = "sent"
	ReminderStatusFailed = "failed"
)

// ReminderSend logs one reminder delivery. The (DeliverableID, Bucket,
// Channel) triple is unique, which makes repeated sends in the same
// bucket no-ops.
type ReminderSend struct {
	ID            string          `json:"id" db:"id"`
	DeliverableID string          `json:"deliverable_id" db:"deliverable_id"`
	Bucket        string          `json:"bucket" db:"bucket"`
	Channel       ReminderChannel `json:"channel" db:"channel"`
	Recipient     string          `json:"recipient" db:"recipient"`
	Status        string          `json:"status" db:"status"`
	Error         *string         `json:"error,omitempty" db:"error"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}
