package model

import "time"

// NotificationType classifies what produced a notification.
type NotificationType string

const (
	NotificationMention       NotificationType = "mention"
	NotificationComment       NotificationType = "comment"
	NotificationFileUpload    NotificationType = "file_upload"
	NotificationProjectUpdate NotificationType = "project_update"
	NotificationDeadline      NotificationType = "deadline"
)

// Actor is the joined profile summary of whoever caused a notification.
type Actor struct {
	FullName  string  `json:"full_name"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// Notification is an in-app message addressed to a single user.
type Notification struct {
	// ID is the unique identifier for this notification.
	ID string `json:"id" db:"id"`

	// UserID is the recipient. A notification is owned by one user.
	UserID string `json:"user_id" db:"user_id"`

	// Type classifies the notification.
	Type NotificationType `json:"type" db:"type"`

	Title   string `json:"title" db:"title"`
	Message string `json:"message" db:"message"`

	// Link is an in-app route such as /projects/{id}.
	Link *string `json:"link,omitempty" db:"link"`

	ProjectID *string `json:"project_id,omitempty" db:"project_id"`
	ActorID   *string `json:"actor_id,omitempty" db:"actor_id"`

	// IsRead is the only mutable field besides deletion.
	IsRead bool `json:"is_read" db:"is_read"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// Actor is populated by queries that join with profiles.
	Actor *Actor `json:"actor,omitempty" db:"-"`
}
