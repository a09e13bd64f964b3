package model

import "time"

// Author is the joined profile summary attached to a comment.
type Author struct {
	ID        string  `json:"id"`
	FullName  string  `json:"full_name"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// Comment is a project discussion entry. Top-level comments have a nil
// ParentID and own an ordered list of replies; replies never nest.
type Comment struct {
	ID        string    `json:"id" db:"id"`
	ProjectID string    `json:"project_id" db:"project_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	ParentID  *string   `json:"parent_id,omitempty" db:"parent_id"`
	Content   string    `json:"content" db:"content"`
	Mentions  []string  `json:"mentions" db:"-"`
	IsEdited  bool      `json:"is_edited" db:"is_edited"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	Author  *Author   `json:"user,omitempty" db:"-"`
	Replies []Comment `json:"replies,omitempty" db:"-"`
}

// IsReply reports whether the comment answers another comment.
func (c Comment) IsReply() bool {
	return c.ParentID != nil && *c.ParentID != ""
}
