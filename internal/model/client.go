package model

import "time"

// Client is the customer a project is delivered for. A client has a
// linked account when a Profile with the same email exists.
type Client struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     *string   `json:"email,omitempty" db:"email"`
	Company   *string   `json:"company,omitempty" db:"company"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
