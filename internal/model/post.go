package model

import "time"

// Platform is the social network a post is scheduled for.
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformTwitter   Platform = "twitter"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformTikTok    Platform = "tiktok"
	PlatformYouTube   Platform = "youtube"
	PlatformOther     Platform = "other"
)

// Platforms lists every platform in display order.
var Platforms = []Platform{
	PlatformInstagram, PlatformFacebook, PlatformTwitter, PlatformLinkedIn,
	PlatformTikTok, PlatformYouTube, PlatformOther,
}

// PostStatus is a state of the scheduled-post state machine.
type PostStatus string

const (
	PostDraft     PostStatus = "draft"
	PostScheduled PostStatus = "scheduled"
	PostPublished PostStatus = "published"
	PostCancelled PostStatus = "cancelled"
)

// PostStatuses lists every status in board column order.
var PostStatuses = []PostStatus{PostDraft, PostScheduled, PostPublished, PostCancelled}

// DefaultNotifyBeforeHours is used when a post is created without an
// explicit notification offset.
const DefaultNotifyBeforeHours = 2

// SocialPost is a social-media post scheduled for a project.
type SocialPost struct {
	ID                string     `json:"id" db:"id"`
	ProjectID         string     `json:"project_id" db:"project_id"`
	Title             string     `json:"title" db:"title"`
	Content           *string    `json:"content,omitempty" db:"content"`
	MediaURLs         []string   `json:"media_urls" db:"-"`
	Platform          Platform   `json:"platform" db:"platform"`
	ScheduledDate     string     `json:"scheduled_date" db:"scheduled_date"`           // YYYY-MM-DD
	ScheduledTime     *string    `json:"scheduled_time,omitempty" db:"scheduled_time"` // HH:MM
	Status            PostStatus `json:"status" db:"status"`
	NotifyBeforeHours int        `json:"notify_before_hours" db:"notify_before_hours"`
	NotificationSent  bool       `json:"notification_sent" db:"notification_sent"`
	Hashtags          []string   `json:"hashtags" db:"-"`
	Notes             *string    `json:"notes,omitempty" db:"notes"`
	ApprovedBy        *string    `json:"approved_by,omitempty" db:"approved_by"`
	ApprovedAt        *time.Time `json:"approved_at,omitempty" db:"approved_at"`
	PublishedAt       *time.Time `json:"published_at,omitempty" db:"published_at"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// ScheduledAt combines ScheduledDate and ScheduledTime in loc. A missing
// time means midnight.
func (p SocialPost) ScheduledAt(loc *time.Location) (time.Time, error) {
	if p.ScheduledTime != nil && *p.ScheduledTime != "" {
		return time.ParseInLocation("2006-01-02 15:04", p.ScheduledDate+" "+*p.ScheduledTime, loc)
	}
	return time.ParseInLocation("2006-01-02", p.ScheduledDate, loc)
}

// PostInput carries the writable fields of a post. Nil pointers in an
// update leave the stored value unchanged.
type PostInput struct {
	Title             *string     `json:"title,omitempty" validate:"omitempty,min=1"`
	Content           *string     `json:"content,omitempty"`
	MediaURLs         []string    `json:"media_urls,omitempty"`
	Platform          *Platform   `json:"platform,omitempty" validate:"omitempty,oneof=instagram facebook twitter linkedin tiktok youtube other"`
	ScheduledDate     *string     `json:"scheduled_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	ScheduledTime     *string     `json:"scheduled_time,omitempty" validate:"omitempty,datetime=15:04"`
	Status            *PostStatus `json:"status,omitempty" validate:"omitempty,oneof=draft scheduled published cancelled"`
	NotifyBeforeHours *int        `json:"notify_before_hours,omitempty" validate:"omitempty,gt=0"`
	Hashtags          []string    `json:"hashtags,omitempty"`
	Notes             *string     `json:"notes,omitempty"`
}
