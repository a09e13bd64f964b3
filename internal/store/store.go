package store

import (
	"context"
	"time"

	"github.com/nhle/epikom-hub/internal/model"
	"github.com/nhle/epikom-hub/internal/realtime"
)

// Table names used in change events and realtime scopes.
const (
	TableProfiles      = "profiles"
	TableClients       = "clients"
	TableProjects      = "projects"
	TableDeliverables  = "deliverables"
	TableNotifications = "notifications"
	TableComments      = "comments"
	TablePosts         = "social_media_posts"
	TableFiles         = "files"
	TableReminderSends = "reminder_sends"
)

// Store is the persistence gateway: table-scoped CRUD plus a realtime
// change feed. Every successful mutation publishes one event per changed
// row after commit.
type Store interface {
	// === Profiles ===

	CreateProfile(ctx context.Context, p model.Profile) (*model.Profile, error)
	GetProfileByID(ctx context.Context, id string) (*model.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*model.Profile, error)
	ListProfiles(ctx context.Context) ([]model.Profile, error)
	ListAdmins(ctx context.Context) ([]model.Profile, error)

	// === Clients & projects ===

	CreateClient(ctx context.Context, c model.Client) (*model.Client, error)
	GetClientByID(ctx context.Context, id string) (*model.Client, error)
	CreateProject(ctx context.Context, p model.Project) (*model.Project, error)
	GetProjectByID(ctx context.Context, id string) (*model.Project, error)
	ListProjects(ctx context.Context) ([]model.Project, error)
	UpdateProjectSettings(ctx context.Context, id string, policy model.ReminderPolicy) error
	ListActiveProjectDeadlines(ctx context.Context) ([]model.UpcomingDeadline, error)

	// === Deliverables ===

	CreateDeliverable(ctx context.Context, d model.Deliverable) (*model.Deliverable, error)
	GetDeliverableByID(ctx context.Context, id string) (*model.Deliverable, error)
	UpdateDeliverableStatus(ctx context.Context, id, status string, actorID *string) error
	ListOverdueCandidates(ctx context.Context) ([]model.OverdueDeliverable, error)

	// === Notifications ===

	CreateNotification(ctx context.Context, n model.Notification) (*model.Notification, error)
	ListNotifications(ctx context.Context, userID string, limit int) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) (int, error)
	DeleteNotification(ctx context.Context, id string) error
	DeleteAllNotifications(ctx context.Context, userID string) (int, error)

	// === Comments ===

	CreateComment(ctx context.Context, c model.Comment) (*model.Comment, error)
	GetComment(ctx context.Context, id string) (*model.Comment, error)
	ListTopLevelComments(ctx context.Context, projectID string) ([]model.Comment, error)
	ListReplies(ctx context.Context, projectID string) ([]model.Comment, error)
	UpdateComment(ctx context.Context, id, content string) (*model.Comment, error)
	DeleteComment(ctx context.Context, id string) error

	// === Social posts ===

	CreatePost(ctx context.Context, p model.SocialPost) (*model.SocialPost, error)
	GetPost(ctx context.Context, id string) (*model.SocialPost, error)
	ListPosts(ctx context.Context, projectID string) ([]model.SocialPost, error)
	UpdatePost(ctx context.Context, p model.SocialPost, from model.PostStatus) (*model.SocialPost, error)
	SetPostStatus(ctx context.Context, id string, from, to model.PostStatus, publishedAt *time.Time) (*model.SocialPost, error)
	DeletePost(ctx context.Context, id string) error
	ListPostsAwaitingNotice(ctx context.Context) ([]model.SocialPost, error)
	MarkPostNotified(ctx context.Context, id string) error

	// === Files ===

	CreateFile(ctx context.Context, f model.FileRecord) (*model.FileRecord, error)
	GetFile(ctx context.Context, id string) (*model.FileRecord, error)
	ListFiles(ctx context.Context, projectID string) ([]model.FileRecord, error)
	DeleteFile(ctx context.Context, id string) error

	// === Reminder log ===

	RecordReminder(ctx context.Context, send model.ReminderSend, n *model.Notification) (bool, error)
	LogReminderSend(ctx context.Context, send model.ReminderSend) (bool, error)
	ListReminderSends(ctx context.Context, deliverableID string) ([]model.ReminderSend, error)

	// === Realtime ===

	Subscribe(ctx context.Context, scope realtime.Scope, onEvent func(realtime.Event)) (func(), error)
	Feed() realtime.Feed

	Close() error
}
