// Package files stores project attachments: blobs in the storage bucket,
// metadata rows in the persistence gateway.
package files

import (
	"context"
	"fmt"
	"io"
	"math"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/epikom-hub/internal/apperr"
	"github.com/nhle/epikom-hub/internal/model"
	"github.com/nhle/epikom-hub/internal/storage"
)

// DefaultURLTTL is how long a download URL stays valid.
const DefaultURLTTL = 3600 * time.Second

// Store is the slice of the persistence gateway used by Service.
type Store interface {
	CreateFile(ctx context.Context, f model.FileRecord) (*model.FileRecord, error)
	GetFile(ctx context.Context, id string) (*model.FileRecord, error)
	ListFiles(ctx context.Context, projectID string) ([]model.FileRecord, error)
	DeleteFile(ctx context.Context, id string) error
	GetProjectByID(ctx context.Context, id string) (*model.Project, error)
	GetClientByID(ctx context.Context, id string) (*model.Client, error)
	GetProfileByEmail(ctx context.Context, email string) (*model.Profile, error)
	CreateNotification(ctx context.Context, n model.Notification) (*model.Notification, error)
}

// Option configures a Service.
type Option func(*Service)

// WithURLTTL sets the lifetime of download URLs.
func WithURLTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = l }
}

// Service uploads, lists and removes project files.
type Service struct {
	store  Store
	bucket storage.Bucket
	ttl    time.Duration
	log    *zap.Logger
	now    func() time.Time
}

// NewService creates a Service over store and bucket.
func NewService(store Store, bucket storage.Bucket, opts ...Option) *Service {
	s := &Service{
		store:  store,
		bucket: bucket,
		ttl:    DefaultURLTTL,
		log:    zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload is one file handed to Service.Upload.
type Upload struct {
	Name        string
	MimeType    string
	Body        io.Reader
	Description *string
}

// List returns the latest version of every file in the project, newest
// first.
func (s *Service) List(ctx context.Context, projectID string) ([]model.FileRecord, error) {
	list, err := s.store.ListFiles(ctx, projectID)
	if err != nil {
		return nil, apperr.Transient("listing files", err)
	}
	return list, nil
}

// Upload stores the blob and then its metadata. If the metadata insert
// fails the blob is removed again. The project's client is notified when
// they have an account.
func (s *Service) Upload(
	ctx context.Context, uploader model.Profile, projectID string, in Upload,
) (*model.FileRecord, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Invalid("name", "is required")
	}
	if in.Body == nil {
		return nil, apperr.Invalid("body", "is required")
	}

	objectPath := StoragePath(projectID, name, s.now())
	counter := &countingReader{r: in.Body}
	if err := s.bucket.Upload(ctx, objectPath, counter); err != nil {
		return nil, apperr.Transient("uploading "+name, err)
	}

	uploadedBy := uploader.ID
	rec, err := s.store.CreateFile(ctx, model.FileRecord{
		ProjectID:    projectID,
		Name:         path.Base(objectPath),
		OriginalName: name,
		Size:         counter.n,
		MimeType:     in.MimeType,
		StoragePath:  objectPath,
		UploadedBy:   &uploadedBy,
		Description:  in.Description,
	})
	if err != nil {
		if rmErr := s.bucket.Remove(context.WithoutCancel(ctx), objectPath); rmErr != nil {
			s.log.Warn("removing orphaned blob", zap.String("path", objectPath), zap.Error(rmErr))
		}
		return nil, apperr.Transient("saving file metadata", err)
	}

	s.log.Info("file uploaded",
		zap.String("project_id", projectID),
		zap.String("file_id", rec.ID),
		zap.Int64("size", rec.Size),
	)
	s.notifyClient(ctx, uploader, rec)
	return rec, nil
}

func (s *Service) notifyClient(ctx context.Context, uploader model.Profile, rec *model.FileRecord) {
	project, err := s.store.GetProjectByID(ctx, rec.ProjectID)
	if err != nil {
		s.log.Warn("loading project for upload notice", zap.Error(err))
		return
	}
	client, err := s.store.GetClientByID(ctx, project.ClientID)
	if err != nil || client.Email == nil || *client.Email == "" {
		return
	}
	recipient, err := s.store.GetProfileByEmail(ctx, *client.Email)
	if err != nil || recipient.ID == uploader.ID {
		return
	}

	link := "/projects/" + rec.ProjectID
	projectID := rec.ProjectID
	actorID := uploader.ID
	_, err = s.store.CreateNotification(ctx, model.Notification{
		UserID:    recipient.ID,
		Type:      model.NotificationFileUpload,
		Title:     "New file uploaded",
		Message:   fmt.Sprintf("%s uploaded %s to %s.", uploader.FullName, rec.OriginalName, project.Name),
		Link:      &link,
		ProjectID: &projectID,
		ActorID:   &actorID,
	})
	if err != nil {
		s.log.Warn("notifying client of upload", zap.String("file_id", rec.ID), zap.Error(err))
	}
}

// Delete removes the blob and then the metadata row.
func (s *Service) Delete(ctx context.Context, id string) error {
	rec, err := s.store.GetFile(ctx, id)
	if err != nil {
		return apperr.Transient("loading file", err)
	}
	if err := s.bucket.Remove(ctx, rec.StoragePath); err != nil {
		return apperr.Transient("removing blob", err)
	}
	if err := s.store.DeleteFile(ctx, id); err != nil {
		return apperr.Transient("deleting file record", err)
	}
	return nil
}

// DownloadURL returns a signed URL for storagePath.
func (s *Service) DownloadURL(storagePath string) (string, error) {
	u, err := s.bucket.SignedURL(storagePath, s.ttl)
	if err != nil {
		return "", apperr.Transient("signing download url", err)
	}
	return u, nil
}

// StoragePath builds {projectID}/{unixMillis}-{random}.{ext} for a file
// named name.
func StoragePath(projectID, name string, at time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	object := strconv.FormatInt(at.UnixMilli(), 10) + "-" + suffix
	if ext := strings.TrimPrefix(path.Ext(name), "."); ext != "" {
		object += "." + strings.ToLower(ext)
	}
	return projectID + "/" + object
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatSize renders a byte count with binary units and at most two
// decimals, e.g. "1.5 KB".
func FormatSize(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}
	i := int(math.Floor(math.Log(float64(n)) / math.Log(1024)))
	i = min(i, len(sizeUnits)-1)
	v := math.Round(float64(n)/math.Pow(1024, float64(i))*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}

// Icon returns the glyph for a mime type.
func Icon(mime string) string {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return "🖼️"
	case strings.HasPrefix(mime, "video/"):
		return "🎬"
	case strings.HasPrefix(mime, "audio/"):
		return "🎵"
	case mime == "application/pdf":
		return "📕"
	case strings.Contains(mime, "word"):
		return "📘"
	case strings.Contains(mime, "excel"), strings.Contains(mime, "spreadsheet"):
		return "📗"
	case strings.Contains(mime, "powerpoint"), strings.Contains(mime, "presentation"):
		return "📙"
	case strings.Contains(mime, "zip"), strings.Contains(mime, "rar"):
		return "📦"
	default:
		return "📄"
	}
}

// IsImage reports whether mime is an image type.
func IsImage(mime string) bool {
	return strings.HasPrefix(mime, "image/")
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
