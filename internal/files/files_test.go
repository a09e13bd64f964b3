package files

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/epikom-hub/internal/apperr"
	"github.com/nhle/epikom-hub/internal/model"
	"github.com/nhle/epikom-hub/internal/storage"
	"github.com/nhle/epikom-hub/internal/store"
	"github.com/nhle/epikom-hub/tests/testutil"
)

type harness struct {
	store  *store.SQLiteStore
	bucket *storage.LocalBucket
	svc    *Service
	fx     testutil.Fixture
}

func newHarness(t *testing.T) harness {
	t.Helper()
	s := testutil.NewTestStore(t)
	b, err := storage.NewLocalBucket(t.TempDir(), "project-files", []byte("k"))
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return harness{store: s, bucket: b, svc: NewService(s, b), fx: testutil.Seed(t, s)}
}

func TestStoragePath(t *testing.T) {
	at := time.UnixMilli(1760430000123)
	p := StoragePath("proj-1", "Brief.Final.PDF", at)
	assert.Regexp(t, regexp.MustCompile(`^proj-1/1760430000123-[0-9a-f]{6}\.pdf$`), p)

	p = StoragePath("proj-1", "README", at)
	assert.Regexp(t, regexp.MustCompile(`^proj-1/1760430000123-[0-9a-f]{6}$`), p)
	assert.NotEqual(t, p, StoragePath("proj-1", "README", at))
}

func TestUploadListDelete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	client := testutil.MustProfile(t, h.store, "Bill Client", "billing@client.test", model.RoleClient)

	rec, err := h.svc.Upload(ctx, *h.fx.Admin, h.fx.Project.ID, Upload{
		Name: "moodboard.png", MimeType: "image/png", Body: strings.NewReader("12345"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), rec.Size)
	assert.Equal(t, "moodboard.png", rec.OriginalName)
	assert.True(t, strings.HasPrefix(rec.StoragePath, h.fx.Project.ID+"/"))
	assert.Equal(t, rec.Name, rec.StoragePath[len(h.fx.Project.ID)+1:])

	rc, err := h.bucket.Open(ctx, rec.StoragePath)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "12345", string(data))

	inbox, err := h.store.ListNotifications(ctx, client.ID, 0)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, model.NotificationFileUpload, inbox[0].Type)
	assert.Contains(t, inbox[0].Message, "moodboard.png")

	list, err := h.svc.List(ctx, h.fx.Project.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	u, err := h.svc.DownloadURL(rec.StoragePath)
	require.NoError(t, err)
	got, err := h.bucket.Verify(u)
	require.NoError(t, err)
	assert.Equal(t, rec.StoragePath, got)

	require.NoError(t, h.svc.Delete(ctx, rec.ID))
	_, err = h.bucket.Open(ctx, rec.StoragePath)
	assert.True(t, apperr.IsNotFound(err))
	list, err = h.svc.List(ctx, h.fx.Project.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.True(t, apperr.IsNotFound(h.svc.Delete(ctx, rec.ID)))
}

func TestUploadWithoutLinkedClientSkipsNotice(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Upload(ctx, *h.fx.Admin, h.fx.Project.ID, Upload{
		Name: "notes.txt", MimeType: "text/plain", Body: strings.NewReader("x"),
	})
	require.NoError(t, err)

	for _, p := range []*model.Profile{h.fx.Admin, h.fx.Member} {
		inbox, err := h.store.ListNotifications(ctx, p.ID, 0)
		require.NoError(t, err)
		assert.Empty(t, inbox)
	}

	_, err = h.svc.Upload(ctx, *h.fx.Admin, h.fx.Project.ID, Upload{Name: " ", Body: strings.NewReader("x")})
	assert.True(t, apperr.IsValidation(err))
}

type failingMetadata struct {
	Store
}

type recordingBucket struct {
	storage.Bucket
	uploaded []string
}

func (r *recordingBucket) Upload(ctx context.Context, objectPath string, body io.Reader) error {
	r.uploaded = append(r.uploaded, objectPath)
	return r.Bucket.Upload(ctx, objectPath, body)
}

func (failingMetadata) CreateFile(context.Context, model.FileRecord) (*model.FileRecord, error) {
	return nil, errors.New("database is locked")
}

func TestUploadRemovesBlobWhenMetadataFails(t *testing.T) {
	h := newHarness(t)
	rec := &recordingBucket{Bucket: h.bucket}
	svc := NewService(failingMetadata{Store: h.store}, rec)

	_, err := svc.Upload(context.Background(), *h.fx.Admin, h.fx.Project.ID, Upload{
		Name: "a.txt", Body: strings.NewReader("x"),
	})
	require.Error(t, err)
	assert.True(t, apperr.IsTransient(err))

	require.Len(t, rec.uploaded, 1)
	_, err = h.bucket.Open(context.Background(), rec.uploaded[0])
	assert.True(t, apperr.IsNotFound(err))
}

func TestFormatSize(t *testing.T) {
	tests := map[int64]string{
		0:       "0 Bytes",
		500:     "500 Bytes",
		1024:    "1 KB",
		1536:    "1.5 KB",
		5 << 20: "5 MB",
		3 << 40: "3072 GB",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatSize(in), "size %d", in)
	}
}

func TestIcon(t *testing.T) {
	assert.Equal(t, "🖼️", Icon("image/png"))
	assert.Equal(t, "📕", Icon("application/pdf"))
	assert.Equal(t, "📗", Icon("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"))
	assert.Equal(t, "📦", Icon("application/zip"))
	assert.Equal(t, "📄", Icon("text/plain"))
	assert.True(t, IsImage("image/gif"))
}
