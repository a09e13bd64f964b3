package storage

import (
	"context"
	"io"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/epikom-hub/internal/apperr"
)

func newBucket(t *testing.T) *LocalBucket {
	t.Helper()
	b, err := NewLocalBucket(t.TempDir(), "project-files", []byte("secret"))
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func TestUploadOpenRemove(t *testing.T) {
	b := newBucket(t)
	ctx := context.Background()

	require.NoError(t, b.Upload(ctx, "p1/1700000000000-ab12cd.pdf", strings.NewReader("hello")))
	err := b.Upload(ctx, "p1/1700000000000-ab12cd.pdf", strings.NewReader("again"))
	assert.True(t, apperr.IsValidation(err))

	rc, err := b.Open(ctx, "p1/1700000000000-ab12cd.pdf")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello", string(data))

	require.NoError(t, b.Remove(ctx, "p1/1700000000000-ab12cd.pdf", "p1/missing.txt"))
	_, err = b.Open(ctx, "p1/1700000000000-ab12cd.pdf")
	assert.True(t, apperr.IsNotFound(err))
}

func TestRejectsEscapingPaths(t *testing.T) {
	b := newBucket(t)
	for _, p := range []string{"", "/abs.txt", "../up.txt", "p1/../../up.txt", "p1//x.txt"} {
		t.Run(p, func(t *testing.T) {
			err := b.Upload(context.Background(), p, strings.NewReader("x"))
			assert.True(t, apperr.IsValidation(err))
		})
	}
}

func TestSignedURL(t *testing.T) {
	b := newBucket(t)
	now := time.Now()

	raw, err := b.SignedURL("p1/report.pdf", time.Hour)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw, "file://"))

	got, err := b.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "p1/report.pdf", got)

	_, err = b.Verify(strings.Replace(raw, "report.pdf", "secret.pdf", 1))
	assert.ErrorIs(t, err, ErrBadSignature)

	other, err := NewLocalBucket(t.TempDir(), "project-files", []byte("other"))
	require.NoError(t, err)
	defer other.Close()
	_, err = other.Verify(raw)
	assert.ErrorIs(t, err, ErrBadSignature)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	forged := &url.URL{Scheme: u.Scheme, Path: u.Path, RawQuery: u.RawQuery}
	q := forged.Query()
	q.Set("expiry", strconv.FormatInt(now.Add(48*time.Hour).Unix(), 10))
	forged.RawQuery = q.Encode()
	_, err = b.Verify(forged.String())
	assert.ErrorIs(t, err, ErrBadSignature)

	b.now = func() time.Time { return now.Add(2 * time.Hour) }
	_, err = b.Verify(raw)
	assert.ErrorIs(t, err, ErrExpired)

	_, err = b.SignedURL("p1/report.pdf", 0)
	assert.True(t, apperr.IsValidation(err))
}
