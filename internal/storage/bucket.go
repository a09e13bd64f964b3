// Package storage is the blob gateway for project files: a fileblob bucket
// on the local filesystem that hands out HMAC-signed, expiring URLs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/gcerrors"

	"github.com/nhle/epikom-hub/internal/apperr"
)

// ErrBadSignature is returned by Verify for tampered or foreign URLs.
var ErrBadSignature = errors.New("storage: bad signature")

// ErrExpired is returned by Verify once a signed URL has lapsed.
var ErrExpired = errors.New("storage: signed url expired")

// Bucket stores blobs under slash-separated object paths.
type Bucket interface {
	Upload(ctx context.Context, objectPath string, r io.Reader) error
	SignedURL(objectPath string, ttl time.Duration) (string, error)
	Remove(ctx context.Context, objectPaths ...string) error
	Open(ctx context.Context, objectPath string) (io.ReadCloser, error)
}

// LocalBucket keeps a bucket as a directory tree under root.
type LocalBucket struct {
	bucket *blob.Bucket
	signer *fileblob.URLSignerHMAC
	base   *url.URL
	name   string
	now    func() time.Time
}

// NewLocalBucket opens (creating if needed) bucket name under root.
// secret signs the URLs handed out by SignedURL.
func NewLocalBucket(root, name string, secret []byte) (*LocalBucket, error) {
	if len(secret) == 0 {
		return nil, errors.New("storage: empty signing secret")
	}
	dir, err := filepath.Abs(filepath.Join(root, name))
	if err != nil {
		return nil, fmt.Errorf("resolving bucket dir %s: %w", filepath.Join(root, name), err)
	}

	base := &url.URL{Scheme: "file", Path: filepath.ToSlash(dir)}
	signer := fileblob.NewURLSignerHMAC(base, secret)
	bucket, err := fileblob.OpenBucket(dir, &fileblob.Options{
		URLSigner: signer,
		CreateDir: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening bucket dir %s: %w", dir, err)
	}
	return &LocalBucket{
		bucket: bucket,
		signer: signer,
		base:   base,
		name:   name,
		now:    time.Now,
	}, nil
}

// Name returns the bucket name.
func (b *LocalBucket) Name() string {
	return b.name
}

// Close releases the underlying bucket.
func (b *LocalBucket) Close() error {
	return b.bucket.Close()
}

// objectKey checks that objectPath is a clean relative path.
func objectKey(objectPath string) (string, error) {
	clean := path.Clean("/" + objectPath)[1:]
	if clean == "" || clean != objectPath {
		return "", apperr.Invalid("path", "invalid object path %q", objectPath)
	}
	return clean, nil
}

// Upload writes r to objectPath. Existing objects are not overwritten.
func (b *LocalBucket) Upload(ctx context.Context, objectPath string, r io.Reader) error {
	key, err := objectKey(objectPath)
	if err != nil {
		return err
	}
	exists, err := b.bucket.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("checking object %s: %w", objectPath, err)
	}
	if exists {
		return apperr.Invalid("path", "object %s already exists", objectPath)
	}

	// Cancelling the writer's context discards a partial object.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w, err := b.bucket.NewWriter(wctx, key, nil)
	if err != nil {
		return fmt.Errorf("creating object %s: %w", objectPath, err)
	}
	if _, err := io.Copy(w, r); err != nil {
		cancel()
		_ = w.Close()
		return fmt.Errorf("writing object %s: %w", objectPath, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing object %s: %w", objectPath, err)
	}
	return nil
}

// Open returns a reader for objectPath.
func (b *LocalBucket) Open(ctx context.Context, objectPath string) (io.ReadCloser, error) {
	key, err := objectKey(objectPath)
	if err != nil {
		return nil, err
	}
	r, err := b.bucket.NewReader(ctx, key, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, apperr.NotFound("object", objectPath)
		}
		return nil, fmt.Errorf("opening object %s: %w", objectPath, err)
	}
	return r, nil
}

// Remove deletes the given objects. Missing objects are ignored.
func (b *LocalBucket) Remove(ctx context.Context, objectPaths ...string) error {
	var errs []error
	for _, p := range objectPaths {
		if err := ctx.Err(); err != nil {
			return err
		}
		key, err := objectKey(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := b.bucket.Delete(ctx, key); err != nil && gcerrors.Code(err) != gcerrors.NotFound {
			errs = append(errs, fmt.Errorf("removing object %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

// SignedURL returns a file:// URL for objectPath valid for ttl.
func (b *LocalBucket) SignedURL(objectPath string, ttl time.Duration) (string, error) {
	key, err := objectKey(objectPath)
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		return "", apperr.Invalid("ttl", "must be greater than 0")
	}
	u, err := b.bucket.SignedURL(context.Background(), key, &blob.SignedURLOptions{Expiry: ttl})
	if err != nil {
		return "", fmt.Errorf("signing object %s: %w", objectPath, err)
	}
	return u, nil
}

// Verify checks a URL produced by SignedURL and returns its object path.
func (b *LocalBucket) Verify(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing signed url: %w", err)
	}
	if u.Scheme != b.base.Scheme || u.Path != b.base.Path {
		return "", ErrBadSignature
	}
	expires, err := strconv.ParseInt(u.Query().Get("expiry"), 10, 64)
	if err != nil {
		return "", ErrBadSignature
	}
	if b.now().Unix() >= expires {
		return "", ErrExpired
	}

	key, err := b.signer.KeyFromURL(context.Background(), u)
	if err != nil {
		return "", ErrBadSignature
	}
	if _, err := objectKey(key); err != nil {
		return "", ErrBadSignature
	}
	return key, nil
}
