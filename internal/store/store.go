package store

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/gcerrors"
)

// Store holds retrieved forecast files in a blob bucket. A file's presence
// with non-zero size is the only record that its task is done; there is no
// separate manifest.
type Store struct {
	bucket *blob.Bucket
	url    string
}

// Open opens the data store. Accepts any registered bucket URL
// ("s3://...", "mem://", ...) or a plain directory path, which must
// already exist.
func Open(ctx context.Context, urlstr string) (*Store, error) {
	if !hasScheme(urlstr) {
		info, err := os.Stat(urlstr)
		if err != nil {
			return nil, fmt.Errorf("store: stat %s: %w", urlstr, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("store: %s is not a directory", urlstr)
		}
		abs, err := filepath.Abs(urlstr)
		if err != nil {
			return nil, fmt.Errorf("store: resolve %s: %w", urlstr, err)
		}
		bucket, err := fileblob.OpenBucket(abs, nil)
		if err != nil {
			return nil, fmt.Errorf("store: open %s: %w", abs, err)
		}
		return &Store{bucket: bucket, url: abs}, nil
	}

	bucket, err := blob.OpenBucket(ctx, urlstr)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", urlstr, err)
	}
	return &Store{bucket: bucket, url: urlstr}, nil
}

// FromBucket wraps an already-open bucket. The caller keeps ownership.
func FromBucket(bucket *blob.Bucket) *Store {
	return &Store{bucket: bucket}
}

// Size returns the stored size of an object in bytes, or 0 if it does not
// exist.
func (s *Store) Size(ctx context.Context, name string) (int64, error) {
	attrs, err := s.bucket.Attributes(ctx, name)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return 0, nil
		}
		return 0, fmt.Errorf("store: attributes %s: %w", name, err)
	}
	return attrs.Size, nil
}

// NewWriter opens a writer for an object. Nothing is visible under name
// until Close returns nil; cancelling the context passed here aborts the
// write instead of committing it.
func (s *Store) NewWriter(ctx context.Context, name string) (io.WriteCloser, error) {
	w, err := s.bucket.NewWriter(ctx, name, nil)
	if err != nil {
		return nil, fmt.Errorf("store: create %s: %w", name, err)
	}
	return w, nil
}

// Delete removes an object. Deleting a missing object is not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	err := s.bucket.Delete(ctx, name)
	if err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return fmt.Errorf("store: delete %s: %w", name, err)
	}
	return nil
}

// URL returns the location the store was opened with, for logging.
func (s *Store) URL() string {
	return s.url
}

// Close releases the underlying bucket.
func (s *Store) Close() error {
	return s.bucket.Close()
}

func hasScheme(urlstr string) bool {
	u, err := url.Parse(urlstr)
	if err != nil {
		return false
	}
	// Windows drive letters parse as single-character schemes.
	return u.Scheme != "" && len(u.Scheme) > 1 && !strings.HasPrefix(urlstr, "/")
}
