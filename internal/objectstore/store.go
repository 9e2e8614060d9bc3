package objectstore

import (
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"
)

// ObjectStore is the minimal put/get surface the pipeline needs from a
// remote object store. Uploads are atomic per object: either the full object
// lands at the key or nothing does.
type ObjectStore interface {
	Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error
	Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error)
}

// ErrObjectNotFound is returned by Download when no object exists at the key.
var ErrObjectNotFound = errors.New("object not found")

// GCSStore is the Google Cloud Storage implementation of ObjectStore.
type GCSStore struct {
	client *storage.Client
}

var _ ObjectStore = (*GCSStore)(nil)

// NewGCSStore creates a GCS-backed object store using ambient credentials
// (service account key or application default credentials).
func NewGCSStore(ctx context.Context) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GCSStore{client: client}, nil
}

// Upload writes the full reader contents to bucket/objectName. The object
// only becomes visible once the writer is closed successfully.
func (s *GCSStore) Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error {
	w := s.client.Bucket(bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// Download opens a reader over bucket/objectName. The caller must close it.
func (s *GCSStore) Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(bucket).Object(objectName).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	return r, nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
