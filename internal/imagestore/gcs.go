package imagestore

import (
	"context"
	"fmt"
	"path"
	"time"

	"cloud.google.com/go/storage"
)

// Archiver keeps an off-site copy of accepted receipt images. Archiving is
// best-effort: a failure is logged by the caller and never blocks or fails
// an upload.
type Archiver interface {
	Archive(ctx context.Context, objectName string, data []byte) error
}

// GCSArchiver copies uploads into a GCS bucket. It assumes Application
// Default Credentials are configured.
type GCSArchiver struct {
	bucket string
}

// NewGCSArchiver creates an archiver for the given bucket.
func NewGCSArchiver(bucket string) *GCSArchiver {
	return &GCSArchiver{bucket: bucket}
}

// Archive uploads the image bytes under receipts/YYYY/MM/DD/<name>.
func (a *GCSArchiver) Archive(ctx context.Context, objectName string, data []byte) error {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	object := path.Join("receipts", time.Now().Format("2006/01/02"), path.Base(objectName))
	w := client.Bucket(a.bucket).Object(object).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object %q: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload of %q: %w", object, err)
	}

	return nil
}

var _ Archiver = (*GCSArchiver)(nil)
