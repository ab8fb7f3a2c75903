package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

const (
	// Signed download URLs are clamped to this range.
	MinDownloadTTL = time.Hour
	MaxDownloadTTL = 24 * time.Hour

	blobPutAttempts       = 3
	blobPutInitialBackoff = time.Second
)

// Blobs stores the original uploads and extracted-text backups in a GCS
// bucket.
type Blobs struct {
	bucket     *storage.BucketHandle
	bucketName string
	logger     *slog.Logger
}

func NewBlobs(client *storage.Client, bucketName string, logger *slog.Logger) (*Blobs, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("bucket name must be provided")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Blobs{bucket: client.Bucket(bucketName), bucketName: bucketName, logger: logger}, nil
}

// ObjectPath builds the canonical object name for a document's file.
// Uploads and text backups for one document share a prefix so deletion
// can sweep them together.
func ObjectPath(ownerUID, documentID, filename string) string {
	return fmt.Sprintf("documents/%s/%s/%s", ownerUID, documentID, filename)
}

// Put writes the payload to the object, retrying server-side GCS
// failures with a doubling backoff.
func (b *Blobs) Put(ctx context.Context, objectName, contentType string, payload []byte) error {
	backoff := blobPutInitialBackoff
	var lastErr error

	for attempt := 1; attempt <= blobPutAttempts; attempt++ {
		lastErr = b.putOnce(ctx, objectName, contentType, payload)
		if lastErr == nil {
			return nil
		}
		if !isServerSide(lastErr) || attempt == blobPutAttempts {
			break
		}
		b.logger.Warn("blob write failed, retrying",
			"object", objectName,
			"attempt", attempt,
			"error", lastErr)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}
	return fmt.Errorf("write object %s: %w", objectName, lastErr)
}

func (b *Blobs) putOnce(ctx context.Context, objectName, contentType string, payload []byte) error {
	writer := b.bucket.Object(objectName).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := writer.Write(payload); err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}

// Get reads an object in full.
func (b *Blobs) Get(ctx context.Context, objectName string) ([]byte, error) {
	reader, err := b.bucket.Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open object %s: %w", objectName, err)
	}
	defer reader.Close()

	payload, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", objectName, err)
	}
	return payload, nil
}

// Delete removes an object. A missing object is not an error, so
// deletion stays idempotent.
func (b *Blobs) Delete(ctx context.Context, objectName string) error {
	err := b.bucket.Object(objectName).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete object %s: %w", objectName, err)
	}
	return nil
}

// SignedURL issues a V4 signed download URL. The TTL is clamped to the
// allowed range rather than rejected.
func (b *Blobs) SignedURL(objectName string, ttl time.Duration) (string, error) {
	if ttl < MinDownloadTTL {
		ttl = MinDownloadTTL
	}
	if ttl > MaxDownloadTTL {
		ttl = MaxDownloadTTL
	}

	url, err := b.bucket.SignedURL(objectName, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("sign url for %s: %w", objectName, err)
	}
	return url, nil
}

func isServerSide(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code >= 500
	}
	return false
}
