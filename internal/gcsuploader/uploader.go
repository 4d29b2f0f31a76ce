package gcsuploader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// statementPrefix is the object prefix under which statements are archived.
const statementPrefix = "statements"

// Archive stores uploaded statements in a GCS bucket. It assumes Application
// Default Credentials are configured (gcloud auth application-default login).
type Archive struct {
	client *storage.Client
	bucket string
	now    func() time.Time
}

// NewArchive creates the storage client once for the life of the archive.
func NewArchive(ctx context.Context, bucket string) (*Archive, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &Archive{client: client, bucket: bucket, now: time.Now}, nil
}

// Close releases the storage client.
func (a *Archive) Close() error {
	return a.client.Close()
}

// StorePDF uploads data to statements/<yyyy/mm/dd>/<documentID>.pdf.
func (a *Archive) StorePDF(ctx context.Context, documentID string, data []byte) (string, error) {
	objectName := ObjectName(documentID, a.now())

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := a.client.Bucket(a.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = "application/pdf"
	w.Metadata = map[string]string{"document_id": documentID}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("copy statement to GCS writer: %w", err)
	}

	// Close to finalize the upload
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize upload: %w", err)
	}

	return "gs://" + a.bucket + "/" + objectName, nil
}

// FetchFromGCS downloads the file bytes from the given GCS URI. The URI may
// point to any bucket the credentials can read.
func (a *Archive) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	bucketName, objectPath, err := ParseGCSURI(gcsURI)
	if err != nil {
		return nil, err
	}

	rc, err := a.client.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetchFromGCS: reading object %s/%s: %w", bucketName, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("fetchFromGCS: reading bytes: %w", err)
	}

	return data, nil
}

// ObjectName returns the archive object path for a statement uploaded at t.
func ObjectName(documentID string, t time.Time) string {
	return path.Join(statementPrefix, t.UTC().Format("2006/01/02"), documentID+".pdf")
}

// ParseGCSURI splits gs://bucket/path/to/object into bucket and object path.
func ParseGCSURI(gcsURI string) (bucket, object string, err error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}

	trimmed := strings.TrimPrefix(gcsURI, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}

	return parts[0], parts[1], nil
}

// ExtractFilenameFromGCSURI extracts the filename from a GCS URI.
// e.g., "gs://bucket/folder/file.pdf" → "file.pdf"
func ExtractFilenameFromGCSURI(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")

	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}

	return path.Base(parts[1])
}
