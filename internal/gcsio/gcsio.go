// Package gcsio reads extraction sources and archives run artifacts on
// Google Cloud Storage. Sources may also be plain local paths, which the
// ingest command uses for ad-hoc runs.
package gcsio

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const uploadTimeout = 2 * time.Minute

// ParseURI splits a gs:// URI into bucket and object path.
func ParseURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("ParseURI: not a GCS URI: %s", uri)
	}
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("ParseURI: no object path: %s", uri)
	}
	return parts[0], parts[1], nil
}

// IsGCSURI reports whether the source names a GCS object rather than a
// local file.
func IsGCSURI(uri string) bool {
	return strings.HasPrefix(uri, "gs://")
}

// Fetch reads the full contents of a source, which is either a gs:// URI
// or a local file path.
func Fetch(ctx context.Context, source string) ([]byte, error) {
	if !IsGCSURI(source) {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("Fetch: reading local file: %w", err)
		}
		return data, nil
	}

	bucket, object, err := ParseURI(source)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: creating storage client: %w", err)
	}
	defer client.Close()

	rc, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading bytes: %w", err)
	}
	return data, nil
}

// Archive writes a run artifact under the given bucket and object name.
func Archive(ctx context.Context, bucket, object string, data []byte) error {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("Archive: creating storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := client.Bucket(bucket).Object(object).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("Archive: writing object %s/%s: %w", bucket, object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("Archive: finalizing upload: %w", err)
	}
	return nil
}
