package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// ErrNotFound is returned by Retrieve when no object exists under the key.
var ErrNotFound = errors.New("artifact not found")

// Storage defines the interface for archived artifact storage.
type Storage interface {
	// Store writes data under key and returns the number of bytes written.
	// size is the exact length of data when known, or -1.
	Store(ctx context.Context, key string, data io.Reader, size int64, contentType string) (int64, error)

	// Retrieve returns a ReadCloser for the stored data.
	Retrieve(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks whether data exists under key.
	Exists(ctx context.Context, key string) (bool, error)
}

// ArtifactKey returns the archive key for one variant of a job's output.
func ArtifactKey(jobID, variant string) string {
	if variant == "" {
		variant = "video"
	}
	return jobID + "/" + variant
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	cleaned := path.Clean("/" + key)[1:]
	if cleaned == "" || cleaned == "." {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}
