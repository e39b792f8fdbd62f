// Package storage saves uploaded files and returns the URL they are served from.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrEmptyKey is returned for a key that names no object.
var ErrEmptyKey = errors.New("storage: empty key")

// Blob stores an object under key and returns its public URL.
type Blob interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

// ProfileKey builds a collision-free key for a file a user uploads. Only the
// extension of the original name is kept.
func ProfileKey(userID int64, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return path.Join("profiles", fmt.Sprint(userID), uuid.New().String()+ext)
}

// cleanKey rejects keys that would escape the storage root.
func cleanKey(key string) (string, error) {
	cleaned := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", ErrEmptyKey
	}
	return cleaned, nil
}
