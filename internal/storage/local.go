package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Local writes objects below Dir. The API serves Dir at /uploads.
type Local struct {
	Dir     string
	BaseURL string
}

func NewLocal(dir, baseURL string) *Local {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &Local{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}
}

func (l *Local) Put(_ context.Context, key, _ string, body io.Reader) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}

	dst := filepath.Join(l.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", errors.Wrap(err, "create upload directory")
	}

	f, err := os.Create(dst)
	if err != nil {
		return "", errors.Wrap(err, "create upload file")
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return "", errors.Wrap(err, "write upload file")
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrap(err, "close upload file")
	}

	return fmt.Sprintf("%s/uploads/%s", l.BaseURL, key), nil
}
