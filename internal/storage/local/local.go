// Package local implements storage.Store over the filesystem, laying blobs
// out as <base>/<bucket>/YYYY/MM/DD/<key> (grounded on
// original_source/app/storage/local.py's date-partitioned directory scheme).
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nextlevelbuilder/goclaw/internal/storage"
)

type Store struct {
	baseDir string
}

func New(baseDir string) (*Store, error) {
	if baseDir == "" {
		baseDir = "/tmp/goclaw-media"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("local storage: create base dir: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

func (s *Store) Put(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	datePath := time.Now().UTC().Format("2006/01/02")
	path := filepath.Join(s.baseDir, bucket, datePath, key)
	// A key may contain '/', so create the key's own parent directory.
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("local storage: mkdir %s: %w", dir, err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("local storage: write %s: %w", path, err)
	}

	return "file://" + path, nil
}

func (s *Store) Get(ctx context.Context, uri string) ([]byte, error) {
	path := strings.TrimPrefix(uri, "file://")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("local storage: read %s: %w", path, err)
	}
	return data, nil
}

var _ storage.Store = (*Store)(nil)
