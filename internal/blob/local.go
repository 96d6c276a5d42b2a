package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps PDFs on the local filesystem under a base directory.
// Intended for development and tests.
type LocalStore struct {
	baseDir string
}

func NewLocalStore(baseDir string) (*LocalStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("local blob: create base dir: %w", err)
	}
	return &LocalStore{baseDir: baseDir}, nil
}

func (s *LocalStore) Save(ctx context.Context, objectName string, r io.Reader) (string, error) {
	if strings.Contains(objectName, "..") {
		return "", fmt.Errorf("local blob: invalid object name: %s", objectName)
	}

	path := filepath.Join(s.baseDir, filepath.FromSlash(objectName))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("local blob: create dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("local blob: create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("local blob: write file: %w", err)
	}
	return path, nil
}

func (s *LocalStore) Fetch(ctx context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("local blob: read %s: %w", path, err)
	}
	return data, nil
}

var _ Store = (*LocalStore)(nil)
