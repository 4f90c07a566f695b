package services

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStorage keeps screenshot captures on local disk under the configured
// storage root. Stored paths are relative; MediaURL turns them into the
// /media/ URLs served by the router.
type LocalStorage struct {
	basePath string
}

func NewLocalStorage(basePath string) *LocalStorage {
	return &LocalStorage{basePath: basePath}
}

func (s *LocalStorage) SaveScreenshot(src io.Reader, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".webp":
	default:
		ext = ".png"
	}

	relPath := filepath.Join("screenshots", uuid.New().String()+ext)
	fullPath := filepath.Join(s.basePath, relPath)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create screenshot directory: %w", err)
	}

	dst, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create screenshot file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}

	return filepath.ToSlash(relPath), nil
}

// FullPath resolves a stored relative path to a path on disk.
func (s *LocalStorage) FullPath(relPath string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(relPath))
}

func MediaURL(relPath string) string {
	return "/media/" + relPath
}

func MediaURLPtr(relPath *string) *string {
	if relPath == nil || *relPath == "" {
		return nil
	}
	u := MediaURL(*relPath)
	return &u
}
