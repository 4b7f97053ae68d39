// Package storage provides the object storage used for source videos and
// staged chunk artifacts.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrObjectNotFound is returned when a key has no stored object.
var ErrObjectNotFound = errors.New("object not found")

// ErrObjectExists is returned when a write would replace a stored object.
var ErrObjectExists = errors.New("object already exists")

// ErrInvalidKey is returned for keys that escape the store root.
var ErrInvalidKey = errors.New("invalid object key")

// ObjectStore stores media objects by key.
type ObjectStore interface {
	// Download makes the object available locally and returns its path.
	Download(ctx context.Context, key string) (string, error)

	// Upload stores the file at localPath under key.
	Upload(ctx context.Context, localPath, key, contentType string) error

	// Delete removes the object. It reports whether anything was removed.
	Delete(ctx context.Context, key string) (bool, error)

	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)
}

// Filesystem is an ObjectStore rooted at a local directory.
type Filesystem struct {
	basePath string
	tempPath string
}

// NewFilesystem creates a filesystem store. tempPath holds in-flight uploads.
func NewFilesystem(basePath, tempPath string) (*Filesystem, error) {
	if basePath == "" {
		return nil, fmt.Errorf("storage base path is required")
	}
	if tempPath == "" {
		tempPath = filepath.Join(basePath, ".tmp")
	}
	for _, dir := range []string{basePath, tempPath} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}
	return &Filesystem{basePath: basePath, tempPath: tempPath}, nil
}

// BasePath returns the store root.
func (s *Filesystem) BasePath() string {
	return s.basePath
}

// TempPath returns the staging directory.
func (s *Filesystem) TempPath() string {
	return s.tempPath
}

// Path resolves key to a path under the store root.
func (s *Filesystem) Path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimSpace(key)))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.basePath, clean), nil
}

// Download returns the object's path. Objects already live on local disk, so
// nothing is copied.
func (s *Filesystem) Download(ctx context.Context, key string) (string, error) {
	path, err := s.Path(key)
	if err != nil {
		return "", err
	}
	stat, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("stat object: %w", err)
	}
	if stat.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrInvalidKey, key)
	}
	return path, nil
}

// Upload copies localPath into the store. The write goes to the temp
// directory first and is renamed into place.
func (s *Filesystem) Upload(ctx context.Context, localPath, key, contentType string) error {
	dest, err := s.Path(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open upload source: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(s.tempPath, "upload-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	_, err = io.Copy(tmp, src)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write object: %w", err)
	}

	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("move object to final location: %w", err)
	}
	return nil
}

// Exists reports whether a file is stored under key.
func (s *Filesystem) Exists(ctx context.Context, key string) (bool, error) {
	path, err := s.Path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat object: %w", err)
	}
	return true, nil
}

// Delete removes the object at key.
func (s *Filesystem) Delete(ctx context.Context, key string) (bool, error) {
	path, err := s.Path(key)
	if err != nil {
		return false, err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("delete object: %w", err)
	}
	return true, nil
}

// FreeSpace returns the bytes available to the process on the filesystem
// holding path, or 0 if it cannot be determined.
func FreeSpace(path string) int64 {
	return getFreeDiskSpace(path)
}
