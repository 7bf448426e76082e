package bill

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Storage defines the interface for bill image storage
type Storage interface {
	// Save stores an image under the owner's folder and returns the
	// relative path used to retrieve it later
	Save(owner, filename string, data []byte) (string, error)

	// Get retrieves an image by relative path
	Get(path string) ([]byte, error)

	// Delete removes an image
	Delete(path string) error
}

// LocalStorage implements the Storage interface using the local filesystem,
// one subfolder per owner.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new LocalStorage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

// Save stores an image under the owner's folder
func (l *LocalStorage) Save(owner, filename string, data []byte) (string, error) {
	dir := filepath.Join(l.basePath, owner)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating owner directory: %w", err)
	}
	rel := filepath.Join(owner, filename)
	if err := os.WriteFile(filepath.Join(l.basePath, rel), data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return rel, nil
}

// Get retrieves an image from local storage
func (l *LocalStorage) Get(path string) ([]byte, error) {
	full, err := l.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes an image from local storage
func (l *LocalStorage) Delete(path string) error {
	full, err := l.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

// resolve joins and confines the path to the storage root
func (l *LocalStorage) resolve(path string) (string, error) {
	full := filepath.Join(l.basePath, filepath.Clean("/"+path))
	if !strings.HasPrefix(full, filepath.Clean(l.basePath)+string(os.PathSeparator)) {
		return "", fmt.Errorf("path %q escapes storage root", path)
	}
	return full, nil
}
