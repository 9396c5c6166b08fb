package imagestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Local stores uploaded receipt images on disk under a single directory.
// Files are named by a generated UUID, never by the client filename, so
// concurrent uploads cannot collide. The relational store holds the hash
// and status needed to reconcile with this directory independently.
type Local struct {
	dir string
}

// NewLocal creates the upload directory if needed and returns the store.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("imagestore: create upload dir %q: %w", dir, err)
	}
	return &Local{dir: dir}, nil
}

// Save writes the image bytes under a generated unique name and returns the
// stored path. originalName is only consulted for its extension.
func (l *Local) Save(data []byte, originalName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if ext == "" {
		ext = ".jpg"
	}
	path := filepath.Join(l.dir, uuid.New().String()+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("imagestore: write %q: %w", path, err)
	}
	return path, nil
}

// Read returns the stored image bytes.
func (l *Local) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("imagestore: read %q: %w", path, err)
	}
	return data, nil
}

// Exists reports whether the stored image is still on disk. Retry depends
// on this: a scan whose image is gone must be re-uploaded instead.
func (l *Local) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Remove deletes a stored image. Callers treat failures as log-and-continue;
// the image is a disposable cache artifact once the scan is done.
func (l *Local) Remove(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("imagestore: remove %q: %w", path, err)
	}
	return nil
}
