// Package uploads stores receipt files on the local filesystem. Files are
// written once under a random name before the referencing expense record is
// created; there is no orphan cleanup.
package uploads

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/redlantern/bookkeeper/internal/domain"

	"github.com/google/uuid"
)

// Store persists receipt uploads under a single directory.
type Store struct {
	dir string
}

// NewStore creates the upload directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

// Save writes the upload to disk under "<uuid>.<ext>" and returns the stored
// filename. The extension is taken from the original name, lowercased.
func (s *Store) Save(originalName string, r io.Reader) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(originalName), "."))
	filename := uuid.New().String()
	if ext != "" {
		filename += "." + ext
	}

	f, err := os.Create(filepath.Join(s.dir, filename))
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return filename, nil
}

// Open returns a reader for a stored file. The name is sanitized to its base
// so path traversal cannot escape the upload dir.
func (s *Store) Open(filename string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.dir, filepath.Base(filename)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &domain.ErrNotFound{Resource: "upload", ID: filename}
		}
		return nil, err
	}
	return f, nil
}
