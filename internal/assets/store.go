package assets

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteError reports an asset that could not be written to disk.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write asset %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Store writes assets into a single directory.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the directory assets are written to.
func (s *Store) Dir() string {
	return s.dir
}

// EnsureDir creates the asset directory if it does not exist.
func (s *Store) EnsureDir() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create asset dir: %w", err)
	}
	return nil
}

// Write stores data under name and returns the full path. The bytes go to a
// temp file in the same directory first, so name never holds a partial file.
func (s *Store) Write(name string, data []byte) (string, error) {
	path := filepath.Join(s.dir, name)
	if filepath.Base(name) != name || name == "" || name == "." || name == ".." {
		return "", &WriteError{Path: path, Err: fmt.Errorf("invalid asset name %q", name)}
	}

	if err := WriteFile(path, data, 0o644); err != nil {
		return "", &WriteError{Path: path, Err: err}
	}
	return path, nil
}

// WriteFile replaces path with data through a temp file and rename in the
// same directory, so readers see either the old or the new content.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
