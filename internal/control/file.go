package control

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Control file names inside the work directory.
const (
	PauseFileName      = ".wiggum-pause"
	MaxFileName        = ".wiggum-max"
	HintFileName       = ".wiggum-hint"
	StateFileName      = ".wiggum-state.json"
	HintsArchiveDir    = ".wiggum-hints-archive"
	hintArchivePattern = "hint-%s.txt"
)

var fileNames = map[Key]string{
	KeyPause: PauseFileName,
	KeyMax:   MaxFileName,
	KeyHint:  HintFileName,
	KeyState: StateFileName,
}

// FileStore keeps each control value in its own file under a work directory.
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the work directory.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(key Key) (string, error) {
	name, ok := fileNames[key]
	if !ok {
		return "", fmt.Errorf("unknown control key %q", key)
	}
	return filepath.Join(s.dir, name), nil
}

// Get implements Store.
func (s *FileStore) Get(_ context.Context, key Key) ([]byte, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read control file: %w", err)
	}
	return data, nil
}

// Set implements Store. Writes go through a temp file and rename so readers
// never observe a partial value.
func (s *FileStore) Set(_ context.Context, key Key, value []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, value)
}

// Delete implements Store.
func (s *FileStore) Delete(_ context.Context, key Key) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove control file: %w", err)
	}
	return nil
}

// Archive implements Store by writing hint-<name>.txt into the archive
// directory, creating it on demand.
func (s *FileStore) Archive(_ context.Context, name string, value []byte) error {
	dir := filepath.Join(s.dir, HintsArchiveDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create hints archive: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf(hintArchivePattern, name))
	if err := os.WriteFile(path, value, 0644); err != nil {
		return fmt.Errorf("failed to archive hint: %w", err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmpPath := fmt.Sprintf("%s.tmp.%d", path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
