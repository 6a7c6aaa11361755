package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/adevnylo/hll-seed-ping/internal/models"
)

var (
	ErrNotFound = errors.New("settings file not found")
	ErrCorrupt  = errors.New("settings file is corrupt")
	ErrLocked   = errors.New("settings file is locked by another process")
)

// PersistError reports a failed write of the settings record.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// FileStore keeps the settings record as indented JSON in a single file.
// Fields missing from the file are taken from the template, if set.
type FileStore struct {
	path     string
	template *models.SeedSettings
}

func NewFileStore(path string, template *models.SeedSettings) *FileStore {
	return &FileStore{path: path, template: template}
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load() (*models.SeedSettings, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	out := &models.SeedSettings{}
	if s.template != nil {
		out = s.template.Clone()
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrCorrupt)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return out, nil
}

// Save writes to a temporary file in the same directory and renames it over
// the previous record.
func (s *FileStore) Save(v *models.SeedSettings) error {
	b, err := Marshal(v)
	if err != nil {
		return &PersistError{Path: s.path, Err: err}
	}
	if err := atomicWriteFile(s.path, b, 0o644); err != nil {
		return &PersistError{Path: s.path, Err: err}
	}
	return nil
}

// Quarantine moves the current file aside so a reset does not destroy it.
func (s *FileStore) Quarantine() (string, error) {
	dst := s.path + ".corrupt"
	if err := os.Rename(s.path, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// Lock takes an advisory lock next to the settings file. The returned func
// releases it.
func (s *FileStore) Lock() (func(), error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, err
	}
	fl := flock.New(s.path + ".lock")
	ok, err := fl.TryLock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, fl.Path())
	}
	return func() { _ = fl.Unlock() }, nil
}

// Marshal renders the record the way it is stored on disk. HTML characters
// stay unescaped so role mentions like <@&123> remain readable.
func Marshal(v *models.SeedSettings) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
