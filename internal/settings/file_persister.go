package settings

import (
	"errors"
	"os"
	"path/filepath"
)

// FilePersister is the default Persister: a single JSON file, written
// atomically (write to a temp file in the same directory, then rename)
// so a crash mid-write never leaves a truncated settings blob.
type FilePersister struct {
	path string
}

// NewFilePersister returns a Persister backed by path.
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

// Load reads and parses the settings file, returning Default() if the
// file does not yet exist.
func (p *FilePersister) Load() (Settings, error) {
	data, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Settings{}, err
	}
	return Unmarshal(data)
}

// Save atomically writes s to the settings file.
func (p *FilePersister) Save(s Settings) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return err
	}

	data, err := Marshal(s)
	if err != nil {
		return err
	}

	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, p.path)
}
