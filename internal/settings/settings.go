// Package settings caches the external JSON settings blob in memory
// behind a read-through/write-through guard, so every component
// that consults a setting on a hot path (such as the hotkey controller on
// every key-down) never touches disk directly.
package settings

import (
	"encoding/json"

	"github.com/voicedapp/voiced/internal/syncx"
)

// Postprocess holds the nested postprocess settings block.
type Postprocess struct {
	Enabled             bool              `json:"enabled"`
	Dictionary          map[string]string `json:"dictionary,omitempty"`
	CustomPrompt        string            `json:"custom_prompt,omitempty"`
	ModelName           string            `json:"model_name,omitempty"`
	CustomSummaryPrompt string            `json:"custom_summary_prompt,omitempty"`
}

// Settings is the exact key set the external JSON settings blob carries.
type Settings struct {
	Hotkey      string      `json:"hotkey"`
	Language    string      `json:"language"`
	AutoInsert  bool        `json:"auto_insert"`
	DeviceName  string      `json:"device_name,omitempty"`
	ModelName   string      `json:"model_name,omitempty"`
	Postprocess Postprocess `json:"postprocess"`
}

// Default returns the settings a fresh install starts with.
func Default() Settings {
	return Settings{
		Hotkey:     "ctrl+shift+space",
		Language:   "auto",
		AutoInsert: true,
	}
}

// Persister is the external collaborator boundary: wherever the settings
// blob actually lives (FilePersister, a JSON file, is the one this module
// ships). Swappable so tests never touch disk.
type Persister interface {
	Load() (Settings, error)
	Save(Settings) error
}

// Store is a read-through/write-through cache over a Persister, guarded
// by syncx.RWGuard so concurrent readers (hotkey controller, UI) never
// race a settings mutation.
type Store struct {
	persister Persister
	guard     *syncx.RWGuard[Settings]
}

// Open loads the current settings from persister (falling back to
// Default on a not-yet-created blob) and returns a ready Store.
func Open(persister Persister) (*Store, error) {
	current, err := persister.Load()
	if err != nil {
		return nil, err
	}
	return &Store{persister: persister, guard: syncx.NewGuard(current)}, nil
}

// Get returns a copy of the current settings.
func (s *Store) Get() Settings {
	return s.guard.Get()
}

// Update replaces the settings wholesale and synchronously writes
// through to the persister. On a persist error the in-memory cache is left
// unchanged, so a failed write never leaves the cache reporting settings
// that don't match disk.
func (s *Store) Update(next Settings) error {
	if err := s.persister.Save(next); err != nil {
		return err
	}
	s.guard.Set(next)
	return nil
}

// AutoInsert, DeviceName, Language, PostprocessEnabled, Dictionary, and
// CustomPrompt satisfy internal/hotkey.Settings without that package
// importing this one's full Settings/Persister surface.

func (s *Store) AutoInsert() bool { return s.guard.Get().AutoInsert }

func (s *Store) DeviceName() string { return s.guard.Get().DeviceName }

func (s *Store) Language() string { return s.guard.Get().Language }

func (s *Store) PostprocessEnabled() bool { return s.guard.Get().Postprocess.Enabled }

func (s *Store) Dictionary() map[string]string { return s.guard.Get().Postprocess.Dictionary }

func (s *Store) CustomPrompt() string { return s.guard.Get().Postprocess.CustomPrompt }

// Marshal and Unmarshal are exposed so a Persister implementation does
// not need to import encoding/json itself for the common case.
func Marshal(s Settings) ([]byte, error) { return json.MarshalIndent(s, "", "  ") }

func Unmarshal(data []byte) (Settings, error) {
	var s Settings
	err := json.Unmarshal(data, &s)
	return s, err
}
