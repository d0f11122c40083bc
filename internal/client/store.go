package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/kliiq/kliiq/internal/models"
)

// MaxActivity is how many activity entries the local store keeps.
const MaxActivity = 100

// Activity is one line of the local activity log.
type Activity struct {
	At      time.Time `json:"at"`
	Action  string    `json:"action"`
	Details string    `json:"details,omitempty"`
}

// PackSnapshot is the last pack list and plan usage seen from the API.
type PackSnapshot struct {
	SavedAt time.Time     `json:"saved_at"`
	Key     string        `json:"key"`
	Usage   Usage         `json:"usage"`
	Packs   []models.Pack `json:"packs"`
}

// State is what the CLI remembers between runs.
type State struct {
	Packs     *PackSnapshot `json:"packs,omitempty"`
	DeviceKey string        `json:"device_key"`
	DeviceID  string        `json:"device_id,omitempty"`
	Activity  []Activity    `json:"activity"`
}

// Store persists State as a JSON file. Nothing is read or written outside of
// Load and Save.
type Store struct {
	path  string
	State State
}

// DefaultStorePath returns <user config dir>/kliiq/state.json.
func DefaultStorePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config dir: %w", err)
	}
	return filepath.Join(dir, "kliiq", "state.json"), nil
}

// NewStore creates a store backed by path. Call Load before use.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the file backing the store.
func (s *Store) Path() string {
	return s.path
}

// Load reads the state file. A missing file yields a fresh state with a new
// device key.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.State = State{DeviceKey: uuid.NewString()}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to parse state %s: %w", s.path, err)
	}
	if state.DeviceKey == "" {
		state.DeviceKey = uuid.NewString()
	}
	s.State = state
	return nil
}

// Save writes the state file atomically.
func (s *Store) Save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}

	data, err := json.MarshalIndent(s.State, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".state-*.json")
	if err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

// Record appends to the activity log, dropping the oldest entries past
// MaxActivity.
func (s *Store) Record(action, details string) {
	s.State.Activity = append(s.State.Activity, Activity{
		At:      time.Now().UTC(),
		Action:  action,
		Details: details,
	})
	if n := len(s.State.Activity); n > MaxActivity {
		s.State.Activity = s.State.Activity[n-MaxActivity:]
	}
}
