// Package keys stores the Gemini API key in the user's config directory.
package keys

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// EnvAPIKey is the environment fallback for the Gemini key.
const EnvAPIKey = "GEMINI_API_KEY"

// entryName is the keys.json entry the key lives under. The file is a map
// so older files with extra entries still parse.
const entryName = "gemini"

// Store handles API key storage and retrieval
type Store struct {
	configDir string
}

type keyEntry struct {
	Key string `json:"key"`
}

// NewStore creates a new key store
func NewStore() (*Store, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, err
	}
	return &Store{configDir: configDir}, nil
}

// getConfigDir returns the platform-specific config directory
func getConfigDir() (string, error) {
	// Allow override for testing
	if testDir := os.Getenv("GENASS_CONFIG_DIR"); testDir != "" {
		return testDir, nil
	}

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", "genass"), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, "genass"), nil
	default: // linux and others
		// Follow XDG Base Directory Specification
		configHome := os.Getenv("XDG_CONFIG_HOME")
		if configHome == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configHome = filepath.Join(home, ".config")
		}
		return filepath.Join(configHome, "genass"), nil
	}
}

// Path returns the path to the keys.json file
func (s *Store) Path() string {
	return filepath.Join(s.configDir, "keys.json")
}

func (s *Store) load() (map[string]keyEntry, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]keyEntry), nil
		}
		return nil, err
	}

	var entries map[string]keyEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse keys.json: %w", err)
	}
	return entries, nil
}

func (s *Store) save(entries map[string]keyEntry) error {
	if err := os.MkdirAll(s.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}

	// Write with restricted permissions (owner read/write only)
	if err := os.WriteFile(s.Path(), data, 0600); err != nil {
		return fmt.Errorf("failed to write keys.json: %w", err)
	}
	return nil
}

// Set stores the API key
func (s *Store) Set(key string) error {
	entries, err := s.load()
	if err != nil {
		return err
	}

	entries[entryName] = keyEntry{Key: key}
	return s.save(entries)
}

// Get retrieves the stored API key, or "" when none is stored
func (s *Store) Get() (string, error) {
	entries, err := s.load()
	if err != nil {
		return "", err
	}
	return entries[entryName].Key, nil
}

// Delete removes the stored API key
func (s *Store) Delete() error {
	entries, err := s.load()
	if err != nil {
		return err
	}

	if _, ok := entries[entryName]; !ok {
		return fmt.Errorf("no stored key")
	}

	delete(entries, entryName)
	return s.save(entries)
}

// Exists reports whether a key is stored
func (s *Store) Exists() (bool, error) {
	entries, err := s.load()
	if err != nil {
		return false, err
	}
	_, ok := entries[entryName]
	return ok, nil
}

// MaskKey returns a masked version of the key for display
func MaskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

// Resolve returns the API key using the priority order:
// 1. Explicit key passed as argument (if non-empty)
// 2. Stored key in keys.json
// 3. GEMINI_API_KEY environment variable
// getenv is injectable so callers can keep tests hermetic.
func Resolve(explicit string, getenv func(string) string) (string, string, error) {
	if explicit != "" {
		return explicit, "command-line flag", nil
	}

	if store, err := NewStore(); err == nil {
		if stored, err := store.Get(); err == nil && stored != "" {
			return stored, "stored key", nil
		}
	}

	if env := getenv(EnvAPIKey); env != "" {
		return env, fmt.Sprintf("environment variable (%s)", EnvAPIKey), nil
	}

	return "", "", fmt.Errorf("API key required: run 'genass keys set' or set %s", EnvAPIKey)
}
