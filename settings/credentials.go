// Package settings stores the translation service credential.
//
// The credential lives in the XDG data directory:
//
//	$XDG_DATA_HOME/xlfsync/auth.json  (default: ~/.local/share/xlfsync/)
//
// auth.json is a JSON object keyed by provider id; each value carries an
// API key entry. File permissions are 0600 (owner read/write only).
//
// Lookup order for the key:
//  1. --api-key flag (highest priority)
//  2. XLFSYNC_API_KEY environment variable
//  3. This credential store
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	dataDirName = "xlfsync"
	fileName    = "auth.json"
)

// EnvKey is the environment variable consulted before the store.
const EnvKey = "XLFSYNC_API_KEY"

// ProviderTranslator is the store key for the translation service.
const ProviderTranslator = "translator"

// Info is one stored credential entry.
type Info struct {
	// Type is "api"; kept as a discriminator for forward compatibility.
	Type string `json:"type"`
	// Key is the subscription key.
	Key string `json:"key,omitempty"`
	// Endpoint is an optional custom service URL.
	Endpoint string `json:"endpoint,omitempty"`
}

// Store holds all credentials, keyed by provider id.
type Store map[string]*Info

// dataDir returns the XDG data directory for xlfsync.
// Respects $XDG_DATA_HOME, falling back to ~/.local/share.
func dataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, dataDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", dataDirName), nil
}

func filePath() (string, error) {
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// FilePath returns the auth.json path for display purposes.
func FilePath() string {
	p, err := filePath()
	if err != nil {
		return ""
	}
	return p
}

// Load reads the credential store from disk.
// Returns an empty store if the file doesn't exist or is invalid.
func Load() Store {
	path, err := filePath()
	if err != nil {
		return make(Store)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return make(Store)
	}
	var store Store
	if err := json.Unmarshal(data, &store); err != nil || store == nil {
		return make(Store)
	}
	return store
}

// Save writes the credential store to disk with 0600 permissions.
func Save(store Store) error {
	path, err := filePath()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing auth file: %w", err)
	}
	return nil
}

// SetAPIKey stores the translation service key (upsert).
func SetAPIKey(key string) error {
	store := Load()
	store[ProviderTranslator] = &Info{Type: "api", Key: key}
	return Save(store)
}

// StoredAPIKey returns the stored key, or "" when absent.
func StoredAPIKey() string {
	info := Load()[ProviderTranslator]
	if info == nil {
		return ""
	}
	return info.Key
}

// ResolveAPIKey applies the lookup order: flag value, environment, store.
// The returned source names where the key came from ("flag", "env",
// "store", or "" when no key exists).
func ResolveAPIKey(flagKey string) (key, source string) {
	if flagKey != "" {
		return flagKey, "flag"
	}
	if env := os.Getenv(EnvKey); env != "" {
		return env, "env"
	}
	if stored := StoredAPIKey(); stored != "" {
		return stored, "store"
	}
	return "", ""
}

// Remove deletes the stored translation service credential.
func Remove() error {
	store := Load()
	if _, ok := store[ProviderTranslator]; !ok {
		return nil
	}
	delete(store, ProviderTranslator)
	return Save(store)
}

// MaskKey returns a masked version of a key for display.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
