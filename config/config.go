// Package config — .xlfsync.yaml project configuration.
//
// The file is optional: when absent, defaults apply and the workspace is
// probed for existing language documents. Configuration is an explicit value
// object threaded into each operation; nothing in the core reads it
// ambiently.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the project configuration file name.
const FileName = ".xlfsync.yaml"

// DefaultMaxPending caps the number of units offered for translation in one
// session.
const DefaultMaxPending = 20

// Config holds the project settings consumed by the sync and translation
// commands.
type Config struct {
	// Language is the target-language file suffix (e.g. "de-DE" selects
	// *.de-DE.xlf documents).
	Language string `yaml:"language,omitempty"`
	// MaxPending is the maximum number of pending units per translation
	// session (default 20).
	MaxPending int `yaml:"max_pending,omitempty"`
	// UseTranslator enables machine translation of pending units.
	UseTranslator bool `yaml:"use_translator,omitempty"`
	// SourceLang is the catalog's language code (default "en").
	SourceLang string `yaml:"source_lang,omitempty"`

	// Endpoint overrides the translation service URL.
	Endpoint string `yaml:"endpoint,omitempty"`
	// Category is an optional custom translation category id.
	Category string `yaml:"category,omitempty"`
	// Proxy is an optional HTTP/HTTPS proxy URL for provider calls.
	Proxy string `yaml:"proxy,omitempty"`
	// TimeoutSeconds bounds one provider request (default 30).
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"`
	// MaxConcurrent caps concurrently processed language documents
	// (default 3).
	MaxConcurrent int `yaml:"max_concurrent,omitempty"`
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		MaxPending:    DefaultMaxPending,
		SourceLang:    "en",
		MaxConcurrent: 3,
	}
}

// Load reads .xlfsync.yaml from root. A missing file yields the defaults.
func Load(root string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(root, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if cfg.MaxPending <= 0 {
		cfg.MaxPending = DefaultMaxPending
	}
	if cfg.SourceLang == "" {
		cfg.SourceLang = "en"
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}
	cfg.Language = strings.TrimSpace(cfg.Language)
	return cfg, nil
}

// Save writes the configuration to root/.xlfsync.yaml.
func (c *Config) Save(root string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	path := filepath.Join(root, FileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Timeout returns the provider request timeout as a duration, zero when
// unset (the translate package applies its own default then).
func (c *Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}
