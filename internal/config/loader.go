package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Store defines persistence operations for the service configuration.
type Store interface {
	Load() (Config, error)
	Save(Config) error
}

// YAMLStore reads and writes the configuration as a single YAML file.
type YAMLStore struct {
	path      string
	lookupEnv func(string) (string, bool)
}

// NewYAMLStore creates a YAML-backed configuration store. Environment
// variables override file values on Load.
func NewYAMLStore(path string) *YAMLStore {
	return &YAMLStore{path: path, lookupEnv: os.LookupEnv}
}

// Load reads the file on top of the defaults, applies environment overrides
// and validates the result. A missing file yields the defaults.
func (s *YAMLStore) Load() (Config, error) {
	cfg := DefaultConfig()

	if s.path != "" {
		data, err := os.ReadFile(s.path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", s.path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read %s: %w", s.path, err)
		}
	}

	if err := applyEnv(&cfg, s.lookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML and creates parent directories.
func (s *YAMLStore) Save(cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0o644)
}

// applyEnv overlays the environment variables service deployments set
// (ALPINO_HOME in particular). Empty values are ignored.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if lookup == nil {
		return nil
	}
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("ALPINO_HOME", &cfg.AlpinoHome)
	str("UCTO_BIN", &cfg.UctoBin)
	str("SPACY2FOLIA_BIN", &cfg.Spacy2FoliaBin)
	str("CLAMSERVICES_HISTORY_DB", &cfg.HistoryDB)

	if v, ok := lookup("ALPINO_USER_MAX"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: ALPINO_USER_MAX=%q", ErrInvalidConfig, v)
		}
		cfg.AlpinoUserMax = n
	}
	return nil
}

// NewYAMLStoreForTests creates a store with an injectable environment.
func NewYAMLStoreForTests(path string, lookupEnv func(string) (string, bool)) *YAMLStore {
	return &YAMLStore{path: path, lookupEnv: lookupEnv}
}
