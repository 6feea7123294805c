package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrInvalidConfig is returned when a loaded configuration cannot drive a service.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the process-wide service configuration. It is built once at
// startup and passed by value to every component that needs it.
type Config struct {
	// AlpinoHome is the Alpino installation root; the parser binary is
	// expected at <AlpinoHome>/bin/Alpino.
	AlpinoHome    string `yaml:"alpino_home"`
	AlpinoUserMax int    `yaml:"alpino_user_max"`

	UctoBin           string `yaml:"ucto_bin"`
	TokeniserLanguage string `yaml:"tokeniser_language"`

	Spacy2FoliaBin string `yaml:"spacy2folia_bin"`
	SpacyModelsDir string `yaml:"spacy_models_dir"`

	// UnitDir is the working subdirectory, relative to the output directory,
	// that receives one XML file per parsed sentence.
	UnitDir string `yaml:"unit_dir"`

	HistoryDB     string `yaml:"history_db"`
	StatusHistory int    `yaml:"status_history"`
}

// AlpinoBin returns the path of the Alpino executable.
func (c Config) AlpinoBin() string {
	return filepath.Join(c.AlpinoHome, "bin", "Alpino")
}

// Validate checks fields every service relies on.
func (c Config) Validate() error {
	if strings.TrimSpace(c.UnitDir) == "" {
		return fmt.Errorf("%w: unit_dir is empty", ErrInvalidConfig)
	}
	if filepath.IsAbs(c.UnitDir) || strings.ContainsAny(c.UnitDir, `/`+string(filepath.Separator)) ||
		c.UnitDir == "." || c.UnitDir == ".." {
		return fmt.Errorf("%w: unit_dir must be a plain directory name, got %q", ErrInvalidConfig, c.UnitDir)
	}
	if c.AlpinoUserMax <= 0 {
		return fmt.Errorf("%w: alpino_user_max must be positive", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.TokeniserLanguage) == "" {
		return fmt.Errorf("%w: tokeniser_language is empty", ErrInvalidConfig)
	}
	return nil
}
