package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func noEnv(string) (string, bool) { return "", false }

// TestDefaultConfig verifies baseline defaults are present and valid.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.UnitDir != "xml" {
		t.Fatalf("unit dir = %q, want xml", cfg.UnitDir)
	}
	if cfg.AlpinoUserMax != 900000 {
		t.Fatalf("user_max = %d, want 900000", cfg.AlpinoUserMax)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

// TestYAMLStoreLoadMissingReturnsDefaults checks first-run behavior.
func TestYAMLStoreLoadMissingReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "alpino.yml")
	store := NewYAMLStoreForTests(path, noEnv)

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != DefaultConfig() {
		t.Fatalf("config = %+v, want defaults", got)
	}
}

// TestYAMLStoreFileOverridesDefaults checks partial files keep other defaults.
func TestYAMLStoreFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alpino.yml")
	data := "alpino_home: /srv/alpino\nucto_bin: /usr/local/bin/ucto\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := NewYAMLStoreForTests(path, noEnv).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.AlpinoHome != "/srv/alpino" || got.UctoBin != "/usr/local/bin/ucto" {
		t.Fatalf("unexpected config: %+v", got)
	}
	if got.AlpinoBin() != "/srv/alpino/bin/Alpino" {
		t.Fatalf("alpino bin = %q", got.AlpinoBin())
	}
	if got.UnitDir != "xml" {
		t.Fatalf("unit dir = %q, want default xml", got.UnitDir)
	}
}

// TestYAMLStoreEnvironmentWins checks ALPINO_HOME beats the file.
func TestYAMLStoreEnvironmentWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alpino.yml")
	if err := os.WriteFile(path, []byte("alpino_home: /from/file\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	env := map[string]string{"ALPINO_HOME": "/from/env", "ALPINO_USER_MAX": "1000"}
	store := NewYAMLStoreForTests(path, func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.AlpinoHome != "/from/env" {
		t.Fatalf("alpino home = %q, want /from/env", got.AlpinoHome)
	}
	if got.AlpinoUserMax != 1000 {
		t.Fatalf("user max = %d, want 1000", got.AlpinoUserMax)
	}
}

// TestYAMLStoreRejectsBadUnitDir checks validation of the working directory name.
func TestYAMLStoreRejectsBadUnitDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alpino.yml")
	if err := os.WriteFile(path, []byte("unit_dir: ../escape\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := NewYAMLStoreForTests(path, noEnv).Load()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("error = %v, want ErrInvalidConfig", err)
	}
}

// TestValidateRejectsDotUnitDirs checks unit_dir cannot name the output
// directory itself or its parent.
func TestValidateRejectsDotUnitDirs(t *testing.T) {
	for _, dir := range []string{".", "..", "a/b", "/tmp/xml"} {
		cfg := DefaultConfig()
		cfg.UnitDir = dir
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("Validate(unit_dir=%q) = %v, want ErrInvalidConfig", dir, err)
		}
	}
	cfg := DefaultConfig()
	cfg.UnitDir = "..xml"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate(unit_dir=..xml) = %v, want nil", err)
	}
}

// TestYAMLStoreSaveAndLoadRoundTrip checks persisted config fidelity.
func TestYAMLStoreSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "alpino.yml")
	store := NewYAMLStoreForTests(path, noEnv)
	want := DefaultConfig()
	want.AlpinoHome = "/data/Alpino"
	want.HistoryDB = "/data/history.db"

	if err := store.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != want {
		t.Fatalf("config = %+v, want %+v", got, want)
	}
}

// TestYAMLStoreLoadInvalidYAML checks parse error handling.
func TestYAMLStoreLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alpino.yml")
	if err := os.WriteFile(path, []byte("alpino_home: [unterminated\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := NewYAMLStoreForTests(path, noEnv).Load(); err == nil {
		t.Fatal("expected yaml parse error")
	}
}
