package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
)

// TestResolveSpacyModelLanguageCode maps a language code to its default model.
func TestResolveSpacyModelLanguageCode(t *testing.T) {
	got := ResolveSpacyModel("nl", SpacyModels(""))
	if got != "nl_core_news_sm" {
		t.Fatalf("model = %s, want nl_core_news_sm", got)
	}
}

// TestResolveSpacyModelPassesUnknownNames keeps full model names untouched.
func TestResolveSpacyModelPassesUnknownNames(t *testing.T) {
	got := ResolveSpacyModel("en_core_web_trf", SpacyModels(""))
	if got != "en_core_web_trf" {
		t.Fatalf("model = %s, want en_core_web_trf", got)
	}
}

// TestResolveSpacyModelPrefersInstalled picks an installed model for the language.
func TestResolveSpacyModelPrefersInstalled(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"nl_core_news_lg-3.7.0", "README", "spacy"} {
		if err := os.MkdirAll(filepath.Join(root, name), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", name, err)
		}
	}

	got := ResolveSpacyModel("nl", SpacyModels(root))
	if got != "nl_core_news_lg" {
		t.Fatalf("model = %s, want nl_core_news_lg", got)
	}
}

// TestSpacyModelsMarksInstalled marks catalog entries found on disk.
func TestSpacyModelsMarksInstalled(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "en_core_web_sm"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	models := SpacyModels(root)
	if len(models) != len(spacyModelCatalog) {
		t.Fatalf("models = %d, want %d", len(models), len(spacyModelCatalog))
	}
	for _, m := range models {
		if m.Installed != (m.Name == "en_core_web_sm") {
			t.Fatalf("model %s installed = %v", m.Name, m.Installed)
		}
	}
	if spacyModelCatalog[4].Installed {
		t.Fatal("catalog must not be modified")
	}
}
