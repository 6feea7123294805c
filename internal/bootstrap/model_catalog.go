package bootstrap

import (
	"os"
	"sort"
	"strings"
)

// SpacyModel is one spaCy pipeline the spacy service can load.
type SpacyModel struct {
	Language  string `json:"language"`
	Name      string `json:"name"`
	Installed bool   `json:"installed"`
}

// spacyModelCatalog holds the default pipeline per language code.
var spacyModelCatalog = []SpacyModel{
	{Language: "ca", Name: "ca_core_news_sm"},
	{Language: "da", Name: "da_core_news_sm"},
	{Language: "de", Name: "de_core_news_sm"},
	{Language: "el", Name: "el_core_news_sm"},
	{Language: "en", Name: "en_core_web_sm"},
	{Language: "es", Name: "es_core_news_sm"},
	{Language: "fr", Name: "fr_core_news_sm"},
	{Language: "it", Name: "it_core_news_sm"},
	{Language: "lt", Name: "lt_core_news_sm"},
	{Language: "nb", Name: "nb_core_news_sm"},
	{Language: "nl", Name: "nl_core_news_sm"},
	{Language: "pl", Name: "pl_core_news_sm"},
	{Language: "pt", Name: "pt_core_news_sm"},
	{Language: "ro", Name: "ro_core_news_sm"},
	{Language: "xx", Name: "xx_ent_wiki_sm"},
}

// SpacyModels returns the catalog merged with the packages installed in
// modelsDir. Installed packages outside the catalog are appended.
func SpacyModels(modelsDir string) []SpacyModel {
	models := make([]SpacyModel, len(spacyModelCatalog))
	copy(models, spacyModelCatalog)

	installed := installedSpacyModels(modelsDir)
	for i := range models {
		if _, ok := installed[models[i].Name]; ok {
			models[i].Installed = true
			delete(installed, models[i].Name)
		}
	}

	extra := make([]SpacyModel, 0, len(installed))
	for name := range installed {
		lang, _, _ := strings.Cut(name, "_")
		extra = append(extra, SpacyModel{Language: lang, Name: name, Installed: true})
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].Name < extra[j].Name })
	return append(models, extra...)
}

// ResolveSpacyModel maps a language code to a full model name, preferring
// an installed model for that language. Anything else is returned as given.
func ResolveSpacyModel(choice string, models []SpacyModel) string {
	choice = strings.TrimSpace(choice)
	fallback := ""
	for _, m := range models {
		if m.Language != choice {
			continue
		}
		if m.Installed {
			return m.Name
		}
		if fallback == "" {
			fallback = m.Name
		}
	}
	if fallback != "" {
		return fallback
	}
	return choice
}

// installedSpacyModels lists package directories such as nl_core_news_sm or
// nl_core_news_sm-3.7.0 found in dir.
func installedSpacyModels(dir string) map[string]struct{} {
	found := map[string]struct{}{}
	if strings.TrimSpace(dir) == "" {
		return found
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return found
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name, _, _ := strings.Cut(entry.Name(), "-")
		lang, rest, ok := strings.Cut(name, "_")
		if !ok || rest == "" || len(lang) < 2 || len(lang) > 3 {
			continue
		}
		found[name] = struct{}{}
	}
	return found
}
