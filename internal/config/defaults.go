package config

// DefaultConfig returns the configuration used when no file overrides it.
func DefaultConfig() Config {
	return Config{
		AlpinoHome:        "/opt/Alpino",
		AlpinoUserMax:     900000,
		UctoBin:           "ucto",
		TokeniserLanguage: "nld",
		Spacy2FoliaBin:    "spacy2folia",
		UnitDir:           "xml",
		StatusHistory:     500,
	}
}
