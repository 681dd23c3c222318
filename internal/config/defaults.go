package config

import "runtime"

// Chunk limits match the downstream ingestion caps the tool was built
// around: word count from episode content, byte count from formatted blocks.
const (
	DefaultMaxWords = 490000
	DefaultMaxBytes = 190 << 20
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Archive.Dir == "" {
		cfg.Archive.Dir = "./transcripts"
	}
	if cfg.Archive.Extensions == nil {
		cfg.Archive.Extensions = []string{".html"}
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "./processed"
	}
	if cfg.Output.Extension == "" {
		cfg.Output.Extension = "md"
	}
	if cfg.Chunks.MaxWords == 0 {
		cfg.Chunks.MaxWords = DefaultMaxWords
	}
	if cfg.Chunks.MaxBytes == 0 {
		cfg.Chunks.MaxBytes = DefaultMaxBytes
	}
	if cfg.Process.Workers == 0 {
		cfg.Process.Workers = runtime.NumCPU()
	}
	if cfg.Process.DefaultPrefixes == nil {
		cfg.Process.DefaultPrefixes = []string{"IM", "TWIG"}
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = ".kikigaki/catalog.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = ".kikigaki/indices/utterances.bleve"
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 100
	}
	if cfg.Search.SpeakerBoost == 0 {
		cfg.Search.SpeakerBoost = 3.0
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Watch.DebounceMS == 0 {
		cfg.Watch.DebounceMS = 400
	}
	if cfg.Shows == nil {
		cfg.Shows = DefaultShows()
	}
}

// DefaultShows returns the built-in show-name to prefix table.
func DefaultShows() map[string]string {
	return map[string]string{
		"intelligent machines": "IM",
		"this week in google":  "TWIG",
		"windows weekly":       "WW",
		"macbreak weekly":      "MBW",
		"this week in tech":    "TWIT",
		"security now":         "SN",
		"this week in space":   "TWIS",
		"tech news weekly":     "TNW",
		"untitled linux show":  "ULS",
		"hands-on tech":        "HOT",
		"hands-on windows":     "HOW",
		"hands-on apple":       "HOA",
		"know how":             "KH",
		"before you buy":       "BYB",
		"ios today":            "IOS",
		"all about android":    "AAA",
		"floss weekly":         "FLOSS",
		"ham nation":           "HAM",
	}
}
