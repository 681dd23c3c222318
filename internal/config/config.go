// Package config provides configuration loading and structs for kikigaki.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool              `yaml:"debug" env:"KIKIGAKI_DEBUG"`
	Archive ArchiveConfig     `yaml:"archive"`
	Output  OutputConfig      `yaml:"output"`
	Chunks  ChunkConfig       `yaml:"chunks"`
	Process ProcessConfig     `yaml:"process"`
	Storage StorageConfig     `yaml:"storage"`
	Search  SearchConfig      `yaml:"search"`
	Server  ServerConfig      `yaml:"server"`
	Watch   WatchConfig       `yaml:"watch"`
	Shows   map[string]string `yaml:"shows"`
}

// ArchiveConfig locates the transcript archive on disk.
type ArchiveConfig struct {
	Dir        string   `yaml:"dir" env:"KIKIGAKI_ARCHIVE_DIR"`
	Extensions []string `yaml:"extensions"`
}

// OutputConfig holds the chunk output directory and file extension.
type OutputConfig struct {
	Dir       string `yaml:"dir" env:"KIKIGAKI_OUTPUT_DIR"`
	Extension string `yaml:"extension"`
}

// ChunkConfig holds chunk split limits. Words are counted from episode
// content only; bytes are counted from the full formatted blocks.
type ChunkConfig struct {
	MaxWords int   `yaml:"max_words"`
	MaxBytes int64 `yaml:"max_bytes"`
	ByYear   bool  `yaml:"by_year"`
}

// ProcessConfig holds parsing run settings.
type ProcessConfig struct {
	Workers         int      `yaml:"workers" env:"KIKIGAKI_WORKERS"`
	DefaultPrefixes []string `yaml:"default_prefixes"`
	IndexUtterances *bool    `yaml:"index_utterances"`
}

// IndexUtterancesOrDefault reports whether processing should feed the
// utterance search index. Defaults to true when unset.
func (p *ProcessConfig) IndexUtterancesOrDefault() bool {
	if p.IndexUtterances == nil {
		return true
	}
	return *p.IndexUtterances
}

// StorageConfig holds paths for the catalog database and search index.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path" env:"KIKIGAKI_DATABASE_PATH"`
	BleveIndexPath string `yaml:"bleve_index_path" env:"KIKIGAKI_BLEVE_INDEX_PATH"`
}

// SearchConfig holds utterance search settings.
type SearchConfig struct {
	DefaultLimit int     `yaml:"default_limit"`
	MaxLimit     int     `yaml:"max_limit"`
	SpeakerBoost float64 `yaml:"speaker_boost"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host" env:"KIKIGAKI_HOST"`
	Port int    `yaml:"port" env:"KIKIGAKI_PORT"`
}

// WatchConfig holds archive watch settings.
type WatchConfig struct {
	DebounceMS int `yaml:"debounce_ms"`
}

// Load reads and parses the config file at path, applies environment
// overrides and defaults, and expands paths relative to the config file.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply env overrides: %w", err)
	}

	ApplyDefaults(&cfg)
	expandPaths(&cfg, filepath.Dir(path))
	return &cfg, nil
}

// Default returns a config with environment overrides and defaults only,
// with paths expanded relative to the current working directory. Used when
// no config file is present.
func Default() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply env overrides: %w", err)
	}
	ApplyDefaults(&cfg)
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working directory: %w", err)
	}
	expandPaths(&cfg, cwd)
	return &cfg, nil
}

func expandPaths(cfg *Config, configDir string) {
	cfg.Archive.Dir = expandPath(cfg.Archive.Dir, configDir)
	cfg.Output.Dir = expandPath(cfg.Output.Dir, configDir)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
