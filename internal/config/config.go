// Package config provides configuration loading and structs for the resumatch server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override secrets from the file.
const (
	EnvAdzunaAppID  = "RESUMATCH_ADZUNA_APP_ID"
	EnvAdzunaAppKey = "RESUMATCH_ADZUNA_APP_KEY"
)

// Source kinds.
const (
	SourceFile   = "file"
	SourceAdzuna = "adzuna"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Source    SourceConfig    `yaml:"source"`
	Cache     CacheConfig     `yaml:"cache"`
	Matching  MatchingConfig  `yaml:"matching"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the database and uploaded resumes.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	UploadDir    string `yaml:"upload_dir"`
}

// SourceConfig selects where postings come from.
type SourceConfig struct {
	Kind string `yaml:"kind"` // "file" or "adzuna"
	// Path is the CSV or XLSX posting table for the file source.
	Path     string `yaml:"path"`
	PageSize int    `yaml:"page_size"`
	// Adzuna settings.
	BaseURL string        `yaml:"base_url"`
	AppID   string        `yaml:"app_id"`
	AppKey  string        `yaml:"app_key"`
	Country string        `yaml:"country"`
	Pages   int           `yaml:"pages"`
	Timeout time.Duration `yaml:"timeout"`
}

// CacheConfig bounds the posting cache shared by interactive requests and the monitor.
type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

// MatchingConfig holds ranking settings for the interactive path.
type MatchingConfig struct {
	TopN           int           `yaml:"top_n"`
	KeywordCount   int           `yaml:"keyword_count"`
	PageSize       int           `yaml:"page_size"`
	FullTextWeight float64       `yaml:"fulltext_weight"`
	KeywordWeight  float64       `yaml:"keyword_weight"`
	Workers        int           `yaml:"workers"`
	ResultTTL      time.Duration `yaml:"result_ttl"`
	MaxResults     int           `yaml:"max_results"`
	// KeywordCacheSize bounds memoized posting keyphrases; 0 uses the ranker default.
	KeywordCacheSize int `yaml:"keyword_cache_size"`
}

// EmbeddingConfig holds keyphrase embedder settings.
type EmbeddingConfig struct {
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// MonitorConfig holds background monitoring settings.
type MonitorConfig struct {
	Enabled  *bool         `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Pages    int           `yaml:"pages"`
	TopN     int           `yaml:"top_n"`
	MinScore float64       `yaml:"min_score"`
	Workers  int           `yaml:"workers"`
}

// EnabledOrDefault returns whether monitoring runs with the server; defaults to true when unset.
func (m *MonitorConfig) EnabledOrDefault() bool {
	if m.Enabled != nil {
		return *m.Enabled
	}
	return true
}

// WatchConfig controls reloading the file source when it changes on disk.
type WatchConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
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

	ApplyDefaults(&cfg)
	ApplyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.UploadDir = expandPath(cfg.Storage.UploadDir, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	if cfg.Source.Path != "" {
		cfg.Source.Path = expandPath(cfg.Source.Path, configDir)
	}

	return &cfg, nil
}

// ApplyEnv overrides Adzuna credentials from the environment when set.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(EnvAdzunaAppID); v != "" {
		cfg.Source.AppID = v
	}
	if v := os.Getenv(EnvAdzunaAppKey); v != "" {
		cfg.Source.AppKey = v
	}
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case SourceFile:
		if c.Source.Path == "" {
			return fmt.Errorf("source.path is required for the file source")
		}
	case SourceAdzuna:
	default:
		return fmt.Errorf("unknown source.kind %q (want %q or %q)", c.Source.Kind, SourceFile, SourceAdzuna)
	}
	if c.Matching.FullTextWeight < 0 || c.Matching.KeywordWeight < 0 {
		return fmt.Errorf("matching weights must not be negative")
	}
	if c.Monitor.MinScore < 0 || c.Monitor.MinScore > 100 {
		return fmt.Errorf("monitor.min_score must be between 0 and 100")
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
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
