package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	ofdberrors "github.com/magdaddy/openfairdb/internal/errors"
)

// AppName names the user configuration directory.
const AppName = "ofdb-search"

// Config is the complete configuration of the search service.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Index   IndexConfig   `yaml:"index" json:"index"`
	Search  SearchConfig  `yaml:"search" json:"search"`
	Ratings RatingsConfig `yaml:"ratings" json:"ratings"`
	Store   StoreConfig   `yaml:"store" json:"store"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// IndexConfig configures the search index.
type IndexConfig struct {
	// Path is the index directory. Defaults to DefaultIndexPath; an explicit
	// empty value keeps the index in memory.
	Path string `yaml:"path" json:"path"`

	// ReindexBatchSize is the number of upserts between intermediate commits
	// during a full reindex.
	ReindexBatchSize int `yaml:"reindex_batch_size" json:"reindex_batch_size"`

	// TextQueryCacheSize is the number of parsed free-text queries kept.
	TextQueryCacheSize int `yaml:"text_query_cache_size" json:"text_query_cache_size"`
}

// SearchConfig bounds the result count of searches.
type SearchConfig struct {
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`
	MaxLimit     int `yaml:"max_limit" json:"max_limit"`
}

// RatingsConfig configures the rating aggregation pass.
type RatingsConfig struct {
	// Workers bounds the goroutines aggregating ratings. Defaults to NumCPU.
	Workers int `yaml:"workers" json:"workers"`
}

// StoreConfig configures the entry repository.
type StoreConfig struct {
	// Path is the SQLite database file. Defaults to DefaultStorePath; an
	// explicit empty value uses an in-memory database.
	Path string `yaml:"path" json:"path"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	File      string `yaml:"file" json:"file"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// NewConfig returns the default configuration.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Index: IndexConfig{
			Path:               DefaultIndexPath(),
			ReindexBatchSize:   1000,
			TextQueryCacheSize: 256,
		},
		Search: SearchConfig{
			DefaultLimit: 100,
			MaxLimit:     500,
		},
		Ratings: RatingsConfig{
			Workers: runtime.NumCPU(),
		},
		Store: StoreConfig{
			Path: DefaultStorePath(),
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// DefaultDataDir returns $XDG_DATA_HOME/ofdb-search, or
// ~/.local/share/ofdb-search. Falls back to the temp directory if the home
// directory is unavailable.
func DefaultDataDir() string {
	if data := os.Getenv("XDG_DATA_HOME"); data != "" {
		return filepath.Join(data, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), AppName)
	}
	return filepath.Join(home, ".local", "share", AppName)
}

// DefaultIndexPath returns the index directory used when none is configured.
func DefaultIndexPath() string {
	return filepath.Join(DefaultDataDir(), "index")
}

// DefaultStorePath returns the SQLite database used when none is configured.
func DefaultStorePath() string {
	return filepath.Join(DefaultDataDir(), "ofdb.sqlite")
}

// GetUserConfigPath returns the path of the user configuration file:
// $XDG_CONFIG_HOME/ofdb-search/config.yaml, or ~/.config/ofdb-search/config.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName, "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", AppName, "config.yaml")
	}
	return filepath.Join(home, ".config", AppName, "config.yaml")
}

// Load loads the configuration for the working directory dir.
// Precedence, lowest first:
//  1. Defaults
//  2. User config (GetUserConfigPath)
//  3. Project config (.ofdb.yaml or .ofdb.yml in dir)
//  4. Environment variables (OFDB_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	for _, name := range []string{".ofdb.yaml", ".ofdb.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			if err := cfg.loadYAML(path); err != nil {
				return nil, err
			}
			break
		}
	}

	return cfg.finish()
}

// LoadFile loads defaults, then the file at path, then the environment.
// The file must exist.
func LoadFile(path string) (*Config, error) {
	if !fileExists(path) {
		return nil, ofdberrors.New(ofdberrors.ErrCodeConfigNotFound,
			fmt.Sprintf("config file %s not found", path), nil)
	}
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, err
	}
	return cfg.finish()
}

func (c *Config) finish() (*Config, error) {
	c.applyEnvOverrides()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// loadYAML decodes path over the current values. Unknown keys are an error.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return ofdberrors.New(ofdberrors.ErrCodeConfigInvalid,
			fmt.Sprintf("failed to read config file %s", path), err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return ofdberrors.New(ofdberrors.ErrCodeConfigInvalid,
			fmt.Sprintf("failed to parse config file %s", path), err)
	}
	return nil
}

// applyEnvOverrides applies OFDB_* environment variables. Empty values and
// unparsable numbers are ignored.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("OFDB_INDEX_PATH"); v != "" {
		c.Index.Path = v
	}
	if v := os.Getenv("OFDB_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("OFDB_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("OFDB_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv("OFDB_RATINGS_WORKERS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			c.Ratings.Workers = n
		}
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return ofdberrors.New(ofdberrors.ErrCodeConfigInvalid, fmt.Sprintf(format, args...), nil)
	}

	if c.Index.ReindexBatchSize <= 0 {
		return invalid("index.reindex_batch_size must be positive, got %d", c.Index.ReindexBatchSize)
	}
	if c.Index.TextQueryCacheSize <= 0 {
		return invalid("index.text_query_cache_size must be positive, got %d", c.Index.TextQueryCacheSize)
	}
	if c.Search.DefaultLimit <= 0 {
		return invalid("search.default_limit must be positive, got %d", c.Search.DefaultLimit)
	}
	if c.Search.MaxLimit < c.Search.DefaultLimit {
		return invalid("search.max_limit (%d) must not be below search.default_limit (%d)",
			c.Search.MaxLimit, c.Search.DefaultLimit)
	}
	if c.Ratings.Workers < 0 {
		return invalid("ratings.workers must not be negative, got %d", c.Ratings.Workers)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return invalid("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxFiles < 0 {
		return invalid("logging.max_size_mb and logging.max_files must not be negative")
	}
	return nil
}

// WriteYAML writes the configuration to path, creating parent directories.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
