// Package application wires configuration for the eegrank service.
package application

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Config is the top-level service configuration, loaded from YAML with
// environment overrides for secrets.
type Config struct {
	// Server configures the HTTP API listener.
	Server ServerConfig `yaml:"server" validate:"required"`
	// Data locates the EDF pool, the snippet cache, and the database.
	Data DataConfig `yaml:"data" validate:"required"`
	// Session configures ranking session behavior.
	Session SessionConfig `yaml:"session" validate:"required"`
	// Oracle configures the optional automated comparator.
	Oracle OracleConfig `yaml:"oracle"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8000".
	Addr string `yaml:"addr" validate:"required"`
}

// DataConfig locates the on-disk collaborators.
type DataConfig struct {
	// EDFDir holds the source EDF recordings.
	EDFDir string `yaml:"edf_dir" validate:"required"`
	// CacheDir holds per-file JSON snippet caches.
	CacheDir string `yaml:"cache_dir" validate:"required"`
	// DatabasePath is the SQLite file for ratings and comparisons.
	DatabasePath string `yaml:"database_path" validate:"required"`
}

// SessionConfig configures ranking sessions.
type SessionConfig struct {
	// SubsetSize caps how many snippets one session ranks.
	SubsetSize int `yaml:"subset_size" validate:"min=2,max=100"`
	// Rater is the default rater name when the client supplies none.
	Rater string `yaml:"rater" validate:"required"`
}

// OracleConfig configures the LLM comparator used for unattended runs.
// The human rating path does not use it.
type OracleConfig struct {
	// Enabled turns the automated oracle on.
	Enabled bool `yaml:"enabled"`
	// Model is the chat model identifier.
	Model string `yaml:"model" validate:"required_if=Enabled true"`
	// APIKey is read from EEGRANK_OPENAI_API_KEY when empty.
	APIKey string `yaml:"api_key"`
	// RequestsPerMinute rate-limits oracle calls.
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"min=0,max=600"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{Addr: ":8000"},
		Data: DataConfig{
			EDFDir:       "data/edf_files",
			CacheDir:     "data/cache",
			DatabasePath: "data/eegrank.db",
		},
		Session: SessionConfig{
			SubsetSize: 10,
			Rater:      "anonymous",
		},
		Oracle: OracleConfig{
			Model:             "gpt-4o-mini",
			RequestsPerMinute: 60,
		},
	}
}

// LoadConfig reads the YAML file at path, overlaying it on defaults,
// applies environment overrides, and validates the result. An empty
// path yields the validated defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied path
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if key := os.Getenv("EEGRANK_OPENAI_API_KEY"); key != "" {
		cfg.Oracle.APIKey = key
	}
	if addr := os.Getenv("EEGRANK_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}

	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}
