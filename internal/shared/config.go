package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Storage backends selectable in [StorageConfig].
const (
	BackendJSON = "json"
	BackendYAML = "yaml"
	BackendSQL  = "sql"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Storage  StorageConfig  `toml:"storage"`
	Database DatabaseConfig `toml:"database"`
	Log      LogConfig      `toml:"log"`
}

// StorageConfig selects where client records live and how file artifacts are written.
type StorageConfig struct {
	Backend       string `toml:"backend"`
	Path          string `toml:"path"`
	Pretty        bool   `toml:"pretty"`
	RawFallback   bool   `toml:"raw_fallback"`
	Separator     string `toml:"separator"`
	PreferContact string `toml:"prefer_contact"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Driver       string `toml:"driver"`
	DSN          string `toml:"dsn"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks enumerated settings and fills derived defaults.
func (c *Config) Validate() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	switch c.Storage.Backend {
	case BackendJSON, BackendYAML:
		if c.Storage.Path == "" {
			return fmt.Errorf("%w: storage.path is required for the %s backend", ErrInvalidConfig, c.Storage.Backend)
		}
	case BackendSQL:
		if _, err := DriverName(c.Database.Driver); err != nil {
			return err
		}
		if c.Database.DSN == "" {
			return fmt.Errorf("%w: database.dsn is required for the sql backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage.backend %q", ErrInvalidConfig, c.Storage.Backend)
	}

	if c.Storage.Separator == "" {
		c.Storage.Separator = ";"
	}

	switch c.Storage.PreferContact {
	case "", "phone", "email":
	default:
		return fmt.Errorf("%w: storage.prefer_contact must be phone or email", ErrInvalidConfig)
	}

	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}
