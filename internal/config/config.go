package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Database DatabaseConfig
	Storage  StorageConfig
	UI       UIConfig
	Log      LogConfig
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string
}

// StorageConfig selects where the task record lives.
type StorageConfig struct {
	Backend  string // sqlite or file
	Key      string
	FilePath string `mapstructure:"file_path"`
}

// UIConfig holds presentation settings.
type UIConfig struct {
	Title              string
	ExportPath         string `mapstructure:"export_path"`
	SimilarityDistance int    `mapstructure:"similarity_distance"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Path string
}

const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
)

// Load reads configuration from file and env. Env var overrides use prefix JASKTASKS_.
func Load() (Config, error) {
	v := viper.New()

	dataDir := filepath.Join(os.Getenv("HOME"), ".local", "share", "jasktasks")
	v.SetDefault("database.path", filepath.Join(dataDir, "jasktasks.db"))
	v.SetDefault("storage.backend", BackendSQLite)
	v.SetDefault("storage.key", "tasks")
	v.SetDefault("storage.file_path", "")
	v.SetDefault("ui.title", "Tasks")
	v.SetDefault("ui.export_path", "tasks-export.json")
	v.SetDefault("ui.similarity_distance", 2)
	v.SetDefault("log.path", filepath.Join(dataDir, "jasktasks.log"))

	v.SetConfigType("toml")

	cfgPath := os.Getenv("JASKTASKS_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "jasktasks"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("JASKTASKS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendSQLite, BackendFile:
	default:
		return fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend)
	}
	if strings.TrimSpace(c.Storage.Key) == "" {
		return fmt.Errorf("storage.key: required")
	}
	if c.Storage.Backend == BackendSQLite && strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("database.path: required for sqlite backend")
	}
	if c.UI.SimilarityDistance < 0 {
		return fmt.Errorf("ui.similarity_distance: must be >= 0")
	}
	return nil
}
