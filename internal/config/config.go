package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kartoza/gem-pricer/internal/features"
	"github.com/kartoza/gem-pricer/internal/history"
)

// Default artifact locations, relative to the working directory
const (
	DefaultModelPath    = "model.gob"
	DefaultFeaturesPath = "features.json"
	DefaultPort         = 8080
)

// Config holds the application configuration
type Config struct {
	Port         int
	ModelPath    string
	FeaturesPath string
	Policy       features.Policy
	History      HistoryConfig
	Version      string
}

// HistoryConfig selects where served predictions are recorded
type HistoryConfig struct {
	Enabled bool
	Driver  string
	DSN     string
}

// fileConfig is the YAML layout of a config file
type fileConfig struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Artifacts struct {
		ModelPath    string `yaml:"model_path"`
		FeaturesPath string `yaml:"features_path"`
	} `yaml:"artifacts"`
	Prediction struct {
		Policy string `yaml:"policy"`
	} `yaml:"prediction"`
	History struct {
		Enabled *bool  `yaml:"enabled"`
		Driver  string `yaml:"driver"`
		DSN     string `yaml:"dsn"`
	} `yaml:"history"`
}

// Default returns the configuration used when no file or flags are given
func Default() Config {
	return Config{
		Port:         DefaultPort,
		ModelPath:    DefaultModelPath,
		FeaturesPath: DefaultFeaturesPath,
		Policy:       features.DefaultOnMissing,
		History: HistoryConfig{
			Enabled: true,
			Driver:  history.DriverSQLite,
			DSN:     "history.db",
		},
	}
}

// Load reads a YAML config file and applies it over the defaults
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	if fc.Server.Port != 0 {
		cfg.Port = fc.Server.Port
	}
	if fc.Artifacts.ModelPath != "" {
		cfg.ModelPath = fc.Artifacts.ModelPath
	}
	if fc.Artifacts.FeaturesPath != "" {
		cfg.FeaturesPath = fc.Artifacts.FeaturesPath
	}
	if fc.Prediction.Policy != "" {
		policy, err := features.ParsePolicy(fc.Prediction.Policy)
		if err != nil {
			return cfg, err
		}
		cfg.Policy = policy
	}
	if fc.History.Enabled != nil {
		cfg.History.Enabled = *fc.History.Enabled
	}
	if fc.History.Driver != "" {
		cfg.History.Driver = fc.History.Driver
	}
	if fc.History.DSN != "" {
		cfg.History.DSN = fc.History.DSN
	}

	return cfg, nil
}

// Validate checks the configuration for values the server cannot start with
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if _, err := features.ParsePolicy(string(c.Policy)); err != nil {
		return err
	}
	if c.History.Enabled {
		switch c.History.Driver {
		case history.DriverSQLite, history.DriverPostgres:
		default:
			return fmt.Errorf("unsupported history driver %q", c.History.Driver)
		}
		if c.History.DSN == "" {
			return fmt.Errorf("history dsn is required when history is enabled")
		}
	}
	return nil
}
