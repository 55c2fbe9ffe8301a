// Package config loads treeaudit server configuration
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/nainya/treeaudit/pkg/revision"
)

// Config is the server configuration
type Config struct {
	Listen          string `yaml:"listen"`           // gRPC listen port
	MetricsPort     int    `yaml:"metrics_port"`     // Observability HTTP port, 0 disables it
	DataPath        string `yaml:"data_path"`        // Base path of the revision log
	CheckpointEvery int    `yaml:"checkpoint_every"` // Revisions between state checkpoints
	SnapshotCache   int    `yaml:"snapshot_cache"`   // Materialized states kept in memory
	Log             Log    `yaml:"log"`
}

// Log configures the logger
type Log struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		Listen:          "50051",
		MetricsPort:     9090,
		DataPath:        "./data/treeaudit.log",
		CheckpointEvery: revision.DefaultCheckpointEvery,
		SnapshotCache:   revision.DefaultCacheSize,
		Log:             Log{Level: "info", Pretty: true},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks for values the server cannot start with
func (c Config) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen port is required"))
	}
	if c.DataPath == "" {
		errs = append(errs, errors.New("data_path is required"))
	}
	if c.CheckpointEvery < 0 {
		errs = append(errs, fmt.Errorf("checkpoint_every must not be negative, got %d", c.CheckpointEvery))
	}
	if c.SnapshotCache < 0 {
		errs = append(errs, fmt.Errorf("snapshot_cache must not be negative, got %d", c.SnapshotCache))
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		errs = append(errs, fmt.Errorf("metrics_port out of range: %d", c.MetricsPort))
	}
	return errors.Join(errs...)
}
