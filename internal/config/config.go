// Package config defines the YAML configuration of the latticedb
// command and its mapping onto engine options.
package config

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sanonone/latticedb/pkg/engine"
)

// Config is the top-level structure of the configuration file. Missing
// fields keep their defaults, so a partial file is fine.
type Config struct {
	// Driver selects the storage backend, "sqlite" or "postgres".
	Driver string `yaml:"driver"`

	// DSN is the database location: a file path for sqlite, a
	// connection URL for postgres. Environment variables in the file
	// are expanded, so "dsn: ${LATTICE_DSN}" works.
	DSN string `yaml:"dsn"`

	// BatchSize is the chunk size of the bulk ingestion paths.
	BatchSize int `yaml:"batch_size"`

	// LogMode picks the zap preset: "prod", "dev" or "silent".
	LogMode string `yaml:"log_mode"`

	// MetricsAddr, when set (e.g. ":9090"), exposes Prometheus
	// metrics over HTTP at /metrics.
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Driver:    engine.DriverSQLite,
		DSN:       "lattice.db",
		BatchSize: engine.DefaultBatchSize,
		LogMode:   "prod",
	}
}

// Load reads and parses the YAML configuration file from the given
// path. It uses Strict Mode (KnownFields) to prevent silent errors due
// to typos. An empty path returns Default().
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("could not read configuration file '%s': %w", path, err)
	}

	expandedData := os.ExpandEnv(string(data))

	decoder := yaml.NewDecoder(strings.NewReader(expandedData))
	decoder.KnownFields(true)

	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("YAML syntax error in '%s': %w", path, err)
	}
	return cfg, nil
}

// Logger builds the zap logger selected by LogMode.
func (c Config) Logger() (*zap.Logger, error) {
	switch c.LogMode {
	case "", "prod":
		return zap.NewProduction()
	case "dev":
		return zap.NewDevelopment()
	case "silent":
		return zap.NewNop(), nil
	default:
		return nil, fmt.Errorf("unknown log_mode %q", c.LogMode)
	}
}

// EngineOptions maps the configuration onto engine.Options.
func (c Config) EngineOptions(log *zap.Logger) engine.Options {
	opts := engine.DefaultOptions(c.DSN)
	opts.Driver = c.Driver
	opts.BatchSize = c.BatchSize
	opts.Logger = log
	return opts
}
