// Package config loads the TOML-backed configuration files for the
// host process and the client's service registry. Both follow the
// same load/init/save shape: a struct round-tripped through
// github.com/pelletier/go-toml/v2, with github.com/joho/godotenv used
// to pull secrets (the Postgres DSN) out of the process environment
// rather than storing them on disk in plaintext.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	// DefaultConfigFile is the name of the host config file inside DataDir.
	DefaultConfigFile = "config.toml"
	// DefaultEnvFile is loaded (if present) from the data directory by
	// LoadHostConfig, after that directory has been resolved, so
	// KASSANDRA_DATABASE_URL can be supplied without editing the TOML
	// file; a KASSANDRA_DIR set there does not affect DataDir.
	DefaultEnvFile = ".env"
	// DefaultDataDirName is the directory, relative to the user's home
	// directory, holding the host's config file and the fetch
	// pipeline's fetcher.dat.
	DefaultDataDirName = ".kassandra"

	DefaultEnclaveURL    = "127.0.0.1:12345"
	DefaultListenURL     = "0.0.0.0:666"
	DefaultMetricsURL    = "127.0.0.1:9666"
	DefaultListenTimeout = time.Second
	DefaultMaxWALSize    = 1000
)

// HostConfig is the host process's persisted configuration: where to
// reach its enclave, where to listen for clients, how long a client
// connection may sit idle, where to reach the shielded-transaction
// indexer, how many writes to buffer before flushing to Postgres, the
// Postgres connection string, and the address the metrics/health
// endpoint binds to.
type HostConfig struct {
	EnclaveURL    string        `toml:"enclave_url"`
	ListenURL     string        `toml:"listen_url"`
	ListenTimeout time.Duration `toml:"listen_timeout"`
	IndexerURL    string        `toml:"indexer_url"`
	MaxWALSize    int           `toml:"max_wal_size"`
	MetricsURL    string        `toml:"metrics_url"`

	// DatabaseURL is never serialized to config.toml; it is supplied
	// via the KASSANDRA_DATABASE_URL environment variable (or .env) so
	// that credentials never land on disk next to the config file.
	DatabaseURL string `toml:"-"`
}

// DataDir returns the directory holding config.toml and the fetch
// pipeline's fetcher.dat, defaulting to ~/.kassandra unless overridden
// by KASSANDRA_DIR.
func DataDir() (string, error) {
	if dir := os.Getenv("KASSANDRA_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home directory: %w", err)
	}
	return filepath.Join(home, DefaultDataDirName), nil
}

// LoadHostConfig reads and parses the host config file at dir/config.toml,
// loading a .env file alongside it first (if present) and pulling
// KASSANDRA_DATABASE_URL out of the environment. A missing .env file is
// not an error; a missing or malformed config.toml is.
func LoadHostConfig(dir string) (*HostConfig, error) {
	loadDotEnv(dir)

	path := filepath.Join(dir, DefaultConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg HostConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.DatabaseURL = os.Getenv("KASSANDRA_DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("config: KASSANDRA_DATABASE_URL is not set")
	}
	return &cfg, nil
}

// DefaultHostConfig returns the config used to seed a fresh config.toml
// for a first-time deployment; the database URL is left for the
// environment to supply.
func DefaultHostConfig() *HostConfig {
	return &HostConfig{
		EnclaveURL:    DefaultEnclaveURL,
		ListenURL:     DefaultListenURL,
		ListenTimeout: DefaultListenTimeout,
		IndexerURL:    "",
		MaxWALSize:    DefaultMaxWALSize,
		MetricsURL:    DefaultMetricsURL,
	}
}

// Save writes cfg to dir/config.toml, creating dir if necessary. The
// database URL is deliberately excluded by the toml:"-" tag.
func (cfg *HostConfig) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("config: create %s: %w", dir, err)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal host config: %w", err)
	}
	path := filepath.Join(dir, DefaultConfigFile)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// LoadOrInitHostConfig loads the config at dir, writing and returning
// DefaultHostConfig() if none exists yet.
func LoadOrInitHostConfig(dir string) (*HostConfig, error) {
	if _, err := os.Stat(filepath.Join(dir, DefaultConfigFile)); os.IsNotExist(err) {
		cfg := DefaultHostConfig()
		if err := cfg.Save(dir); err != nil {
			return nil, err
		}
	}
	return LoadHostConfig(dir)
}

func loadDotEnv(dir string) {
	_ = godotenv.Load(filepath.Join(dir, DefaultEnvFile))
}
