package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/AnishMulay/sandfs/internal/log_service"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const envVarPrefix = "SANDFS"

// DeletePolicy decides what happens to the contents of a deleted directory.
type DeletePolicy string

const (
	// DeleteLeak drops the directory entry only; descendants and their
	// blocks stay allocated but unreachable.
	DeleteLeak DeletePolicy = "leak"
	// DeleteRecursive releases every descendant and its blocks.
	DeleteRecursive DeletePolicy = "recursive"
	// DeleteRefuse rejects deleting a non-empty directory.
	DeleteRefuse DeletePolicy = "refuse"
)

type StoreConfig struct {
	BlockSize    int          `yaml:"block_size"    envconfig:"BLOCK_SIZE"`
	TotalBlocks  int          `yaml:"total_blocks"  envconfig:"TOTAL_BLOCKS"`
	DeletePolicy DeletePolicy `yaml:"delete_policy" envconfig:"DELETE_POLICY"`
}

type LogConfig struct {
	Dir   string `yaml:"dir"   envconfig:"LOG_DIR"`
	Level string `yaml:"level" envconfig:"LOG_LEVEL"`
}

// MinLevel is the ordinal of Level. An empty level means DEBUG.
func (c LogConfig) MinLevel() (int, error) {
	if c.Level == "" {
		return log_service.DebugLevelValue, nil
	}
	v, ok := log_service.ParseLevel(c.Level)
	if !ok {
		return 0, fmt.Errorf("invalid configuration: unknown log.level %q", c.Level)
	}
	return v, nil
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" envconfig:"LISTEN_ADDR"`
}

type MountConfig struct {
	Point string `yaml:"point" envconfig:"MOUNT_POINT"`
}

type Config struct {
	NodeID string       `yaml:"node_id" envconfig:"NODE_ID"`
	Store  StoreConfig  `yaml:"store"`
	Log    LogConfig    `yaml:"log"`
	Server ServerConfig `yaml:"server"`
	Mount  MountConfig  `yaml:"mount"`
}

func Default() *Config {
	return &Config{
		NodeID: "sandfs-1",
		Store: StoreConfig{
			BlockSize:    4096,
			TotalBlocks:  1024,
			DeletePolicy: DeleteLeak,
		},
		Log: LogConfig{
			Dir:   "./run/logs",
			Level: "INFO",
		},
		Server: ServerConfig{
			ListenAddr: "127.0.0.1:9001",
		},
	}
}

// LoadConfig reads path, writing the defaults there first if it does not
// exist, then applies SANDFS_* environment overrides and validates.
// An empty path skips the file and uses defaults plus the environment.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process(envVarPrefix, cfg); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshaling default config: %w", err)
		}
		if err := os.WriteFile(path, out, 0644); err != nil {
			return fmt.Errorf("writing default config: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("unmarshaling config file: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	switch {
	case c.NodeID == "":
		return fmt.Errorf("missing required configuration: node_id / %s_NODE_ID", envVarPrefix)
	case c.Store.BlockSize <= 0:
		return fmt.Errorf("invalid configuration: store.block_size must be positive, got %d", c.Store.BlockSize)
	case c.Store.TotalBlocks < 0:
		return fmt.Errorf("invalid configuration: store.total_blocks must not be negative, got %d", c.Store.TotalBlocks)
	}

	switch c.Store.DeletePolicy {
	case DeleteLeak, DeleteRecursive, DeleteRefuse:
	default:
		return fmt.Errorf("invalid configuration: unknown store.delete_policy %q", c.Store.DeletePolicy)
	}

	_, err := c.Log.MinLevel()
	return err
}
