package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// PiemonteConfig is the unified configuration for PiemonteDB.
type PiemonteConfig struct {
	// Server configuration
	Server ServerConfig `yaml:"server" json:"server"`

	// Storage configuration
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Execution configuration
	Exec ExecConfig `yaml:"exec" json:"exec"`

	// Data directory
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// Configuration metadata
	Version string `yaml:"version" json:"version"`
	Source  string `yaml:"-" json:"-"` // Where config was loaded from
}

// ServerConfig holds the TCP frontend and HTTP admin settings.
type ServerConfig struct {
	Host             string        `yaml:"host" json:"host"`
	Port             int           `yaml:"port" json:"port"`
	AdminPort        int           `yaml:"admin_port" json:"admin_port"`
	ReadTimeout      time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout" json:"write_timeout"`
	MaxStatementSize int           `yaml:"max_statement_size" json:"max_statement_size"`
}

// StorageConfig holds page-cache and durability settings.
type StorageConfig struct {
	CacheSize  int  `yaml:"cache_size" json:"cache_size"`
	SyncWrites bool `yaml:"sync_writes" json:"sync_writes"`
}

// ExecConfig holds execution settings.
type ExecConfig struct {
	// Vectorized toggles the batched kernels; the scalar reference path
	// produces identical results.
	Vectorized bool `yaml:"vectorized" json:"vectorized"`
	BatchSize  int  `yaml:"batch_size" json:"batch_size"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *PiemonteConfig {
	return &PiemonteConfig{
		Server: ServerConfig{
			Host:             "127.0.0.1",
			Port:             6789,
			AdminPort:        8090,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     30 * time.Second,
			MaxStatementSize: 8192,
		},
		Storage: StorageConfig{
			CacheSize:  256,
			SyncWrites: true,
		},
		Exec: ExecConfig{
			Vectorized: true,
			BatchSize:  1024,
		},
		DataDir: "./data",
		Version: "1",
	}
}

// LoadConfig reads a YAML file over the defaults and applies environment
// overrides. An empty path loads defaults plus environment only.
func LoadConfig(path string) (*PiemonteConfig, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		cfg.Source = path
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from PIEMONTE_* environment variables.
func (c *PiemonteConfig) applyEnv() {
	if v := os.Getenv("PIEMONTE_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("PIEMONTE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("PIEMONTE_ADMIN_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.AdminPort = port
		}
	}
	if v := os.Getenv("PIEMONTE_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("PIEMONTE_CACHE_SIZE"); v != "" {
		if size, err := strconv.Atoi(v); err == nil {
			c.Storage.CacheSize = size
		}
	}
	if v := os.Getenv("PIEMONTE_SYNC_WRITES"); v != "" {
		c.Storage.SyncWrites = v == "true" || v == "1"
	}
	if v := os.Getenv("PIEMONTE_VECTORIZED"); v != "" {
		c.Exec.Vectorized = v == "true" || v == "1"
	}
}

// Validate checks the configuration for contradictions.
func (c *PiemonteConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.AdminPort < 0 || c.Server.AdminPort > 65535 {
		return fmt.Errorf("invalid admin port: %d", c.Server.AdminPort)
	}
	if c.Server.Port == c.Server.AdminPort {
		return fmt.Errorf("server port and admin port collide: %d", c.Server.Port)
	}
	if c.Storage.CacheSize <= 0 {
		return fmt.Errorf("cache size must be positive: %d", c.Storage.CacheSize)
	}
	if c.Exec.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive: %d", c.Exec.BatchSize)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is empty")
	}
	if c.Server.MaxStatementSize <= 0 {
		return fmt.Errorf("max statement size must be positive: %d", c.Server.MaxStatementSize)
	}
	return nil
}

// WriteSample writes a commented sample configuration file.
func WriteSample(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	header := "# PiemonteDB configuration\n# Values can be overridden with PIEMONTE_* environment variables.\n"
	return os.WriteFile(path, append([]byte(header), data...), 0644)
}
