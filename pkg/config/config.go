// Package config provides configuration loading and validation for codeatlas.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidMaxFileSize  = errors.New("invalid scanner max file size")
	ErrInvalidImpactDepth  = errors.New("impact analysis max depth must be positive")
	ErrInvalidBatchSize    = errors.New("indexing commit batch size must be positive")
	ErrInvalidStorePath    = errors.New("store database path must not be empty")
	ErrInvalidMCPTransport = errors.New("mcp transport must be stdio or http")
)

// Default configuration values.
const (
	defaultMaxFileSize      = "1MB"
	defaultImpactMaxDepth   = 3
	defaultCommitBatchSize  = 50
	defaultCachedContentCap = "100KB"
	defaultStorePath        = "codeatlas.db"
	defaultMCPTransport     = "stdio"
)

// Config is the top-level configuration for codeatlas.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Scanner  ScannerConfig  `mapstructure:"scanner"`
	Indexing IndexingConfig `mapstructure:"indexing"`
	Impact   ImpactConfig   `mapstructure:"impact"`
	Store    StoreConfig    `mapstructure:"store"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	MCP      MCPConfig      `mapstructure:"mcp"`
}

// ScannerConfig holds filesystem-scanning knobs (§4.B).
type ScannerConfig struct {
	MaxFileSize    string `mapstructure:"max_file_size"`
	IncludeContent bool   `mapstructure:"include_content"`
}

// MaxFileSizeBytes parses MaxFileSize via go-humanize, returning ErrInvalidMaxFileSize on error.
func (s ScannerConfig) MaxFileSizeBytes() (uint64, error) {
	size, err := humanize.ParseBytes(s.MaxFileSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidMaxFileSize, s.MaxFileSize, err)
	}

	return size, nil
}

// IndexingConfig holds indexing-orchestrator knobs (§4.F).
type IndexingConfig struct {
	CommitBatchSize  int    `mapstructure:"commit_batch_size"`
	CachedContentCap string `mapstructure:"cached_content_cap"`
}

// CachedContentCapBytes parses CachedContentCap via go-humanize.
func (c IndexingConfig) CachedContentCapBytes() (uint64, error) {
	size, err := humanize.ParseBytes(c.CachedContentCap)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidMaxFileSize, c.CachedContentCap, err)
	}

	return size, nil
}

// ImpactConfig holds impact-analyzer knobs (§4.H).
type ImpactConfig struct {
	MaxDepth int `mapstructure:"max_depth"`
}

// StoreConfig holds snapshot-store knobs (§4.D).
type StoreConfig struct {
	DatabasePath string `mapstructure:"database_path"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MCPConfig holds the MCP tool-server configuration.
type MCPConfig struct {
	Transport string        `mapstructure:"transport"`
	Address   string        `mapstructure:"address"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("codeatlas")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/codeatlas")
	}

	viperCfg.SetEnvPrefix("CODEATLAS")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	if validateErr := validateConfig(&cfg); validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("scanner.max_file_size", defaultMaxFileSize)
	viperCfg.SetDefault("scanner.include_content", true)

	viperCfg.SetDefault("indexing.commit_batch_size", defaultCommitBatchSize)
	viperCfg.SetDefault("indexing.cached_content_cap", defaultCachedContentCap)

	viperCfg.SetDefault("impact.max_depth", defaultImpactMaxDepth)

	viperCfg.SetDefault("store.database_path", defaultStorePath)

	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", "json")

	viperCfg.SetDefault("mcp.transport", defaultMCPTransport)
	viperCfg.SetDefault("mcp.address", "")
	viperCfg.SetDefault("mcp.timeout", "30s")
}

// validateConfig validates the configuration.
func validateConfig(cfg *Config) error {
	if _, err := cfg.Scanner.MaxFileSizeBytes(); err != nil {
		return err
	}

	if cfg.Indexing.CommitBatchSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBatchSize, cfg.Indexing.CommitBatchSize)
	}

	if cfg.Impact.MaxDepth <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidImpactDepth, cfg.Impact.MaxDepth)
	}

	if strings.TrimSpace(cfg.Store.DatabasePath) == "" {
		return ErrInvalidStorePath
	}

	if cfg.MCP.Transport != "stdio" && cfg.MCP.Transport != "http" {
		return fmt.Errorf("%w: %q", ErrInvalidMCPTransport, cfg.MCP.Transport)
	}

	return nil
}
