package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds all configuration for docchat
type Config struct {
	Server   ServerConfig    `mapstructure:"server"`
	Admin    AdminConfig     `mapstructure:"admin"`
	Database DatabaseConfig  `mapstructure:"database"`
	Storage  StorageConfig   `mapstructure:"storage"`
	Ingest   IngestConfig    `mapstructure:"ingest"`
	History  HistoryConfig   `mapstructure:"history"`
	Flow     FlowConfig      `mapstructure:"flow"`
	Extract  ExtractConfig   `mapstructure:"extract"`
	Tools    map[string]bool `mapstructure:"tools"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	BaseURL string `mapstructure:"base_url"`
}

// AdminConfig holds admin authentication configuration
type AdminConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// DatabaseConfig holds session database configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// StorageConfig holds uploaded-document storage configuration
type StorageConfig struct {
	Documents string `mapstructure:"documents"`
}

// IngestConfig holds streaming ingestion configuration
type IngestConfig struct {
	SliceSize          int64 `mapstructure:"slice_size"`
	MaxUploadBytes     int64 `mapstructure:"max_upload_bytes"`
	StreamingThreshold int64 `mapstructure:"streaming_threshold"`
	ChunkSize          int   `mapstructure:"chunk_size"`
	ChunkOverlap       int   `mapstructure:"chunk_overlap"`
}

// HistoryConfig bounds the conversation history sent to the model
type HistoryConfig struct {
	MaxMessages       int     `mapstructure:"max_messages"`
	ContextRatio      float64 `mapstructure:"context_ratio"`
	DefaultTokenLimit int     `mapstructure:"default_token_limit"`
}

// FlowConfig points at the external retrieval+generation flow
type FlowConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// ExtractConfig points at the external text-extraction service.
// An empty base URL selects the builtin plain-text extractor.
type ExtractConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file if specified
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("DOCCHAT")
	v.AutomaticEnv()

	// Read config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")

	v.SetDefault("admin.api_key", "")

	v.SetDefault("database.path", "./data/docchat.db")
	v.SetDefault("storage.documents", "./data/documents")

	v.SetDefault("ingest.slice_size", 1<<20)           // 1 MiB
	v.SetDefault("ingest.max_upload_bytes", 100<<20)   // 100 MiB
	v.SetDefault("ingest.streaming_threshold", 50<<20) // 50 MiB
	v.SetDefault("ingest.chunk_size", 1000)
	v.SetDefault("ingest.chunk_overlap", 200)

	v.SetDefault("history.max_messages", 50)
	v.SetDefault("history.context_ratio", 0.6)
	v.SetDefault("history.default_token_limit", 8000)

	v.SetDefault("flow.base_url", "http://localhost:8000")
	v.SetDefault("flow.timeout_seconds", 300)

	v.SetDefault("extract.base_url", "")

	v.SetDefault("tools", map[string]bool{})
}

// Address returns the server address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
