package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port           int              `json:"port"`
	JWTSecret      string           `json:"jwt_secret"`
	JWTTTLHours    int              `json:"jwt_ttl_hours"`
	LogConfig      logger.LogConfig `json:"log_config"`
	CORSOrigins    []string         `json:"cors_origins"`
	Users          []UserConfig     `json:"users"`
	FileStore      FileStoreConfig  `json:"file_store"`
	Index          IndexConfig      `json:"index"`
	Metadata       MetadataConfig   `json:"metadata"`
	Database       DatabaseConfig   `json:"database"`
	History        HistoryConfig    `json:"history"`
	AI             AIConfig         `json:"ai"`
	Retry          RetryConfig      `json:"retry"`
	Ingest         IngestConfig     `json:"ingest"`
	Retrieval      RetrievalConfig  `json:"retrieval"`
	RateLimitMs    int              `json:"rate_limit_ms"`
	UploadMaxBytes int64            `json:"upload_max_bytes"`
	Cleanup        CleanupConfig    `json:"cleanup"`
}

type UserConfig struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	PasswordHash string `json:"password_hash"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type IndexConfig struct {
	Type string `json:"type"`
	Dir  string `json:"dir"`
}

type MetadataConfig struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

type DatabaseConfig struct {
	DSN          string `json:"dsn"`
	Host         string `json:"host"`
	Port         int    `json:"port"`
	User         string `json:"user"`
	Password     string `json:"password"`
	DBName       string `json:"dbname"`
	SSLMode      string `json:"sslmode"`
	MaxOpenConns int    `json:"max_open_conns"`
}

type HistoryConfig struct {
	Dir        string `json:"dir"`
	MaxEntries int    `json:"max_entries"`
}

type AIConfig struct {
	Provider             string           `json:"provider"`
	Model                string           `json:"model"`
	Data                 interface{}      `json:"data"`
	Fallbacks            []AIProviderConf `json:"fallbacks"`
	EmbedProvider        string           `json:"embed_provider"`
	EmbedModel           string           `json:"embed_model"`
	EmbedData            interface{}      `json:"embed_data"`
	TimeoutSeconds       int              `json:"timeout"`
	EmbedCacheSize       int              `json:"embed_cache_size"`
	EmbedCacheTTLSeconds int              `json:"embed_cache_ttl_seconds"`
	EmbedRPS             float64          `json:"embed_rps"`
}

type AIProviderConf struct {
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Data     interface{} `json:"data"`
}

type RetryConfig struct {
	MaxAttempts      int `json:"max_attempts"`
	InitialBackoffMs int `json:"initial_backoff_ms"`
	MaxBackoffMs     int `json:"max_backoff_ms"`
}

type IngestConfig struct {
	Workers          int `json:"workers"`
	QueueSize        int `json:"queue_size"`
	ChunkSize        int `json:"chunk_size"`
	ChunkOverlap     int `json:"chunk_overlap"`
	EmbedConcurrency int `json:"embed_concurrency"`
}

type RetrievalConfig struct {
	TopK int `json:"top_k"`
}

type CleanupConfig struct {
	Spec        string `json:"spec"`
	MaxAgeHours int    `json:"max_age_hours"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) normalize() error {
	if cfg.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if cfg.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	for i, u := range cfg.Users {
		if u.UserID == "" || u.Email == "" || u.PasswordHash == "" {
			return fmt.Errorf("users[%d]: user_id, email and password_hash are required", i)
		}
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	if cfg.FileStore.Data == nil && cfg.FileStore.Type == "local" {
		cfg.FileStore.Data = map[string]interface{}{"dir": "./uploads"}
	}

	cfg.Index.Type = strings.ToLower(cfg.Index.Type)
	switch cfg.Index.Type {
	case "":
		cfg.Index.Type = "local"
		fallthrough
	case "local":
		if cfg.Index.Dir == "" {
			cfg.Index.Dir = "./vector_db"
		}
	case "pgvector":
	default:
		return fmt.Errorf("index.type must be local or pgvector")
	}

	cfg.Metadata.Type = strings.ToLower(cfg.Metadata.Type)
	switch cfg.Metadata.Type {
	case "":
		cfg.Metadata.Type = "file"
		fallthrough
	case "file":
		if cfg.Metadata.Path == "" {
			cfg.Metadata.Path = "./metadata.json"
		}
	case "postgres":
	default:
		return fmt.Errorf("metadata.type must be file or postgres")
	}
	if cfg.NeedDatabase() && cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return fmt.Errorf("database.dsn or database.host is required for pgvector/postgres")
	}

	if cfg.History.Dir == "" {
		cfg.History.Dir = "./chat_history"
	}
	if cfg.History.MaxEntries <= 0 {
		cfg.History.MaxEntries = 50
	}
	if cfg.AI.EmbedProvider == "" {
		cfg.AI.EmbedProvider = "local"
	}
	if cfg.AI.EmbedModel == "" {
		cfg.AI.EmbedModel = "hash"
	}
	if cfg.AI.TimeoutSeconds <= 0 {
		cfg.AI.TimeoutSeconds = 60
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.InitialBackoffMs <= 0 {
		cfg.Retry.InitialBackoffMs = 2000
	}
	if cfg.Retry.MaxBackoffMs <= 0 {
		cfg.Retry.MaxBackoffMs = 10000
	}
	if cfg.Ingest.Workers <= 0 {
		cfg.Ingest.Workers = 2
	}
	if cfg.Ingest.QueueSize <= 0 {
		cfg.Ingest.QueueSize = 64
	}
	if cfg.Ingest.ChunkSize <= 0 {
		cfg.Ingest.ChunkSize = 500
	}
	if cfg.Ingest.ChunkOverlap < 0 || cfg.Ingest.ChunkOverlap >= cfg.Ingest.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap must be in [0, chunk_size)")
	}
	if cfg.Ingest.ChunkOverlap == 0 && cfg.Ingest.ChunkSize == 500 {
		cfg.Ingest.ChunkOverlap = 50
	}
	if cfg.Ingest.EmbedConcurrency <= 0 {
		cfg.Ingest.EmbedConcurrency = 4
	}
	if cfg.Retrieval.TopK <= 0 {
		cfg.Retrieval.TopK = 4
	}
	if cfg.RateLimitMs < 0 {
		cfg.RateLimitMs = 0
	}
	if cfg.UploadMaxBytes <= 0 {
		cfg.UploadMaxBytes = 20 << 20
	}
	if cfg.Cleanup.Spec == "" {
		cfg.Cleanup.Spec = "@every 1h"
	}
	if cfg.Cleanup.MaxAgeHours <= 0 {
		cfg.Cleanup.MaxAgeHours = 24
	}
	return nil
}

// NeedDatabase reports whether any component is backed by postgres.
func (cfg *Config) NeedDatabase() bool {
	return cfg.Index.Type == "pgvector" || cfg.Metadata.Type == "postgres"
}
