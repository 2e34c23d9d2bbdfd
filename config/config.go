package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all server-wide tunables. Values come from config.json
// when present, overridden by environment variables (a .env file is
// honored before the environment is read). Chunking and retrieval
// parameters are deliberately server-wide, not per-request.
type Config struct {
	APIKey         string `json:"api_key"`
	BaseURL        string `json:"base_url"`
	WhisperModel   string `json:"whisper_model"`
	EmbeddingModel string `json:"embedding_model"`
	ChatModel      string `json:"chat_model"`

	Store       string `json:"store"`        // memory | pgvector | milvus
	PostgresURL string `json:"postgres_url"`
	MilvusAddr  string `json:"milvus_addr"`

	WorkDir string `json:"work_dir"`
	Port    string `json:"port"`

	ChunkSize    int `json:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap"`
	TopK         int `json:"top_k"`

	GenerationTimeout time.Duration `json:"-"`
	TranscribeTimeout time.Duration `json:"-"`

	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"` // json | console
}

var (
	globalConfig *Config
	loadOnce     sync.Once
	loadErr      error
)

// Load returns the process-wide configuration, reading it on first use.
func Load() (*Config, error) {
	loadOnce.Do(func() {
		globalConfig, loadErr = load()
	})
	return globalConfig, loadErr
}

func load() (*Config, error) {
	// .env is optional; ignore a missing file.
	_ = godotenv.Load()

	cfg := defaults()

	if data, err := os.ReadFile("config.json"); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config.json: %w", err)
		}
	}
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		WhisperModel:      "whisper-1",
		EmbeddingModel:    "text-embedding-3-small",
		ChatModel:         "gpt-4o-mini",
		Store:             "memory",
		MilvusAddr:        "localhost:19530",
		WorkDir:           "downloads",
		Port:              "8000",
		ChunkSize:         1000,
		ChunkOverlap:      200,
		TopK:              4,
		GenerationTimeout: 60 * time.Second,
		TranscribeTimeout: 2 * time.Minute,
		LogLevel:          "info",
		LogFormat:         "json",
	}
}

func applyEnv(cfg *Config) {
	setString(&cfg.APIKey, "API_KEY")
	setString(&cfg.BaseURL, "BASE_URL")
	setString(&cfg.WhisperModel, "WHISPER_MODEL")
	setString(&cfg.EmbeddingModel, "EMBEDDING_MODEL")
	setString(&cfg.ChatModel, "CHAT_MODEL")
	setString(&cfg.Store, "STORE")
	setString(&cfg.PostgresURL, "POSTGRES_URL")
	setString(&cfg.MilvusAddr, "MILVUS_ADDR")
	setString(&cfg.WorkDir, "WORK_DIR")
	setString(&cfg.Port, "PORT")
	setInt(&cfg.ChunkSize, "CHUNK_SIZE")
	setInt(&cfg.ChunkOverlap, "CHUNK_OVERLAP")
	setInt(&cfg.TopK, "TOP_K")
	setDuration(&cfg.GenerationTimeout, "GENERATION_TIMEOUT")
	setDuration(&cfg.TranscribeTimeout, "TRANSCRIBE_TIMEOUT")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogFormat, "LOG_FORMAT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// Validate rejects degenerate configurations at startup rather than
// per request. An overlap >= chunk size would make the chunker loop.
func (c *Config) Validate() error {
	var errs []string

	if c.ChunkSize <= 0 {
		errs = append(errs, "chunk_size must be positive")
	}
	if c.ChunkOverlap < 0 {
		errs = append(errs, "chunk_overlap must not be negative")
	}
	if c.ChunkOverlap >= c.ChunkSize {
		errs = append(errs, fmt.Sprintf("chunk_overlap (%d) must be smaller than chunk_size (%d)", c.ChunkOverlap, c.ChunkSize))
	}
	if c.TopK <= 0 {
		errs = append(errs, "top_k must be positive")
	}
	switch strings.ToLower(strings.TrimSpace(c.Store)) {
	case "memory", "pgvector", "milvus":
	default:
		errs = append(errs, fmt.Sprintf("unknown store backend %q", c.Store))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// HasValidAPI reports whether an API key is configured for the hosted
// engines. Without one the server runs on the mock providers.
func (c *Config) HasValidAPI() bool {
	return strings.TrimSpace(c.APIKey) != ""
}
