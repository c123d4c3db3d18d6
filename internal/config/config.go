package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// OpenAIConfig holds settings shared by the OpenAI embedder and completer.
type OpenAIConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	APIKey      string `yaml:"api_key,omitempty"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
}

// HashingConfig configures the offline feature-hashing embedder.
type HashingConfig struct {
	Dimension int `yaml:"dimension"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type        string         `yaml:"type"`
	OpenAI      *OpenAIConfig  `yaml:"openai,omitempty"`
	Hashing     *HashingConfig `yaml:"hashing,omitempty"`
	CacheSize   int            `yaml:"cache_size"`
	Concurrency int            `yaml:"concurrency"`
}

// CompleterConfig selects and configures the completion implementation.
type CompleterConfig struct {
	Type      string        `yaml:"type"`
	OpenAI    *OpenAIConfig `yaml:"openai,omitempty"`
	MaxTokens int           `yaml:"max_tokens"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type     string          `yaml:"type"`
	Qdrant   *QdrantConfig   `yaml:"qdrant,omitempty"`
	Pinecone *PineconeConfig `yaml:"pinecone,omitempty"`
	Redis    *RedisConfig    `yaml:"redis,omitempty"`
	PGVector *PGVectorConfig `yaml:"pgvector,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	Distance    string `yaml:"distance"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// PineconeConfig contains the data-plane host and credentials of a Pinecone index.
type PineconeConfig struct {
	Host        string `yaml:"host"`
	APIKey      string `yaml:"api_key"`
	Index       string `yaml:"index"`
	Namespace   string `yaml:"namespace"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// RedisConfig points at a redis server used as a small vector store.
type RedisConfig struct {
	URL string `yaml:"url"`
	Key string `yaml:"key"`
}

// PGVectorConfig points at a postgres database with the vector extension.
type PGVectorConfig struct {
	DSN       string `yaml:"dsn"`
	Table     string `yaml:"table"`
	Dimension int    `yaml:"dimension"`
}

// RateLimitConfig throttles the HTTP surface per client IP.
type RateLimitConfig struct {
	Enabled bool          `yaml:"enabled"`
	Limit   int64         `yaml:"limit"`
	Period  time.Duration `yaml:"period"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Address         string          `yaml:"address"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64           `yaml:"max_body_bytes"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
}

// ClientConfig configures CLI and TUI access to a running server.
type ClientConfig struct {
	BaseURL     string `yaml:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server      ServerConfig      `yaml:"server"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Completer   CompleterConfig   `yaml:"completer"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Client      ClientConfig      `yaml:"client"`
	Log         LogConfig         `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// ${VAR} references are expanded and well-known environment variables override the file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			applyEnv(cfg, os.LookupEnv)
			applyConfigDefaults(cfg)
			return cfg, nil
		}
		return nil, err
	}
	return Parse(data, os.LookupEnv)
}

// Parse decodes YAML config bytes using lookup for env expansion and overrides.
func Parse(data []byte, lookup func(string) (string, bool)) (*AppConfig, error) {
	expanded := os.Expand(string(data), func(key string) string {
		v, _ := lookup(key)
		return v
	})
	cfg := defaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	applyEnv(cfg, lookup)
	applyConfigDefaults(cfg)
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/ragqa/config.yaml.
// If neither exists, defaults plus environment are returned.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragqa", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Address:         ":3000",
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    1 << 20,
			RateLimit:       RateLimitConfig{Limit: 60, Period: time.Minute},
		},
		Chunker:     ChunkerConfig{Size: 1000, Overlap: 200},
		Embedder:    EmbedderConfig{Type: "openai", CacheSize: 256, Concurrency: 4},
		Completer:   CompleterConfig{Type: "openai", MaxTokens: 400},
		VectorStore: VectorStoreConfig{Type: "memory"},
		Client:      ClientConfig{BaseURL: "http://127.0.0.1:3000", TimeoutSecs: 60},
		Log:         LogConfig{Level: "info"},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":3000"
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		cfg.Server.MaxBodyBytes = 1 << 20
	}
	if cfg.Server.RateLimit.Period <= 0 {
		cfg.Server.RateLimit.Period = time.Minute
	}
	if cfg.Chunker.Size == 0 {
		cfg.Chunker.Size = 1000
	}
	if cfg.Embedder.Concurrency <= 0 {
		cfg.Embedder.Concurrency = 4
	}
	if cfg.Completer.MaxTokens <= 0 {
		cfg.Completer.MaxTokens = 400
	}
	if cfg.Client.BaseURL == "" {
		cfg.Client.BaseURL = "http://127.0.0.1:3000"
	}
	if cfg.Client.TimeoutSecs == 0 {
		cfg.Client.TimeoutSecs = 60
	}
	switch cfg.Embedder.Type {
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIConfig{}
		}
		openAIDefaults(cfg.Embedder.OpenAI, "text-embedding-3-small", 30)
	case "hashing":
		if cfg.Embedder.Hashing == nil {
			cfg.Embedder.Hashing = &HashingConfig{}
		}
		if cfg.Embedder.Hashing.Dimension == 0 {
			cfg.Embedder.Hashing.Dimension = 512
		}
	}
	if cfg.Completer.Type == "openai" {
		if cfg.Completer.OpenAI == nil {
			cfg.Completer.OpenAI = &OpenAIConfig{}
		}
		openAIDefaults(cfg.Completer.OpenAI, "gpt-5-mini", 60)
	}
	switch cfg.VectorStore.Type {
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		if cfg.VectorStore.Qdrant.URL == "" {
			cfg.VectorStore.Qdrant.URL = "http://localhost:6333"
		}
		if cfg.VectorStore.Qdrant.Collection == "" {
			cfg.VectorStore.Qdrant.Collection = "ragqa"
		}
		if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
			cfg.VectorStore.Qdrant.TimeoutSecs = 15
		}
	case "pinecone":
		if cfg.VectorStore.Pinecone == nil {
			cfg.VectorStore.Pinecone = &PineconeConfig{}
		}
		if cfg.VectorStore.Pinecone.TimeoutSecs == 0 {
			cfg.VectorStore.Pinecone.TimeoutSecs = 15
		}
	case "redis":
		if cfg.VectorStore.Redis == nil {
			cfg.VectorStore.Redis = &RedisConfig{}
		}
		if cfg.VectorStore.Redis.URL == "" {
			cfg.VectorStore.Redis.URL = "redis://localhost:6379/0"
		}
		if cfg.VectorStore.Redis.Key == "" {
			cfg.VectorStore.Redis.Key = "ragqa:vectors"
		}
	case "pgvector":
		if cfg.VectorStore.PGVector == nil {
			cfg.VectorStore.PGVector = &PGVectorConfig{}
		}
		if cfg.VectorStore.PGVector.Table == "" {
			cfg.VectorStore.PGVector.Table = "ragqa_chunks"
		}
		if cfg.VectorStore.PGVector.Dimension == 0 {
			cfg.VectorStore.PGVector.Dimension = 1536
		}
	}
}

func openAIDefaults(c *OpenAIConfig, model string, timeout int) {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = timeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
}

// ResolveAPIKey returns the inline key or the value of APIKeyEnv.
func (c *OpenAIConfig) ResolveAPIKey() string {
	if c == nil {
		return ""
	}
	if c.APIKey != "" {
		return c.APIKey
	}
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}

// Timeout converts TimeoutSecs to a duration.
func (c *OpenAIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// Validate rejects configurations the server cannot start with.
func (c *AppConfig) Validate() error {
	if c.Chunker.Size <= c.Chunker.Overlap {
		return errors.New("config: chunker.size must be greater than chunker.overlap")
	}
	switch c.Embedder.Type {
	case "openai":
		if c.Embedder.OpenAI.ResolveAPIKey() == "" {
			return fmt.Errorf("config: missing API key in env %s", c.Embedder.OpenAI.APIKeyEnv)
		}
	case "hashing":
	default:
		return fmt.Errorf("config: unknown embedder %q", c.Embedder.Type)
	}
	switch c.Completer.Type {
	case "openai":
		if c.Completer.OpenAI.ResolveAPIKey() == "" {
			return fmt.Errorf("config: missing API key in env %s", c.Completer.OpenAI.APIKeyEnv)
		}
	case "extractive":
	default:
		return fmt.Errorf("config: unknown completer %q", c.Completer.Type)
	}
	switch c.VectorStore.Type {
	case "memory", "qdrant", "redis":
	case "pinecone":
		p := c.VectorStore.Pinecone
		if p.APIKey == "" || p.Host == "" {
			return errors.New("config: pinecone requires api_key and host (PINECONE_API_KEY, PINECONE_HOST)")
		}
	case "pgvector":
		if c.VectorStore.PGVector.DSN == "" {
			return errors.New("config: pgvector requires dsn")
		}
	default:
		return fmt.Errorf("config: unknown vector store %q", c.VectorStore.Type)
	}
	return nil
}
