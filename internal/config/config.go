package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"pdf-form-rag/internal/models"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

type Config struct {
	Debug    bool         `yaml:"debug"`
	Server   ServerConfig `yaml:"server"`
	EmbedLLM LLMConfig    `yaml:"embed_llm"`
	ChatLLM  LLMConfig    `yaml:"chat_llm"`
	RAG      RAGConfig    `yaml:"rag"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// MaxUploadMB bounds the multipart body of a document upload.
	MaxUploadMB int64 `yaml:"max_upload_mb"`
}

type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	BaseURL     string  `yaml:"base_url"`
	Key         string  `yaml:"key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

type RAGConfig struct {
	ChunkSize            int    `yaml:"chunk_size"`
	ChunkOverlap         int    `yaml:"chunk_overlap"`
	Separator            string `yaml:"separator"`
	TopK                 int    `yaml:"top_k"`
	EmbeddingConcurrency int    `yaml:"embedding_concurrency"`
	CondenseQuestion     bool   `yaml:"condense_question"`

	// overlapSet is true when chunk_overlap appeared in the config file
	overlapSet bool
}

// UnmarshalYAML decodes the section and records whether chunk_overlap was
// given, so an explicit 0 is not replaced by the default.
func (r *RAGConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain RAGConfig
	if err := value.Decode((*plain)(r)); err != nil {
		return err
	}
	var explicit struct {
		ChunkOverlap *int `yaml:"chunk_overlap"`
	}
	if err := value.Decode(&explicit); err != nil {
		return err
	}
	r.overlapSet = explicit.ChunkOverlap != nil
	return nil
}

// LoadConfig reads the yaml file at path, then the .env file, then applies
// environment overrides and defaults. A missing config file is not an error.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		log.Warn().Str("path", path).Msg("Config file not found, using defaults")
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("Error loading .env file")
	}
	cfg.EmbedLLM.Provider = strings.ToLower(cfg.EmbedLLM.Provider)
	cfg.ChatLLM.Provider = strings.ToLower(cfg.ChatLLM.Provider)
	applyEnv(&cfg)
	ApplyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv lets the environment override secrets and model names.
func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
		if cfg.ChatLLM.Provider == "" || cfg.ChatLLM.Provider == ProviderOpenAI {
			cfg.ChatLLM.Key = v
		}
		if cfg.EmbedLLM.Provider == ProviderOpenAI {
			cfg.EmbedLLM.Key = v
		}
	}
	if v, ok := os.LookupEnv("OPENAI_MODEL_NAME"); ok && (cfg.ChatLLM.Provider == "" || cfg.ChatLLM.Provider == ProviderOpenAI) {
		cfg.ChatLLM.Model = v
	}
	if v, ok := os.LookupEnv("OPENAI_EMBEDDING_MODEL_NAME"); ok && cfg.EmbedLLM.Provider == ProviderOpenAI {
		cfg.EmbedLLM.Model = v
	}
	if v, ok := os.LookupEnv("OLLAMA_EMBEDDING_MODEL_NAME"); ok && (cfg.EmbedLLM.Provider == "" || cfg.EmbedLLM.Provider == ProviderOllama) {
		cfg.EmbedLLM.Model = v
	}
	if v, ok := os.LookupEnv("OLLAMA_BASE_URL"); ok && (cfg.EmbedLLM.Provider == "" || cfg.EmbedLLM.Provider == ProviderOllama) {
		cfg.EmbedLLM.BaseURL = v
	}
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	cfg.EmbedLLM.Provider = strings.ToLower(cfg.EmbedLLM.Provider)
	cfg.ChatLLM.Provider = strings.ToLower(cfg.ChatLLM.Provider)

	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 32
	}

	if cfg.EmbedLLM.Provider == "" {
		cfg.EmbedLLM.Provider = ProviderOllama
	}
	if cfg.EmbedLLM.Provider == ProviderOllama && cfg.EmbedLLM.BaseURL == "" {
		cfg.EmbedLLM.BaseURL = "http://localhost:11434"
	}
	if cfg.EmbedLLM.Model == "" {
		if cfg.EmbedLLM.Provider == ProviderOpenAI {
			cfg.EmbedLLM.Model = "text-embedding-3-small"
		} else {
			cfg.EmbedLLM.Model = "nomic-embed-text"
		}
	}

	if cfg.ChatLLM.Provider == "" {
		cfg.ChatLLM.Provider = ProviderOpenAI
	}
	if cfg.ChatLLM.Provider == ProviderOllama && cfg.ChatLLM.BaseURL == "" {
		cfg.ChatLLM.BaseURL = "http://localhost:11434"
	}
	if cfg.ChatLLM.Model == "" {
		if cfg.ChatLLM.Provider == ProviderOllama {
			cfg.ChatLLM.Model = "llama3.1"
		} else {
			cfg.ChatLLM.Model = "gpt-4o-mini"
		}
	}

	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = models.DefaultChunkSize
	}
	if cfg.RAG.ChunkOverlap == 0 && !cfg.RAG.overlapSet {
		cfg.RAG.ChunkOverlap = min(models.DefaultChunkOverlap, cfg.RAG.ChunkSize/5)
	}
	if cfg.RAG.Separator == "" {
		cfg.RAG.Separator = models.DefaultSeparator
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = models.DefaultTopK
	}
	if cfg.RAG.EmbeddingConcurrency == 0 {
		cfg.RAG.EmbeddingConcurrency = runtime.NumCPU()
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.RAG.ChunkSize <= 0 {
		return fmt.Errorf("invalid rag.chunk_size %d: must be positive", c.RAG.ChunkSize)
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("invalid rag.chunk_overlap %d: must be in [0, %d)", c.RAG.ChunkOverlap, c.RAG.ChunkSize)
	}
	if c.RAG.TopK <= 0 {
		return fmt.Errorf("invalid rag.top_k %d: must be positive", c.RAG.TopK)
	}
	for name, p := range map[string]string{"embed_llm": c.EmbedLLM.Provider, "chat_llm": c.ChatLLM.Provider} {
		switch p {
		case ProviderOllama, ProviderOpenAI:
		default:
			return fmt.Errorf("unsupported %s.provider: %q", name, p)
		}
	}
	return nil
}
