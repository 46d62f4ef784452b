// Package config loads nl2sql configuration from .nl2sql/config.yaml
// with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all nl2sql configuration.
type Config struct {
	// ModelsDir is the directory scanned for model definition files.
	// Relative paths are resolved against the workspace.
	ModelsDir string `yaml:"models_dir"`

	// Embedding provider configuration
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Retrieval defaults
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Watch behavior
	Watch WatchConfig `yaml:"watch"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // genai, ollama

	// GenAI
	GenAIAPIKey string `yaml:"genai_api_key"`
	GenAIModel  string `yaml:"genai_model"`
	TaskType    string `yaml:"task_type"`

	// Ollama
	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`
}

// RetrievalConfig holds the default retrieval options.
type RetrievalConfig struct {
	TopK           int     `yaml:"top_k"`
	Threshold      float64 `yaml:"threshold"`
	IncludeRelated *bool   `yaml:"include_related"` // nil means true
}

// WatchConfig configures the file watcher.
type WatchConfig struct {
	DebounceMillis int `yaml:"debounce_ms"`
}

// LoggingConfig configures the category file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ModelsDir: "models",
		Embedding: EmbeddingConfig{
			Provider:       "genai",
			GenAIModel:     "gemini-embedding-001",
			TaskType:       "SEMANTIC_SIMILARITY",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
		},
		Retrieval: RetrievalConfig{
			TopK:      5,
			Threshold: 0.25,
		},
		Watch: WatchConfig{
			DebounceMillis: 300,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads .nl2sql/config.yaml from the workspace, applies defaults
// for unset values, then applies environment overrides. A missing
// config file is not an error.
func Load(workspace string) (*Config, error) {
	cfg := DefaultConfig()

	path := filepath.Join(workspace, ".nl2sql", "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	cfg.fillDefaults()
	cfg.applyEnvOverrides()
	return cfg, nil
}

// fillDefaults restores defaults for values the file left zero.
func (c *Config) fillDefaults() {
	d := DefaultConfig()
	if c.ModelsDir == "" {
		c.ModelsDir = d.ModelsDir
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = d.Embedding.Provider
	}
	if c.Embedding.GenAIModel == "" {
		c.Embedding.GenAIModel = d.Embedding.GenAIModel
	}
	if c.Embedding.TaskType == "" {
		c.Embedding.TaskType = d.Embedding.TaskType
	}
	if c.Embedding.OllamaEndpoint == "" {
		c.Embedding.OllamaEndpoint = d.Embedding.OllamaEndpoint
	}
	if c.Embedding.OllamaModel == "" {
		c.Embedding.OllamaModel = d.Embedding.OllamaModel
	}
	if c.Retrieval.TopK == 0 {
		c.Retrieval.TopK = d.Retrieval.TopK
	}
	if c.Retrieval.Threshold == 0 {
		c.Retrieval.Threshold = d.Retrieval.Threshold
	}
	if c.Watch.DebounceMillis == 0 {
		c.Watch.DebounceMillis = d.Watch.DebounceMillis
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
}

// applyEnvOverrides applies environment variables on top of the file.
// Precedence: GEMINI_API_KEY then GOOGLE_API_KEY for the GenAI key.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Embedding.GenAIAPIKey = key
		if c.Embedding.Provider == "" {
			c.Embedding.Provider = "genai"
		}
	} else if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		c.Embedding.GenAIAPIKey = key
		if c.Embedding.Provider == "" {
			c.Embedding.Provider = "genai"
		}
	}

	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		c.Embedding.OllamaEndpoint = host
	}

	if dir := os.Getenv("NL2SQL_MODELS_DIR"); dir != "" {
		c.ModelsDir = dir
	}

	if provider := os.Getenv("NL2SQL_EMBEDDING_PROVIDER"); provider != "" {
		c.Embedding.Provider = provider
	}
}

// IncludeRelated resolves the tri-state include_related setting.
func (r RetrievalConfig) IncludeRelatedOrDefault() bool {
	if r.IncludeRelated == nil {
		return true
	}
	return *r.IncludeRelated
}
