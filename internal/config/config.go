// Package config provides configuration loading and structs for the insightbot server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Corpus     CorpusConfig     `yaml:"corpus"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Session    SessionConfig    `yaml:"session"`
	Watch      WatchConfig      `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// StorageConfig holds paths for the database and indices.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	IndexDir     string `yaml:"index_dir"`
	KeywordDir   string `yaml:"keyword_dir"`
}

// CorpusConfig lists the datasets to build and serve.
type CorpusConfig struct {
	IndexType string          `yaml:"index_type"`
	Datasets  []DatasetConfig `yaml:"datasets"`
	Default   string          `yaml:"default"`
}

// DatasetConfig names one corpus: an .npy embedding matrix and its aligned metadata table.
type DatasetConfig struct {
	Name     string `yaml:"name"`
	Vectors  string `yaml:"vectors"`
	Metadata string `yaml:"metadata"`
}

// EmbeddingConfig selects the query embedder.
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider"` // openai, ollama, onnx, mock
	Model      string        `yaml:"model"`
	BaseURL    string        `yaml:"base_url"`
	APIKeyEnv  string        `yaml:"api_key_env"`
	Dimensions int           `yaml:"dimensions"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	CacheSize  int           `yaml:"cache_size"`
	ModelPath  string        `yaml:"model_path"`
	MaxTokens  int           `yaml:"max_tokens"`
}

// GenerationConfig selects the chat model.
type GenerationConfig struct {
	Provider    string        `yaml:"provider"` // openai, ollama
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// RetrievalConfig holds orchestration settings.
type RetrievalConfig struct {
	TopK             int    `yaml:"top_k"`
	MaxK             int    `yaml:"max_k"`
	MemoryTurns      int    `yaml:"memory_turns"`
	SystemPrompt     string `yaml:"system_prompt"`
	FallbackMessage  string `yaml:"fallback_message"`
	CondenseQuestion bool   `yaml:"condense_question"`
}

// SessionConfig holds chat session lifetime settings.
type SessionConfig struct {
	IdleTTL       time.Duration `yaml:"idle_ttl"`
	PruneInterval time.Duration `yaml:"prune_interval"`
}

// WatchConfig controls rebuilding datasets when their source files change.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// Load reads and parses the config file at path, loads a .env file next to it
// when present, expands paths, and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(path)
	if err := LoadEnv(filepath.Join(configDir, ".env")); err != nil {
		return nil, err
	}

	ApplyDefaults(&cfg)

	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.IndexDir = expandPath(cfg.Storage.IndexDir, configDir)
	cfg.Storage.KeywordDir = expandPath(cfg.Storage.KeywordDir, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	for i := range cfg.Corpus.Datasets {
		cfg.Corpus.Datasets[i].Vectors = expandPath(cfg.Corpus.Datasets[i].Vectors, configDir)
		cfg.Corpus.Datasets[i].Metadata = expandPath(cfg.Corpus.Datasets[i].Metadata, configDir)
	}

	return &cfg, nil
}

// LoadEnv loads variables from a dotenv file without overriding ones already set.
// A missing file is not an error.
func LoadEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// Validate reports configuration errors that would prevent building or serving.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Corpus.Datasets) == 0 {
		errs = append(errs, errors.New("corpus.datasets is empty"))
	}
	seen := make(map[string]bool)
	for i, ds := range c.Corpus.Datasets {
		if ds.Name == "" {
			errs = append(errs, fmt.Errorf("corpus.datasets[%d]: name is required", i))
		} else if seen[ds.Name] {
			errs = append(errs, fmt.Errorf("corpus.datasets[%d]: duplicate name %q", i, ds.Name))
		}
		seen[ds.Name] = true
		if ds.Vectors == "" || ds.Metadata == "" {
			errs = append(errs, fmt.Errorf("corpus.datasets[%d]: vectors and metadata are required", i))
		}
	}
	if c.Corpus.Default != "" && !seen[c.Corpus.Default] {
		errs = append(errs, fmt.Errorf("corpus.default %q is not a configured dataset", c.Corpus.Default))
	}
	switch c.Embedding.Provider {
	case "openai", "ollama", "onnx", "mock":
	default:
		errs = append(errs, fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider))
	}
	switch c.Generation.Provider {
	case "openai", "ollama":
	default:
		errs = append(errs, fmt.Errorf("unknown generation provider %q", c.Generation.Provider))
	}
	if c.Retrieval.TopK <= 0 {
		errs = append(errs, errors.New("retrieval.top_k must be positive"))
	}
	return errors.Join(errs...)
}

// Dataset returns the dataset config with the given name.
func (c *Config) Dataset(name string) (DatasetConfig, bool) {
	for _, ds := range c.Corpus.Datasets {
		if ds.Name == name {
			return ds, true
		}
	}
	return DatasetConfig{}, false
}

// IndexPath returns where the index file of a dataset lives.
func (c *Config) IndexPath(dataset string) string {
	return filepath.Join(c.Storage.IndexDir, dataset+".idx")
}

// KeywordPath returns the Bleve index directory for a dataset.
func (c *Config) KeywordPath(dataset string) string {
	return filepath.Join(c.Storage.KeywordDir, dataset+".bleve")
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || strings.HasPrefix(path, "../") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
