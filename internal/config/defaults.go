package config

import "time"

// DefaultSystemPrompt instructs the model to answer only from the retrieved records.
const DefaultSystemPrompt = `You are a marketing insight assistant. Answer the user's question using only the catalog records provided in the context. ` +
	`If the records do not contain the answer, say that you do not know. Answer in the language of the question.`

// DefaultFallbackMessage is shown when embedding or generation fails.
const DefaultFallbackMessage = "Maaf, terjadi kesalahan saat memproses pertanyaan Anda. Silakan coba lagi."

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 120 * time.Second
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/insightbot/data/db/insightbot.db"
	}
	if cfg.Storage.IndexDir == "" {
		cfg.Storage.IndexDir = "/usr/local/var/insightbot/data/indices/vector"
	}
	if cfg.Storage.KeywordDir == "" {
		cfg.Storage.KeywordDir = "/usr/local/var/insightbot/data/indices/keyword"
	}
	if cfg.Corpus.IndexType == "" {
		cfg.Corpus.IndexType = "flat"
	}
	if cfg.Corpus.Default == "" && len(cfg.Corpus.Datasets) > 0 {
		cfg.Corpus.Default = cfg.Corpus.Datasets[0].Name
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.Model == "" {
		switch cfg.Embedding.Provider {
		case "ollama":
			cfg.Embedding.Model = "nomic-embed-text"
		default:
			cfg.Embedding.Model = "text-embedding-ada-002"
		}
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 30 * time.Second
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Generation.Provider == "" {
		cfg.Generation.Provider = "openai"
	}
	if cfg.Generation.Model == "" {
		switch cfg.Generation.Provider {
		case "ollama":
			cfg.Generation.Model = "llama3.1"
		default:
			cfg.Generation.Model = "gpt-4o-mini"
		}
	}
	if cfg.Generation.APIKeyEnv == "" {
		cfg.Generation.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = 60 * time.Second
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 4
	}
	if cfg.Retrieval.MaxK == 0 {
		cfg.Retrieval.MaxK = 50
	}
	if cfg.Retrieval.MemoryTurns == 0 {
		cfg.Retrieval.MemoryTurns = 10
	}
	if cfg.Retrieval.SystemPrompt == "" {
		cfg.Retrieval.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.Retrieval.FallbackMessage == "" {
		cfg.Retrieval.FallbackMessage = DefaultFallbackMessage
	}
	if cfg.Session.IdleTTL == 0 {
		cfg.Session.IdleTTL = 30 * time.Minute
	}
	if cfg.Session.PruneInterval == 0 {
		cfg.Session.PruneInterval = time.Minute
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 2 * time.Second
	}
}
