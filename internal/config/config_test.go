package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
server:
  host: "127.0.0.1"
  port: 9000
  request_timeout: 45s
corpus:
  datasets:
    - name: product_catalog
      vectors: ./data/product_catalog.npy
      metadata: ./data/product_catalog.csv
    - name: amazon_review
      vectors: /srv/amazon.npy
      metadata: /srv/amazon.csv
embedding:
  provider: mock
  dimensions: 8
generation:
  provider: ollama
retrieval:
  top_k: 6
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 || cfg.Server.RequestTimeout != 45*time.Second {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
	if got, want := cfg.Corpus.Datasets[0].Vectors, filepath.Join(dir, "data", "product_catalog.npy"); got != want {
		t.Errorf("vectors = %s, want %s", got, want)
	}
	if cfg.Corpus.Datasets[1].Metadata != "/srv/amazon.csv" {
		t.Errorf("absolute path changed: %s", cfg.Corpus.Datasets[1].Metadata)
	}
	if cfg.Corpus.Default != "product_catalog" {
		t.Errorf("default dataset = %s", cfg.Corpus.Default)
	}
	if cfg.Generation.Model != "llama3.1" {
		t.Errorf("ollama default model = %s", cfg.Generation.Model)
	}
	if cfg.Retrieval.TopK != 6 || cfg.Retrieval.MemoryTurns != 10 {
		t.Errorf("retrieval = %+v", cfg.Retrieval)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_parseError(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "server: [unclosed")
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected read error")
	}
}

func TestLoad_envFile(t *testing.T) {
	dir := t.TempDir()
	const key = "INSIGHTBOT_TEST_API_KEY"
	t.Setenv(key, "")
	os.Unsetenv(key)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(key+"=sk-from-dotenv\n"), 0600); err != nil {
		t.Fatal(err)
	}
	path := writeConfig(t, dir, "generation:\n  api_key_env: "+key+"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv(cfg.Generation.APIKeyEnv); got != "sk-from-dotenv" {
		t.Errorf("env %s = %q", key, got)
	}
}

func TestLoadEnv_doesNotOverride(t *testing.T) {
	dir := t.TempDir()
	const key = "INSIGHTBOT_TEST_KEEP"
	t.Setenv(key, "from-shell")
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte(key+"=from-file\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := LoadEnv(envPath); err != nil {
		t.Fatal(err)
	}
	if os.Getenv(key) != "from-shell" {
		t.Errorf("existing env overridden: %s", os.Getenv(key))
	}
	if err := LoadEnv(filepath.Join(dir, "absent.env")); err != nil {
		t.Errorf("missing env file should be ignored: %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8080 {
		t.Errorf("default server: %+v", cfg.Server)
	}
	if cfg.Corpus.IndexType != "flat" {
		t.Errorf("default index type: %s", cfg.Corpus.IndexType)
	}
	if cfg.Embedding.Provider != "openai" || cfg.Embedding.APIKeyEnv != "OPENAI_API_KEY" {
		t.Errorf("default embedding: %+v", cfg.Embedding)
	}
	if cfg.Generation.Model != "gpt-4o-mini" || cfg.Generation.Temperature != 0 {
		t.Errorf("default generation: %+v", cfg.Generation)
	}
	if cfg.Retrieval.MemoryTurns != 10 || cfg.Retrieval.TopK != 4 {
		t.Errorf("default retrieval: %+v", cfg.Retrieval)
	}
	if cfg.Retrieval.FallbackMessage != DefaultFallbackMessage || cfg.Retrieval.SystemPrompt != DefaultSystemPrompt {
		t.Error("default prompt texts should be set")
	}
	if cfg.Session.IdleTTL != 30*time.Minute {
		t.Errorf("default idle ttl: %s", cfg.Session.IdleTTL)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{Corpus: CorpusConfig{Datasets: []DatasetConfig{{Name: "a", Vectors: "/a.npy", Metadata: "/a.csv"}}}}
		ApplyDefaults(cfg)
		return cfg
	}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"no datasets", func(c *Config) { c.Corpus.Datasets = nil; c.Corpus.Default = "" }, "corpus.datasets is empty"},
		{"duplicate", func(c *Config) { c.Corpus.Datasets = append(c.Corpus.Datasets, c.Corpus.Datasets[0]) }, "duplicate name"},
		{"missing files", func(c *Config) { c.Corpus.Datasets[0].Vectors = "" }, "vectors and metadata are required"},
		{"unknown default", func(c *Config) { c.Corpus.Default = "zzz" }, "corpus.default"},
		{"bad embedder", func(c *Config) { c.Embedding.Provider = "word2vec" }, "embedding provider"},
		{"bad generator", func(c *Config) { c.Generation.Provider = "markov" }, "generation provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_DatasetAndIndexPath(t *testing.T) {
	cfg := &Config{
		Storage: StorageConfig{IndexDir: "/var/idx", KeywordDir: "/var/kw"},
		Corpus:  CorpusConfig{Datasets: []DatasetConfig{{Name: "info_produk"}}},
	}
	if _, ok := cfg.Dataset("info_produk"); !ok {
		t.Error("dataset should be found")
	}
	if _, ok := cfg.Dataset("nope"); ok {
		t.Error("unknown dataset should not be found")
	}
	if got := cfg.IndexPath("info_produk"); got != filepath.Join("/var/idx", "info_produk.idx") {
		t.Errorf("IndexPath = %s", got)
	}
	if got := cfg.KeywordPath("info_produk"); got != filepath.Join("/var/kw", "info_produk.bleve") {
		t.Errorf("KeywordPath = %s", got)
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"/abs/x", "/abs/x"},
		{"./rel/x", filepath.Join("/cfg", "rel/x")},
		{"../up", filepath.Join("/cfg", "../up")},
		{"data/x", filepath.Join(home, "data/x")},
	}
	for _, tt := range tests {
		if got := expandPath(tt.in, "/cfg"); got != tt.want {
			t.Errorf("expandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
