// Package testenv builds a dataset from fixtures and serves it, for tests of the
// layers above search.
package testenv

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/insightbot/internal/builder"
	"github.com/hyperjump/insightbot/internal/config"
	"github.com/hyperjump/insightbot/internal/search"
	"github.com/hyperjump/insightbot/internal/storage"
	"github.com/hyperjump/insightbot/test/fixtures"
)

// Env is a built and loaded dataset ready to be queried.
type Env struct {
	Config   *config.Config
	Storage  storage.Storage
	Engine   *search.Engine
	Builder  *builder.Builder
	Embedder *fixtures.StaticEmbedder
	Catalog  *fixtures.Catalog
	Dataset  config.DatasetConfig
}

// New writes catalog as dataset name under a temp dir, builds it and loads it into
// a search engine. The embedder maps each product name to the product's vector.
func New(t testing.TB, name string, catalog *fixtures.Catalog) *Env {
	t.Helper()
	dir := t.TempDir()
	ds, err := fixtures.WriteDataset(dir, name, catalog, ".csv")
	if err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage = config.StorageConfig{
		DatabasePath: filepath.Join(dir, "db.sqlite"),
		IndexDir:     filepath.Join(dir, "indices"),
		KeywordDir:   filepath.Join(dir, "keywords"),
	}
	cfg.Corpus.Datasets = []config.DatasetConfig{ds}
	cfg.Corpus.Default = name

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	b := builder.New(store, cfg)
	if _, err := b.Build(context.Background(), ds, false); err != nil {
		t.Fatal(err)
	}

	dim := 0
	if len(catalog.Products) > 0 {
		dim = len(catalog.Products[0].Vector)
	}
	emb := fixtures.NewStaticEmbedder(dim)
	for _, p := range catalog.Products {
		emb.Set(p.Name, p.Vector)
	}
	engine := search.NewEngine(store, emb, search.WithKeywordPaths(cfg.KeywordPath))
	t.Cleanup(func() { _ = engine.Close() })
	if err := engine.Load(context.Background(), name); err != nil {
		t.Fatal(err)
	}
	return &Env{
		Config:   cfg,
		Storage:  store,
		Engine:   engine,
		Builder:  b,
		Embedder: emb,
		Catalog:  catalog,
		Dataset:  ds,
	}
}
