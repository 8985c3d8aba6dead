// Package search serves retrieval over built datasets and swaps in rebuilt ones atomically.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/insightbot/internal/embedding"
	"github.com/hyperjump/insightbot/internal/keyword"
	"github.com/hyperjump/insightbot/internal/models"
	"github.com/hyperjump/insightbot/internal/storage"
	"github.com/hyperjump/insightbot/internal/vector"
)

var (
	// ErrUnknownDataset is returned for dataset names the engine does not serve.
	ErrUnknownDataset = errors.New("unknown dataset")
	// ErrNotLoaded is returned when a dataset is registered but no index has been published yet.
	ErrNotLoaded = errors.New("index not loaded")
	// ErrUnknownRecord is returned for record ids outside a dataset.
	ErrUnknownRecord = errors.New("unknown record")
)

// Engine owns the servable datasets.
type Engine struct {
	storage   storage.Storage
	embedder  embedding.Embedder
	indexType string
	keywords  func(dataset string) string
	logger    *zap.Logger

	mu       sync.RWMutex
	datasets map[string]*Dataset
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithIndexType sets the index type used to open index files.
func WithIndexType(indexType string) Option {
	return func(e *Engine) { e.indexType = indexType }
}

// WithKeywordPaths enables keyword lookup, opening each dataset's Bleve index at
// the path returned by fn. A dataset without a keyword index still serves retrieval.
func WithKeywordPaths(fn func(dataset string) string) Option {
	return func(e *Engine) { e.keywords = fn }
}

// NewEngine creates an engine. The embedder is used by Search only.
func NewEngine(store storage.Storage, embedder embedding.Embedder, opts ...Option) *Engine {
	e := &Engine{
		storage:   store,
		embedder:  embedder,
		indexType: string(vector.IndexTypeFlat),
		logger:    zap.NewNop(),
		datasets:  make(map[string]*Dataset),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register makes a dataset name known without loading it.
func (e *Engine) Register(name string) *Dataset {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.datasets[name]
	if !ok {
		d = &Dataset{name: name}
		e.datasets[name] = d
	}
	return d
}

// Load reads the dataset's index file and records from storage into a fresh
// snapshot and publishes it, replacing any previous snapshot.
func (e *Engine) Load(ctx context.Context, name string) error {
	info, err := e.storage.GetDataset(ctx, name)
	if err != nil {
		return fmt.Errorf("load dataset %s: %w", name, err)
	}
	idx, err := vector.Open(e.indexType, info.IndexPath)
	if err != nil {
		return fmt.Errorf("load dataset %s: %w", name, err)
	}
	records, err := e.storage.ListRecords(ctx, name)
	if err != nil {
		_ = idx.Close()
		return fmt.Errorf("load dataset %s records: %w", name, err)
	}
	if len(records) != idx.Size() {
		_ = idx.Close()
		return fmt.Errorf("load dataset %s: index has %d vectors but catalog has %d records", name, idx.Size(), len(records))
	}
	if dim := e.embedder.Dimensions(); dim > 0 && dim != idx.Dimension() {
		e.logger.Warn("embedder and index dimensions differ; queries will fail",
			zap.String("dataset", name), zap.Int("embedder", dim), zap.Int("index", idx.Dimension()))
	}

	s := &snapshot{
		index:    idx,
		records:  make(map[uint64]models.Record, len(records)),
		info:     *info,
		loadedAt: time.Now(),
	}
	for _, rec := range records {
		s.records[uint64(rec.ID)] = rec
	}
	if e.keywords != nil {
		kw, err := keyword.Open(e.keywords(name))
		switch {
		case err == nil:
			s.keywords = kw
		case errors.Is(err, keyword.ErrNoIndex):
			e.logger.Warn("no keyword index; lookup disabled", zap.String("dataset", name))
		default:
			_ = idx.Close()
			return fmt.Errorf("load dataset %s keywords: %w", name, err)
		}
	}

	old := e.Register(name).publish(s)
	if old != nil {
		_ = old.close()
	}
	e.logger.Info("dataset published",
		zap.String("dataset", name),
		zap.Int("size", idx.Size()),
		zap.Int("dimension", idx.Dimension()),
		zap.String("fingerprint", info.Fingerprint),
	)
	return nil
}

// LoadAll loads every dataset recorded in storage. Failures are logged and
// returned joined; datasets that load are still published.
func (e *Engine) LoadAll(ctx context.Context) error {
	infos, err := e.storage.ListDatasets(ctx)
	if err != nil {
		return fmt.Errorf("list datasets: %w", err)
	}
	var errs []error
	for _, info := range infos {
		if err := e.Load(ctx, info.Name); err != nil {
			e.logger.Error("failed to load dataset", zap.String("dataset", info.Name), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Dataset returns a registered dataset.
func (e *Engine) Dataset(name string) (*Dataset, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	d, ok := e.datasets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDataset, name)
	}
	return d, nil
}

// Datasets returns the status of every registered dataset ordered by name.
func (e *Engine) Datasets() []DatasetStatus {
	e.mu.RLock()
	out := make([]DatasetStatus, 0, len(e.datasets))
	for _, d := range e.datasets {
		out = append(out, d.Status())
	}
	e.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Search embeds the query text and returns the nearest records of one dataset.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	start := time.Now()
	d, err := e.Dataset(query.Dataset)
	if err != nil {
		return nil, err
	}
	vec, err := e.embedder.Embed(ctx, query.Query)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	hits, err := d.Retrieve(ctx, vec, query.K)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	return &models.SearchResponse{
		Dataset:   query.Dataset,
		Query:     query.Query,
		Hits:      hits,
		QueryTime: time.Since(start).Milliseconds(),
	}, nil
}

// Close releases every published index.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var errs []error
	for _, d := range e.datasets {
		if s := d.current.Swap(nil); s != nil {
			errs = append(errs, s.close())
		}
	}
	return errors.Join(errs...)
}
