// Package builder turns dataset sources into servable artifacts: the vector index
// file, the record catalog and the keyword index.
package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/insightbot/internal/config"
	"github.com/hyperjump/insightbot/internal/corpus"
	"github.com/hyperjump/insightbot/internal/fingerprint"
	"github.com/hyperjump/insightbot/internal/keyword"
	"github.com/hyperjump/insightbot/internal/models"
	"github.com/hyperjump/insightbot/internal/storage"
	"github.com/hyperjump/insightbot/internal/vector"
)

// ErrUnknownDataset is returned for dataset names missing from the configuration.
var ErrUnknownDataset = errors.New("dataset not configured")

// Builder builds datasets into storage and index files. Builds run one at a time.
type Builder struct {
	storage storage.Storage
	config  *config.Config
	logger  *zap.Logger

	mu sync.Mutex
}

// Publisher makes a built dataset servable.
type Publisher interface {
	Load(ctx context.Context, name string) error
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets a logger for build progress.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// New creates a builder writing to store, with paths and index type taken from cfg.
func New(store storage.Storage, cfg *config.Config, opts ...Option) *Builder {
	b := &Builder{storage: store, config: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Result reports what a build did for one dataset.
type Result struct {
	Dataset     string        `json:"dataset"`
	Skipped     bool          `json:"skipped"`
	Count       int           `json:"count"`
	Dimension   int           `json:"dimension"`
	Fingerprint string        `json:"fingerprint"`
	Duration    time.Duration `json:"duration"`
}

// Build builds one dataset. Unless force is set, a dataset whose sources match the
// stored fingerprint and whose artifacts are present is skipped.
//
// The dataset row is written last, so an interrupted build leaves the previous
// fingerprint in place and is redone on the next run.
func (b *Builder) Build(ctx context.Context, ds config.DatasetConfig, force bool) (*Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	start := time.Now()
	indexType := b.config.Corpus.IndexType
	fp, err := fingerprint.Dataset(indexType, ds.Vectors, ds.Metadata)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", ds.Name, err)
	}

	if !force {
		if prev, ok := b.unchanged(ctx, ds.Name, fp); ok {
			b.logger.Debug("dataset unchanged, skipping", zap.String("dataset", ds.Name))
			return &Result{
				Dataset:     ds.Name,
				Skipped:     true,
				Count:       prev.Count,
				Dimension:   prev.Dimension,
				Fingerprint: fp,
				Duration:    time.Since(start),
			}, nil
		}
	}

	b.logger.Info("building dataset",
		zap.String("dataset", ds.Name),
		zap.String("vectors", ds.Vectors),
		zap.String("metadata", ds.Metadata),
	)
	store, err := corpus.Load(ds.Vectors, ds.Metadata)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", ds.Name, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx, err := vector.New(indexType, store)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: build index: %w", ds.Name, err)
	}
	defer idx.Close()
	indexPath := b.config.IndexPath(ds.Name)
	if err := os.MkdirAll(b.config.Storage.IndexDir, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	if err := idx.Save(indexPath); err != nil {
		return nil, fmt.Errorf("dataset %s: %w", ds.Name, err)
	}

	records := store.Records()
	if err := b.storage.ReplaceRecords(ctx, ds.Name, records); err != nil {
		return nil, fmt.Errorf("dataset %s: store records: %w", ds.Name, err)
	}
	if b.config.Storage.KeywordDir != "" {
		if err := keyword.Build(ctx, b.config.KeywordPath(ds.Name), records); err != nil {
			return nil, fmt.Errorf("dataset %s: %w", ds.Name, err)
		}
	}

	info := &models.DatasetInfo{
		Name:        ds.Name,
		Fingerprint: fp,
		Dimension:   store.Dimension(),
		Count:       store.Size(),
		IndexPath:   indexPath,
		BuiltAt:     time.Now().UTC(),
	}
	if err := b.storage.PutDataset(ctx, info); err != nil {
		return nil, fmt.Errorf("dataset %s: %w", ds.Name, err)
	}

	res := &Result{
		Dataset:     ds.Name,
		Count:       info.Count,
		Dimension:   info.Dimension,
		Fingerprint: fp,
		Duration:    time.Since(start),
	}
	b.logger.Info("dataset built",
		zap.String("dataset", ds.Name),
		zap.Int("count", res.Count),
		zap.Int("dimension", res.Dimension),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// unchanged reports whether the stored build of name matches fp and its files
// and catalog rows are all present.
func (b *Builder) unchanged(ctx context.Context, name, fp string) (*models.DatasetInfo, bool) {
	prev, err := b.storage.GetDataset(ctx, name)
	if err != nil || prev.Fingerprint != fp {
		return nil, false
	}
	if _, err := os.Stat(prev.IndexPath); err != nil {
		return nil, false
	}
	if n, err := b.storage.CountRecords(ctx, name); err != nil || n != int64(prev.Count) {
		return nil, false
	}
	if b.config.Storage.KeywordDir != "" {
		if _, err := os.Stat(b.config.KeywordPath(name)); err != nil {
			return nil, false
		}
	}
	return prev, true
}

// Refresh builds the configured dataset name and publishes it through pub.
func (b *Builder) Refresh(ctx context.Context, name string, force bool, pub Publisher) (*Result, error) {
	ds, ok := b.config.Dataset(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDataset, name)
	}
	res, err := b.Build(ctx, ds, force)
	if err != nil {
		return nil, err
	}
	if err := pub.Load(ctx, name); err != nil {
		return res, err
	}
	return res, nil
}

// BuildAll builds every configured dataset. A failing dataset does not stop the
// others; the errors are joined.
func (b *Builder) BuildAll(ctx context.Context, force bool) ([]*Result, error) {
	var (
		results []*Result
		errs    []error
	)
	for _, ds := range b.config.Corpus.Datasets {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := b.Build(ctx, ds, force)
		if err != nil {
			b.logger.Error("dataset build failed", zap.String("dataset", ds.Name), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

// Prune removes catalog rows and artifacts of datasets no longer configured.
func (b *Builder) Prune(ctx context.Context) ([]string, error) {
	infos, err := b.storage.ListDatasets(ctx)
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, info := range infos {
		if _, ok := b.config.Dataset(info.Name); ok {
			continue
		}
		if err := b.storage.DeleteDataset(ctx, info.Name); err != nil {
			return removed, fmt.Errorf("dataset %s: %w", info.Name, err)
		}
		if err := os.Remove(info.IndexPath); err != nil && !os.IsNotExist(err) {
			b.logger.Warn("failed to remove index file", zap.String("path", info.IndexPath), zap.Error(err))
		}
		if b.config.Storage.KeywordDir != "" {
			if err := os.RemoveAll(b.config.KeywordPath(info.Name)); err != nil {
				b.logger.Warn("failed to remove keyword index", zap.String("dataset", info.Name), zap.Error(err))
			}
		}
		removed = append(removed, info.Name)
		b.logger.Info("pruned dataset", zap.String("dataset", info.Name))
	}
	return removed, nil
}
