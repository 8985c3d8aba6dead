package search

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hyperjump/insightbot/internal/keyword"
	"github.com/hyperjump/insightbot/internal/models"
	"github.com/hyperjump/insightbot/internal/vector"
)

// snapshot is one fully loaded version of a dataset: its index and the records
// the index slots refer to. It is never modified after publication.
type snapshot struct {
	index    vector.Index
	keywords keyword.Index
	records  map[uint64]models.Record
	info     models.DatasetInfo
	loadedAt time.Time
}

// Dataset is a named, servable corpus. Searches see either the previous or the
// next snapshot, never a partially loaded one.
type Dataset struct {
	name    string
	current atomic.Pointer[snapshot]
}

// Name returns the dataset name.
func (d *Dataset) Name() string {
	return d.name
}

// publish makes s visible and returns the snapshot it replaced.
func (d *Dataset) publish(s *snapshot) *snapshot {
	return d.current.Swap(s)
}

// Retrieve returns the k records nearest to query, nearest first.
func (d *Dataset) Retrieve(ctx context.Context, query []float32, k int) ([]models.Hit, error) {
	s := d.current.Load()
	if s == nil {
		return nil, fmt.Errorf("dataset %s: %w", d.name, ErrNotLoaded)
	}
	results, err := s.index.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	hits := make([]models.Hit, len(results))
	for i, r := range results {
		rec, ok := s.records[r.ID]
		if !ok {
			return nil, fmt.Errorf("dataset %s: record %d missing from catalog", d.name, r.ID)
		}
		hits[i] = models.Hit{Record: rec, Distance: r.Distance, Rank: i + 1}
	}
	return hits, nil
}

// Lookup runs a keyword query over the dataset's record metadata.
func (d *Dataset) Lookup(ctx context.Context, query string, limit int, opts *keyword.SearchOptions) ([]models.Match, error) {
	s := d.current.Load()
	if s == nil {
		return nil, fmt.Errorf("dataset %s: %w", d.name, ErrNotLoaded)
	}
	if s.keywords == nil {
		return nil, fmt.Errorf("dataset %s: %w", d.name, keyword.ErrNoIndex)
	}
	results, err := s.keywords.Search(ctx, query, limit, opts)
	if err != nil {
		return nil, err
	}
	matches := make([]models.Match, 0, len(results))
	for _, r := range results {
		rec, ok := s.records[uint64(r.ID)]
		if !ok {
			continue
		}
		matches = append(matches, models.Match{Record: rec, Score: r.Score})
	}
	return matches, nil
}

// Record returns one record of the published snapshot by id.
func (d *Dataset) Record(id int64) (models.Record, error) {
	s := d.current.Load()
	if s == nil {
		return models.Record{}, fmt.Errorf("dataset %s: %w", d.name, ErrNotLoaded)
	}
	rec, ok := s.records[uint64(id)]
	if !ok {
		return models.Record{}, fmt.Errorf("dataset %s record %d: %w", d.name, id, ErrUnknownRecord)
	}
	return rec, nil
}

func (s *snapshot) close() error {
	err := s.index.Close()
	if s.keywords != nil {
		err = errors.Join(err, s.keywords.Close())
	}
	return err
}

// Status describes the published snapshot.
func (d *Dataset) Status() DatasetStatus {
	st := DatasetStatus{Name: d.name}
	if s := d.current.Load(); s != nil {
		st.Loaded = true
		st.Size = s.index.Size()
		st.Dimension = s.index.Dimension()
		st.IndexType = s.index.Type()
		st.Fingerprint = s.info.Fingerprint
		st.BuiltAt = s.info.BuiltAt
		st.LoadedAt = s.loadedAt
		st.Keywords = s.keywords != nil
	}
	return st
}

// DatasetStatus is the reportable state of a dataset.
type DatasetStatus struct {
	Name        string    `json:"name"`
	Loaded      bool      `json:"loaded"`
	Size        int       `json:"size"`
	Dimension   int       `json:"dimension"`
	IndexType   string    `json:"index_type,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	BuiltAt     time.Time `json:"built_at,omitempty"`
	LoadedAt    time.Time `json:"loaded_at,omitempty"`
	Keywords    bool      `json:"keywords"`
}
