// Package corpus loads precomputed embedding matrices together with their aligned metadata rows.
package corpus

import (
	"errors"
	"fmt"

	"github.com/hyperjump/insightbot/internal/models"
)

var (
	// ErrShapeMismatch is returned when vector and metadata counts differ or vectors are ragged.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrEmptyCorpus is returned when a corpus has no rows.
	ErrEmptyCorpus = errors.New("empty corpus")
)

// Store is an immutable set of embedding records sharing one dimension.
type Store struct {
	dimension int
	records   []models.Record
}

// New builds a store from in-memory vectors and metadata rows. Row i of metadata
// belongs to vectors[i]; the record id is i.
func New(vectors [][]float32, metadata []models.Metadata) (*Store, error) {
	if len(vectors) != len(metadata) {
		return nil, fmt.Errorf("%w: %d vectors, %d metadata rows", ErrShapeMismatch, len(vectors), len(metadata))
	}
	if len(vectors) == 0 {
		return nil, ErrEmptyCorpus
	}
	d := len(vectors[0])
	if d == 0 {
		return nil, fmt.Errorf("%w: zero-length vectors", ErrShapeMismatch)
	}
	records := make([]models.Record, len(vectors))
	for i, v := range vectors {
		if len(v) != d {
			return nil, fmt.Errorf("%w: vector %d has length %d, expected %d", ErrShapeMismatch, i, len(v), d)
		}
		vec := make([]float32, d)
		copy(vec, v)
		md := metadata[i]
		if md == nil {
			md = models.Metadata{}
		}
		records[i] = models.Record{ID: int64(i), Vector: vec, Metadata: md}
	}
	return &Store{dimension: d, records: records}, nil
}

// Load reads vectors from an .npy file of shape (n, d) and metadata from a
// .csv or .xlsx table whose data rows align with the vectors by position.
func Load(vectorsPath, metadataPath string) (*Store, error) {
	vectors, err := ReadVectors(vectorsPath)
	if err != nil {
		return nil, err
	}
	metadata, err := ReadTable(metadataPath)
	if err != nil {
		return nil, err
	}
	store, err := New(vectors, metadata)
	if err != nil {
		return nil, fmt.Errorf("load corpus %s: %w", vectorsPath, err)
	}
	return store, nil
}

// Dimension returns the shared vector length.
func (s *Store) Dimension() int {
	return s.dimension
}

// Size returns the number of records.
func (s *Store) Size() int {
	return len(s.records)
}

// Record returns the record with the given id.
func (s *Store) Record(id int64) (models.Record, bool) {
	if id < 0 || id >= int64(len(s.records)) {
		return models.Record{}, false
	}
	return s.records[id], true
}

// Records returns all records in row order. Callers must not modify them.
func (s *Store) Records() []models.Record {
	return s.records
}
