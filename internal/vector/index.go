// Package vector provides exact nearest-neighbour indices over corpus embeddings.
package vector

import (
	"context"
	"errors"

	"github.com/hyperjump/insightbot/internal/models"
)

var (
	// ErrDimensionMismatch is returned when a vector's length differs from the index dimension.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrInvalidK is returned when k <= 0.
	ErrInvalidK = errors.New("k must be positive")
	// ErrCorruptIndex is returned when a persisted index's header disagrees with its payload.
	ErrCorruptIndex = errors.New("corrupt index")
)

// Index answers top-k queries over a fixed set of vectors.
type Index interface {
	Search(ctx context.Context, query []float32, k int) ([]Result, error)
	Dimension() int
	Size() int
	Type() string
	Save(path string) error
	Close() error
}

// Source is anything an index can be built from; corpus.Store satisfies it.
type Source interface {
	Dimension() int
	Records() []models.Record
}

// Result is a single search hit. Slot is the position in the index, ID the record id stored there.
type Result struct {
	ID       uint64
	Slot     int
	Distance float64 // squared L2
}
