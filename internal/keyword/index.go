// Package keyword provides full-text lookup over record metadata.
package keyword

import (
	"context"
	"errors"
)

// ErrNoIndex is returned when no keyword index has been built at a path.
var ErrNoIndex = errors.New("keyword index not built")

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// Field restricts matching to one metadata column. Empty searches all columns.
	Field string
	// FuzzyEnabled enables fuzzy matching for typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum edit distance for fuzzy matching (1 or 2).
	// Default is 1 when FuzzyEnabled is true.
	Fuzziness int
}

// Index defines keyword search over one dataset's records.
type Index interface {
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]Result, error)
	DocCount() (uint64, error)
	Close() error
}

// Result is a single keyword hit: a record id and its relevance score.
type Result struct {
	ID    int64
	Score float64
}
