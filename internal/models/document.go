// Package models defines core data structures for corpus records, conversation turns, and answers.
package models

import (
	"sort"
	"time"
)

// Metadata is the opaque column -> value mapping attached to a corpus row.
// Only formatters and the keyword index look inside it.
type Metadata map[string]string

// Keys returns the metadata keys in sorted order.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Record is one row of a corpus: its position, embedding and metadata.
// ID is the zero-based row index in the source table.
type Record struct {
	ID       int64     `json:"id"`
	Vector   []float32 `json:"-"`
	Metadata Metadata  `json:"metadata"`
}

// DatasetInfo describes a built dataset as recorded in storage.
type DatasetInfo struct {
	Name        string    `json:"name" db:"name"`
	Fingerprint string    `json:"fingerprint" db:"fingerprint"`
	Dimension   int       `json:"dimension" db:"dimension"`
	Count       int       `json:"count" db:"count"`
	IndexPath   string    `json:"index_path" db:"index_path"`
	BuiltAt     time.Time `json:"built_at" db:"built_at"`
}
