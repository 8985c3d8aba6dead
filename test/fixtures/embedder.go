package fixtures

import (
	"context"
	"fmt"
	"sync"
)

// StaticEmbedder maps known texts to fixed vectors and fails for anything else.
type StaticEmbedder struct {
	Dim int

	mu      sync.RWMutex
	vectors map[string][]float32
}

// NewStaticEmbedder returns an embedder with no known texts.
func NewStaticEmbedder(dim int) *StaticEmbedder {
	return &StaticEmbedder{Dim: dim, vectors: make(map[string][]float32)}
}

// Set registers the vector returned for text.
func (e *StaticEmbedder) Set(text string, vec []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vectors[text] = vec
}

func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.vectors[text]
	if !ok {
		return nil, fmt.Errorf("no embedding for %q", text)
	}
	return v, nil
}

func (e *StaticEmbedder) Dimensions() int { return e.Dim }
func (e *StaticEmbedder) Close() error    { return nil }
