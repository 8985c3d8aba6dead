package vector

import "fmt"

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeFlat is exhaustive exact search. The only type currently built in.
	IndexTypeFlat IndexType = "flat"
)

// New builds an index of the given type from src. An empty type means flat.
func New(indexType string, src Source) (Index, error) {
	switch IndexType(indexType) {
	case IndexTypeFlat, "":
		return Build(src)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: flat)", indexType)
	}
}

// Open loads a persisted index of the given type from path.
func Open(indexType string, path string) (Index, error) {
	switch IndexType(indexType) {
	case IndexTypeFlat, "":
		return LoadFlat(path)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: flat)", indexType)
	}
}
